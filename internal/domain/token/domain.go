package token

// All timestamps are unix seconds.

type AuthToken struct {
	Token     string `json:"token"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}

type RefreshToken struct {
	ID        int64  `json:"-"`
	Token     string `json:"token"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	FamilyID  string `json:"family_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
	UsedAt    *int64 `json:"used_at"`
	Revoked   bool   `json:"revoked"`
}

type RefreshState int

const (
	StateActive RefreshState = iota
	StateUsed
	StateStale
	StateRevoked
)

func (s RefreshState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateUsed:
		return "used"
	case StateStale:
		return "stale"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// State classifies the token at now. A used token stays in StateUsed while
// now <= used_at + grace and becomes StateStale afterwards.
func (t *RefreshToken) State(now, grace int64) RefreshState {
	switch {
	case t.Revoked:
		return StateRevoked
	case t.UsedAt == nil:
		return StateActive
	case now <= *t.UsedAt+grace:
		return StateUsed
	default:
		return StateStale
	}
}

type EmailVerificationToken struct {
	Token     string `json:"token"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}

type PasswordResetToken struct {
	Token     string `json:"token"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
	Used      bool   `json:"used"`
}

type EmailChangeRequest struct {
	Token     string `json:"token"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	NewEmail  string `json:"new_email"`
	ExpiresAt int64  `json:"expires_at"`
	CreatedAt int64  `json:"created_at"`
}

// RefreshResult is returned by a successful refresh token validation.
// NewRefreshToken is nil when rotation is disabled, or when a retry inside the
// grace period finds no newer token in the family.
type RefreshResult struct {
	UserID          int64
	SiteID          int64
	NewRefreshToken *RefreshToken
}

type LoginResult struct {
	AuthToken    *AuthToken    `json:"auth_token"`
	RefreshToken *RefreshToken `json:"refresh_token,omitempty"`
}

// SweepResult holds the number of rows removed per token kind.
type SweepResult struct {
	AuthTokens          int64
	RefreshTokens       int64
	EmailVerifications  int64
	PasswordResets      int64
	EmailChangeRequests int64
}

func (r SweepResult) Total() int64 {
	return r.AuthTokens + r.RefreshTokens + r.EmailVerifications + r.PasswordResets + r.EmailChangeRequests
}
