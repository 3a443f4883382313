// Package token implements the token lifecycle: issuing, validating and
// consuming the five token kinds, refresh rotation with theft detection, and
// the expiry sweep.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domaintoken "github.com/NordCoder/Aegis/internal/domain/token"
)

type Config struct {
	AuthTTL              time.Duration
	RefreshTTL           time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	EmailChangeTTL       time.Duration
	Rotation             bool
	GracePeriod          time.Duration
}

type Repos struct {
	Auth          domaintoken.AuthTokenRepo
	Refresh       domaintoken.RefreshTokenRepo
	Verifications domaintoken.EmailVerificationRepo
	Resets        domaintoken.PasswordResetRepo
	Changes       domaintoken.EmailChangeRepo
	Tx            domaintoken.Transactor
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type Usecase struct {
	repos   Repos
	cfg     Config
	clock   domaintoken.Clock
	gen     func() (string, error)
	log     *zap.Logger
	metrics *Metrics
}

type Option func(*Usecase)

func WithClock(c domaintoken.Clock) Option { return func(u *Usecase) { u.clock = c } }

func WithGenerator(gen func() (string, error)) Option { return func(u *Usecase) { u.gen = gen } }

func WithMetrics(m *Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func NewUseCase(repos Repos, cfg Config, log *zap.Logger, opts ...Option) *Usecase {
	u := &Usecase{
		repos: repos,
		cfg:   cfg,
		clock: systemClock{},
		gen:   GenerateToken,
		log:   log.With(zap.String("component", "token")),
	}
	for _, o := range opts {
		o(u)
	}
	if u.metrics == nil {
		u.metrics = NewMetrics(nil)
	}
	return u
}

func (u *Usecase) now() int64 { return u.clock.Now().Unix() }

func expiresAt(now int64, ttl time.Duration) int64 { return now + int64(ttl/time.Second) }

func (u *Usecase) newToken() (string, error) {
	raw, err := u.gen()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return raw, nil
}

// lookup maps a missing row to ErrInvalidToken and wraps anything else.
func lookup[T any](v *T, err error) (*T, error) {
	if errors.Is(err, domaintoken.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	return v, nil
}

func (u *Usecase) reject(kind string) error {
	u.metrics.rejected.WithLabelValues(kind).Inc()
	return ErrInvalidToken
}

func (u *Usecase) CreateAuthToken(ctx context.Context, siteID, userID int64) (*domaintoken.AuthToken, error) {
	raw, err := u.newToken()
	if err != nil {
		return nil, err
	}
	now := u.now()
	t := &domaintoken.AuthToken{
		Token:     raw,
		SiteID:    siteID,
		UserID:    userID,
		ExpiresAt: expiresAt(now, u.cfg.AuthTTL),
		CreatedAt: now,
	}
	if err := u.repos.Auth.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save auth token: %w", err)
	}
	u.metrics.issued.WithLabelValues(kindAuth).Inc()
	return t, nil
}

// ValidateAuthToken returns the owner of a live auth token. It has no side
// effects; auth tokens stay valid until expiry or logout.
func (u *Usecase) ValidateAuthToken(ctx context.Context, raw string) (int64, error) {
	t, err := lookup(u.repos.Auth.FindByToken(ctx, raw))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return 0, u.reject(kindAuth)
		}
		return 0, err
	}
	if u.now() > t.ExpiresAt {
		return 0, u.reject(kindAuth)
	}
	return t.UserID, nil
}

func (u *Usecase) InvalidateAuthToken(ctx context.Context, raw string) (bool, error) {
	ok, err := u.repos.Auth.Delete(ctx, raw)
	if err != nil {
		return false, fmt.Errorf("invalidate auth token: %w", err)
	}
	return ok, nil
}

func (u *Usecase) InvalidateUserTokens(ctx context.Context, userID int64) (int64, error) {
	n, err := u.repos.Auth.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate user auth tokens: %w", err)
	}
	return n, nil
}

func (u *Usecase) CreateEmailVerificationToken(ctx context.Context, siteID, userID int64) (*domaintoken.EmailVerificationToken, error) {
	raw, err := u.newToken()
	if err != nil {
		return nil, err
	}
	now := u.now()
	t := &domaintoken.EmailVerificationToken{
		Token:     raw,
		SiteID:    siteID,
		UserID:    userID,
		ExpiresAt: expiresAt(now, u.cfg.EmailVerificationTTL),
		CreatedAt: now,
	}
	if err := u.repos.Verifications.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save email verification token: %w", err)
	}
	u.metrics.issued.WithLabelValues(kindVerification).Inc()
	return t, nil
}

// CheckEmailVerificationToken reports the owner without consuming the token.
func (u *Usecase) CheckEmailVerificationToken(ctx context.Context, raw string) (int64, error) {
	t, err := lookup(u.repos.Verifications.FindByToken(ctx, raw))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return 0, u.reject(kindVerification)
		}
		return 0, err
	}
	if u.now() > t.ExpiresAt {
		return 0, u.reject(kindVerification)
	}
	return t.UserID, nil
}

// ValidateEmailVerificationToken consumes the token. Of two concurrent
// callers only the one whose delete removes the row succeeds.
func (u *Usecase) ValidateEmailVerificationToken(ctx context.Context, raw string) (int64, error) {
	userID, err := u.CheckEmailVerificationToken(ctx, raw)
	if err != nil {
		return 0, err
	}
	deleted, err := u.repos.Verifications.Delete(ctx, raw)
	if err != nil {
		return 0, fmt.Errorf("consume email verification token: %w", err)
	}
	if !deleted {
		return 0, u.reject(kindVerification)
	}
	return userID, nil
}

func (u *Usecase) CreatePasswordResetToken(ctx context.Context, siteID, userID int64) (*domaintoken.PasswordResetToken, error) {
	raw, err := u.newToken()
	if err != nil {
		return nil, err
	}
	now := u.now()
	t := &domaintoken.PasswordResetToken{
		Token:     raw,
		SiteID:    siteID,
		UserID:    userID,
		ExpiresAt: expiresAt(now, u.cfg.PasswordResetTTL),
		CreatedAt: now,
	}
	if err := u.repos.Resets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save password reset token: %w", err)
	}
	u.metrics.issued.WithLabelValues(kindReset).Inc()
	return t, nil
}

// ValidatePasswordResetToken marks the token used and returns its owner.
// The row is kept; any later validation fails.
func (u *Usecase) ValidatePasswordResetToken(ctx context.Context, raw string) (int64, error) {
	t, err := lookup(u.repos.Resets.FindByToken(ctx, raw))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return 0, u.reject(kindReset)
		}
		return 0, err
	}
	if t.Used || u.now() > t.ExpiresAt {
		return 0, u.reject(kindReset)
	}
	marked, err := u.repos.Resets.MarkUsed(ctx, raw)
	if err != nil {
		return 0, fmt.Errorf("mark password reset token used: %w", err)
	}
	if !marked {
		return 0, u.reject(kindReset)
	}
	return t.UserID, nil
}

func (u *Usecase) CreateEmailChangeToken(ctx context.Context, siteID, userID int64, newEmail string) (*domaintoken.EmailChangeRequest, error) {
	raw, err := u.newToken()
	if err != nil {
		return nil, err
	}
	now := u.now()
	c := &domaintoken.EmailChangeRequest{
		Token:     raw,
		SiteID:    siteID,
		UserID:    userID,
		NewEmail:  newEmail,
		ExpiresAt: expiresAt(now, u.cfg.EmailChangeTTL),
		CreatedAt: now,
	}
	if err := u.repos.Changes.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("save email change request: %w", err)
	}
	u.metrics.issued.WithLabelValues(kindEmailChange).Inc()
	return c, nil
}

// ValidateEmailChangeToken consumes the request and hands it back so the
// caller can apply the new email.
func (u *Usecase) ValidateEmailChangeToken(ctx context.Context, raw string) (*domaintoken.EmailChangeRequest, error) {
	c, err := lookup(u.repos.Changes.FindByToken(ctx, raw))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, u.reject(kindEmailChange)
		}
		return nil, err
	}
	if u.now() > c.ExpiresAt {
		return nil, u.reject(kindEmailChange)
	}
	deleted, err := u.repos.Changes.Delete(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("consume email change request: %w", err)
	}
	if !deleted {
		return nil, u.reject(kindEmailChange)
	}
	return c, nil
}

// IssueSession mints the auth and refresh token pair handed out at login.
func (u *Usecase) IssueSession(ctx context.Context, siteID, userID int64) (*domaintoken.LoginResult, error) {
	at, err := u.CreateAuthToken(ctx, siteID, userID)
	if err != nil {
		return nil, err
	}
	rt, err := u.CreateRefreshToken(ctx, siteID, userID, "")
	if err != nil {
		return nil, err
	}
	return &domaintoken.LoginResult{AuthToken: at, RefreshToken: rt}, nil
}

// Refresh validates (and rotates) a refresh token and mints a new auth token
// for its owner. RefreshToken in the result is nil when no rotated token is
// available to hand out.
func (u *Usecase) Refresh(ctx context.Context, raw string) (*domaintoken.LoginResult, error) {
	res, err := u.ValidateAndRotateRefreshToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	at, err := u.CreateAuthToken(ctx, res.SiteID, res.UserID)
	if err != nil {
		return nil, err
	}
	return &domaintoken.LoginResult{AuthToken: at, RefreshToken: res.NewRefreshToken}, nil
}
