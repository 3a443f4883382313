package webhook

const (
	EventUserRegistered  = "user.registered"
	EventUserVerified    = "user.verified"
	EventEmailChanged    = "user.email_changed"
	EventPasswordChanged = "user.password_changed"
	EventUserDeleted     = "user.deleted"
)

// Site carries the webhook settings of a tenant. Delivery is a no-op unless
// both WebhookURL and WebhookSecret are set.
type Site struct {
	ID            int64
	WebhookURL    *string
	WebhookSecret *string
}

func (s *Site) WebhookEnabled() bool {
	return s != nil &&
		s.WebhookURL != nil && *s.WebhookURL != "" &&
		s.WebhookSecret != nil && *s.WebhookSecret != ""
}

// Payload is the signed body. Field order is the wire key order.
type Payload struct {
	EventType string `json:"event_type"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	AegisRole string `json:"aegis_role"`
	Timestamp int64  `json:"timestamp"`
}

// Event is one delivery attempt. Rows are append-only.
type Event struct {
	ID             int64   `json:"id"`
	SiteID         int64   `json:"site_id"`
	EventType      string  `json:"event_type"`
	Payload        string  `json:"payload"`
	ResponseStatus *int    `json:"response_status"`
	ResponseBody   *string `json:"response_body"`
	Success        bool    `json:"success"`
	CreatedAt      int64   `json:"created_at"`
}

// UserEvent is published by the API layer when a user-facing domain event
// happens; the dispatcher turns it into a webhook delivery.
type UserEvent struct {
	EventType string `json:"event_type"`
	SiteID    int64  `json:"site_id"`
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	AegisRole string `json:"aegis_role"`
	At        int64  `json:"at"`
}

func (e UserEvent) AsPayload() Payload {
	return Payload{
		EventType: e.EventType,
		SiteID:    e.SiteID,
		UserID:    e.UserID,
		Email:     e.Email,
		AegisRole: e.AegisRole,
		Timestamp: e.At,
	}
}
