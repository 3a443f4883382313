package webhook

import (
	"context"
	"errors"
)

type EventRepo interface {
	Create(ctx context.Context, e *Event) error
	ListBySite(ctx context.Context, siteID int64, limit int) ([]*Event, error)
}

type SiteReader interface {
	GetWebhookSite(ctx context.Context, siteID int64) (*Site, error)
}

type Sender interface {
	SendWebhook(site *Site, p Payload)
}

type UserEventPublisher interface {
	PublishUserEvent(ctx context.Context, ev UserEvent) error
}

var ErrSiteNotFound = errors.New("site not found")
