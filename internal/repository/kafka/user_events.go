package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Aegis/internal/domain/webhook"
	"github.com/NordCoder/Aegis/internal/obs/retry"
)

var _ webhook.UserEventPublisher = (*UserEvents)(nil)

type publisher interface {
	PublishJSON(ctx context.Context, key []byte, v any) error
}

// UserEvents publishes user events keyed by site so the events of one site
// stay ordered within a partition.
type UserEvents struct {
	p      publisher
	policy retry.Policy
}

func NewUserEvents(p *Producer, log *zap.Logger) *UserEvents {
	return &UserEvents{p: p, policy: retry.PublishPolicy("user-events", log)}
}

func (e *UserEvents) PublishUserEvent(ctx context.Context, ev webhook.UserEvent) error {
	return retry.Do(ctx, e.policy, func(ctx context.Context) error {
		return e.p.PublishJSON(ctx, KeyFromInt64(ev.SiteID), ev)
	})
}
