package webhook

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	domainwebhook "github.com/NordCoder/Aegis/internal/domain/webhook"
	"github.com/NordCoder/Aegis/internal/obs"
	kafkax "github.com/NordCoder/Aegis/internal/repository/kafka"
)

// Handler turns user events into webhook deliveries for the event's site.
type Handler struct {
	Log    *zap.Logger
	Sites  domainwebhook.SiteReader
	Sender domainwebhook.Sender
}

func (h *Handler) HandleUserEvent(ctx context.Context, ev *domainwebhook.UserEvent) error {
	if ev.EventType == "" || ev.SiteID <= 0 {
		obs.WithTrace(ctx, h.Log).Warn("skip malformed user event",
			zap.String("event_type", ev.EventType), zap.Int64("site_id", ev.SiteID))
		return nil
	}
	site, err := h.Sites.GetWebhookSite(ctx, ev.SiteID)
	if errors.Is(err, domainwebhook.ErrSiteNotFound) {
		obs.WithTrace(ctx, h.Log).Info("user event for unknown site", zap.Int64("site_id", ev.SiteID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load site %d: %w", ev.SiteID, err)
	}
	h.Sender.SendWebhook(site, ev.AsPayload())
	return nil
}

type Controller struct {
	Log *zap.Logger
	Sub *kafkax.Consumer
	UC  *Handler
}

func (c *Controller) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(func(ctx context.Context, _ []byte, ev *domainwebhook.UserEvent) error {
		c.Log.Debug("user-event", zap.String("event_type", ev.EventType), zap.Int64("site_id", ev.SiteID))
		return c.UC.HandleUserEvent(ctx, ev)
	})
	return c.Sub.Consume(ctx, handler)
}
