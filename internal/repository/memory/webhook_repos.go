package memory

import (
	"context"

	"github.com/NordCoder/Aegis/internal/domain/webhook"
)

var (
	_ webhook.EventRepo  = (*WebhookEventRepo)(nil)
	_ webhook.SiteReader = (*SiteRepo)(nil)
)

type WebhookEventRepo struct{ s *Store }

func (r *WebhookEventRepo) Create(ctx context.Context, e *webhook.Event) error {
	defer r.s.lock(ctx)()
	r.s.eventSeq++
	e.ID = r.s.eventSeq
	r.s.events = append(r.s.events, *e)
	return nil
}

// ListBySite returns the newest events first.
func (r *WebhookEventRepo) ListBySite(ctx context.Context, siteID int64, limit int) ([]*webhook.Event, error) {
	defer r.s.lock(ctx)()
	var out []*webhook.Event
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if e := r.s.events[i]; e.SiteID == siteID {
			out = append(out, &e)
		}
	}
	return out, nil
}

type SiteRepo struct{ s *Store }

func (r *SiteRepo) Put(site webhook.Site) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sites[site.ID] = site
}

func (r *SiteRepo) GetWebhookSite(ctx context.Context, siteID int64) (*webhook.Site, error) {
	defer r.s.lock(ctx)()
	s, ok := r.s.sites[siteID]
	if !ok {
		return nil, webhook.ErrSiteNotFound
	}
	return &s, nil
}
