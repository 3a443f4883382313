package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/webhook"
)

var _ webhook.SiteReader = (*SiteRepo)(nil)

// SiteRepo reads the webhook settings of a site. Site management lives
// outside this module; only the columns needed for delivery are touched.
type SiteRepo struct{ db *DB }

func NewSiteRepo(db *DB) *SiteRepo { return &SiteRepo{db: db} }

const qSiteWebhook = `SELECT id, webhook_url, webhook_secret FROM sites WHERE id = $1;`

func (r *SiteRepo) GetWebhookSite(ctx context.Context, siteID int64) (*webhook.Site, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s webhook.Site
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qSiteWebhook, siteID).
		Scan(&s.ID, &s.WebhookURL, &s.WebhookSecret); err != nil {
		if err = mapRowErr(err, webhook.ErrSiteNotFound); err == webhook.ErrSiteNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get webhook site: %w", err)
	}
	return &s, nil
}
