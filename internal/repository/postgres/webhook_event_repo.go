package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/webhook"
)

var _ webhook.EventRepo = (*WebhookEventRepo)(nil)

type WebhookEventRepo struct{ db *DB }

func NewWebhookEventRepo(db *DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

const (
	qWECreate = `
INSERT INTO webhook_events (site_id, event_type, payload, response_status, response_body, success, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id;
`
	qWEListBySite = `
SELECT id, site_id, event_type, payload, response_status, response_body, success, created_at
FROM webhook_events
WHERE site_id = $1
ORDER BY id DESC
LIMIT $2;
`
)

func (r *WebhookEventRepo) Create(ctx context.Context, e *webhook.Event) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qWECreate,
		e.SiteID, e.EventType, e.Payload, e.ResponseStatus, e.ResponseBody, e.Success, e.CreatedAt,
	).Scan(&e.ID); err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepo) ListBySite(ctx context.Context, siteID int64, limit int) ([]*webhook.Event, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qWEListBySite, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook events: %w", err)
	}
	defer rows.Close()

	var out []*webhook.Event
	for rows.Next() {
		var e webhook.Event
		if err := rows.Scan(
			&e.ID, &e.SiteID, &e.EventType, &e.Payload,
			&e.ResponseStatus, &e.ResponseBody, &e.Success, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
