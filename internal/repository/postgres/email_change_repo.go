package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var _ token.EmailChangeRepo = (*EmailChangeRepo)(nil)

type EmailChangeRepo struct{ db *DB }

func NewEmailChangeRepo(db *DB) *EmailChangeRepo { return &EmailChangeRepo{db: db} }

const (
	qECCreate = `
INSERT INTO email_change_requests (token, site_id, user_id, new_email, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6);
`
	qECByToken = `
SELECT token, site_id, user_id, new_email, expires_at, created_at
FROM email_change_requests
WHERE token = $1;
`
	qECDelete        = `DELETE FROM email_change_requests WHERE token = $1;`
	qECDeleteExpired = `DELETE FROM email_change_requests WHERE expires_at < $1;`
)

func (r *EmailChangeRepo) Create(ctx context.Context, c *token.EmailChangeRequest) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qECCreate,
		c.Token, c.SiteID, c.UserID, c.NewEmail, c.ExpiresAt, c.CreatedAt,
	); err != nil {
		if err = mapInsertErr(err); err == ErrConflict {
			return err
		}
		return fmt.Errorf("insert email change request: %w", err)
	}
	return nil
}

func (r *EmailChangeRepo) FindByToken(ctx context.Context, raw string) (*token.EmailChangeRequest, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c token.EmailChangeRequest
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qECByToken, raw).
		Scan(&c.Token, &c.SiteID, &c.UserID, &c.NewEmail, &c.ExpiresAt, &c.CreatedAt); err != nil {
		if err = mapRowErr(err, ErrNotFound); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find email change request: %w", err)
	}
	return &c, nil
}

func (r *EmailChangeRepo) Delete(ctx context.Context, raw string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qECDelete, raw)
	if err != nil {
		return false, fmt.Errorf("delete email change request: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *EmailChangeRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qECDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired email change requests: %w", err)
	}
	return cmd.RowsAffected(), nil
}
