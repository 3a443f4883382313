package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var _ token.AuthTokenRepo = (*AuthTokenRepo)(nil)

type AuthTokenRepo struct{ db *DB }

func NewAuthTokenRepo(db *DB) *AuthTokenRepo { return &AuthTokenRepo{db: db} }

const (
	qATCreate = `
INSERT INTO auth_tokens (token, site_id, user_id, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	qATByToken = `
SELECT token, site_id, user_id, expires_at, created_at
FROM auth_tokens
WHERE token = $1;
`
	qATDelete        = `DELETE FROM auth_tokens WHERE token = $1;`
	qATDeleteByUser  = `DELETE FROM auth_tokens WHERE user_id = $1;`
	qATDeleteExpired = `DELETE FROM auth_tokens WHERE expires_at < $1;`
)

func (r *AuthTokenRepo) Create(ctx context.Context, t *token.AuthToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qATCreate,
		t.Token, t.SiteID, t.UserID, t.ExpiresAt, t.CreatedAt,
	); err != nil {
		if err = mapInsertErr(err); err == ErrConflict {
			return err
		}
		return fmt.Errorf("insert auth token: %w", err)
	}
	return nil
}

func (r *AuthTokenRepo) FindByToken(ctx context.Context, raw string) (*token.AuthToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.AuthToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qATByToken, raw).
		Scan(&t.Token, &t.SiteID, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if err = mapRowErr(err, ErrNotFound); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find auth token: %w", err)
	}
	return &t, nil
}

func (r *AuthTokenRepo) Delete(ctx context.Context, raw string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qATDelete, raw)
	if err != nil {
		return false, fmt.Errorf("delete auth token: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *AuthTokenRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qATDeleteByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user auth tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *AuthTokenRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qATDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired auth tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}
