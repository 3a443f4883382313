package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var _ token.EmailVerificationRepo = (*EmailVerificationRepo)(nil)

type EmailVerificationRepo struct{ db *DB }

func NewEmailVerificationRepo(db *DB) *EmailVerificationRepo {
	return &EmailVerificationRepo{db: db}
}

const (
	qEVCreate = `
INSERT INTO email_verification_tokens (token, site_id, user_id, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5);
`
	qEVByToken = `
SELECT token, site_id, user_id, expires_at, created_at
FROM email_verification_tokens
WHERE token = $1;
`
	qEVDelete        = `DELETE FROM email_verification_tokens WHERE token = $1;`
	qEVDeleteExpired = `DELETE FROM email_verification_tokens WHERE expires_at < $1;`
)

func (r *EmailVerificationRepo) Create(ctx context.Context, t *token.EmailVerificationToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qEVCreate,
		t.Token, t.SiteID, t.UserID, t.ExpiresAt, t.CreatedAt,
	); err != nil {
		if err = mapInsertErr(err); err == ErrConflict {
			return err
		}
		return fmt.Errorf("insert email verification token: %w", err)
	}
	return nil
}

func (r *EmailVerificationRepo) FindByToken(ctx context.Context, raw string) (*token.EmailVerificationToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.EmailVerificationToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qEVByToken, raw).
		Scan(&t.Token, &t.SiteID, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if err = mapRowErr(err, ErrNotFound); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find email verification token: %w", err)
	}
	return &t, nil
}

func (r *EmailVerificationRepo) Delete(ctx context.Context, raw string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qEVDelete, raw)
	if err != nil {
		return false, fmt.Errorf("delete email verification token: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *EmailVerificationRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qEVDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired email verification tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}
