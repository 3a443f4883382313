package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var _ token.PasswordResetRepo = (*PasswordResetRepo)(nil)

type PasswordResetRepo struct{ db *DB }

func NewPasswordResetRepo(db *DB) *PasswordResetRepo { return &PasswordResetRepo{db: db} }

const (
	qPRCreate = `
INSERT INTO password_reset_tokens (token, site_id, user_id, expires_at, created_at, used)
VALUES ($1, $2, $3, $4, $5, FALSE);
`
	qPRByToken = `
SELECT token, site_id, user_id, expires_at, created_at, used
FROM password_reset_tokens
WHERE token = $1;
`
	qPRMarkUsed      = `UPDATE password_reset_tokens SET used = TRUE WHERE token = $1 AND used = FALSE;`
	qPRDeleteExpired = `DELETE FROM password_reset_tokens WHERE expires_at < $1;`
)

func (r *PasswordResetRepo) Create(ctx context.Context, t *token.PasswordResetToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qPRCreate,
		t.Token, t.SiteID, t.UserID, t.ExpiresAt, t.CreatedAt,
	); err != nil {
		if err = mapInsertErr(err); err == ErrConflict {
			return err
		}
		return fmt.Errorf("insert password reset token: %w", err)
	}
	return nil
}

func (r *PasswordResetRepo) FindByToken(ctx context.Context, raw string) (*token.PasswordResetToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.PasswordResetToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qPRByToken, raw).
		Scan(&t.Token, &t.SiteID, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &t.Used); err != nil {
		if err = mapRowErr(err, ErrNotFound); err == ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset token: %w", err)
	}
	return &t, nil
}

func (r *PasswordResetRepo) MarkUsed(ctx context.Context, raw string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qPRMarkUsed, raw)
	if err != nil {
		return false, fmt.Errorf("mark password reset token used: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *PasswordResetRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qPRDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired password reset tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}
