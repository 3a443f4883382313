package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var _ token.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (token, site_id, user_id, family_id, expires_at, created_at, used_at, revoked)
VALUES ($1, $2, $3, $4, $5, $6, NULL, FALSE)
RETURNING id;
`
	qRTByToken = `
SELECT id, token, site_id, user_id, family_id, expires_at, created_at, used_at, revoked
FROM refresh_tokens
WHERE token = $1;
`
	qRTLatestInFamily = `
SELECT id, token, site_id, user_id, family_id, expires_at, created_at, used_at, revoked
FROM refresh_tokens
WHERE family_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	qRTMarkUsed = `
UPDATE refresh_tokens
SET used_at = $2
WHERE token = $1 AND used_at IS NULL AND revoked = FALSE;
`
	qRTRevokeFamily = `UPDATE refresh_tokens SET revoked = TRUE WHERE family_id = $1 AND revoked = FALSE;`
	qRTDeleteByUser = `DELETE FROM refresh_tokens WHERE user_id = $1;`
	qRTDeleteExpired = `DELETE FROM refresh_tokens WHERE expires_at < $1;`
)

func scanRefresh(row pgx.Row, t *token.RefreshToken) error {
	if err := row.Scan(
		&t.ID,
		&t.Token,
		&t.SiteID,
		&t.UserID,
		&t.FamilyID,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UsedAt,
		&t.Revoked,
	); err != nil {
		if err = mapRowErr(err, ErrNotFound); err == ErrNotFound {
			return err
		}
		return fmt.Errorf("scan refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) Create(ctx context.Context, t *token.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qRTCreate,
		t.Token, t.SiteID, t.UserID, t.FamilyID, t.ExpiresAt, t.CreatedAt,
	).Scan(&t.ID); err != nil {
		if err = mapInsertErr(err); err == ErrConflict {
			return err
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, raw string) (*token.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.RefreshToken
	if err := scanRefresh(r.db.execQueryer(ctx).QueryRow(ctx, qRTByToken, raw), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepo) FindLatestInFamily(ctx context.Context, familyID string) (*token.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t token.RefreshToken
	if err := scanRefresh(r.db.execQueryer(ctx).QueryRow(ctx, qRTLatestInFamily, familyID), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepo) MarkUsed(ctx context.Context, raw string, usedAt int64) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRTMarkUsed, raw, usedAt)
	if err != nil {
		return false, fmt.Errorf("mark refresh token used: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *RefreshTokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeFamily, familyID)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh family: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRTDeleteByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qRTDeleteExpired, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}
