package token

import (
	"context"
	"time"
)

type AuthTokenRepo interface {
	Create(ctx context.Context, t *AuthToken) error
	FindByToken(ctx context.Context, token string) (*AuthToken, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	// FindLatestInFamily orders by created_at, then by insertion sequence.
	FindLatestInFamily(ctx context.Context, familyID string) (*RefreshToken, error)
	// MarkUsed sets used_at only if the token is unused and not revoked.
	// It reports whether this call performed the transition.
	MarkUsed(ctx context.Context, token string, usedAt int64) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

type EmailVerificationRepo interface {
	Create(ctx context.Context, t *EmailVerificationToken) error
	FindByToken(ctx context.Context, token string) (*EmailVerificationToken, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

type PasswordResetRepo interface {
	Create(ctx context.Context, t *PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*PasswordResetToken, error)
	// MarkUsed flips used to true only if it is still false.
	MarkUsed(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

type EmailChangeRepo interface {
	Create(ctx context.Context, r *EmailChangeRequest) error
	FindByToken(ctx context.Context, token string) (*EmailChangeRequest, error)
	Delete(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}

type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

type Clock interface {
	Now() time.Time
}
