package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCleanupExpiredTokens(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.AuthTTL = 10 * time.Second
	cfg.RefreshTTL = 10 * time.Second
	cfg.EmailVerificationTTL = 10 * time.Second
	cfg.PasswordResetTTL = 10 * time.Second
	cfg.EmailChangeTTL = 10 * time.Second
	f := newFixture(t, cfg)

	// issued at 0, expire at 10
	_, err := f.uc.CreateAuthToken(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.uc.CreateRefreshToken(ctx, 1, 1, "")
	require.NoError(t, err)
	_, err = f.uc.CreateEmailVerificationToken(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.uc.CreatePasswordResetToken(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.uc.CreateEmailChangeToken(ctx, 1, 1, "x@example.com")
	require.NoError(t, err)

	// issued at 100, expire at 110
	f.clock.Set(100)
	live, err := f.uc.CreateAuthToken(ctx, 1, 2)
	require.NoError(t, err)
	liveRefresh, err := f.uc.CreateRefreshToken(ctx, 1, 2, "")
	require.NoError(t, err)

	res, err := f.uc.CleanupExpiredTokens(ctx, time.Unix(10, 0))
	require.NoError(t, err)
	assert.Zero(t, res.Total(), "expires_at == now is kept")

	res, err = f.uc.CleanupExpiredTokens(ctx, time.Unix(11, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.AuthTokens)
	assert.Equal(t, int64(1), res.RefreshTokens)
	assert.Equal(t, int64(1), res.EmailVerifications)
	assert.Equal(t, int64(1), res.PasswordResets)
	assert.Equal(t, int64(1), res.EmailChangeRequests)
	assert.Equal(t, int64(5), res.Total())

	res, err = f.uc.CleanupExpiredTokens(ctx, time.Unix(11, 0))
	require.NoError(t, err)
	assert.Zero(t, res.Total())

	uid, err := f.uc.ValidateAuthToken(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uid)
	_, err = f.uc.ValidateAndRotateRefreshToken(ctx, liveRefresh.Token)
	require.NoError(t, err)
}

func TestRunner_SweepsOnStart(t *testing.T) {
	cfg := testConfig()
	cfg.AuthTTL = time.Second
	f := newFixture(t, cfg)

	at, err := f.uc.CreateAuthToken(context.Background(), 1, 1)
	require.NoError(t, err)
	f.clock.Set(100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewRunner(zap.NewNop(), f.uc, time.Hour).Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.store.AuthTokens().FindByToken(context.Background(), at.Token)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
