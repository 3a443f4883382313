package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Aegis/internal/domain/token"
	"github.com/NordCoder/Aegis/internal/domain/webhook"
)

func TestRefreshTokens_LatestInFamilyOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().RefreshTokens()

	for _, tc := range []struct {
		tok     string
		created int64
	}{{"a", 100}, {"b", 200}, {"c", 200}, {"d", 150}} {
		require.NoError(t, repo.Create(ctx, &token.RefreshToken{Token: tc.tok, FamilyID: "f", CreatedAt: tc.created}))
	}
	require.NoError(t, repo.Create(ctx, &token.RefreshToken{Token: "other", FamilyID: "g", CreatedAt: 999}))

	latest, err := repo.FindLatestInFamily(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.Token, "ties on created_at break on insertion order")

	_, err = repo.FindLatestInFamily(ctx, "missing")
	assert.ErrorIs(t, err, token.ErrNotFound)
}

func TestRefreshTokens_MarkUsedIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().RefreshTokens()
	require.NoError(t, repo.Create(ctx, &token.RefreshToken{Token: "a", FamilyID: "f"}))

	ok, err := repo.MarkUsed(ctx, "a", 10)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.MarkUsed(ctx, "a", 20)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByToken(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
	assert.Equal(t, int64(10), *got.UsedAt)

	require.NoError(t, repo.Create(ctx, &token.RefreshToken{Token: "b", FamilyID: "f"}))
	n, err := repo.RevokeFamily(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	ok, err = repo.MarkUsed(ctx, "b", 30)
	require.NoError(t, err)
	assert.False(t, ok, "revoked tokens cannot be marked used")
}

func TestRefreshTokens_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().RefreshTokens()
	require.NoError(t, repo.Create(ctx, &token.RefreshToken{Token: "a", FamilyID: "f"}))
	_, err := repo.MarkUsed(ctx, "a", 10)
	require.NoError(t, err)

	got, err := repo.FindByToken(ctx, "a")
	require.NoError(t, err)
	*got.UsedAt = 99
	got.Revoked = true

	again, err := repo.FindByToken(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10), *again.UsedAt)
	assert.False(t, again.Revoked)
}

func TestCreate_Conflict(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.AuthTokens().Create(ctx, &token.AuthToken{Token: "x"}))
	assert.ErrorIs(t, s.AuthTokens().Create(ctx, &token.AuthToken{Token: "x"}), token.ErrConflict)
	require.NoError(t, s.EmailChanges().Create(ctx, &token.EmailChangeRequest{Token: "x"}))
	assert.ErrorIs(t, s.EmailChanges().Create(ctx, &token.EmailChangeRequest{Token: "x"}), token.ErrConflict)
}

func TestTransactor_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.Transactor().WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.AuthTokens().Create(ctx, &token.AuthToken{Token: "x"}))
		require.NoError(t, s.WebhookEvents().Create(ctx, &webhook.Event{SiteID: 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.AuthTokens().FindByToken(ctx, "x")
	assert.ErrorIs(t, err, token.ErrNotFound)
	events, err := s.WebhookEvents().ListBySite(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTransactor_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	tx := s.Transactor()

	err := tx.WithTx(ctx, func(ctx context.Context) error {
		return tx.WithTx(ctx, func(ctx context.Context) error {
			return s.AuthTokens().Create(ctx, &token.AuthToken{Token: "x"})
		})
	})
	require.NoError(t, err)
	_, err = s.AuthTokens().FindByToken(ctx, "x")
	require.NoError(t, err)
}

func TestTransactor_Serializes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.PasswordResets()
	require.NoError(t, repo.Create(ctx, &token.PasswordResetToken{Token: "r"}))

	var (
		mu   sync.Mutex
		wins int
		wg   sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Transactor().WithTx(ctx, func(ctx context.Context) error {
				pr, err := repo.FindByToken(ctx, "r")
				if err != nil || pr.Used {
					return nil
				}
				ok, err := repo.MarkUsed(ctx, "r")
				if err == nil && ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDeleteExpiredAndByUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	auth := s.AuthTokens()
	require.NoError(t, auth.Create(ctx, &token.AuthToken{Token: "a", UserID: 1, ExpiresAt: 10}))
	require.NoError(t, auth.Create(ctx, &token.AuthToken{Token: "b", UserID: 1, ExpiresAt: 20}))
	require.NoError(t, auth.Create(ctx, &token.AuthToken{Token: "c", UserID: 2, ExpiresAt: 5}))

	n, err := auth.DeleteExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = auth.DeleteByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestWebhookEvents_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().WebhookEvents()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &webhook.Event{SiteID: 1, CreatedAt: int64(i)}))
	}
	require.NoError(t, repo.Create(ctx, &webhook.Event{SiteID: 2}))

	got, err := repo.ListBySite(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(4), got[0].CreatedAt)
	assert.Greater(t, got[0].ID, got[1].ID)
}

func TestSites(t *testing.T) {
	ctx := context.Background()
	sites := NewStore().Sites()
	url := "https://example.com"
	sites.Put(webhook.Site{ID: 3, WebhookURL: &url})

	s, err := sites.GetWebhookSite(ctx, 3)
	require.NoError(t, err)
	assert.False(t, s.WebhookEnabled())

	_, err = sites.GetWebhookSite(ctx, 4)
	assert.ErrorIs(t, err, webhook.ErrSiteNotFound)
}
