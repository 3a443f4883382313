package token

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Aegis/internal/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(c.now, 0).UTC()
}

func (c *fakeClock) Set(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = unix
}

func testConfig() Config {
	return Config{
		AuthTTL:              24 * time.Hour,
		RefreshTTL:           720 * time.Hour,
		EmailVerificationTTL: 24 * time.Hour,
		PasswordResetTTL:     time.Hour,
		EmailChangeTTL:       24 * time.Hour,
		Rotation:             true,
		GracePeriod:          10 * time.Second,
	}
}

type fixture struct {
	uc    *Usecase
	store *memory.Store
	clock *fakeClock
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: 0}
	repos := Repos{
		Auth:          store.AuthTokens(),
		Refresh:       store.RefreshTokens(),
		Verifications: store.EmailVerifications(),
		Resets:        store.PasswordResets(),
		Changes:       store.EmailChanges(),
		Tx:            store.Transactor(),
	}
	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		uc:    NewUseCase(repos, cfg, zap.NewNop(), opts...),
		store: store,
		clock: clock,
	}
}
