// Package memory is an in-process implementation of the token and webhook
// ports. All repositories created from one Store share a single lock, so a
// Transactor.WithTx call is serializable against every other access.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/NordCoder/Aegis/internal/domain/token"
	"github.com/NordCoder/Aegis/internal/domain/webhook"
)

type Store struct {
	mu sync.Mutex

	auth          map[string]token.AuthToken
	refresh       map[string]token.RefreshToken
	refreshSeq    int64
	verifications map[string]token.EmailVerificationToken
	resets        map[string]token.PasswordResetToken
	changes       map[string]token.EmailChangeRequest

	events   []webhook.Event
	eventSeq int64
	sites    map[int64]webhook.Site
}

func NewStore() *Store {
	return &Store{
		auth:          make(map[string]token.AuthToken),
		refresh:       make(map[string]token.RefreshToken),
		verifications: make(map[string]token.EmailVerificationToken),
		resets:        make(map[string]token.PasswordResetToken),
		changes:       make(map[string]token.EmailChangeRequest),
		sites:         make(map[int64]webhook.Site),
	}
}

type lockKey struct{ s *Store }

// lock acquires the store lock unless ctx already runs inside a transaction
// on this store.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(lockKey{s}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	auth          map[string]token.AuthToken
	refresh       map[string]token.RefreshToken
	refreshSeq    int64
	verifications map[string]token.EmailVerificationToken
	resets        map[string]token.PasswordResetToken
	changes       map[string]token.EmailChangeRequest
	eventsLen     int
	eventSeq      int64
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		auth:          maps.Clone(s.auth),
		refresh:       maps.Clone(s.refresh),
		refreshSeq:    s.refreshSeq,
		verifications: maps.Clone(s.verifications),
		resets:        maps.Clone(s.resets),
		changes:       maps.Clone(s.changes),
		eventsLen:     len(s.events),
		eventSeq:      s.eventSeq,
	}
}

func (s *Store) restore(snap snapshot) {
	s.auth = snap.auth
	s.refresh = snap.refresh
	s.refreshSeq = snap.refreshSeq
	s.verifications = snap.verifications
	s.resets = snap.resets
	s.changes = snap.changes
	s.events = s.events[:snap.eventsLen]
	s.eventSeq = snap.eventSeq
}

func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

func (s *Store) AuthTokens() *AuthTokenRepo { return &AuthTokenRepo{s: s} }

func (s *Store) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{s: s} }

func (s *Store) EmailVerifications() *EmailVerificationRepo { return &EmailVerificationRepo{s: s} }

func (s *Store) PasswordResets() *PasswordResetRepo { return &PasswordResetRepo{s: s} }

func (s *Store) EmailChanges() *EmailChangeRepo { return &EmailChangeRepo{s: s} }

func (s *Store) WebhookEvents() *WebhookEventRepo { return &WebhookEventRepo{s: s} }

func (s *Store) Sites() *SiteRepo { return &SiteRepo{s: s} }

var _ token.Transactor = (*Transactor)(nil)

type Transactor struct{ s *Store }

// WithTx holds the store lock for the duration of fn and restores the
// previous state if fn fails. Nested calls join the outer transaction.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(lockKey{t.s}) != nil {
		return fn(ctx)
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, lockKey{t.s}, struct{}{})); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}
