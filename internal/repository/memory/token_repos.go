package memory

import (
	"context"
	"sort"

	"github.com/NordCoder/Aegis/internal/domain/token"
)

var (
	_ token.AuthTokenRepo         = (*AuthTokenRepo)(nil)
	_ token.RefreshTokenRepo      = (*RefreshTokenRepo)(nil)
	_ token.EmailVerificationRepo = (*EmailVerificationRepo)(nil)
	_ token.PasswordResetRepo     = (*PasswordResetRepo)(nil)
	_ token.EmailChangeRepo       = (*EmailChangeRepo)(nil)
)

// deleteWhere removes every entry matching pred and returns the count.
func deleteWhere[V any](m map[string]V, pred func(V) bool) int64 {
	var n int64
	for k, v := range m {
		if pred(v) {
			delete(m, k)
			n++
		}
	}
	return n
}

type AuthTokenRepo struct{ s *Store }

func (r *AuthTokenRepo) Create(ctx context.Context, t *token.AuthToken) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.auth[t.Token]; ok {
		return token.ErrConflict
	}
	r.s.auth[t.Token] = *t
	return nil
}

func (r *AuthTokenRepo) FindByToken(ctx context.Context, raw string) (*token.AuthToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.auth[raw]
	if !ok {
		return nil, token.ErrNotFound
	}
	return &t, nil
}

func (r *AuthTokenRepo) Delete(ctx context.Context, raw string) (bool, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.auth[raw]; !ok {
		return false, nil
	}
	delete(r.s.auth, raw)
	return true, nil
}

func (r *AuthTokenRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.auth, func(t token.AuthToken) bool { return t.UserID == userID }), nil
}

func (r *AuthTokenRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.auth, func(t token.AuthToken) bool { return t.ExpiresAt < before }), nil
}

type RefreshTokenRepo struct{ s *Store }

func (r *RefreshTokenRepo) Create(ctx context.Context, t *token.RefreshToken) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.refresh[t.Token]; ok {
		return token.ErrConflict
	}
	r.s.refreshSeq++
	t.ID = r.s.refreshSeq
	t.UsedAt = nil
	t.Revoked = false
	r.s.refresh[t.Token] = *t
	return nil
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, raw string) (*token.RefreshToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.refresh[raw]
	if !ok {
		return nil, token.ErrNotFound
	}
	return copyRefresh(t), nil
}

func (r *RefreshTokenRepo) FindLatestInFamily(ctx context.Context, familyID string) (*token.RefreshToken, error) {
	defer r.s.lock(ctx)()
	var family []token.RefreshToken
	for _, t := range r.s.refresh {
		if t.FamilyID == familyID {
			family = append(family, t)
		}
	}
	if len(family) == 0 {
		return nil, token.ErrNotFound
	}
	sort.Slice(family, func(i, j int) bool {
		if family[i].CreatedAt != family[j].CreatedAt {
			return family[i].CreatedAt > family[j].CreatedAt
		}
		return family[i].ID > family[j].ID
	})
	return copyRefresh(family[0]), nil
}

func (r *RefreshTokenRepo) MarkUsed(ctx context.Context, raw string, usedAt int64) (bool, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.refresh[raw]
	if !ok || t.UsedAt != nil || t.Revoked {
		return false, nil
	}
	t.UsedAt = &usedAt
	r.s.refresh[raw] = t
	return true, nil
}

func (r *RefreshTokenRepo) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for k, t := range r.s.refresh {
		if t.FamilyID == familyID && !t.Revoked {
			t.Revoked = true
			r.s.refresh[k] = t
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.refresh, func(t token.RefreshToken) bool { return t.UserID == userID }), nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.refresh, func(t token.RefreshToken) bool { return t.ExpiresAt < before }), nil
}

func copyRefresh(t token.RefreshToken) *token.RefreshToken {
	if t.UsedAt != nil {
		v := *t.UsedAt
		t.UsedAt = &v
	}
	return &t
}

type EmailVerificationRepo struct{ s *Store }

func (r *EmailVerificationRepo) Create(ctx context.Context, t *token.EmailVerificationToken) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.verifications[t.Token]; ok {
		return token.ErrConflict
	}
	r.s.verifications[t.Token] = *t
	return nil
}

func (r *EmailVerificationRepo) FindByToken(ctx context.Context, raw string) (*token.EmailVerificationToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.verifications[raw]
	if !ok {
		return nil, token.ErrNotFound
	}
	return &t, nil
}

func (r *EmailVerificationRepo) Delete(ctx context.Context, raw string) (bool, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.verifications[raw]; !ok {
		return false, nil
	}
	delete(r.s.verifications, raw)
	return true, nil
}

func (r *EmailVerificationRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.verifications, func(t token.EmailVerificationToken) bool { return t.ExpiresAt < before }), nil
}

type PasswordResetRepo struct{ s *Store }

func (r *PasswordResetRepo) Create(ctx context.Context, t *token.PasswordResetToken) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.resets[t.Token]; ok {
		return token.ErrConflict
	}
	t.Used = false
	r.s.resets[t.Token] = *t
	return nil
}

func (r *PasswordResetRepo) FindByToken(ctx context.Context, raw string) (*token.PasswordResetToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.resets[raw]
	if !ok {
		return nil, token.ErrNotFound
	}
	return &t, nil
}

func (r *PasswordResetRepo) MarkUsed(ctx context.Context, raw string) (bool, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.resets[raw]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	r.s.resets[raw] = t
	return true, nil
}

func (r *PasswordResetRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.resets, func(t token.PasswordResetToken) bool { return t.ExpiresAt < before }), nil
}

type EmailChangeRepo struct{ s *Store }

func (r *EmailChangeRepo) Create(ctx context.Context, c *token.EmailChangeRequest) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.changes[c.Token]; ok {
		return token.ErrConflict
	}
	r.s.changes[c.Token] = *c
	return nil
}

func (r *EmailChangeRepo) FindByToken(ctx context.Context, raw string) (*token.EmailChangeRequest, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.changes[raw]
	if !ok {
		return nil, token.ErrNotFound
	}
	return &c, nil
}

func (r *EmailChangeRepo) Delete(ctx context.Context, raw string) (bool, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.changes[raw]; !ok {
		return false, nil
	}
	delete(r.s.changes, raw)
	return true, nil
}

func (r *EmailChangeRepo) DeleteExpired(ctx context.Context, before int64) (int64, error) {
	defer r.s.lock(ctx)()
	return deleteWhere(r.s.changes, func(c token.EmailChangeRequest) bool { return c.ExpiresAt < before }), nil
}
