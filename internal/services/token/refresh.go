package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domaintoken "github.com/NordCoder/Aegis/internal/domain/token"
	"github.com/NordCoder/Aegis/internal/obs"
)

// CreateRefreshToken issues a refresh token. An empty familyID starts a new
// family.
func (u *Usecase) CreateRefreshToken(ctx context.Context, siteID, userID int64, familyID string) (*domaintoken.RefreshToken, error) {
	if familyID == "" {
		fid, err := u.newToken()
		if err != nil {
			return nil, err
		}
		familyID = fid
	}
	return u.createRefresh(ctx, siteID, userID, familyID, u.now())
}

func (u *Usecase) createRefresh(ctx context.Context, siteID, userID int64, familyID string, now int64) (*domaintoken.RefreshToken, error) {
	raw, err := u.newToken()
	if err != nil {
		return nil, err
	}
	t := &domaintoken.RefreshToken{
		Token:     raw,
		SiteID:    siteID,
		UserID:    userID,
		FamilyID:  familyID,
		ExpiresAt: expiresAt(now, u.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := u.repos.Refresh.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	u.metrics.issued.WithLabelValues(kindRefresh).Inc()
	return t, nil
}

func (u *Usecase) InvalidateUserRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	n, err := u.repos.Refresh.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("invalidate user refresh tokens: %w", err)
	}
	return n, nil
}

// ValidateAndRotateRefreshToken validates a refresh token and, with rotation
// enabled, exchanges it for its successor in the same family.
//
// An active token is marked used and its successor created in one
// transaction. A used token presented again within the grace period yields
// the newest token of its family and never creates one. A used token
// presented after the grace period revokes the whole family and the call
// fails with ErrReuseDetected.
func (u *Usecase) ValidateAndRotateRefreshToken(ctx context.Context, raw string) (*domaintoken.RefreshResult, error) {
	tr := otel.Tracer("token.uc")
	ctx, span := tr.Start(ctx, "token.refresh.rotate",
		trace.WithAttributes(attribute.Bool("refresh.rotation", u.cfg.Rotation)),
	)
	defer span.End()

	now := u.now()
	grace := int64(u.cfg.GracePeriod / time.Second)

	var (
		res      *domaintoken.RefreshResult
		familyID string
		reused   bool
	)
	err := u.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		rt, err := lookup(u.repos.Refresh.FindByToken(ctx, raw))
		if err != nil {
			return err
		}
		if rt.Revoked || now > rt.ExpiresAt {
			return ErrInvalidToken
		}
		familyID = rt.FamilyID
		res = &domaintoken.RefreshResult{UserID: rt.UserID, SiteID: rt.SiteID}

		if !u.cfg.Rotation {
			return nil
		}

		if rt.UsedAt == nil {
			marked, err := u.repos.Refresh.MarkUsed(ctx, raw, now)
			if err != nil {
				return fmt.Errorf("mark refresh token used: %w", err)
			}
			if marked {
				next, err := u.createRefresh(ctx, rt.SiteID, rt.UserID, rt.FamilyID, now)
				if err != nil {
					return err
				}
				res.NewRefreshToken = next
				u.metrics.rotations.Inc()
				return nil
			}
			// Lost the race against a concurrent rotation; continue with
			// the state it left behind.
			if rt, err = lookup(u.repos.Refresh.FindByToken(ctx, raw)); err != nil {
				return err
			}
			if rt.Revoked || rt.UsedAt == nil {
				return ErrInvalidToken
			}
		}

		switch rt.State(now, grace) {
		case domaintoken.StateUsed:
			latest, err := u.repos.Refresh.FindLatestInFamily(ctx, rt.FamilyID)
			if err != nil && !errors.Is(err, domaintoken.ErrNotFound) {
				return fmt.Errorf("find latest in family: %w", err)
			}
			if latest != nil && latest.Token != raw {
				res.NewRefreshToken = latest
			}
			u.metrics.graceHits.Inc()
			return nil
		case domaintoken.StateStale:
			if _, err := u.repos.Refresh.RevokeFamily(ctx, rt.FamilyID); err != nil {
				return fmt.Errorf("revoke refresh family: %w", err)
			}
			reused = true
			return nil
		default:
			return ErrInvalidToken
		}
	})

	switch {
	case errors.Is(err, ErrInvalidToken):
		span.SetAttributes(attribute.String("refresh.outcome", "invalid"))
		return nil, u.reject(kindRefresh)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	case reused:
		u.metrics.reuse.Inc()
		span.SetAttributes(attribute.String("refresh.outcome", "reuse_detected"))
		obs.WithTrace(ctx, u.log).Warn("refresh token reuse detected, family revoked",
			zap.Int64("user_id", res.UserID),
			zap.Int64("site_id", res.SiteID),
			zap.String("family_id", familyID),
		)
		return nil, ErrReuseDetected
	}

	span.SetAttributes(
		attribute.String("refresh.outcome", "ok"),
		attribute.Bool("refresh.rotated", res.NewRefreshToken != nil),
	)
	return res, nil
}
