package token

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	domaintoken "github.com/NordCoder/Aegis/internal/domain/token"
)

// CleanupExpiredTokens deletes every token of every kind with
// expires_at < now in one transaction.
func (u *Usecase) CleanupExpiredTokens(ctx context.Context, now time.Time) (domaintoken.SweepResult, error) {
	tr := otel.Tracer("token.uc")
	ctx, span := tr.Start(ctx, "token.cleanup")
	defer span.End()

	before := now.Unix()
	var res domaintoken.SweepResult
	err := u.repos.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if res.AuthTokens, err = u.repos.Auth.DeleteExpired(ctx, before); err != nil {
			return fmt.Errorf("auth tokens: %w", err)
		}
		if res.RefreshTokens, err = u.repos.Refresh.DeleteExpired(ctx, before); err != nil {
			return fmt.Errorf("refresh tokens: %w", err)
		}
		if res.EmailVerifications, err = u.repos.Verifications.DeleteExpired(ctx, before); err != nil {
			return fmt.Errorf("email verification tokens: %w", err)
		}
		if res.PasswordResets, err = u.repos.Resets.DeleteExpired(ctx, before); err != nil {
			return fmt.Errorf("password reset tokens: %w", err)
		}
		if res.EmailChangeRequests, err = u.repos.Changes.DeleteExpired(ctx, before); err != nil {
			return fmt.Errorf("email change requests: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domaintoken.SweepResult{}, fmt.Errorf("cleanup expired tokens: %w", err)
	}

	span.SetAttributes(attribute.Int64("cleanup.deleted", res.Total()))
	u.metrics.swept.WithLabelValues(kindAuth).Add(float64(res.AuthTokens))
	u.metrics.swept.WithLabelValues(kindRefresh).Add(float64(res.RefreshTokens))
	u.metrics.swept.WithLabelValues(kindVerification).Add(float64(res.EmailVerifications))
	u.metrics.swept.WithLabelValues(kindReset).Add(float64(res.PasswordResets))
	u.metrics.swept.WithLabelValues(kindEmailChange).Add(float64(res.EmailChangeRequests))
	return res, nil
}

type Runner struct {
	log      *zap.Logger
	uc       *Usecase
	interval time.Duration
}

func NewRunner(log *zap.Logger, uc *Usecase, interval time.Duration) *Runner {
	return &Runner{
		log:      log.With(zap.String("component", "token-janitor")),
		uc:       uc,
		interval: interval,
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	res, err := r.uc.CleanupExpiredTokens(ctx, r.uc.clock.Now())
	r.uc.metrics.sweepDur.Observe(time.Since(start).Seconds())
	if err != nil {
		r.uc.metrics.sweepErr.Inc()
		r.log.Warn("cleanup error", zap.Error(err))
		return
	}
	if res.Total() > 0 {
		r.log.Info("expired tokens removed",
			zap.Int64("auth", res.AuthTokens),
			zap.Int64("refresh", res.RefreshTokens),
			zap.Int64("email_verification", res.EmailVerifications),
			zap.Int64("password_reset", res.PasswordResets),
			zap.Int64("email_change", res.EmailChangeRequests),
		)
	}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
