package usecase

import (
	"context"
	"errors"
	"fmt"

	"vidnag-tracker/internal/domain"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/infra/logging"
	"vidnag-tracker/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CancelUseCase = (*cancelUC)(nil)

type CancelOutcome string

const (
	CancelOutcomeCancelled CancelOutcome = "cancelled" // server acknowledged the cancel
	CancelOutcomeDismissed CancelOutcome = "dismissed" // local-only removal
)

type CancelUseCase interface {
	// Cancel cancels a tracked job on the server, or dismisses a provisional /
	// local-error entry without any network call. On a failed server cancel the
	// job stays in the registry and the error is returned.
	Cancel(ctx context.Context, key string) (CancelOutcome, error)
}

type cancelUC struct {
	registry repository.JobRegistry
	gateway  adapter.JobGateway
	log      *zerolog.Logger
}

func NewCancelUseCase(registry repository.JobRegistry, gateway adapter.JobGateway, logger *zerolog.Logger) *cancelUC {
	return &cancelUC{registry: registry, gateway: gateway, log: logger}
}

func (c *cancelUC) Cancel(ctx context.Context, key string) (CancelOutcome, error) {
	log := logging.With(ctx, c.log)
	job, ok := c.registry.Get(key)
	if !ok {
		return "", fmt.Errorf("job %s: %w", key, domain.ErrNotFound)
	}

	if job.Kind != model.JobKindTracked {
		c.registry.Remove(key)
		metrics.IncCancel(string(CancelOutcomeDismissed))
		log.Info().Str("key", key).Str("kind", string(job.Kind)).Msg("dismissed local entry")
		return CancelOutcomeDismissed, nil
	}

	if err := c.gateway.Cancel(ctx, key); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// the server has no such job, so nothing will ever reconcile it
			c.registry.Remove(key)
			metrics.IncCancel(string(CancelOutcomeDismissed))
			log.Warn().Str("job_id", key).Msg("server does not know the job; dismissed locally")
			return CancelOutcomeDismissed, nil
		}
		metrics.IncCancel("failed")
		log.Warn().Err(err).Str("job_id", key).Msg("cancel failed; job left for the next tick")
		return "", fmt.Errorf("cancel job %s: %w", key, err)
	}

	c.registry.Remove(key)
	metrics.IncCancel(string(CancelOutcomeCancelled))
	log.Info().Str("job_id", key).Msg("job cancelled")
	return CancelOutcomeCancelled, nil
}
