package usecase

import (
	"context"
	"fmt"
	"time"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ RecoveryUseCase = (*recoveryUC)(nil)

type RecoveryUseCase interface {
	// Recover seeds the registry with the session's active server jobs and
	// starts polling if anything is tracked. It returns how many jobs it seeded.
	Recover(ctx context.Context) (int, error)
}

type recoveryUC struct {
	registry repository.JobRegistry
	gateway  adapter.JobGateway
	poller   PollTrigger
	now      func() time.Time
	log      *zerolog.Logger
}

func NewRecoveryUseCase(registry repository.JobRegistry, gateway adapter.JobGateway, poller PollTrigger, logger *zerolog.Logger) *recoveryUC {
	return &recoveryUC{registry: registry, gateway: gateway, poller: poller, now: time.Now, log: logger}
}

func (r *recoveryUC) Recover(ctx context.Context) (int, error) {
	active, err := r.gateway.ListActiveForSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}

	seeded := 0
	now := r.now()
	_ = r.registry.WithTx(func(tx repository.RegistryTx) error {
		seen := make(map[string]struct{}, len(active))
		for _, snap := range active {
			if snap.JobID == "" || snap.Status.IsTerminal() {
				continue
			}
			if _, dup := seen[snap.JobID]; dup {
				continue
			}
			seen[snap.JobID] = struct{}{}
			job := model.NewTrackedJob(snap, "", now)
			if existing, ok := tx.Get(snap.JobID); ok {
				if job.SourceRef == "" {
					job.SourceRef = existing.SourceRef
				}
				job.CreatedAt = existing.CreatedAt
			}
			tx.Upsert(job)
			seeded++
		}
		return nil
	})

	metrics.AddRecovered(seeded)
	r.log.Info().Int("active", len(active)).Int("seeded", seeded).Msg("recovered in-flight jobs")
	if !r.registry.IsEmpty() && r.poller != nil {
		r.poller.Ensure()
	}
	return seeded, nil
}
