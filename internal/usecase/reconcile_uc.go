package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/infra/logging"
	"vidnag-tracker/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Tick polls every tracked job once and folds the answers into the registry.
	// Fetch failures are absorbed; a tick never returns an error.
	Tick(ctx context.Context) TickReport
}

// TaskSubmitter runs fire-and-forget work off the caller's goroutine.
type TaskSubmitter interface {
	Submit(task func(ctx context.Context) error) error
}

// TickReport summarizes one reconciliation pass.
type TickReport struct {
	Polled      int
	Updated     int
	FetchErrors int
	Finished    []model.Job // evicted on a terminal status, with their final state
	Remaining   int         // registry size after commit
	Duration    time.Duration
}

// StatusResult is the outcome of one getStatus call inside a tick.
type StatusResult struct {
	Key      string
	Snapshot *model.JobSnapshot
	Err      error
}

// Decision is what Reconcile wants done to the registry.
type Decision struct {
	Updates   []model.Job // non-terminal jobs whose visible fields changed
	Evictions []model.Job // terminal jobs, carrying the final server state
}

var errBadSnapshot = errors.New("malformed status snapshot")

// Reconcile merges one batch of status results into the current jobs. It walks
// current in order, so decisions come out in display order. Jobs with no
// result, a failed fetch, or that are not tracked are left alone.
func Reconcile(current []model.Job, results []StatusResult, now time.Time) Decision {
	byKey := make(map[string]StatusResult, len(results))
	for _, r := range results {
		byKey[r.Key] = r
	}

	var d Decision
	for _, job := range current {
		if job.Kind != model.JobKindTracked {
			continue
		}
		res, ok := byKey[job.TrackingKey]
		if !ok || res.Err != nil || res.Snapshot == nil || !res.Snapshot.Status.Valid() {
			continue
		}
		snap := *res.Snapshot
		if snap.Status.IsTerminal() {
			d.Evictions = append(d.Evictions, finalState(job, snap, now))
			continue
		}
		updated := job.Clone()
		if updated.ApplySnapshot(snap, now) {
			d.Updates = append(d.Updates, updated)
		}
	}
	return d
}

func finalState(job model.Job, snap model.JobSnapshot, now time.Time) model.Job {
	out := job.Clone()
	out.Status = snap.Status
	out.Progress = snap.Progress.Clone()
	if snap.CurrentStep != "" {
		out.CurrentStep = snap.CurrentStep
	}
	if snap.ServerEntityRef != "" {
		out.ServerEntityRef = snap.ServerEntityRef
	}
	out.ErrorMessage = ""
	if snap.Status == model.JobStatusFailed {
		out.ErrorMessage = snap.ErrorMessage
	}
	out.UpdatedAt = now
	return out
}

type reconcileUC struct {
	registry      repository.JobRegistry
	gateway       adapter.JobGateway
	notifier      adapter.Notifier
	tasks         TaskSubmitter
	maxConcurrent int
	now           func() time.Time
	log           *zerolog.Logger
}

// NewReconcileUseCase wires the tick. notifier and tasks may be nil; without
// tasks, notifications run inline after the commit.
func NewReconcileUseCase(
	registry repository.JobRegistry,
	gateway adapter.JobGateway,
	notifier adapter.Notifier,
	tasks TaskSubmitter,
	maxConcurrent int,
	logger *zerolog.Logger,
) *reconcileUC {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &reconcileUC{
		registry:      registry,
		gateway:       gateway,
		notifier:      notifier,
		tasks:         tasks,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
		log:           logger,
	}
}

func (r *reconcileUC) Tick(ctx context.Context) TickReport {
	defer logging.TraceDuration(r.log, "Reconciler.Tick")()
	start := time.Now()

	var tracked []model.Job
	for _, j := range r.registry.Snapshot() {
		if j.Kind == model.JobKindTracked {
			tracked = append(tracked, j)
		}
	}
	if len(tracked) == 0 {
		return TickReport{Remaining: r.registry.Len(), Duration: time.Since(start)}
	}

	results := r.fetchAll(ctx, tracked)

	report := TickReport{Polled: len(tracked)}
	for _, res := range results {
		if res.Err != nil {
			report.FetchErrors++
			r.log.Warn().Err(res.Err).Str("job_id", res.Key).Msg("status fetch failed; keeping last known state")
		}
	}

	// Jobs removed while the fan-out was in flight are not in tx.Jobs(), so
	// they are neither updated nor resurrected.
	var decision Decision
	_ = r.registry.WithTx(func(tx repository.RegistryTx) error {
		decision = Reconcile(tx.Jobs(), results, r.now())
		for _, j := range decision.Updates {
			tx.Upsert(j)
		}
		for _, j := range decision.Evictions {
			tx.Remove(j.TrackingKey)
		}
		return nil
	})

	report.Updated = len(decision.Updates)
	report.Finished = decision.Evictions
	report.Remaining = r.registry.Len()
	report.Duration = time.Since(start)

	for _, j := range decision.Evictions {
		metrics.IncEviction(string(j.Status))
		r.log.Info().Str("job_id", j.TrackingKey).Str("status", string(j.Status)).Msg("job finished; evicted")
	}
	metrics.ObserveTick(report.Duration, report.FetchErrors)
	r.dispatchFinished(decision.Evictions)

	r.log.Debug().
		Int("polled", report.Polled).
		Int("updated", report.Updated).
		Int("evicted", len(report.Finished)).
		Int("fetch_errors", report.FetchErrors).
		Int("remaining", report.Remaining).
		Dur("duration", report.Duration).
		Msg("tick complete")
	return report
}

// fetchAll issues one GetStatus per job concurrently and waits for all of them.
// Each goroutine owns one slot of the result slice, and none returns an error,
// so a failing fetch never cancels its siblings.
func (r *reconcileUC) fetchAll(ctx context.Context, jobs []model.Job) []StatusResult {
	results := make([]StatusResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for i, job := range jobs {
		i, key := i, job.TrackingKey
		g.Go(func() error {
			snap, err := r.gateway.GetStatus(ctx, key)
			if err == nil && (snap == nil || !snap.Status.Valid()) {
				err = fmt.Errorf("job %s: %w", key, errBadSnapshot)
			}
			results[i] = StatusResult{Key: key, Snapshot: snap, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *reconcileUC) dispatchFinished(jobs []model.Job) {
	if r.notifier == nil || len(jobs) == 0 {
		return
	}
	for _, j := range jobs {
		job := j
		task := func(ctx context.Context) error {
			return r.notifier.NotifyFinished(ctx, job)
		}
		if r.tasks == nil {
			if err := task(context.Background()); err != nil {
				r.log.Warn().Err(err).Str("job_id", job.TrackingKey).Msg("finish notification failed")
			}
			continue
		}
		if err := r.tasks.Submit(task); err != nil {
			r.log.Warn().Err(err).Str("job_id", job.TrackingKey).Msg("finish notification dropped")
		}
	}
}
