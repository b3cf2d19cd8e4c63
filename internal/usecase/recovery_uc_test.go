//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/infra/registry"
	"vidnag-tracker/internal/usecase"
)

func TestRecoveryUseCase_Recover(t *testing.T) {
	t.Run("should do nothing when the server has no active jobs", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		trigger := &mockTrigger{}
		gw := &mockGateway{ListFunc: func(context.Context) ([]model.JobSnapshot, error) { return nil, nil }}
		uc := usecase.NewRecoveryUseCase(reg, gw, trigger, newTestLogger())

		n, err := uc.Recover(context.Background())

		if err != nil || n != 0 {
			t.Fatalf("expected 0 jobs and no error, got %d, %v", n, err)
		}
		if !reg.IsEmpty() || trigger.calls.Load() != 0 {
			t.Error("expected an empty registry and no poller start")
		}
	})

	t.Run("should seed active jobs as tracked and start polling", func(t *testing.T) {
		// --- Arrange ---
		reg := registry.NewMemoryRegistry()
		trigger := &mockTrigger{}
		gw := &mockGateway{ListFunc: func(context.Context) ([]model.JobSnapshot, error) {
			return []model.JobSnapshot{
				{JobID: "11", Status: model.JobStatusRunning, Progress: model.Progress{Percent: pct(20)}, SourceRef: "https://a.test/11"},
				{JobID: "12", Status: model.JobStatusPending},
				{JobID: "13", Status: model.JobStatusCompleted},
				{JobID: "", Status: model.JobStatusRunning},
			}, nil
		}}
		uc := usecase.NewRecoveryUseCase(reg, gw, trigger, newTestLogger())

		// --- Act ---
		n, err := uc.Recover(context.Background())

		// --- Assert ---
		if err != nil || n != 2 {
			t.Fatalf("expected 2 seeded jobs, got %d, %v", n, err)
		}
		snap := reg.Snapshot()
		if got := keysOf(snap); len(got) != 2 || got[0] != "11" || got[1] != "12" {
			t.Fatalf("unexpected registry %v", got)
		}
		for _, j := range snap {
			if j.Kind != model.JobKindTracked {
				t.Errorf("expected tracked kind, got %+v", j)
			}
		}
		if snap[0].SourceRef != "https://a.test/11" {
			t.Errorf("expected source from listing, got %q", snap[0].SourceRef)
		}
		if trigger.calls.Load() != 1 {
			t.Errorf("expected poller to start once, got %d", trigger.calls.Load())
		}
	})

	t.Run("should keep what the client already knew about a job", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		known := trackedJob("11", model.JobStatusPending, 0)
		reg.Upsert(known)
		gw := &mockGateway{ListFunc: func(context.Context) ([]model.JobSnapshot, error) {
			return []model.JobSnapshot{{JobID: "11", Status: model.JobStatusRunning}}, nil
		}}
		uc := usecase.NewRecoveryUseCase(reg, gw, &mockTrigger{}, newTestLogger())

		if _, err := uc.Recover(context.Background()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}

		j, _ := reg.Get("11")
		if j.SourceRef != known.SourceRef || !j.CreatedAt.Equal(known.CreatedAt) || j.Status != model.JobStatusRunning {
			t.Errorf("unexpected merged job %+v", j)
		}
		if reg.Len() != 1 {
			t.Errorf("expected no duplicate entry, got %d", reg.Len())
		}
	})

	t.Run("should count a job listed twice only once", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		gw := &mockGateway{ListFunc: func(context.Context) ([]model.JobSnapshot, error) {
			return []model.JobSnapshot{
				{JobID: "21", Status: model.JobStatusRunning, Progress: model.Progress{Percent: pct(30)}},
				{JobID: "21", Status: model.JobStatusRunning, Progress: model.Progress{Percent: pct(35)}},
			}, nil
		}}
		uc := usecase.NewRecoveryUseCase(reg, gw, &mockTrigger{}, newTestLogger())

		n, err := uc.Recover(context.Background())

		if err != nil || n != 1 {
			t.Fatalf("expected 1 seeded job, got %d, %v", n, err)
		}
		if reg.Len() != 1 {
			t.Errorf("expected one registry entry, got %v", keysOf(reg.Snapshot()))
		}
	})

	t.Run("should return the listing error and leave the registry alone", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		boom := errors.New("503")
		gw := &mockGateway{ListFunc: func(context.Context) ([]model.JobSnapshot, error) { return nil, boom }}
		uc := usecase.NewRecoveryUseCase(reg, gw, &mockTrigger{}, newTestLogger())

		_, err := uc.Recover(context.Background())

		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped listing error, got %v", err)
		}
		if !reg.IsEmpty() {
			t.Error("expected registry to stay empty")
		}
	})
}
