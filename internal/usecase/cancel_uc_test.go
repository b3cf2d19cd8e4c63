//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"vidnag-tracker/internal/domain"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/infra/registry"
	"vidnag-tracker/internal/usecase"
)

func TestCancelUseCase_Cancel(t *testing.T) {
	t.Run("should dismiss a provisional entry without a network call", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		prov := trackedJob("prov-1", model.JobStatusPending, 0)
		prov.Kind = model.JobKindProvisional
		reg.Upsert(prov)
		gw := &mockGateway{}
		uc := usecase.NewCancelUseCase(reg, gw, newTestLogger())

		out, err := uc.Cancel(context.Background(), "prov-1")

		if err != nil || out != usecase.CancelOutcomeDismissed {
			t.Fatalf("expected dismissal, got %q, %v", out, err)
		}
		if !reg.IsEmpty() || gw.cancelCount() != 0 {
			t.Error("expected local removal only")
		}
	})

	t.Run("should cancel a tracked job on the server and remove it", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		reg.Upsert(trackedJob("5", model.JobStatusPending, 0))
		gw := &mockGateway{}
		uc := usecase.NewCancelUseCase(reg, gw, newTestLogger())

		out, err := uc.Cancel(context.Background(), "5")

		if err != nil || out != usecase.CancelOutcomeCancelled {
			t.Fatalf("expected cancellation, got %q, %v", out, err)
		}
		if !reg.IsEmpty() || gw.cancelCount() != 1 {
			t.Error("expected one server cancel and removal")
		}
	})

	t.Run("should keep the job when the server refuses", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		reg.Upsert(trackedJob("5", model.JobStatusRunning, 30))
		gw := &mockGateway{CancelFunc: func(context.Context, string) error {
			return &domain.GatewayError{Op: "cancel", StatusCode: http.StatusConflict, Message: "Job already running"}
		}}
		uc := usecase.NewCancelUseCase(reg, gw, newTestLogger())

		_, err := uc.Cancel(context.Background(), "5")

		var gwErr *domain.GatewayError
		if !errors.As(err, &gwErr) || gwErr.StatusCode != http.StatusConflict {
			t.Fatalf("expected the gateway error, got %v", err)
		}
		if _, ok := reg.Get("5"); !ok {
			t.Error("expected the job to stay in the registry")
		}
	})

	t.Run("should dismiss locally when the server no longer knows the job", func(t *testing.T) {
		reg := registry.NewMemoryRegistry()
		reg.Upsert(trackedJob("5", model.JobStatusRunning, 30))
		gw := &mockGateway{CancelFunc: func(context.Context, string) error {
			return &domain.GatewayError{Op: "cancel", StatusCode: http.StatusNotFound}
		}}
		uc := usecase.NewCancelUseCase(reg, gw, newTestLogger())

		out, err := uc.Cancel(context.Background(), "5")

		if err != nil || out != usecase.CancelOutcomeDismissed || !reg.IsEmpty() {
			t.Errorf("expected local dismissal, got %q, %v", out, err)
		}
	})

	t.Run("should report an unknown key", func(t *testing.T) {
		uc := usecase.NewCancelUseCase(registry.NewMemoryRegistry(), &mockGateway{}, newTestLogger())

		_, err := uc.Cancel(context.Background(), "nope")

		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

// A cancel that lands while a tick is fetching must win: the tick's commit
// only touches jobs that are still present.
func TestCancelDuringTick(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	reg.Upsert(trackedJob("5", model.JobStatusRunning, 30))
	canceller := usecase.NewCancelUseCase(reg, &mockGateway{}, newTestLogger())
	gw := &mockGateway{GetStatusFunc: func(ctx context.Context, id string) (*model.JobSnapshot, error) {
		if _, err := canceller.Cancel(ctx, id); err != nil {
			t.Errorf("cancel: %v", err)
		}
		return &model.JobSnapshot{JobID: id, Status: model.JobStatusRunning, Progress: model.Progress{Percent: pct(31)}}, nil
	}}
	ticker := usecase.NewReconcileUseCase(reg, gw, nil, nil, 4, newTestLogger())

	ticker.Tick(context.Background())

	if !reg.IsEmpty() {
		t.Errorf("expected cancelled job to stay removed, got %v", keysOf(reg.Snapshot()))
	}
}

func TestCancelRace_ServerAlreadyFinished(t *testing.T) {
	// --- Arrange ---
	reg := registry.NewMemoryRegistry()
	reg.Upsert(trackedJob("5", model.JobStatusRunning, 99))
	gw := &mockGateway{
		CancelFunc: func(context.Context, string) error {
			return &domain.GatewayError{Op: "cancel", StatusCode: http.StatusConflict, Message: "Job already completed"}
		},
		GetStatusFunc: func(_ context.Context, id string) (*model.JobSnapshot, error) {
			return &model.JobSnapshot{JobID: id, Status: model.JobStatusCompleted, Progress: model.Progress{Percent: pct(100)}}, nil
		},
	}
	canceller := usecase.NewCancelUseCase(reg, gw, newTestLogger())
	ticker := usecase.NewReconcileUseCase(reg, gw, nil, nil, 4, newTestLogger())

	// --- Act ---
	_, err := canceller.Cancel(context.Background(), "5")
	_, stillThere := reg.Get("5")
	report := ticker.Tick(context.Background())

	// --- Assert ---
	if !errors.Is(err, domain.ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
	if !stillThere {
		t.Fatal("expected the job to survive the failed cancel")
	}
	if len(report.Finished) != 1 || report.Finished[0].Status != model.JobStatusCompleted || !reg.IsEmpty() {
		t.Errorf("expected the tick to evict via terminal status, got %+v", report)
	}
}
