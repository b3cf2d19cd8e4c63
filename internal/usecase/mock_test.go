//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func pct(v float64) *float64 { return &v }

func keysOf(jobs []model.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.TrackingKey
	}
	return out
}

// -----------------------------
// Gateway
// -----------------------------

type mockGateway struct {
	SubmitFunc    func(ctx context.Context, sourceRef string) (*model.SubmitResult, error)
	GetStatusFunc func(ctx context.Context, jobID string) (*model.JobSnapshot, error)
	CancelFunc    func(ctx context.Context, jobID string) error
	ListFunc      func(ctx context.Context) ([]model.JobSnapshot, error)

	mu          sync.Mutex
	submitted   []string
	statusCalls map[string]int
	cancelled   []string
}

var _ adapter.JobGateway = (*mockGateway)(nil)

func (m *mockGateway) Submit(ctx context.Context, sourceRef string) (*model.SubmitResult, error) {
	m.mu.Lock()
	m.submitted = append(m.submitted, sourceRef)
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, sourceRef)
	}
	return nil, errors.New("Submit not implemented")
}

func (m *mockGateway) GetStatus(ctx context.Context, jobID string) (*model.JobSnapshot, error) {
	m.mu.Lock()
	if m.statusCalls == nil {
		m.statusCalls = map[string]int{}
	}
	m.statusCalls[jobID]++
	m.mu.Unlock()
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, jobID)
	}
	return nil, errors.New("GetStatus not implemented")
}

func (m *mockGateway) Cancel(ctx context.Context, jobID string) error {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, jobID)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, jobID)
	}
	return nil
}

func (m *mockGateway) ListActiveForSession(ctx context.Context) ([]model.JobSnapshot, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockGateway) submitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

func (m *mockGateway) statusCount(jobID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls[jobID]
}

func (m *mockGateway) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cancelled)
}

// -----------------------------
// Poll trigger
// -----------------------------

type mockTrigger struct{ calls atomic.Int32 }

var _ usecase.PollTrigger = (*mockTrigger)(nil)

func (m *mockTrigger) Ensure() { m.calls.Add(1) }

// -----------------------------
// Rate limiter
// -----------------------------

type mockLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int) (bool, error)
}

var _ adapter.RateLimiter = (*mockLimiter)(nil)

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, _ time.Duration) (bool, error) {
	return m.AllowFunc(ctx, key, limit)
}

// -----------------------------
// Notifier and task submitter
// -----------------------------

type mockNotifier struct {
	mu   sync.Mutex
	jobs []model.Job
	err  error
}

var _ adapter.Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) NotifyFinished(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return m.err
}

func (m *mockNotifier) notified() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Job(nil), m.jobs...)
}

// mockTasks runs submitted tasks synchronously, or rejects them when full is set.
type mockTasks struct {
	full      bool
	submitted int
}

var _ usecase.TaskSubmitter = (*mockTasks)(nil)

func (m *mockTasks) Submit(task func(ctx context.Context) error) error {
	if m.full {
		return errors.New("queue full")
	}
	m.submitted++
	return task(context.Background())
}
