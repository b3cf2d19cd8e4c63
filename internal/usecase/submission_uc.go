package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidnag-tracker/internal/domain"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
	"vidnag-tracker/internal/domain/ports/repository"
	"vidnag-tracker/internal/infra/logging"
	"vidnag-tracker/internal/infra/metrics"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Compile-time check
var _ SubmissionUseCase = (*submissionUC)(nil)

const (
	// ProvisionalStep is the placeholder step shown until the server answers.
	ProvisionalStep = "Submitting"
	// QueuedStep is the step of an accepted job until the first poll reports one.
	QueuedStep = "Queued"
)

type SubmissionUseCase interface {
	// Submit sends every reference independently. One failure never stops the
	// rest; per-reference outcomes are reported in BatchResult.
	Submit(ctx context.Context, refs []string) (*BatchResult, error)
	// SubmitText splits newline-delimited input and calls Submit.
	SubmitText(ctx context.Context, raw string) (*BatchResult, error)
}

// PollTrigger starts the poll loop if it is not already running.
type PollTrigger interface {
	Ensure()
}

// SubmitLimit configures the optional per-session submission limiter.
type SubmitLimit struct {
	Limiter    adapter.RateLimiter
	Limit      int
	Window     time.Duration
	SessionKey string
}

// SubmissionOutcome is what happened to one reference of a batch.
type SubmissionOutcome struct {
	SourceRef   string `json:"source_ref"`
	TrackingKey string `json:"tracking_key"` // server job id on success, provisional key otherwise
	Accepted    bool   `json:"accepted"`
	Error       string `json:"error,omitempty"`
}

type BatchResult struct {
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Outcomes  []SubmissionOutcome `json:"outcomes"` // input order
}

// ParseSourceRefs splits newline-delimited input into trimmed, non-empty
// references. Order and duplicates are preserved.
func ParseSourceRefs(raw string) []string {
	var refs []string
	for _, line := range strings.Split(raw, "\n") {
		if ref := strings.TrimSpace(line); ref != "" {
			refs = append(refs, ref)
		}
	}
	return refs
}

type submissionUC struct {
	registry      repository.JobRegistry
	gateway       adapter.JobGateway
	poller        PollTrigger
	limit         SubmitLimit
	maxConcurrent int
	dev           bool
	now           func() time.Time
	newKey        func() string
	log           *zerolog.Logger
}

func NewSubmissionUseCase(
	registry repository.JobRegistry,
	gateway adapter.JobGateway,
	poller PollTrigger,
	limit SubmitLimit,
	maxConcurrent int,
	dev bool,
	logger *zerolog.Logger,
) *submissionUC {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &submissionUC{
		registry:      registry,
		gateway:       gateway,
		poller:        poller,
		limit:         limit,
		maxConcurrent: maxConcurrent,
		dev:           dev,
		now:           time.Now,
		newKey:        func() string { return "prov-" + ulid.Make().String() },
		log:           logger,
	}
}

func (s *submissionUC) SubmitText(ctx context.Context, raw string) (*BatchResult, error) {
	return s.Submit(ctx, ParseSourceRefs(raw))
}

func (s *submissionUC) Submit(ctx context.Context, refs []string) (*BatchResult, error) {
	clean := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return nil, fmt.Errorf("no source references: %w", domain.ErrInvalidArgument)
	}
	log := logging.With(ctx, s.log)

	// Placeholders go in first, in input order, before any network call.
	keys := make([]string, len(clean))
	now := s.now()
	_ = s.registry.WithTx(func(tx repository.RegistryTx) error {
		for i, ref := range clean {
			keys[i] = s.newKey()
			tx.Upsert(model.Job{
				TrackingKey: keys[i],
				Kind:        model.JobKindProvisional,
				SourceRef:   ref,
				Status:      model.JobStatusPending,
				CurrentStep: ProvisionalStep,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return nil
	})

	// Each goroutine owns one outcome slot and never returns an error, so a
	// failing reference cannot cancel its siblings.
	outcomes := make([]SubmissionOutcome, len(clean))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i := range clean {
		i := i
		g.Go(func() error {
			outcomes[i] = s.submitOne(ctx, log, keys[i], clean[i])
			return nil
		})
	}
	_ = g.Wait()

	res := &BatchResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Accepted {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	if res.Succeeded > 0 && s.poller != nil {
		s.poller.Ensure()
	}
	log.Info().Int("succeeded", res.Succeeded).Int("failed", res.Failed).Msg("submission batch finished")
	return res, nil
}

func (s *submissionUC) submitOne(ctx context.Context, log *zerolog.Logger, provKey, ref string) SubmissionOutcome {
	if err := s.checkLimit(ctx, log); err != nil {
		metrics.IncSubmission("rate_limited")
		s.markLocalError(provKey, err)
		return SubmissionOutcome{SourceRef: ref, TrackingKey: provKey, Error: err.Error()}
	}

	res, err := s.gateway.Submit(ctx, ref)
	if err == nil && (res == nil || res.JobID == "") {
		err = errors.New("server accepted the submission without a job id")
	}
	if err != nil {
		metrics.IncSubmission("failed")
		log.Warn().Err(err).Str("source", logging.Redact(ref, s.dev)).Msg("submission failed")
		s.markLocalError(provKey, err)
		return SubmissionOutcome{SourceRef: ref, TrackingKey: provKey, Error: errorMessage(err)}
	}

	metrics.IncSubmission("accepted")
	tracked := model.NewTrackedJob(model.JobSnapshot{
		JobID:           res.JobID,
		Status:          res.InitialStatus,
		ServerEntityRef: res.ServerEntityRef,
	}, ref, s.now())
	if tracked.Status == model.JobStatusPending {
		tracked.CurrentStep = QueuedStep
	}

	_ = s.registry.WithTx(func(tx repository.RegistryTx) error {
		prov, ok := tx.Get(provKey)
		if ok {
			tracked.CreatedAt = prov.CreatedAt
		}
		// A placeholder dismissed mid-flight still gets its server job shown:
		// the download exists and would reappear on the next recovery anyway.
		tx.Replace(provKey, tracked)
		return nil
	})
	log.Info().Str("job_id", res.JobID).Str("source", logging.Redact(ref, s.dev)).Str("message", res.Message).Msg("submission accepted")
	return SubmissionOutcome{SourceRef: ref, TrackingKey: res.JobID, Accepted: true}
}

func (s *submissionUC) checkLimit(ctx context.Context, log *zerolog.Logger) error {
	if s.limit.Limiter == nil || s.limit.Limit <= 0 {
		return nil
	}
	key := "submit_rate:" + s.limit.SessionKey
	ok, err := s.limit.Limiter.Allow(ctx, key, s.limit.Limit, s.limit.Window)
	if err != nil {
		// fail open: the server enforces its own limit
		log.Warn().Err(err).Msg("rate limiter unavailable; submitting anyway")
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: at most %d submissions per %s", domain.ErrRateLimited, s.limit.Limit, s.limit.Window)
	}
	return nil
}

// markLocalError flips the provisional entry in place. Status keeps its last
// value. A placeholder the user already dismissed stays gone.
func (s *submissionUC) markLocalError(provKey string, cause error) {
	now := s.now()
	_ = s.registry.WithTx(func(tx repository.RegistryTx) error {
		job, ok := tx.Get(provKey)
		if !ok {
			return nil
		}
		job.Kind = model.JobKindLocalError
		job.ErrorMessage = errorMessage(cause)
		job.CurrentStep = ""
		job.UpdatedAt = now
		tx.Upsert(job)
		return nil
	})
}

// errorMessage prefers the server's own wording when there is one.
func errorMessage(err error) string {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}
