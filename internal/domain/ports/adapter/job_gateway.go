package adapter

import (
	"context"

	"vidnag-tracker/internal/domain/model"
)

// JobGateway is the hex port for the download server. Transport timeouts are
// the implementation's concern; callers treat a timeout like any other error.
type JobGateway interface {
	// Submit asks the server to start downloading sourceRef.
	Submit(ctx context.Context, sourceRef string) (*model.SubmitResult, error)
	// GetStatus returns the current server view of one job.
	GetStatus(ctx context.Context, jobID string) (*model.JobSnapshot, error)
	// Cancel asks the server to cancel a job. Already-finished jobs fail.
	Cancel(ctx context.Context, jobID string) error
	// ListActiveForSession returns every non-terminal job owned by the caller's session.
	ListActiveForSession(ctx context.Context) ([]model.JobSnapshot, error)
}
