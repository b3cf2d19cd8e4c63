package adapter

import (
	"context"

	"vidnag-tracker/internal/domain/model"
)

// Notifier receives jobs that left the registry on a terminal server status.
type Notifier interface {
	NotifyFinished(ctx context.Context, job model.Job) error
}
