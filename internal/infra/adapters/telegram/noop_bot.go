package telegram

import (
	"context"

	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.Notifier = (*NoopNotifier)(nil)

// NoopNotifier logs finish notifications instead of sending them. It is used
// when no Telegram token is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	return &NoopNotifier{log: logger}
}

func (n *NoopNotifier) NotifyFinished(ctx context.Context, job model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().
		Str("job_id", job.TrackingKey).
		Str("status", string(job.Status)).
		Str("message", FinishedMessage(job)).
		Msg("[noop-telegram] finish notification")
	return nil
}
