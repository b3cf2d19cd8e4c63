package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vidnag-tracker/internal/config"
	"vidnag-tracker/internal/domain/model"
	"vidnag-tracker/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*RealNotifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RealNotifier posts a message to one Telegram chat whenever a job finishes.
type RealNotifier struct {
	bot    sender
	chatID int64
}

func NewRealNotifier(cfg *config.TelegramConfig) (*RealNotifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &RealNotifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (r *RealNotifier) NotifyFinished(ctx context.Context, job model.Job) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(r.chatID, FinishedMessage(job))
	msg.DisableWebPagePreview = true
	if _, err := r.bot.Send(msg); err != nil {
		return fmt.Errorf("send finish notification for job %s: %w", job.TrackingKey, err)
	}
	return nil
}

// FinishedMessage renders the plain-text notification for a terminal job.
func FinishedMessage(job model.Job) string {
	var b strings.Builder
	switch job.Status {
	case model.JobStatusCompleted:
		b.WriteString("✅ Download completed")
	case model.JobStatusFailed:
		b.WriteString("❌ Download failed")
	case model.JobStatusCancelled:
		b.WriteString("⏹ Download cancelled")
	default:
		b.WriteString("Download finished")
	}
	fmt.Fprintf(&b, " (job %s)", job.TrackingKey)
	if job.SourceRef != "" {
		fmt.Fprintf(&b, "\n%s", job.SourceRef)
	}
	if job.ServerEntityRef != "" && job.Status == model.JobStatusCompleted {
		fmt.Fprintf(&b, "\nVideo: %s", job.ServerEntityRef)
	}
	if job.Progress.TotalSize != "" && job.Status == model.JobStatusCompleted {
		fmt.Fprintf(&b, "\nSize: %s", job.Progress.TotalSize)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(&b, "\nError: %s", job.ErrorMessage)
	}
	return b.String()
}
