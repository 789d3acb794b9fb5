package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"

	"github.com/mixelka/massmailer/pkg/models"
)

// Notifier posts batch summaries to a Telegram chat. It is optional: a nil
// *Notifier is safe to call and does nothing.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	logger *slog.Logger
}

// New creates a Telegram notifier
func New(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Notifier{
		bot:    b,
		chatID: chatID,
		logger: logger.With("component", "notify"),
	}, nil
}

// BatchFinished reports a completed dispatch. Notification failures are
// logged and never affect the dispatch result.
func (n *Notifier) BatchFinished(ctx context.Context, job *models.SendJob, result *models.DispatchResult) {
	if n == nil {
		return
	}
	n.send(ctx, fmt.Sprintf("Batch for %s via %s finished: %d sent, %d errors",
		job.SenderEmail, job.Provider, result.Sent, len(result.Errors)))
}

// BatchFailed reports a batch-fatal dispatch error
func (n *Notifier) BatchFailed(ctx context.Context, job *models.SendJob, err error) {
	if n == nil {
		return
	}
	n.send(ctx, fmt.Sprintf("Batch for %s via %s failed: %v",
		job.SenderEmail, job.Provider, err))
}

func (n *Notifier) send(ctx context.Context, text string) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.logger.Error("failed to send notification", "error", err)
	}
}
