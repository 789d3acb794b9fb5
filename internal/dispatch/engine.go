package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mixelka/massmailer/internal/database"
	"github.com/mixelka/massmailer/internal/provider"
	"github.com/mixelka/massmailer/internal/tracker"
	"github.com/mixelka/massmailer/pkg/models"
)

// ErrUnauthenticated is returned when the sender has no enabled credential
// for the chosen provider. A disabled mailbox looks the same as a missing
// one. The batch is aborted before any ledger write.
var ErrUnauthenticated = errors.New("sender not authenticated for provider")

// CredentialStore is the vault surface the engine needs
type CredentialStore interface {
	GetEnabledCredential(ctx context.Context, email, provider string) (*models.Credential, error)
	UpdateDeliveryScore(ctx context.Context, email, provider string, score int) error
	UpdateCredentialTokens(ctx context.Context, cred *models.Credential) error
}

// Ledger is the append-only delivery status store
type Ledger interface {
	AppendDeliveryStatus(ctx context.Context, rec *models.DeliveryStatus) error
}

// Engine runs one send loop over a recipient batch
type Engine struct {
	vault     CredentialStore
	ledger    Ledger
	providers *provider.Registry
	tracker   *tracker.Tracker
	logger    *slog.Logger
}

// NewEngine creates a dispatch engine
func NewEngine(vault CredentialStore, ledger Ledger, providers *provider.Registry, tr *tracker.Tracker, logger *slog.Logger) *Engine {
	return &Engine{
		vault:     vault,
		ledger:    ledger,
		providers: providers,
		tracker:   tr,
		logger:    logger.With("component", "dispatch"),
	}
}

// Dispatch processes a job's recipients strictly in order, one ledger row per
// recipient whatever the outcome. The returned error is non-nil only for
// batch-fatal conditions (unknown provider, no enabled credential, rejected
// token refresh), all raised before any recipient is touched; everything
// that goes wrong after that is absorbed into the ledger and the result.
func (e *Engine) Dispatch(ctx context.Context, job *models.SendJob) (*models.DispatchResult, error) {
	sender, err := e.providers.Lookup(job.Provider)
	if err != nil {
		return nil, err
	}

	cred, err := e.vault.GetEnabledCredential(ctx, job.SenderEmail, job.Provider)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}

	rotated, err := sender.Prepare(ctx, cred)
	if err != nil {
		return nil, err
	}

	e.logger.Info("dispatching batch",
		"sender", job.SenderEmail, "provider", job.Provider, "recipients", len(job.Recipients))

	result := &models.DispatchResult{}
	tally := 0
	for _, recipient := range job.Recipients {
		state, messageID, sendErr := e.sendOne(ctx, sender, cred, job, recipient)
		if sendErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", recipient, sendErr))
		}
		if state == models.StateDelivered {
			tally++
		}

		rec := &models.DeliveryStatus{
			Recipient: recipient,
			Provider:  job.Provider,
			MessageID: messageID,
			Status:    state,
		}
		if err := e.ledger.AppendDeliveryStatus(ctx, rec); err != nil {
			// The send already happened; a silently dropped row would leave
			// no trace of it, so the failure goes into the result too.
			e.logger.Error("failed to record delivery status", "recipient", recipient, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: record status: %v", recipient, err))
		}
	}
	result.Sent = tally

	if rotated {
		if err := e.vault.UpdateCredentialTokens(ctx, cred); err != nil {
			e.logger.Error("failed to persist rotated tokens", "sender", job.SenderEmail, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("persist tokens: %v", err))
		}
	}

	// Gmail replaces the prior score with the batch tally; Outlook adds the
	// tally to it. The asymmetry mirrors the two send paths.
	score := tally
	if sender.ScoreMode() == provider.ScoreAdditive {
		score = cred.DeliveryScore + tally
	}
	if err := e.vault.UpdateDeliveryScore(ctx, job.SenderEmail, job.Provider, score); err != nil {
		e.logger.Error("failed to update delivery score", "sender", job.SenderEmail, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("update score: %v", err))
	}

	e.logger.Info("batch finished",
		"sender", job.SenderEmail, "sent", result.Sent, "errors", len(result.Errors))
	return result, nil
}

// sendOne submits to a single recipient and resolves its terminal state. A
// panic inside a provider call is contained here so one recipient cannot
// abort the rest of the batch.
func (e *Engine) sendOne(ctx context.Context, sender provider.Sender, cred *models.Credential, job *models.SendJob, recipient string) (state models.DeliveryState, messageID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			state = models.StateFailed
			messageID = ""
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	msg := provider.Message{
		From:    job.SenderEmail,
		To:      recipient,
		CC:      job.CC,
		BCC:     job.BCC,
		Subject: job.Subject,
		Body:    job.Body,
	}

	messageID, err = sender.Send(ctx, cred, msg)
	if err != nil {
		e.logger.Warn("send failed", "recipient", recipient, "error", err)
		return models.StateFailed, "", err
	}

	// No trackable id means the provider gives no delivery feedback and the
	// send is assumed delivered.
	checker, ok := sender.(provider.StatusChecker)
	if !ok || messageID == "" {
		return models.StateDelivered, messageID, nil
	}

	state = e.tracker.Poll(ctx, func(ctx context.Context) (models.DeliveryState, error) {
		return checker.MessageStatus(ctx, cred, messageID)
	})
	return state, messageID, nil
}
