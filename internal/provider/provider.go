package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/mixelka/massmailer/pkg/models"
)

// ErrTokenRefresh is returned when a provider rejects a refresh-token
// exchange. It aborts the whole batch for that sender and is never retried.
var ErrTokenRefresh = errors.New("token refresh rejected by provider")

// Message is one outbound email addressed to a single recipient
type Message struct {
	From    string
	To      string
	CC      []string
	BCC     []string
	Subject string
	Body    string
}

// ScoreMode determines how a batch tally updates the stored delivery score
type ScoreMode int

const (
	// ScoreReplace overwrites the prior score with the batch tally
	ScoreReplace ScoreMode = iota
	// ScoreAdditive adds the batch tally to the prior score
	ScoreAdditive
)

// Sender is the uniform contract over heterogeneous mail providers
type Sender interface {
	// Name returns the provider identifier ("gmail", "outlook")
	Name() string

	// ScoreMode returns how dispatch applies the batch tally to the stored
	// delivery score
	ScoreMode() ScoreMode

	// Prepare readies stale credentials before a batch. It returns true when
	// tokens were rotated and must be persisted. Failure aborts the batch.
	Prepare(ctx context.Context, cred *models.Credential) (bool, error)

	// Send submits one message. The returned id is empty for providers whose
	// API exposes no trackable message id.
	Send(ctx context.Context, cred *models.Credential, msg Message) (string, error)
}

// StatusChecker is implemented by senders whose message store can be queried
// for delivery status after submission
type StatusChecker interface {
	// MessageStatus classifies the current state of a sent message. An empty
	// state means the message has not settled on a terminal label yet.
	MessageStatus(ctx context.Context, cred *models.Credential, messageID string) (models.DeliveryState, error)
}

// Registry maps provider names to senders
type Registry struct {
	senders map[string]Sender
}

// NewRegistry creates a registry over the given senders
func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[string]Sender, len(senders))}
	for _, s := range senders {
		r.senders[s.Name()] = s
	}
	return r
}

// Lookup returns the sender for a provider name
func (r *Registry) Lookup(name string) (Sender, error) {
	s, ok := r.senders[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return s, nil
}
