package models

import "time"

// DeliveryState is the terminal outcome recorded for one recipient
type DeliveryState string

const (
	StateDelivered DeliveryState = "DELIVERED"
	StateInboxed   DeliveryState = "INBOXED"
	StateSpammed   DeliveryState = "SPAMMED"
	StateFailed    DeliveryState = "FAILED"
	StateUnknown   DeliveryState = "UNKNOWN"
)

// DeliveryStatus is one ledger row. The ledger is append-only: exactly one
// row per recipient per send attempt, never mutated or deleted.
type DeliveryStatus struct {
	ID        int64         `db:"id"`
	Recipient string        `db:"recipient"`
	Provider  string        `db:"provider"`
	MessageID string        `db:"message_id"` // empty when the send itself failed
	Status    DeliveryState `db:"status"`
	Timestamp time.Time     `db:"timestamp"`
}

// Statistics are the ledger aggregates served to the dashboard
type Statistics struct {
	SentCount      int `json:"sent_count" db:"sent_count"`
	DeliveredCount int `json:"delivered_count" db:"delivered_count"`
	InboxedCount   int `json:"inboxed_count" db:"inboxed_count"`
	SpammedCount   int `json:"spammed_count" db:"spammed_count"`
	FailedCount    int `json:"failed_count" db:"failed_count"`
	UnknownCount   int `json:"unknown_count" db:"unknown_count"`
}
