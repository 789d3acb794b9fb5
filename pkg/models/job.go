package models

import "time"

// SendJob is one mass-send request: one message dispatched to every recipient
// in order. A job exists only for the duration of its dispatch, or inside the
// scheduler until fire time.
type SendJob struct {
	SenderEmail string
	Provider    string
	Subject     string
	Body        string
	Recipients  []string // ordered; duplicates are processed independently
	CC          []string
	BCC         []string
	ScheduledAt *time.Time
}

// DispatchResult aggregates the outcome of one dispatch run
type DispatchResult struct {
	Sent   int      `json:"sent"`
	Errors []string `json:"errors"`
}
