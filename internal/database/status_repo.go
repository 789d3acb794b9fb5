package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mixelka/massmailer/pkg/models"
)

// AppendDeliveryStatus appends one row to the delivery ledger. The ledger is
// append-only; rows are never updated or deleted.
func (db *DB) AppendDeliveryStatus(ctx context.Context, rec *models.DeliveryStatus) error {
	query := `
		INSERT INTO email_status (recipient, provider, message_id, status, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		rec.Recipient,
		rec.Provider,
		rec.MessageID,
		rec.Status,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append delivery status: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	rec.Timestamp = now
	return nil
}

// GetStatistics returns the ledger aggregates. sent_count is the total number
// of ledger rows: one per recipient per attempt, whatever the outcome.
func (db *DB) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	query := `
		SELECT
			COUNT(*) AS sent_count,
			COALESCE(SUM(CASE WHEN status = 'DELIVERED' THEN 1 ELSE 0 END), 0) AS delivered_count,
			COALESCE(SUM(CASE WHEN status = 'INBOXED' THEN 1 ELSE 0 END), 0) AS inboxed_count,
			COALESCE(SUM(CASE WHEN status = 'SPAMMED' THEN 1 ELSE 0 END), 0) AS spammed_count,
			COALESCE(SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END), 0) AS failed_count,
			COALESCE(SUM(CASE WHEN status = 'UNKNOWN' THEN 1 ELSE 0 END), 0) AS unknown_count
		FROM email_status
	`
	err := db.GetContext(ctx, &stats, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	return &stats, nil
}

// ListDeliveryStatuses returns ledger rows for a recipient, oldest first
func (db *DB) ListDeliveryStatuses(ctx context.Context, recipient string) ([]*models.DeliveryStatus, error) {
	var rows []*models.DeliveryStatus
	query := `SELECT * FROM email_status WHERE recipient = ? ORDER BY id`
	err := db.SelectContext(ctx, &rows, query, recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery statuses: %w", err)
	}
	return rows, nil
}
