package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mixelka/massmailer/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

// GetEnabledCredential returns the credential for a sender mailbox, but only
// when its status is enabled. A disabled mailbox and an unknown mailbox are
// indistinguishable to callers: both return ErrNotFound and block sending.
func (db *DB) GetEnabledCredential(ctx context.Context, email, provider string) (*models.Credential, error) {
	var cred models.Credential
	query := `SELECT * FROM oauth_credentials WHERE email = ? AND provider = ? AND status = ?`
	err := db.GetContext(ctx, &cred, query, email, provider, models.StatusEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &cred, nil
}

// UpsertCredential inserts or updates a credential keyed by (email, provider).
// An update refreshes tokens and status but never touches delivery_score:
// re-verifying a mailbox must not reset its score.
func (db *DB) UpsertCredential(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO oauth_credentials (email, provider, status, delivery_score, access_token, refresh_token, token_uri, client_id, client_secret, scopes, token_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email, provider) DO UPDATE SET
			status = excluded.status,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_uri = excluded.token_uri,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			scopes = excluded.scopes,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		cred.Email,
		cred.Provider,
		cred.Status,
		cred.DeliveryScore,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenURI,
		cred.ClientID,
		cred.ClientSecret,
		cred.Scopes,
		cred.TokenExpiry,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	cred.UpdatedAt = now
	return nil
}

// UpdateDeliveryScore overwrites the delivery score for a sender mailbox
func (db *DB) UpdateDeliveryScore(ctx context.Context, email, provider string, score int) error {
	query := `UPDATE oauth_credentials SET delivery_score = ?, updated_at = ? WHERE email = ? AND provider = ?`
	_, err := db.ExecContext(ctx, query, score, time.Now(), email, provider)
	if err != nil {
		return fmt.Errorf("failed to update delivery score: %w", err)
	}
	return nil
}

// UpdateCredentialTokens persists rotated access/refresh tokens after an
// explicit refresh (Outlook rotates both on every exchange)
func (db *DB) UpdateCredentialTokens(ctx context.Context, cred *models.Credential) error {
	query := `UPDATE oauth_credentials SET access_token = ?, refresh_token = ?, token_expiry = ?, updated_at = ? WHERE email = ? AND provider = ?`
	_, err := db.ExecContext(ctx, query, cred.AccessToken, cred.RefreshToken, cred.TokenExpiry, time.Now(), cred.Email, cred.Provider)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return nil
}

// UpdateCredentialStatus toggles a mailbox between enabled and disabled
func (db *DB) UpdateCredentialStatus(ctx context.Context, email, provider, status string) error {
	query := `UPDATE oauth_credentials SET status = ?, updated_at = ? WHERE email = ? AND provider = ?`
	res, err := db.ExecContext(ctx, query, status, time.Now(), email, provider)
	if err != nil {
		return fmt.Errorf("failed to update credential status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCredentials returns all verified mailboxes (dashboard read)
func (db *DB) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	var creds []*models.Credential
	query := `SELECT * FROM oauth_credentials ORDER BY provider, email`
	err := db.SelectContext(ctx, &creds, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}
