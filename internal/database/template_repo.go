package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/mixelka/massmailer/pkg/models"
)

// CreateTemplate creates a new email template
func (db *DB) CreateTemplate(ctx context.Context, tpl *models.Template) error {
	query := `INSERT INTO email_templates (name, subject, body, timestamp) VALUES (?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query, tpl.Name, tpl.Subject, tpl.Body, now)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	tpl.ID = id
	tpl.Timestamp = now
	return nil
}

// GetTemplate returns a template by ID
func (db *DB) GetTemplate(ctx context.Context, id int64) (*models.Template, error) {
	var tpl models.Template
	query := `SELECT * FROM email_templates WHERE id = ?`
	err := db.GetContext(ctx, &tpl, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tpl, nil
}

// ListTemplates returns all email templates
func (db *DB) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	var tpls []*models.Template
	query := `SELECT * FROM email_templates ORDER BY id`
	err := db.SelectContext(ctx, &tpls, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return tpls, nil
}

// UpdateTemplate updates the provided fields of a template; empty fields are
// left untouched
func (db *DB) UpdateTemplate(ctx context.Context, id int64, subject, body string) error {
	sets := []string{"timestamp = ?"}
	args := []any{time.Now()}
	if subject != "" {
		sets = append(sets, "subject = ?")
		args = append(args, subject)
	}
	if body != "" {
		sets = append(sets, "body = ?")
		args = append(args, body)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE email_templates SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
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

// DeleteTemplate deletes a template by ID
func (db *DB) DeleteTemplate(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM email_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
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
