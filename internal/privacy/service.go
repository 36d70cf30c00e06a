// Package privacy deletes a user's data on request and purges sessions
// past the retention period.
package privacy

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// DefaultRetentionDays is how long sessions are kept by default.
const DefaultRetentionDays = 365

// childTables hold rows keyed by session_id.
var childTables = []string{"eeg_data", "lifestyle_context", "journal_entries", "diet_log"}

// Service handles data deletion and retention.
type Service struct {
	db            *database.DB
	retentionDays int
}

// NewService creates a new privacy service. A non-positive retention uses
// DefaultRetentionDays.
func NewService(db *database.DB, retentionDays int) *Service {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &Service{db: db, retentionDays: retentionDays}
}

// DeletionReport describes what a deletion removed. SessionIDs lets callers
// drop cached results for the removed sessions.
type DeletionReport struct {
	UserID      string   `json:"user_id,omitempty"`
	SessionIDs  []string `json:"session_ids"`
	Samples     int64    `json:"samples_deleted"`
	UserRemoved bool     `json:"user_removed"`
}

// AnonymizeID returns a short stable hash of id for logs.
func AnonymizeID(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])[:12]
}

// DeleteUserData removes a user together with every session and child row.
func (s *Service) DeleteUserData(ctx context.Context, userID string) (*DeletionReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ids, err := sessionIDs(ctx, tx, `SELECT id FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	samples, err := deleteSessions(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deletion: %w", err)
	}

	slog.Info("User data deleted",
		"user", AnonymizeID(userID),
		"sessions_deleted", len(ids),
		"samples_deleted", samples,
	)
	return &DeletionReport{UserID: userID, SessionIDs: ids, Samples: samples, UserRemoved: true}, nil
}

// PurgeOlderThan deletes sessions recorded before now minus days. Users are
// kept. A non-positive days uses the service's retention period.
func (s *Service) PurgeOlderThan(ctx context.Context, days int, now time.Time) (*DeletionReport, error) {
	if days <= 0 {
		days = s.retentionDays
	}
	cutoff := now.UTC().Truncate(time.Second).AddDate(0, 0, -days)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids, err := sessionIDs(ctx, tx, `SELECT id FROM sessions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return nil, err
	}
	samples, err := deleteSessions(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}

	slog.Info("Data cleanup completed", "cutoff_date", cutoff, "sessions_deleted", len(ids), "samples_deleted", samples)
	return &DeletionReport{SessionIDs: ids, Samples: samples}, nil
}

func sessionIDs(ctx context.Context, tx *sql.Tx, query string, arg any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// deleteSessions removes the sessions and their child rows in batches that
// stay under SQLite's bound parameter limit. It returns the EEG rows removed.
func deleteSessions(ctx context.Context, tx *sql.Tx, ids []string) (int64, error) {
	const batch = 500
	var samples int64

	for start := 0; start < len(ids); start += batch {
		chunk := ids[start:min(start+batch, len(ids))]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		for _, table := range childTables {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id IN (`+placeholders+`)`, args...)
			if err != nil {
				return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
			}
			if table == "eeg_data" {
				n, _ := res.RowsAffected()
				samples += n
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return 0, fmt.Errorf("failed to delete sessions: %w", err)
		}
	}
	return samples, nil
}

// DataSummary reports how much data is held for a user.
type DataSummary struct {
	UserID        string     `json:"user_id"`
	Sessions      int        `json:"sessions"`
	Samples       int        `json:"samples"`
	FirstSession  *time.Time `json:"first_session,omitempty"`
	LastSession   *time.Time `json:"last_session,omitempty"`
	Retention     Retention  `json:"retention"`
	CanDeleteData bool       `json:"can_delete_data"`
}

// Summary counts a user's sessions and samples.
func (s *Service) Summary(ctx context.Context, userID string) (*DataSummary, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	summary := &DataSummary{UserID: userID, Retention: s.RetentionInfo(), CanDeleteData: true}
	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sessions WHERE user_id = ?),
			(SELECT COUNT(*) FROM eeg_data e JOIN sessions s ON s.id = e.session_id WHERE s.user_id = ?)
	`, userID, userID).Scan(&summary.Sessions, &summary.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize user data: %w", err)
	}
	if summary.Sessions == 0 {
		return summary, nil
	}

	var first, last time.Time
	if err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sessions WHERE user_id = ? ORDER BY timestamp ASC LIMIT 1`, userID,
	).Scan(&first); err != nil {
		return nil, fmt.Errorf("failed to query first session: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM sessions WHERE user_id = ? ORDER BY timestamp DESC LIMIT 1`, userID,
	).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to query last session: %w", err)
	}
	summary.FirstSession, summary.LastSession = &first, &last
	return summary, nil
}

// Retention describes the data retention policy.
type Retention struct {
	SessionRetentionDays int    `json:"session_retention_days"`
	AnonymizationMethod  string `json:"anonymization_method"`
	DeletionEndpoint     string `json:"deletion_endpoint"`
}

// RetentionInfo provides information about data retention policies.
func (s *Service) RetentionInfo() Retention {
	return Retention{
		SessionRetentionDays: s.retentionDays,
		AnonymizationMethod:  "SHA-256",
		DeletionEndpoint:     "DELETE /users/{id}",
	}
}
