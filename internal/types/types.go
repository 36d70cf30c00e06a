// Package types holds the request and response bodies of the HTTP API.
package types

import (
	"strings"
	"time"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/insights"
)

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// LogSessionRequest is the body of POST /sessions.
type LogSessionRequest struct {
	UserID    string                     `json:"user_id" binding:"required"`
	Timestamp *time.Time                 `json:"timestamp,omitempty"`
	Notes     string                     `json:"notes,omitempty"`
	EEG       []analysis.Sample          `json:"eeg,omitempty"`
	Context   *database.LifestyleContext `json:"context,omitempty"`
	Journal   *database.JournalEntry     `json:"journal,omitempty"`
	Diet      *database.DietLog          `json:"diet,omitempty"`
}

// ToInput converts the request into a repository input, stamping it with
// now when no timestamp was sent.
func (r LogSessionRequest) ToInput(now time.Time) database.SessionInput {
	ts := now.UTC()
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		ts = r.Timestamp.UTC()
	}
	return database.SessionInput{
		UserID:    strings.TrimSpace(r.UserID),
		Timestamp: ts,
		Notes:     r.Notes,
		EEG:       r.EEG,
		Context:   r.Context,
		Journal:   r.Journal,
		Diet:      r.Diet,
	}
}

// TextFields lists the free-text fields of the request for sanitising.
func (r LogSessionRequest) TextFields() map[string]string {
	fields := map[string]string{"notes": r.Notes}
	if r.Journal != nil {
		fields["journal.notes"] = r.Journal.Notes
		fields["journal.mood"] = r.Journal.Mood
		fields["journal.tags"] = r.Journal.Tags
	}
	if r.Diet != nil {
		fields["diet.notes"] = r.Diet.Notes
		fields["diet.food_items"] = strings.Join(r.Diet.FoodItems, " ")
	}
	return fields
}

// LogSessionResponse is returned after a session is stored.
type LogSessionResponse struct {
	Session     *database.Session `json:"session"`
	SampleCount int               `json:"sample_count"`
}

// ImportResponse is returned by EEG uploads.
type ImportResponse struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
	Imported  int    `json:"imported"`
}

// SessionListResponse is returned by GET /users/:id/sessions.
type SessionListResponse struct {
	UserID   string                     `json:"user_id"`
	Sessions []database.SessionOverview `json:"sessions"`
}

// CorrelationsResponse is returned by GET /users/:id/correlations.
type CorrelationsResponse struct {
	UserID       string                 `json:"user_id"`
	Sessions     int                    `json:"sessions"`
	Correlations []insights.Correlation `json:"correlations"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Services  map[string]string      `json:"services"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
