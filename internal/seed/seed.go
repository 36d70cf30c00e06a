// Package seed fills a database with synthetic users and sessions for
// demos and development. The generated data is a function of the seed.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// Options configures a seeding run.
type Options struct {
	Users           []string
	Start           time.Time
	End             time.Time
	MinSessions     int
	MaxSessions     int
	DurationSeconds int
	SamplingRate    float64
	Seed            uint64
}

// DefaultOptions returns three users with 50 to 100 sessions each between
// January and May 2024, and one minute of EEG per session.
func DefaultOptions() Options {
	return Options{
		Users:           []string{"John Doe", "Jane Smith", "Alex Johnson"},
		Start:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		MinSessions:     50,
		MaxSessions:     100,
		DurationSeconds: 60,
		SamplingRate:    256,
		Seed:            1,
	}
}

func (o Options) validate() error {
	switch {
	case len(o.Users) == 0:
		return fmt.Errorf("%w: at least one user is required", analysis.ErrInvalidConfig)
	case !o.End.After(o.Start):
		return fmt.Errorf("%w: end must be after start", analysis.ErrInvalidConfig)
	case o.MinSessions < 0 || o.MaxSessions < o.MinSessions:
		return fmt.Errorf("%w: session range %d-%d", analysis.ErrInvalidConfig, o.MinSessions, o.MaxSessions)
	case o.DurationSeconds < 0:
		return fmt.Errorf("%w: negative duration", analysis.ErrInvalidConfig)
	case o.SamplingRate <= 0 || math.IsInf(o.SamplingRate, 0) || math.IsNaN(o.SamplingRate):
		return fmt.Errorf("%w: sampling rate %v", analysis.ErrInvalidConfig, o.SamplingRate)
	}
	return nil
}

// Result counts what a run created.
type Result struct {
	Users    []database.User `json:"users"`
	Sessions int             `json:"sessions"`
	Samples  int             `json:"samples"`
}

// Store is the part of the repository the seeder writes through.
type Store interface {
	CreateUser(ctx context.Context, name string) (*database.User, error)
	LogSession(ctx context.Context, in database.SessionInput) (*database.Session, error)
}

// Seed creates the configured users and their sessions.
func Seed(ctx context.Context, store Store, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	g := NewGenerator(opts)
	result := &Result{}

	for _, name := range opts.Users {
		user, err := store.CreateUser(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("creating user %q: %w", name, err)
		}
		result.Users = append(result.Users, *user)

		for _, in := range g.Sessions(user.ID) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if _, err := store.LogSession(ctx, in); err != nil {
				return nil, fmt.Errorf("logging session for %q: %w", name, err)
			}
			result.Sessions++
			result.Samples += len(in.EEG)
		}
		slog.Info("Seeded user", "user_id", user.ID, "name", name, "sessions", result.Sessions)
	}

	return result, nil
}
