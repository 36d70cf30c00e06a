package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/errors"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/ingest"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/insights"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/privacy"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/seed"
)

const testDBFile = "cli.db"

// run executes the app against dir and returns what it printed.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"neurotrack", "--data-dir", dir, "--db-file", testDBFile}, args...)
	err := app.Run(argv)
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// seedOne creates one user with n sessions and no EEG.
func seedOne(t *testing.T, dir string, n int) database.User {
	t.Helper()
	out := mustRun(t, dir, "seed",
		"--user", "Ada",
		"--min-sessions", strconv.Itoa(n), "--max-sessions", strconv.Itoa(n),
		"--duration", "0",
		"--seed", "7",
	)
	result := decodeOutput[seed.Result](t, out)
	require.Len(t, result.Users, 1)
	require.Equal(t, n, result.Sessions)
	return result.Users[0]
}

// firstSession reads a session id of user straight from the store.
func firstSession(t *testing.T, dir, userID string) string {
	t.Helper()
	db, err := database.NewDB(dir, testDBFile)
	require.NoError(t, err)
	defer errors.SafeClose(db, "database")

	sessions, err := database.NewRepository(db).ListRecentSessions(context.Background(), userID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)
	return sessions[0].ID
}

func TestInitCreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "init")
	assert.Contains(t, out, "Database ready")
	assert.FileExists(t, filepath.Join(dir, testDBFile))

	// idempotent
	mustRun(t, dir, "init")
}

func TestSeedAndUsers(t *testing.T) {
	dir := t.TempDir()
	user := seedOne(t, dir, 5)

	users := decodeOutput[[]database.User](t, mustRun(t, dir, "users"))
	require.Len(t, users, 1)
	assert.Equal(t, user.ID, users[0].ID)
	assert.Equal(t, "Ada", users[0].Name)
}

func TestInsightsViews(t *testing.T) {
	dir := t.TempDir()
	user := seedOne(t, dir, 30)

	report := decodeOutput[map[string]interface{}](t, mustRun(t, dir, "insights", "--user", user.ID))
	assert.Contains(t, report, "peak_performance_hours")
	assert.Contains(t, report, "activities")
	assert.Contains(t, report, "key_correlations")

	summary := decodeOutput[insights.Summary](t, mustRun(t, dir, "insights", "--user", user.ID, "--view", "summary"))
	assert.Equal(t, 30, summary.TotalSessions)

	// the seeded range ends in May 2024
	empty := decodeOutput[insights.Summary](t, mustRun(t, dir,
		"insights", "--user", user.ID, "--view", "summary", "--from", "2030-01-01"))
	assert.Zero(t, empty.TotalSessions)

	_, err := run(t, dir, "insights", "--user", user.ID, "--view", "nope")
	assert.Error(t, err)

	_, err = run(t, dir, "insights", "--user", "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestImportAnalyzeExport(t *testing.T) {
	dir := t.TempDir()
	user := seedOne(t, dir, 1)
	sessionID := firstSession(t, dir, user.ID)

	samples := seed.NewGenerator(seed.DefaultOptions()).EEG(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 8, 256)
	csvPath := filepath.Join(dir, "recording.csv")
	f, err := os.Create(csvPath)
	require.NoError(t, err)
	require.NoError(t, ingest.WriteCSV(f, samples))
	require.NoError(t, f.Close())

	out := mustRun(t, dir, "import", "--session", sessionID, "--file", csvPath)
	assert.Contains(t, out, "Imported 2048 samples")

	result := decodeOutput[analysis.Result](t, mustRun(t, dir, "analyze", sessionID))
	assert.Equal(t, analysis.StatusAnalyzed, result.Status)
	assert.Equal(t, 8*256, result.SampleCount)
	assert.Empty(t, result.Raw)
	require.NotNil(t, result.Metrics)

	withRaw := decodeOutput[analysis.Result](t, mustRun(t, dir, "analyze", "--raw", sessionID))
	assert.Len(t, withRaw.Raw, 8*256)

	edfPath := filepath.Join(dir, "out.edf")
	mustRun(t, dir, "export", "--session", sessionID, "--out", edfPath)
	edfFile, err := os.Open(edfPath)
	require.NoError(t, err)
	defer errors.SafeClose(edfFile, "edf")
	rec, err := ingest.ReadEDF(edfFile, ingest.EDFOptions{})
	require.NoError(t, err)
	assert.Len(t, rec.Samples, 8*256)
	assert.InDelta(t, 256.0, rec.SamplingRate, 1e-9)

	csvOut := filepath.Join(dir, "out.txt")
	mustRun(t, dir, "export", "--session", sessionID, "--out", csvOut, "--format", "csv")
	back, err := os.Open(csvOut)
	require.NoError(t, err)
	defer errors.SafeClose(back, "csv")
	roundTrip, err := ingest.ReadCSV(back, 256)
	require.NoError(t, err)
	assert.Len(t, roundTrip, 8*256)
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	user := seedOne(t, dir, 1)
	sessionID := firstSession(t, dir, user.ID)

	tests := []struct {
		name string
		args []string
	}{
		{"analyze without id", []string{"analyze"}},
		{"analyze unknown session", []string{"analyze", "5f1d7c1e-0000-4000-8000-000000000000"}},
		{"import without file", []string{"import", "--session", sessionID}},
		{"import unknown format", []string{"import", "--session", sessionID, "--file", filepath.Join(dir, "rec.bin")}},
		{"export empty recording", []string{"export", "--session", sessionID, "--out", filepath.Join(dir, "empty.edf")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, dir, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestPurgeAndDeleteUser(t *testing.T) {
	dir := t.TempDir()
	user := seedOne(t, dir, 4)

	// seeded sessions are from 2024, well past a 30 day window
	report := decodeOutput[privacy.DeletionReport](t, mustRun(t, dir, "purge", "--days", "30"))
	assert.Len(t, report.SessionIDs, 4)
	assert.False(t, report.UserRemoved)

	deleted := decodeOutput[privacy.DeletionReport](t, mustRun(t, dir, "delete-user", "--user", user.ID))
	assert.True(t, deleted.UserRemoved)
	assert.Empty(t, deleted.SessionIDs)

	users := decodeOutput[[]database.User](t, mustRun(t, dir, "users"))
	assert.Empty(t, users)
}
