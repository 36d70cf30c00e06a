package privacy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

func setup(t *testing.T) (*Service, *database.Repository) {
	t.Helper()
	db, err := database.NewDB(t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, 30), database.NewRepository(db)
}

func logSession(t *testing.T, repo *database.Repository, userID string, ts time.Time, samples int) string {
	t.Helper()
	eeg := make([]analysis.Sample, samples)
	for i := range eeg {
		eeg[i] = analysis.Sample{Timestamp: float64(ts.Unix()) + float64(i)/256, Channel1: 1, Channel2: 2}
	}
	mood := 4
	s, err := repo.LogSession(context.Background(), database.SessionInput{
		UserID:    userID,
		Timestamp: ts,
		EEG:       eeg,
		Context:   &database.LifestyleContext{MoodScore: &mood},
		Journal:   &database.JournalEntry{Mood: "calm"},
		Diet:      &database.DietLog{MealType: "lunch", FoodItems: []string{"soup"}},
	})
	require.NoError(t, err)
	return s.ID
}

func TestDeleteUserData(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	alice, err := repo.CreateUser(ctx, "Alice")
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, "Bob")
	require.NoError(t, err)

	now := time.Now().UTC()
	a1 := logSession(t, repo, alice.ID, now.Add(-time.Hour), 10)
	a2 := logSession(t, repo, alice.ID, now, 5)
	b1 := logSession(t, repo, bob.ID, now, 7)

	report, err := svc.DeleteUserData(ctx, alice.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a1, a2}, report.SessionIDs)
	assert.Equal(t, int64(15), report.Samples)
	assert.True(t, report.UserRemoved)

	_, err = repo.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = repo.GetSessionData(ctx, a1)
	assert.ErrorIs(t, err, database.ErrNotFound)

	data, err := repo.GetSessionData(ctx, b1)
	require.NoError(t, err)
	assert.Len(t, data.EEG, 7)

	_, err = svc.DeleteUserData(ctx, alice.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	user, err := repo.CreateUser(ctx, "Alice")
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := logSession(t, repo, user.ID, now.AddDate(0, 0, -40), 4)
	recent := logSession(t, repo, user.ID, now.AddDate(0, 0, -10), 4)

	report, err := svc.PurgeOlderThan(ctx, 0, now)
	require.NoError(t, err)
	assert.Equal(t, []string{old}, report.SessionIDs)
	assert.Equal(t, int64(4), report.Samples)
	assert.False(t, report.UserRemoved)

	_, err = repo.GetSessionData(ctx, recent)
	require.NoError(t, err)
	_, err = repo.GetUser(ctx, user.ID)
	require.NoError(t, err)

	report, err = svc.PurgeOlderThan(ctx, 5, now)
	require.NoError(t, err)
	assert.Equal(t, []string{recent}, report.SessionIDs)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t)

	user, err := repo.CreateUser(ctx, "Alice")
	require.NoError(t, err)

	empty, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.Sessions)
	assert.Nil(t, empty.FirstSession)

	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	logSession(t, repo, user.ID, first, 3)
	logSession(t, repo, user.ID, first.Add(48*time.Hour), 2)

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sessions)
	assert.Equal(t, 5, summary.Samples)
	require.NotNil(t, summary.FirstSession)
	assert.True(t, first.Equal(*summary.FirstSession))
	assert.True(t, first.Add(48*time.Hour).Equal(*summary.LastSession))
	assert.Equal(t, 30, summary.Retention.SessionRetentionDays)

	_, err = svc.Summary(ctx, "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAnonymizeID(t *testing.T) {
	a := AnonymizeID("user-1")
	assert.Len(t, a, 12)
	assert.Equal(t, a, AnonymizeID("user-1"))
	assert.NotEqual(t, a, AnonymizeID("user-2"))
	assert.Equal(t, DefaultRetentionDays, NewService(nil, 0).RetentionInfo().SessionRetentionDays)
}
