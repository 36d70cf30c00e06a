package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/insights"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Users = []string{"Test User"}
	opts.MinSessions = 4
	opts.MaxSessions = 6
	opts.DurationSeconds = 4
	opts.Seed = 42
	return opts
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(smallOptions()).Sessions("u1")
	b := NewGenerator(smallOptions()).Sessions("u1")
	assert.Equal(t, a, b)

	other := smallOptions()
	other.Seed = 43
	c := NewGenerator(other).Sessions("u1")
	assert.NotEqual(t, a, c)
}

func TestGeneratedSessionsAreValid(t *testing.T) {
	opts := smallOptions()
	sessions := NewGenerator(opts).Sessions("u1")

	require.GreaterOrEqual(t, len(sessions), opts.MinSessions)
	require.LessOrEqual(t, len(sessions), opts.MaxSessions)

	for i, in := range sessions {
		require.NoError(t, in.Validate())
		assert.Len(t, in.EEG, 4*256)
		assert.False(t, in.Timestamp.Before(opts.Start))
		assert.True(t, in.Timestamp.Before(opts.End.AddDate(0, 0, 1)))
		if i > 0 {
			assert.False(t, in.Timestamp.Before(sessions[i-1].Timestamp))
		}

		hour, ok := insights.ParseHour(in.Context.TimeOfDay)
		require.True(t, ok)
		assert.Equal(t, in.Timestamp.Hour(), hour)
		assert.Equal(t, *in.Context.FocusScore, *in.Journal.ProductivityScore)
	}
}

func TestActivityFollowsHour(t *testing.T) {
	g := NewGenerator(smallOptions())
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := map[int]string{9: "deep_work", 10: "creative", 11: "learning", 13: "rest", 21: "other"}
	for hour, activity := range tests {
		in := g.Session("u1", day.Add(time.Duration(hour)*time.Hour), 1)
		assert.Equal(t, activity, in.Context.ActivityType, "hour %d", hour)
	}

	lunch := g.Session("u1", day.Add(12*time.Hour), 1)
	assert.Equal(t, "lunch", lunch.Diet.MealType)
	assert.Contains(t, []string{"balanced", "high-carb"}, lunch.Context.LastMealType)
}

func TestSyntheticEEGIsAnalyzable(t *testing.T) {
	g := NewGenerator(smallOptions())
	samples := g.EEG(time.Unix(1704096000, 0), 8, 256)

	analyzer, err := analysis.NewAnalyzer(nil, analysis.DefaultConfig(), nil)
	require.NoError(t, err)
	result, err := analyzer.AnalyzeSamples(samples)
	require.NoError(t, err)
	require.Equal(t, analysis.StatusAnalyzed, result.Status)

	// channel 1 carries alpha and beta, channel 2 theta and delta
	assert.Greater(t, result.BandPowers["alpha"], result.BandPowers["gamma"])
	assert.Greater(t, result.BandPowers["theta"], result.BandPowers["gamma"])
}

func TestSeedWritesThroughRepository(t *testing.T) {
	db, err := database.NewDB(t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := database.NewRepository(db)

	ctx := context.Background()
	opts := smallOptions()
	opts.Users = []string{"Ada", "Grace"}

	result, err := Seed(ctx, repo, opts)
	require.NoError(t, err)
	require.Len(t, result.Users, 2)
	assert.Equal(t, result.Sessions*4*256, result.Samples)

	total := 0
	for _, u := range result.Users {
		records, err := repo.ListSessionRecords(ctx, u.ID, database.RecordFilter{})
		require.NoError(t, err)
		total += len(records)
	}
	assert.Equal(t, result.Sessions, total)
}

func TestSeedRejectsBadOptions(t *testing.T) {
	opts := smallOptions()
	opts.Users = nil
	_, err := Seed(context.Background(), nil, opts)
	assert.ErrorIs(t, err, analysis.ErrInvalidConfig)

	opts = smallOptions()
	opts.MaxSessions = 1
	_, err = Seed(context.Background(), nil, opts)
	assert.ErrorIs(t, err, analysis.ErrInvalidConfig)
}
