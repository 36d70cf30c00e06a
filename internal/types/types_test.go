package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

func TestLogSessionRequestToInput(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	in := LogSessionRequest{UserID: "  u1 ", Notes: "morning run"}.ToInput(now)
	assert.Equal(t, "u1", in.UserID)
	assert.Equal(t, now.UTC(), in.Timestamp)
	assert.Equal(t, time.UTC, in.Timestamp.Location())

	sent := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	in = LogSessionRequest{UserID: "u1", Timestamp: &sent}.ToInput(now)
	assert.Equal(t, sent, in.Timestamp)
}

func TestLogSessionRequestTextFields(t *testing.T) {
	req := LogSessionRequest{
		Notes:   "n",
		Journal: &database.JournalEntry{Notes: "j", Mood: "calm", Tags: "work"},
		Diet:    &database.DietLog{FoodItems: []string{"oats", "berries"}},
	}

	fields := req.TextFields()
	assert.Equal(t, "n", fields["notes"])
	assert.Equal(t, "calm", fields["journal.mood"])
	assert.Equal(t, "oats berries", fields["diet.food_items"])

	assert.Len(t, LogSessionRequest{}.TextFields(), 1)
}
