package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)
	b := time.Date(2025, 3, 2, 0, 15, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b, time.UTC))
	assert.Equal(t, -1, DaysBetween(b, a, time.UTC))
	assert.True(t, IsConsecutiveDay(a, b, time.UTC))
	assert.False(t, IsSameDay(a, b, time.UTC))

	// In UTC+5 both instants land on March 2nd.
	plus5 := time.FixedZone("UTC+5", 5*60*60)
	assert.True(t, IsSameDay(a, b, plus5))
	assert.Equal(t, 0, DaysBetween(a, b, plus5))
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	loc, err := LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	before := time.Date(2025, 3, 29, 12, 0, 0, 0, loc)
	after := time.Date(2025, 3, 31, 12, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(before, after, loc))
}

func TestHourIn(t *testing.T) {
	at := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, 22, HourIn(at, nil))
	assert.Equal(t, 3, HourIn(at, time.FixedZone("UTC+5", 5*60*60)))
	assert.Equal(t, "2025-03-02", FormatDate(at, time.FixedZone("UTC+5", 5*60*60)))
}

func TestStartOfDay(t *testing.T) {
	at := time.Date(2025, 3, 1, 22, 45, 10, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), StartOfDay(at, time.UTC))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(36 * time.Hour)
	assert.Equal(t, start.Add(36*time.Hour), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())

	var _ Clock = SystemClock{}
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}
