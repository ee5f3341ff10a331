package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	date := time.Date(2024, 3, 5, 17, 42, 13, 999, time.UTC)

	got, err := Combine(date, "9:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 5, 0, 0, time.UTC), got)

	got, err = Combine(date, "23:59")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC), got)
}

func TestCombineRejectsMalformedClock(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"", "24:00", "12:60", "1200", "7:5", "ab:cd", " 10:00", "10:00:00"} {
		_, err := Combine(date, raw)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, raw)
	}
}

func TestCombineKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)

	got, err := Combine(date, "08:30")
	require.NoError(t, err)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC), got.UTC())
}

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC) }

	cases := []struct {
		name string
		a1   time.Time
		a2   time.Time
		b1   time.Time
		b2   time.Time
		want bool
	}{
		{"partial overlap", at(14, 0), at(14, 45), at(14, 30), at(15, 0), true},
		{"contained", at(14, 0), at(16, 0), at(14, 30), at(15, 0), true},
		{"identical", at(14, 0), at(15, 0), at(14, 0), at(15, 0), true},
		{"back to back", at(14, 0), at(14, 45), at(14, 45), at(15, 15), false},
		{"back to back reversed", at(14, 45), at(15, 15), at(14, 0), at(14, 45), false},
		{"disjoint", at(9, 0), at(10, 0), at(11, 0), at(12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a1, tc.a2, tc.b1, tc.b2))
		})
	}
}

func TestMidnightKeepsCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	stored := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, loc), Midnight(stored, loc))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, loc), Today(stored, loc))
}

func TestNormalizeWeekdays(t *testing.T) {
	days, err := NormalizeWeekdays([]string{"Monday", " wednesday", "monday"})
	require.NoError(t, err)
	assert.Equal(t, []string{"monday", "wednesday"}, days)

	_, err = NormalizeWeekdays([]string{"mon"})
	assert.ErrorIs(t, err, ErrInvalidWeekday)
}
