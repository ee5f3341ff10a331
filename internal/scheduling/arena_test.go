package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

func TestArenaLookupIndependentOfOrder(t *testing.T) {
	day1 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	arena := NewArena(
		models.Occurrence{ClassID: "c1", Date: day1, StartsAt: day1.Add(10 * time.Hour), Status: models.OccurrenceScheduled},
		models.Occurrence{ClassID: "c1", Date: day2, StartsAt: day2.Add(10 * time.Hour), Status: models.OccurrenceCancelled},
	)

	occ, ok := arena.Lookup("c1", day2)
	require.True(t, ok)
	assert.Equal(t, models.OccurrenceCancelled, occ.Status)

	_, ok = arena.Lookup("c2", day2)
	assert.False(t, ok)

	sorted := arena.Sorted()
	require.Len(t, sorted, 2)
	assert.Equal(t, day2, sorted[0].Date)
}

func TestArenaPutReplaces(t *testing.T) {
	day := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	arena := NewArena(models.Occurrence{ClassID: "c1", Date: day, Status: models.OccurrenceScheduled})
	arena.Put(models.Occurrence{ClassID: "c1", Date: day, Status: models.OccurrenceCompleted})

	assert.Equal(t, 1, arena.Len())
	occ, ok := arena.Lookup("c1", day)
	require.True(t, ok)
	assert.Equal(t, models.OccurrenceCompleted, occ.Status)
}

func TestNilArenaLookup(t *testing.T) {
	var arena *Arena
	_, ok := arena.Lookup("c1", time.Now())
	assert.False(t, ok)
	assert.Zero(t, arena.Len())
}
