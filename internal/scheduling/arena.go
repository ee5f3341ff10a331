package scheduling

import (
	"sort"
	"time"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

// OccurrenceIndex resolves stored per-date occurrence records.
type OccurrenceIndex interface {
	Lookup(classID string, date time.Time) (models.Occurrence, bool)
}

// Arena is a flat occurrence store indexed by (class, date). Lookups go through the index, so
// results never depend on insertion order.
type Arena struct {
	items []models.Occurrence
	index map[models.OccurrenceKey]int
}

// NewArena builds an arena seeded with the given occurrences. Later duplicates replace earlier ones.
func NewArena(occurrences ...models.Occurrence) *Arena {
	a := &Arena{index: make(map[models.OccurrenceKey]int, len(occurrences))}
	for _, occ := range occurrences {
		a.Put(occ)
	}
	return a
}

// Put inserts or replaces the occurrence stored under its key.
func (a *Arena) Put(occ models.Occurrence) {
	key := occ.Key()
	if idx, ok := a.index[key]; ok {
		a.items[idx] = occ
		return
	}
	a.index[key] = len(a.items)
	a.items = append(a.items, occ)
}

// Lookup returns the occurrence stored for the class on the given calendar date.
func (a *Arena) Lookup(classID string, date time.Time) (models.Occurrence, bool) {
	if a == nil {
		return models.Occurrence{}, false
	}
	idx, ok := a.index[models.NewOccurrenceKey(classID, date)]
	if !ok {
		return models.Occurrence{}, false
	}
	return a.items[idx], true
}

// Len returns the number of stored occurrences.
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// Sorted returns a copy of all occurrences ordered by start time, then class id.
func (a *Arena) Sorted() []models.Occurrence {
	if a == nil {
		return nil
	}
	out := make([]models.Occurrence, len(a.items))
	copy(out, a.items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ClassID < out[j].ClassID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}
