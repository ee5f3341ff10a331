package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/repository"
)

func mustDay(value string) time.Time {
	t, err := time.ParseInLocation(models.DateLayout, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func mustAt(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(value string) func() time.Time {
	t := mustAt(value)
	return func() time.Time { return t }
}

func oneTimeClass(id, tutorID, date, start string, duration int, students ...string) models.ClassDefinition {
	d := mustDay(date)
	return models.ClassDefinition{
		ID:                id,
		Subject:           "Algebra",
		TutorID:           tutorID,
		StudentIDs:        students,
		Capacity:          10,
		StartTime:         start,
		DurationMinutes:   duration,
		ScheduleType:      models.ScheduleOneTime,
		ClassDate:         &d,
		Amount:            decimal.RequireFromString("100"),
		Currency:          "USD",
		JoinWindowMinutes: 15,
		Status:            models.ClassStatusScheduled,
	}
}

func recurringClass(id, tutorID, startDate, endDate, start string, duration int, days []string, students ...string) models.ClassDefinition {
	s, e := mustDay(startDate), mustDay(endDate)
	return models.ClassDefinition{
		ID:                id,
		Subject:           "Physics",
		TutorID:           tutorID,
		StudentIDs:        students,
		Capacity:          10,
		StartTime:         start,
		DurationMinutes:   duration,
		ScheduleType:      models.ScheduleWeeklyRecurring,
		StartDate:         &s,
		EndDate:           &e,
		RecurringDays:     days,
		Amount:            decimal.RequireFromString("100"),
		Currency:          "USD",
		JoinWindowMinutes: 10,
		Status:            models.ClassStatusScheduled,
	}
}

type classStoreStub struct {
	items       map[string]models.ClassDefinition
	created     []models.Occurrence
	updated     []models.Occurrence
	updatedFrom time.Time
	statuses    map[string]models.ClassStatus
	createErr   error
}

func newClassStore(classes ...models.ClassDefinition) *classStoreStub {
	store := &classStoreStub{items: map[string]models.ClassDefinition{}, statuses: map[string]models.ClassStatus{}}
	for _, c := range classes {
		store.items[c.ID] = c
	}
	return store
}

func (s *classStoreStub) FindByID(ctx context.Context, id string) (*models.ClassDefinition, error) {
	c, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *classStoreStub) ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.ClassDefinition, error) {
	var out []models.ClassDefinition
	for _, c := range s.items {
		if c.TutorID == tutorID && c.Status == models.ClassStatusScheduled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *classStoreStub) Create(ctx context.Context, class *models.ClassDefinition, occurrences []models.Occurrence) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.items[class.ID] = *class
	s.created = occurrences
	return nil
}

func (s *classStoreStub) Update(ctx context.Context, class *models.ClassDefinition, from time.Time, occurrences []models.Occurrence) error {
	s.items[class.ID] = *class
	s.updated = occurrences
	s.updatedFrom = from
	return nil
}

func (s *classStoreStub) SetStatus(ctx context.Context, id string, status models.ClassStatus) error {
	c := s.items[id]
	c.Status = status
	s.items[id] = c
	s.statuses[id] = status
	return nil
}

type occurrenceStoreStub struct {
	items    map[models.OccurrenceKey]models.Occurrence
	upserts  int
	attended []string
}

func newOccurrenceStore(occurrences ...models.Occurrence) *occurrenceStoreStub {
	store := &occurrenceStoreStub{items: map[models.OccurrenceKey]models.Occurrence{}}
	for _, o := range occurrences {
		store.items[o.Key()] = o
	}
	return store
}

func (s *occurrenceStoreStub) Get(ctx context.Context, classID string, date time.Time) (*models.Occurrence, error) {
	o, ok := s.items[models.NewOccurrenceKey(classID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &o, nil
}

func (s *occurrenceStoreStub) ListByClass(ctx context.Context, classID string, from, to time.Time) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, o := range s.items {
		if o.ClassID == classID && !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *occurrenceStoreStub) ListForTutor(ctx context.Context, tutorID string, from, to time.Time) ([]models.Occurrence, error) {
	var out []models.Occurrence
	for _, o := range s.items {
		if o.TutorID == tutorID && !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *occurrenceStoreStub) Upsert(ctx context.Context, occ *models.Occurrence) error {
	s.upserts++
	s.items[occ.Key()] = *occ
	return nil
}

func (s *occurrenceStoreStub) AddAttendee(ctx context.Context, occ models.Occurrence, participantID string) error {
	stored, ok := s.items[occ.Key()]
	if !ok {
		stored = occ
	}
	if !stored.HasAttendee(participantID) {
		stored.AttendeeIDs = append(stored.AttendeeIDs, participantID)
	}
	s.items[occ.Key()] = stored
	s.attended = append(s.attended, participantID)
	return nil
}

type billingHookStub struct {
	realized    []models.LedgerStatus
	canceled    []models.OccurrenceKey
	repricedFor []string
	paid        []models.LedgerEntry
	err         error
}

func (b *billingHookStub) RealizeOccurrence(ctx context.Context, def models.ClassDefinition, occ models.Occurrence, status models.LedgerStatus, actor string) ([]models.LedgerEntry, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.realized = append(b.realized, status)
	return []models.LedgerEntry{{ID: "entry-1", ClassID: def.ID, OccurrenceDate: occ.Date, Status: status}}, nil
}

func (b *billingHookStub) CancelOccurrence(ctx context.Context, occ models.Occurrence, reason, actor string) ([]models.LedgerEntry, []models.LedgerEntry, error) {
	b.canceled = append(b.canceled, occ.Key())
	return []models.LedgerEntry{{ID: "entry-1", Status: models.LedgerCanceled}}, b.paid, nil
}

func (b *billingHookStub) RepriceClass(ctx context.Context, def models.ClassDefinition, after time.Time, actor string) (int, error) {
	b.repricedFor = append(b.repricedFor, def.ID)
	return 1, nil
}

// ledgerStoreStub mimics the ledger table including its active-key index and version guard.
type ledgerStoreStub struct {
	order   []string
	items   map[string]models.LedgerEntry
	inserts int
	// raceOnce is committed by a "concurrent writer" right before the first insert, which then fails.
	raceOnce []models.LedgerEntry
}

func newLedgerStore(entries ...models.LedgerEntry) *ledgerStoreStub {
	store := &ledgerStoreStub{items: map[string]models.LedgerEntry{}}
	for _, e := range entries {
		store.put(e)
	}
	return store
}

func (s *ledgerStoreStub) put(e models.LedgerEntry) {
	if _, ok := s.items[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.items[e.ID] = e
}

func (s *ledgerStoreStub) all() []models.LedgerEntry {
	out := make([]models.LedgerEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *ledgerStoreStub) FindByID(ctx context.Context, id string) (*models.LedgerEntry, error) {
	e, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *ledgerStoreStub) ListByOccurrence(ctx context.Context, classID string, date time.Time) ([]models.LedgerEntry, error) {
	key := models.NewOccurrenceKey(classID, date)
	var out []models.LedgerEntry
	for _, e := range s.all() {
		if e.Key() == key {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *ledgerStoreStub) ExistsForParticipant(ctx context.Context, classID string, date time.Time, studentID string) (bool, error) {
	entries, _ := s.ListByOccurrence(ctx, classID, date)
	for _, e := range entries {
		if e.StudentID == studentID && e.Status.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (s *ledgerStoreStub) List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error) {
	entries, _ := s.Query(ctx, filter)
	return entries, len(entries), nil
}

func (s *ledgerStoreStub) Query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range s.all() {
		if filter.ClassID != "" && e.ClassID != filter.ClassID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, e.Status) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsStatus(statuses []models.LedgerStatus, status models.LedgerStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *ledgerStoreStub) InsertBatch(ctx context.Context, entries []models.LedgerEntry) error {
	if len(s.raceOnce) > 0 {
		for _, e := range s.raceOnce {
			s.put(e)
		}
		s.raceOnce = nil
		return repository.ErrLedgerKeyTaken
	}
	for _, e := range entries {
		for _, existing := range s.items {
			if existing.Key() == e.Key() && existing.StudentID == e.StudentID && existing.Status.Active() {
				return repository.ErrLedgerKeyTaken
			}
		}
	}
	for _, e := range entries {
		s.put(e)
	}
	s.inserts++
	return nil
}

func (s *ledgerStoreStub) Update(ctx context.Context, entry *models.LedgerEntry) error {
	stored, ok := s.items[entry.ID]
	if !ok || stored.Version != entry.Version || stored.Status == models.LedgerPaid {
		return repository.ErrStaleVersion
	}
	entry.Version++
	s.items[entry.ID] = *entry
	return nil
}

func (s *ledgerStoreStub) UpdateBatch(ctx context.Context, entries []models.LedgerEntry) error {
	for i := range entries {
		if err := s.Update(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

type invalidationStub struct {
	patterns []string
}

func (s *invalidationStub) Invalidate(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}
