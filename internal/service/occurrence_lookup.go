package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/scheduling"
	appErrors "github.com/noah-isme/tutor-class-api/pkg/errors"
)

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassDefinition, error)
}

type occurrenceReader interface {
	Get(ctx context.Context, classID string, date time.Time) (*models.Occurrence, error)
	ListByClass(ctx context.Context, classID string, from, to time.Time) ([]models.Occurrence, error)
}

func loadClassDefinition(ctx context.Context, repo classReader, id string) (*models.ClassDefinition, error) {
	def, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return def, nil
}

func parseDay(value string, loc *time.Location, field string) (time.Time, error) {
	day, err := scheduling.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, validationError(err, fmt.Sprintf("%s must be YYYY-MM-DD", field))
	}
	return day, nil
}

// resolveOccurrence returns the stored occurrence of def on day, or the generated one when
// nothing has been materialised yet. Days outside the class pattern are not found.
func resolveOccurrence(ctx context.Context, gen scheduling.Generator, repo occurrenceReader, def models.ClassDefinition, day time.Time) (models.Occurrence, error) {
	if !gen.OccursOn(def, day) {
		return models.Occurrence{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class has no occurrence on %s", day.Format(models.DateLayout)))
	}
	stored, err := repo.Get(ctx, def.ID, day)
	switch {
	case err == nil:
		return *stored, nil
	case errors.Is(err, sql.ErrNoRows):
		occ, genErr := gen.Occurrence(def, day, nil)
		if genErr != nil {
			return models.Occurrence{}, translateDomainError(genErr, "failed to build occurrence")
		}
		return occ, nil
	default:
		return models.Occurrence{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrence")
	}
}

// storedIndex loads the class's stored occurrences dated within [from, to] into an arena.
// One-time classes always load their single date.
func storedIndex(ctx context.Context, repo occurrenceReader, def models.ClassDefinition, from, to time.Time) (*scheduling.Arena, error) {
	if !def.IsRecurring() && def.ClassDate != nil {
		from, to = *def.ClassDate, *def.ClassDate
	}
	occurrences, err := repo.ListByClass(ctx, def.ID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load occurrences")
	}
	return scheduling.NewArena(occurrences...), nil
}
