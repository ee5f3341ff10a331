package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/pkg/database"
)

const ledgerColumns = `id, class_id, occurrence_date, student_id, tutor_id, amount, currency, status, discounts, adjustments, subtotal, tax_rate, tax_amount, platform_fee, total, duration_minutes, scheduled_start, scheduled_end, due_date, payment_method, payment_reference, paid_at, void_reason, version, created_by, updated_by, created_at, updated_at`

// LedgerRepository persists ledger entries. Uniqueness of active (class, date, student) keys is
// enforced by a partial unique index; updates are guarded by the version column.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// FindByID returns an entry by id.
func (r *LedgerRepository) FindByID(ctx context.Context, id string) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`
	var entry models.LedgerEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByOccurrence returns every entry of an occurrence, active or not.
func (r *LedgerRepository) ListByOccurrence(ctx context.Context, classID string, date time.Time) ([]models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE class_id = $1 AND occurrence_date = $2 ORDER BY created_at ASC`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, classID, date); err != nil {
		return nil, fmt.Errorf("list occurrence ledger entries: %w", err)
	}
	return entries, nil
}

// ExistsForParticipant reports whether the student holds an active entry for the occurrence.
func (r *LedgerRepository) ExistsForParticipant(ctx context.Context, classID string, date time.Time, studentID string) (bool, error) {
	const query = `SELECT 1 FROM ledger_entries WHERE class_id = $1 AND occurrence_date = $2 AND student_id = $3 AND status NOT IN ('void', 'canceled') LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, date, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check ledger participant: %w", err)
	}
	return true, nil
}

// List returns a page of entries matching the filter together with the total count.
func (r *LedgerRepository) List(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, int, error) {
	base, args := ledgerWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY occurrence_date DESC, created_at DESC LIMIT %d OFFSET %d", ledgerColumns, base, size, offset)
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}
	return entries, total, nil
}

// Query returns every entry matching the filter, ignoring pagination. Used by reports.
func (r *LedgerRepository) Query(ctx context.Context, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	base, args := ledgerWhere(filter)
	query := fmt.Sprintf("SELECT %s %s ORDER BY occurrence_date ASC, created_at ASC", ledgerColumns, base)
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	return entries, nil
}

func ledgerWhere(filter models.LedgerFilter) (string, []interface{}) {
	base := "FROM ledger_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Currency != "" {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", len(args)+1))
		args = append(args, filter.Currency)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("occurrence_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("occurrence_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	return base, args
}

// InsertBatch inserts every entry in one transaction. A taken (class, date, student) key rolls the
// whole batch back and surfaces as ErrLedgerKeyTaken; a cancelled context aborts before commit.
func (r *LedgerRepository) InsertBatch(ctx context.Context, entries []models.LedgerEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert ledger entries: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO ledger_entries (` + ledgerColumns + `)
VALUES (:id, :class_id, :occurrence_date, :student_id, :tutor_id, :amount, :currency, :status, :discounts, :adjustments, :subtotal, :tax_rate, :tax_amount, :platform_fee, :total, :duration_minutes, :scheduled_start, :scheduled_end, :due_date, :payment_method, :payment_reference, :paid_at, :void_reason, :version, :created_by, :updated_by, :created_at, :updated_at)`
	for i := range entries {
		if err = ctx.Err(); err != nil {
			return fmt.Errorf("insert ledger entries: %w", err)
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, query, &entries[i]); err != nil {
			if database.IsUniqueViolation(err, constraintLedgerActiveKey) {
				return fmt.Errorf("insert ledger entry for %s: %w", entries[i].StudentID, ErrLedgerKeyTaken)
			}
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger entries: %w", err)
	}
	return nil
}

// Update writes an entry if its stored version still matches, bumping the version on success.
// Stored paid rows are never overwritten.
func (r *LedgerRepository) Update(ctx context.Context, entry *models.LedgerEntry) error {
	return r.update(ctx, r.db, entry)
}

func (r *LedgerRepository) update(ctx context.Context, target sqlx.ExtContext, entry *models.LedgerEntry) error {
	const query = `UPDATE ledger_entries SET amount = :amount, currency = :currency, status = :status, discounts = :discounts, adjustments = :adjustments, subtotal = :subtotal, tax_rate = :tax_rate, tax_amount = :tax_amount, platform_fee = :platform_fee, total = :total, duration_minutes = :duration_minutes, payment_method = :payment_method, payment_reference = :payment_reference, paid_at = :paid_at, void_reason = :void_reason, version = version + 1, updated_by = :updated_by, updated_at = :updated_at
WHERE id = :id AND version = :version AND status <> 'paid'`
	result, err := sqlx.NamedExecContext(ctx, target, query, entry)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ledger entry rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleVersion
	}
	entry.Version++
	return nil
}

// UpdateBatch applies guarded updates to several entries atomically.
func (r *LedgerRepository) UpdateBatch(ctx context.Context, entries []models.LedgerEntry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update ledger entries: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range entries {
		if err = r.update(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger entries: %w", err)
	}
	return nil
}
