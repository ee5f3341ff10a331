package service

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-class-api/internal/ledger"
	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/reporting"
	"github.com/noah-isme/tutor-class-api/pkg/export"
)

type datasetRecorder struct {
	got   export.Dataset
	title string
}

func (r *datasetRecorder) Render(data export.Dataset, title string) ([]byte, error) {
	r.got = data
	r.title = title
	return []byte("%PDF-stub"), nil
}

func TestExportServiceBuildsLedgerDataset(t *testing.T) {
	entry := unpaidEntry("entry-1", "student-1", "2024-01-10", "14:00")
	entry.DueDate = mustDay("2024-01-17")
	entry, _, err := ledger.ApplyDiscount(entry, models.DiscountFixed, decimal.RequireFromString("5"), "promo", "admin-1", mustAt("2024-01-11 09:00"))
	require.NoError(t, err)

	now := mustAt("2024-02-01 12:00")
	summary := reporting.Aggregate([]models.LedgerEntry{entry}, now, "")
	recorder := &datasetRecorder{}
	svc := NewExportService(nil, recorder)

	result, err := svc.Render([]models.LedgerEntry{entry}, summary, models.ReportFormatPDF, now)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "ledger_20240201_120000.pdf", result.Filename)
	assert.True(t, bytes.HasPrefix(result.Payload, []byte("%PDF")))
	assert.Equal(t, "Ledger report 2024-02-01", recorder.title)

	require.Len(t, recorder.got.Rows, 1)
	row := recorder.got.Rows[0]
	assert.Equal(t, "5.00", row["Discounts"])
	assert.Equal(t, "95.00", row["Subtotal"])
	assert.Equal(t, "2024-01-10", row["Date"])
	assert.Equal(t, "0-30", row["Aging"])
	assert.Contains(t, recorder.got.Footer[0], "Entries: 1")
	assert.Contains(t, recorder.got.Footer[1], "USD total")
}

func TestExportServiceRendersRealPDF(t *testing.T) {
	svc := NewExportService(nil, nil)
	result, err := svc.Render(nil, models.ReportSummary{}, models.ReportFormatPDF, mustAt("2024-02-01 12:00"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(result.Payload, []byte("%PDF-")))
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc := NewExportService(nil, nil)
	_, err := svc.Render(nil, models.ReportSummary{}, models.ReportFormat("xlsx"), mustAt("2024-02-01 12:00"))
	assert.Error(t, err)
}
