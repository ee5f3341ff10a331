package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
	"github.com/noah-isme/tutor-class-api/internal/reporting"
	"github.com/noah-isme/tutor-class-api/pkg/export"
)

// ExportResult is a rendered export ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Format      models.ReportFormat
	Payload     []byte
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var ledgerExportHeaders = []string{
	"Entry", "Class", "Date", "Student", "Tutor", "Status", "Currency",
	"Amount", "Discounts", "Adjustments", "Subtotal", "Tax", "Fee", "Total", "Due", "Aging",
}

var ledgerExportNumeric = []string{"Amount", "Discounts", "Adjustments", "Subtotal", "Tax", "Fee", "Total"}

// ExportService turns ledger entries into tabular exports.
type ExportService struct {
	csv csvRenderer
	pdf pdfRenderer
}

// NewExportService constructs an ExportService, defaulting to the bundled renderers.
func NewExportService(csv csvRenderer, pdf pdfRenderer) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf}
}

// Render builds the dataset for entries and renders it in the requested format.
func (s *ExportService) Render(entries []models.LedgerEntry, summary models.ReportSummary, format models.ReportFormat, now time.Time) (*ExportResult, error) {
	dataset := buildLedgerDataset(entries, summary, now)
	stamp := now.Format("20060102_150405")

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Ledger report %s", now.Format(models.DateLayout)))
		contentType = "application/pdf"
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("ledger_%s.%s", stamp, format),
		ContentType: contentType,
		Format:      format,
		Payload:     payload,
	}, nil
}

func buildLedgerDataset(entries []models.LedgerEntry, summary models.ReportSummary, now time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		discounts := decimal.Zero
		for _, d := range e.Discounts {
			discounts = discounts.Add(d.Applied)
		}
		adjustments := decimal.Zero
		for _, a := range e.Adjustments {
			adjustments = adjustments.Add(a.Amount)
		}
		aging := ""
		if e.Status == models.LedgerUnpaid {
			aging = reporting.AgeBucket(e.DueDate, now)
		}
		rows = append(rows, map[string]string{
			"Entry":       e.ID,
			"Class":       e.ClassID,
			"Date":        e.OccurrenceDate.Format(models.DateLayout),
			"Student":     e.StudentID,
			"Tutor":       e.TutorID,
			"Status":      string(e.Status),
			"Currency":    e.Currency,
			"Amount":      e.Amount.StringFixed(2),
			"Discounts":   discounts.StringFixed(2),
			"Adjustments": adjustments.StringFixed(2),
			"Subtotal":    e.Subtotal.StringFixed(2),
			"Tax":         e.TaxAmount.StringFixed(2),
			"Fee":         e.PlatformFee.StringFixed(2),
			"Total":       e.Total.StringFixed(2),
			"Due":         e.DueDate.Format(models.DateLayout),
			"Aging":       aging,
		})
	}

	footer := []string{fmt.Sprintf("Entries: %d (democlass %d)", summary.TotalCount, summary.DemoclassCount)}
	for _, c := range summary.Currencies {
		footer = append(footer, fmt.Sprintf("%s total %s, paid %s, unpaid %s, outstanding %s",
			c.Currency, c.Total.StringFixed(2), c.Paid.StringFixed(2), c.Unpaid.StringFixed(2), c.Outstanding.StringFixed(2)))
	}
	return export.Dataset{
		Headers: ledgerExportHeaders,
		Rows:    rows,
		Numeric: ledgerExportNumeric,
		Footer:  footer,
	}
}
