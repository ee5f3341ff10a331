// Package reporting folds ledger entries into read-only summaries.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-class-api/internal/models"
)

var statusOrder = []models.LedgerStatus{
	models.LedgerUnpaid,
	models.LedgerPaid,
	models.LedgerDemoclass,
	models.LedgerVoid,
	models.LedgerCanceled,
}

var agingOrder = []string{
	models.AgingCurrent,
	models.Aging0To30,
	models.Aging31To60,
	models.Aging61To90,
	models.AgingOver90,
}

// Aggregate builds a summary over entries as of now. Void and canceled entries are counted but
// carry no money. Money is summed from entry totals per currency.
func Aggregate(entries []models.LedgerEntry, now time.Time, groupBy string) models.ReportSummary {
	summary := models.ReportSummary{TotalCount: len(entries), GeneratedAt: now}

	currencies := make(map[string]*models.CurrencyTotals)
	statuses := make(map[models.LedgerStatus]*models.StatusBucket)
	aging := make(map[string]*models.AgingBucket)

	for _, entry := range entries {
		if entry.Status == models.LedgerDemoclass {
			summary.DemoclassCount++
		}

		bucket, ok := statuses[entry.Status]
		if !ok {
			bucket = &models.StatusBucket{Status: entry.Status}
			statuses[entry.Status] = bucket
		}
		bucket.Count++

		if !entry.Status.Active() {
			continue
		}
		bucket.Amount = bucket.Amount.Add(entry.Total)

		totals, ok := currencies[entry.Currency]
		if !ok {
			totals = &models.CurrencyTotals{Currency: entry.Currency}
			currencies[entry.Currency] = totals
		}
		totals.Total = totals.Total.Add(entry.Total)
		switch entry.Status {
		case models.LedgerPaid:
			totals.Paid = totals.Paid.Add(entry.Total)
		case models.LedgerUnpaid:
			totals.Unpaid = totals.Unpaid.Add(entry.Total)
			if now.After(entry.DueDate) {
				totals.Outstanding = totals.Outstanding.Add(entry.Total)
			}
			label := AgeBucket(entry.DueDate, now)
			age, ok := aging[label]
			if !ok {
				age = &models.AgingBucket{Label: label}
				aging[label] = age
			}
			age.Count++
			age.Amount = age.Amount.Add(entry.Total)
		}
	}

	summary.Currencies = make([]models.CurrencyTotals, 0, len(currencies))
	for _, totals := range currencies {
		summary.Currencies = append(summary.Currencies, *totals)
	}
	sort.Slice(summary.Currencies, func(i, j int) bool {
		return summary.Currencies[i].Currency < summary.Currencies[j].Currency
	})

	switch groupBy {
	case models.ReportGroupByStatus:
		for _, status := range statusOrder {
			if bucket, ok := statuses[status]; ok {
				summary.ByStatus = append(summary.ByStatus, *bucket)
			}
		}
	case models.ReportGroupByAge:
		for _, label := range agingOrder {
			if bucket, ok := aging[label]; ok {
				summary.Aging = append(summary.Aging, *bucket)
			} else {
				summary.Aging = append(summary.Aging, models.AgingBucket{Label: label, Amount: decimal.Zero})
			}
		}
	}
	return summary
}

// AgeBucket labels how far past due an unpaid entry is. Days overdue are whole days of
// now - dueDate; entries not yet due are current.
func AgeBucket(dueDate, now time.Time) string {
	if !now.After(dueDate) {
		return models.AgingCurrent
	}
	days := int(now.Sub(dueDate).Hours() / 24)
	switch {
	case days <= 30:
		return models.Aging0To30
	case days <= 60:
		return models.Aging31To60
	case days <= 90:
		return models.Aging61To90
	default:
		return models.AgingOver90
	}
}
