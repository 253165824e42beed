// Package report defines the outbound port for exporting monthly
// summaries to an external destination.
package report

import (
	"context"

	"tally/internal/analytics"
	"tally/internal/core"
)

// MonthlyReport is one month's financial summary destined for export.
type MonthlyReport struct {
	Month         string
	TotalExpenses core.Money
	TotalIncome   core.Money
	Net           core.Money
	AverageDaily  core.Money
	TopCategory   string
	Breakdown     []analytics.CategoryTotal
}

// Writer exports monthly reports. Implementations must be safe to call
// repeatedly for the same month: a rewrite replaces the previous export.
type Writer interface {
	WriteMonthlyReport(ctx context.Context, r MonthlyReport) error
}
