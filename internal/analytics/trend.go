package analytics

import (
	"tally/internal/core"
)

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// trendDeadBand is the ±% band around zero change reported as stable.
const trendDeadBand = 5.0

type MonthComparison struct {
	Current          MonthlyStats   `json:"current"`
	Previous         MonthlyStats   `json:"previous"`
	PercentageChange float64        `json:"percentageChange"`
	Trend            TrendDirection `json:"trend"`
}

// Compare computes stats for a month and the one before it and classifies
// the change in total spend.
func Compare(movements []core.Movement, month string, categories CategoryResolver) (MonthComparison, error) {
	prevMonth, err := core.PrevMonthKey(month)
	if err != nil {
		return MonthComparison{}, err
	}

	current, err := ComputeMonthlyStats(movements, month, categories)
	if err != nil {
		return MonthComparison{}, err
	}
	previous, err := ComputeMonthlyStats(movements, prevMonth, categories)
	if err != nil {
		return MonthComparison{}, err
	}

	change, trend := classifyChange(current.Total.Cents, previous.Total.Cents)
	return MonthComparison{
		Current:          current,
		Previous:         previous,
		PercentageChange: change,
		Trend:            trend,
	}, nil
}

// classifyChange derives the percentage change and its direction. When
// the previous total is zero, the change is 100% if anything was spent
// and 0% otherwise. Changes inside the dead band are stable.
func classifyChange(current, previous int64) (float64, TrendDirection) {
	var change float64
	switch {
	case previous != 0:
		change = float64(current-previous) / float64(previous) * 100
	case current > 0:
		change = 100
	default:
		change = 0
	}

	switch {
	case change >= trendDeadBand:
		return change, TrendUp
	case change <= -trendDeadBand:
		return change, TrendDown
	default:
		return change, TrendStable
	}
}
