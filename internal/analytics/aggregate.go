package analytics

import (
	"sort"

	"tally/internal/core"
)

// CategoryResolver joins category ids to display values. GetByID reports
// whether the id resolves at all; Lookup falls back to placeholder
// display values for dangling references.
type CategoryResolver interface {
	GetByID(id string) (core.Category, bool)
	Lookup(id string) core.Category
}

type CategoryTotal struct {
	CategoryID string     `json:"categoryId"`
	Name       string     `json:"name"`
	Icon       string     `json:"icon"`
	Color      string     `json:"color"`
	Total      core.Money `json:"total"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

type DayTotal struct {
	Date  core.Date  `json:"date"`
	Total core.Money `json:"total"`
}

type MonthlyStats struct {
	Month           string          `json:"month"`
	Total           core.Money      `json:"total"`
	Count           int             `json:"count"`
	AverageDaily    float64         `json:"averageDaily"` // cents per calendar day
	HighestCategory *CategoryTotal  `json:"highestCategory"`
	Daily           []DayTotal      `json:"daily"`
	Breakdown       []CategoryTotal `json:"breakdown"`
}

// Total sums amounts over movements whose date falls inside the interval,
// or over all movements when the interval is nil.
func Total(movements []core.Movement, iv *Interval) core.Money {
	var sum int64
	for _, m := range movements {
		if iv != nil && !iv.Contains(m.Date) {
			continue
		}
		sum += m.Amount.Cents
	}
	return core.Money{Cents: sum}
}

// Count returns how many movements fall inside the interval.
func Count(movements []core.Movement, iv *Interval) int {
	n := 0
	for _, m := range movements {
		if iv != nil && !iv.Contains(m.Date) {
			continue
		}
		n++
	}
	return n
}

// DailySeries produces one entry per calendar day of the interval,
// inclusive. Days without movements report zero, so the series is always
// dense and consumers can plot full calendars without gap-filling.
func DailySeries(movements []core.Movement, iv Interval) []DayTotal {
	byDay := make(map[string]int64)
	for _, m := range movements {
		if !iv.Contains(m.Date) {
			continue
		}
		byDay[m.Date.String()] += m.Amount.Cents
	}

	series := make([]DayTotal, 0, iv.Days())
	for d := iv.Start; !d.After(iv.End); d = d.Next() {
		series = append(series, DayTotal{Date: d, Total: core.Money{Cents: byDay[d.String()]}})
	}
	return series
}

// Breakdown groups movements in the interval by category. Groups whose
// category id no longer resolves are dropped. Percentages are taken
// against the grand total of the surviving groups and sum to 100 for
// any non-empty result. Sorted by total descending, ties keeping first
// encounter order.
func Breakdown(movements []core.Movement, iv *Interval, categories CategoryResolver) []CategoryTotal {
	type group struct {
		total int64
		count int
		order int
	}
	groups := make(map[string]*group)
	var ids []string

	for _, m := range movements {
		if iv != nil && !iv.Contains(m.Date) {
			continue
		}
		g, ok := groups[m.CategoryID]
		if !ok {
			g = &group{order: len(ids)}
			groups[m.CategoryID] = g
			ids = append(ids, m.CategoryID)
		}
		g.total += m.Amount.Cents
		g.count++
	}

	type entry struct {
		ct    CategoryTotal
		order int
	}
	var entries []entry
	var grand int64
	for _, id := range ids {
		cat, found := categories.GetByID(id)
		if !found {
			continue
		}
		g := groups[id]
		grand += g.total
		entries = append(entries, entry{
			ct: CategoryTotal{
				CategoryID: id,
				Name:       cat.Name,
				Icon:       cat.Icon,
				Color:      cat.Color,
				Total:      core.Money{Cents: g.total},
				Count:      g.count,
			},
			order: g.order,
		})
	}

	for i := range entries {
		if grand > 0 {
			entries[i].ct.Percentage = float64(entries[i].ct.Total.Cents) / float64(grand) * 100
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ct.Total.Cents > entries[j].ct.Total.Cents
	})

	out := make([]CategoryTotal, len(entries))
	for i, e := range entries {
		out[i] = e.ct
	}
	return out
}

// ComputeMonthlyStats reduces a month of movements into totals, a dense
// daily series, the category breakdown and the top category. AverageDaily
// divides by the month's actual calendar length, not days elapsed.
func ComputeMonthlyStats(movements []core.Movement, month string, categories CategoryResolver) (MonthlyStats, error) {
	iv, err := MonthInterval(month)
	if err != nil {
		return MonthlyStats{}, err
	}
	days, err := core.DaysInMonth(month)
	if err != nil {
		return MonthlyStats{}, err
	}

	total := Total(movements, &iv)
	breakdown := Breakdown(movements, &iv, categories)

	stats := MonthlyStats{
		Month:        month,
		Total:        total,
		Count:        Count(movements, &iv),
		AverageDaily: float64(total.Cents) / float64(days),
		Daily:        DailySeries(movements, iv),
		Breakdown:    breakdown,
	}
	if len(breakdown) > 0 {
		// Breakdown is sorted by total descending already.
		top := breakdown[0]
		stats.HighestCategory = &top
	}
	return stats, nil
}
