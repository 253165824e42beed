package analytics

import (
	"sort"

	"tally/internal/core"
)

// BudgetProgress is the derived, non-persisted join of a budget with its
// month's spend. Amount holds the effective amount: the nominal cap plus
// any one-month rollover remainder.
type BudgetProgress struct {
	ID            string     `json:"id"`
	Month         string     `json:"month"`
	CategoryID    string     `json:"categoryId"`
	Amount        core.Money `json:"amount"`
	Rollover      bool       `json:"rollover"`
	Spent         core.Money `json:"spent"`
	Remaining     core.Money `json:"remaining"`
	Percentage    float64    `json:"percentage"`
	IsOverBudget  bool       `json:"isOverBudget"`
	CategoryName  string     `json:"categoryName"`
	CategoryIcon  string     `json:"categoryIcon"`
	CategoryColor string     `json:"categoryColor"`
}

// Progress joins the target month's budgets with per-category expense
// spend. For budgets opted into rollover, the immediately preceding
// month's unspent remainder (never negative) is added to the nominal
// amount; the hop is exactly one month and never chains further back.
// Results are sorted by percentage descending so the categories closest
// to or over their cap surface first.
func Progress(budgets []core.Budget, expenses []core.Movement, categories CategoryResolver, month string) ([]BudgetProgress, error) {
	iv, err := MonthInterval(month)
	if err != nil {
		return nil, err
	}
	prevMonth, err := core.PrevMonthKey(month)
	if err != nil {
		return nil, err
	}
	prevIv, err := MonthInterval(prevMonth)
	if err != nil {
		return nil, err
	}

	spent := spendByCategory(expenses, iv)
	var prevSpent map[string]int64 // computed lazily, most months have no rollover

	var out []BudgetProgress
	for _, b := range budgets {
		if b.Month != month {
			continue
		}

		effective := b.Amount.Cents
		if b.Rollover {
			if prior, ok := findBudget(budgets, prevMonth, b.CategoryID); ok {
				if prevSpent == nil {
					prevSpent = spendByCategory(expenses, prevIv)
				}
				remainder := prior.Amount.Cents - prevSpent[b.CategoryID]
				if remainder > 0 {
					effective += remainder
				}
			}
		}

		used := spent[b.CategoryID]
		cat := categories.Lookup(b.CategoryID)
		p := BudgetProgress{
			ID:            b.ID,
			Month:         b.Month,
			CategoryID:    b.CategoryID,
			Amount:        core.Money{Cents: effective},
			Rollover:      b.Rollover,
			Spent:         core.Money{Cents: used},
			Remaining:     core.Money{Cents: effective - used},
			IsOverBudget:  used > effective,
			CategoryName:  cat.Name,
			CategoryIcon:  cat.Icon,
			CategoryColor: cat.Color,
		}
		// Zero effective amount with spend is over budget at 0%, never
		// Inf or NaN.
		if effective > 0 {
			p.Percentage = float64(used) / float64(effective) * 100
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Percentage > out[j].Percentage
	})
	return out, nil
}

func spendByCategory(movements []core.Movement, iv Interval) map[string]int64 {
	totals := make(map[string]int64)
	for _, m := range movements {
		if !iv.Contains(m.Date) {
			continue
		}
		totals[m.CategoryID] += m.Amount.Cents
	}
	return totals
}

func findBudget(budgets []core.Budget, month, categoryID string) (core.Budget, bool) {
	for _, b := range budgets {
		if b.Month == month && b.CategoryID == categoryID {
			return b, true
		}
	}
	return core.Budget{}, false
}
