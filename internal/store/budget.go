package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

type BudgetPatch struct {
	Amount   *core.Money
	Rollover *bool
}

type Budgets struct {
	collection[core.Budget]
}

func NewBudgets(kv storage.KV) *Budgets {
	return &Budgets{collection: newCollection(kv, storage.KeyBudgets, func(b core.Budget) string { return b.ID })}
}

func (s *Budgets) Load(ctx context.Context) error {
	return s.load(ctx, nil)
}

// Add upserts: at most one budget may exist per (categoryId, month) pair,
// so adding to an existing pair updates that record's amount and rollover
// flag in place instead of inserting a second one.
func (s *Budgets) Add(ctx context.Context, b core.Budget) (core.Budget, error) {
	if existing, found := s.GetByMonthAndCategory(b.Month, b.CategoryID); found {
		updated, _, err := s.Update(ctx, existing.ID, BudgetPatch{Amount: &b.Amount, Rollover: &b.Rollover})
		return updated, err
	}

	now := time.Now()
	b.ID = uuid.NewString()
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := s.append(ctx, b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *Budgets) Update(ctx context.Context, id string, patch BudgetPatch) (core.Budget, bool, error) {
	_, ok, err := s.mutate(ctx, id, func(b *core.Budget) {
		if patch.Amount != nil {
			b.Amount = *patch.Amount
		}
		if patch.Rollover != nil {
			b.Rollover = *patch.Rollover
		}
		b.UpdatedAt = time.Now()
	})
	if err != nil || !ok {
		return core.Budget{}, ok, err
	}
	updated, _ := s.GetByID(id)
	return updated, true, nil
}

func (s *Budgets) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.remove(ctx, id)
	return ok, err
}

// ForMonth returns all budgets defined for a "YYYY-MM" month.
func (s *Budgets) ForMonth(month string) []core.Budget {
	var out []core.Budget
	for _, b := range s.All() {
		if b.Month == month {
			out = append(out, b)
		}
	}
	return out
}

func (s *Budgets) GetByMonthAndCategory(month, categoryID string) (core.Budget, bool) {
	for _, b := range s.All() {
		if b.Month == month && b.CategoryID == categoryID {
			return b, true
		}
	}
	return core.Budget{}, false
}
