package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// ExpensePatch carries the fields an update may change; nil means leave
// the current value alone.
type ExpensePatch struct {
	CategoryID *string
	Amount     *core.Money
	Date       *core.Date
	Note       *string
}

type Expenses struct {
	collection[core.Expense]
}

func NewExpenses(kv storage.KV) *Expenses {
	return &Expenses{collection: newCollection(kv, storage.KeyExpenses, func(e core.Expense) string { return e.ID })}
}

func (s *Expenses) Load(ctx context.Context) error {
	return s.load(ctx, nil)
}

// Add assigns a fresh id and timestamps, appends and persists.
func (s *Expenses) Add(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := time.Now()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := s.append(ctx, e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// Update merges the patch into the record matching id and refreshes
// UpdatedAt. A missing id is a no-op reported through the boolean.
func (s *Expenses) Update(ctx context.Context, id string, patch ExpensePatch) (core.Expense, bool, error) {
	_, ok, err := s.mutate(ctx, id, func(e *core.Expense) {
		if patch.CategoryID != nil {
			e.CategoryID = *patch.CategoryID
		}
		if patch.Amount != nil {
			e.Amount = *patch.Amount
		}
		if patch.Date != nil {
			e.Date = *patch.Date
		}
		if patch.Note != nil {
			e.Note = *patch.Note
		}
		e.UpdatedAt = time.Now()
	})
	if err != nil || !ok {
		return core.Expense{}, ok, err
	}
	updated, _ := s.GetByID(id)
	return updated, true, nil
}

func (s *Expenses) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.remove(ctx, id)
	return ok, err
}

// Movements returns the aggregation engine's view of the collection.
func (s *Expenses) Movements() []core.Movement {
	items := s.All()
	movements := make([]core.Movement, len(items))
	for i, e := range items {
		movements[i] = e.Movement()
	}
	return movements
}
