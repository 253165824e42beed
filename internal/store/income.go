package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

type IncomePatch struct {
	CategoryID *string
	Amount     *core.Money
	Date       *core.Date
	Note       *string
}

type Incomes struct {
	collection[core.Income]
}

func NewIncomes(kv storage.KV) *Incomes {
	return &Incomes{collection: newCollection(kv, storage.KeyIncomes, func(i core.Income) string { return i.ID })}
}

func (s *Incomes) Load(ctx context.Context) error {
	return s.load(ctx, nil)
}

func (s *Incomes) Add(ctx context.Context, in core.Income) (core.Income, error) {
	now := time.Now()
	in.ID = uuid.NewString()
	in.CreatedAt = now
	in.UpdatedAt = now
	if err := s.append(ctx, in); err != nil {
		return core.Income{}, err
	}
	return in, nil
}

func (s *Incomes) Update(ctx context.Context, id string, patch IncomePatch) (core.Income, bool, error) {
	_, ok, err := s.mutate(ctx, id, func(in *core.Income) {
		if patch.CategoryID != nil {
			in.CategoryID = *patch.CategoryID
		}
		if patch.Amount != nil {
			in.Amount = *patch.Amount
		}
		if patch.Date != nil {
			in.Date = *patch.Date
		}
		if patch.Note != nil {
			in.Note = *patch.Note
		}
		in.UpdatedAt = time.Now()
	})
	if err != nil || !ok {
		return core.Income{}, ok, err
	}
	updated, _ := s.GetByID(id)
	return updated, true, nil
}

func (s *Incomes) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.remove(ctx, id)
	return ok, err
}

func (s *Incomes) Movements() []core.Movement {
	items := s.All()
	movements := make([]core.Movement, len(items))
	for i, in := range items {
		movements[i] = in.Movement()
	}
	return movements
}
