package store

import (
	"context"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

type AccountPatch struct {
	Name     *string
	Category *string
	Color    *string
	Icon     *string
}

// Accounts holds running balances. A balance is only ever moved by
// transfer apply/reverse deltas, never recomputed from history.
type Accounts struct {
	collection[core.Account]
}

func NewAccounts(kv storage.KV) *Accounts {
	return &Accounts{collection: newCollection(kv, storage.KeyAccounts, func(a core.Account) string { return a.ID })}
}

func (s *Accounts) Load(ctx context.Context) error {
	return s.load(ctx, nil)
}

func (s *Accounts) Add(ctx context.Context, a core.Account) (core.Account, error) {
	a.ID = uuid.NewString()
	if err := s.append(ctx, a); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func (s *Accounts) Update(ctx context.Context, id string, patch AccountPatch) (core.Account, bool, error) {
	_, ok, err := s.mutate(ctx, id, func(a *core.Account) {
		if patch.Name != nil {
			a.Name = *patch.Name
		}
		if patch.Category != nil {
			a.Category = *patch.Category
		}
		if patch.Color != nil {
			a.Color = *patch.Color
		}
		if patch.Icon != nil {
			a.Icon = *patch.Icon
		}
	})
	if err != nil || !ok {
		return core.Account{}, ok, err
	}
	updated, _ := s.GetByID(id)
	return updated, true, nil
}

func (s *Accounts) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.remove(ctx, id)
	return ok, err
}

// StageAdjust moves a balance by delta cents in memory only. An empty or
// unknown account id is tolerated and reported as false: legacy free-text
// transfer sides have no stored balance to move.
func (s *Accounts) StageAdjust(id string, deltaCents int64) bool {
	if id == "" {
		return false
	}
	_, ok := s.memMutate(id, func(a *core.Account) {
		a.Balance.Cents += deltaCents
	})
	return ok
}
