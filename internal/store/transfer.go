package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

type TransferPatch struct {
	FromAccountID *string
	ToAccountID   *string
	FromName      *string
	ToName        *string
	Amount        *core.Money
	Date          *core.Date
	Note          *string
}

// Transfers knows nothing about account balances. Update and Delete hand
// the previous record back so the caller can reverse the balance delta it
// applied; keeping that coupling in the caller makes the cross-store side
// effect explicit.
type Transfers struct {
	collection[core.Transfer]
}

func NewTransfers(kv storage.KV) *Transfers {
	return &Transfers{collection: newCollection(kv, storage.KeyTransfers, func(t core.Transfer) string { return t.ID })}
}

func (s *Transfers) Load(ctx context.Context) error {
	return s.load(ctx, nil)
}

func (s *Transfers) Add(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	now := time.Now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := s.append(ctx, t); err != nil {
		return core.Transfer{}, err
	}
	return t, nil
}

// Update merges the patch and returns the previous record for balance
// reversal. A missing id is a no-op.
func (s *Transfers) Update(ctx context.Context, id string, patch TransferPatch) (core.Transfer, bool, error) {
	return s.mutate(ctx, id, func(t *core.Transfer) { applyTransferPatch(t, patch) })
}

// Delete removes the record and returns it for balance reversal.
func (s *Transfers) Delete(ctx context.Context, id string) (core.Transfer, bool, error) {
	return s.remove(ctx, id)
}

// Stage* variants mutate memory only; the caller persists them together
// with the adjusted account balances through KV.SetAll.

func (s *Transfers) StageAdd(t core.Transfer) core.Transfer {
	now := time.Now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.memAppend(t)
	return t
}

func (s *Transfers) StageUpdate(id string, patch TransferPatch) (core.Transfer, bool) {
	return s.memMutate(id, func(t *core.Transfer) { applyTransferPatch(t, patch) })
}

func (s *Transfers) StageDelete(id string) (core.Transfer, bool) {
	return s.memRemove(id)
}

func applyTransferPatch(t *core.Transfer, patch TransferPatch) {
	if patch.FromAccountID != nil {
		t.FromAccountID = *patch.FromAccountID
	}
	if patch.ToAccountID != nil {
		t.ToAccountID = *patch.ToAccountID
	}
	if patch.FromName != nil {
		t.FromName = *patch.FromName
	}
	if patch.ToName != nil {
		t.ToName = *patch.ToName
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Note != nil {
		t.Note = *patch.Note
	}
	t.UpdatedAt = time.Now()
}
