package services

import (
	"context"
	"fmt"

	"tally/internal/core"
)

type ImportMode string

const (
	// ImportMerge unions by id: records whose ids are already present
	// are skipped, existing data wins.
	ImportMerge ImportMode = "merge"
	// ImportReplace overwrites every collection with the snapshot.
	ImportReplace ImportMode = "replace"
)

var ErrUnknownImportMode = fmt.Errorf("unknown import mode, want %q or %q", ImportMerge, ImportReplace)

// ImportStats reports how many records each collection gained.
type ImportStats struct {
	Expenses         int `json:"expenses"`
	Incomes          int `json:"incomes"`
	Transfers        int `json:"transfers"`
	Accounts         int `json:"accounts"`
	Categories       int `json:"categories"`
	IncomeCategories int `json:"incomeCategories"`
	Budgets          int `json:"budgets"`
}

// Backup produces and consumes full snapshots of every entity
// collection for the backup/restore collaborator.
type Backup struct {
	finance *Finance
}

func NewBackup(finance *Finance) *Backup {
	return &Backup{finance: finance}
}

// Export captures the current state of every collection.
func (b *Backup) Export() core.Snapshot {
	f := b.finance
	return core.Snapshot{
		Expenses:         f.Expenses.All(),
		Incomes:          f.Incomes.All(),
		Transfers:        f.Transfers.All(),
		Accounts:         f.Accounts.All(),
		Categories:       f.Categories.All(),
		IncomeCategories: f.IncomeCategories.All(),
		Budgets:          f.Budgets.All(),
	}
}

// Import restores a snapshot. Replace overwrites wholesale; merge adds
// only records whose ids are not yet present.
func (b *Backup) Import(ctx context.Context, snap core.Snapshot, mode ImportMode) (ImportStats, error) {
	switch mode {
	case ImportMerge:
		return b.merge(ctx, snap)
	case ImportReplace:
		return b.replace(ctx, snap)
	default:
		return ImportStats{}, ErrUnknownImportMode
	}
}

func (b *Backup) merge(ctx context.Context, snap core.Snapshot) (ImportStats, error) {
	f := b.finance
	var stats ImportStats
	var err error

	if stats.Expenses, err = f.Expenses.MergeByID(ctx, snap.Expenses); err != nil {
		return stats, fmt.Errorf("merge expenses: %w", err)
	}
	if stats.Incomes, err = f.Incomes.MergeByID(ctx, snap.Incomes); err != nil {
		return stats, fmt.Errorf("merge incomes: %w", err)
	}
	if stats.Transfers, err = f.Transfers.MergeByID(ctx, snap.Transfers); err != nil {
		return stats, fmt.Errorf("merge transfers: %w", err)
	}
	if stats.Accounts, err = f.Accounts.MergeByID(ctx, snap.Accounts); err != nil {
		return stats, fmt.Errorf("merge accounts: %w", err)
	}
	if stats.Categories, err = f.Categories.MergeByID(ctx, snap.Categories); err != nil {
		return stats, fmt.Errorf("merge categories: %w", err)
	}
	if stats.IncomeCategories, err = f.IncomeCategories.MergeByID(ctx, snap.IncomeCategories); err != nil {
		return stats, fmt.Errorf("merge income categories: %w", err)
	}
	if stats.Budgets, err = f.Budgets.MergeByID(ctx, snap.Budgets); err != nil {
		return stats, fmt.Errorf("merge budgets: %w", err)
	}
	return stats, nil
}

func (b *Backup) replace(ctx context.Context, snap core.Snapshot) (ImportStats, error) {
	f := b.finance

	if err := f.Expenses.ReplaceAll(ctx, snap.Expenses); err != nil {
		return ImportStats{}, fmt.Errorf("replace expenses: %w", err)
	}
	if err := f.Incomes.ReplaceAll(ctx, snap.Incomes); err != nil {
		return ImportStats{}, fmt.Errorf("replace incomes: %w", err)
	}
	if err := f.Transfers.ReplaceAll(ctx, snap.Transfers); err != nil {
		return ImportStats{}, fmt.Errorf("replace transfers: %w", err)
	}
	if err := f.Accounts.ReplaceAll(ctx, snap.Accounts); err != nil {
		return ImportStats{}, fmt.Errorf("replace accounts: %w", err)
	}
	if err := f.Categories.ReplaceAll(ctx, snap.Categories); err != nil {
		return ImportStats{}, fmt.Errorf("replace categories: %w", err)
	}
	if err := f.IncomeCategories.ReplaceAll(ctx, snap.IncomeCategories); err != nil {
		return ImportStats{}, fmt.Errorf("replace income categories: %w", err)
	}
	if err := f.Budgets.ReplaceAll(ctx, snap.Budgets); err != nil {
		return ImportStats{}, fmt.Errorf("replace budgets: %w", err)
	}

	return ImportStats{
		Expenses:         len(snap.Expenses),
		Incomes:          len(snap.Incomes),
		Transfers:        len(snap.Transfers),
		Accounts:         len(snap.Accounts),
		Categories:       len(snap.Categories),
		IncomeCategories: len(snap.IncomeCategories),
		Budgets:          len(snap.Budgets),
	}, nil
}
