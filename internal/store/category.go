package store

import (
	"context"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/storage"
)

// Fallback display values for dangling category references.
const (
	FallbackCategoryName  = "Uncategorized"
	FallbackCategoryIcon  = "help-circle"
	FallbackCategoryColor = "#9e9e9e"
)

type CategoryPatch struct {
	Name  *string
	Icon  *string
	Color *string
}

// Categories serves both taxonomies: expense categories and income
// categories, distinguished by their KV key and seed list.
type Categories struct {
	collection[core.Category]
	seed []core.Category
}

func NewExpenseCategories(kv storage.KV) *Categories {
	return &Categories{
		collection: newCollection(kv, storage.KeyCategories, func(c core.Category) string { return c.ID }),
		seed:       defaultExpenseCategories(),
	}
}

func NewIncomeCategories(kv storage.KV) *Categories {
	return &Categories{
		collection: newCollection(kv, storage.KeyIncomeCategories, func(c core.Category) string { return c.ID }),
		seed:       defaultIncomeCategories(),
	}
}

// Load reads the persisted taxonomy, seeding the defaults on first run.
func (s *Categories) Load(ctx context.Context) error {
	return s.load(ctx, s.seed)
}

func (s *Categories) Add(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.NewString()
	c.IsSystem = false
	if err := s.append(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

func (s *Categories) Update(ctx context.Context, id string, patch CategoryPatch) (core.Category, bool, error) {
	_, ok, err := s.mutate(ctx, id, func(c *core.Category) {
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Icon != nil {
			c.Icon = *patch.Icon
		}
		if patch.Color != nil {
			c.Color = *patch.Color
		}
	})
	if err != nil || !ok {
		return core.Category{}, ok, err
	}
	updated, _ := s.GetByID(id)
	return updated, true, nil
}

// Delete refuses to remove system categories: it reports failure through
// the boolean and leaves the collection untouched.
func (s *Categories) Delete(ctx context.Context, id string) (bool, error) {
	existing, found := s.GetByID(id)
	if !found || existing.IsSystem {
		return false, nil
	}
	_, ok, err := s.remove(ctx, id)
	return ok, err
}

// Lookup resolves a category id to its display values, falling back to
// placeholders when the reference dangles.
func (s *Categories) Lookup(id string) core.Category {
	if c, found := s.GetByID(id); found {
		return c
	}
	return core.Category{
		ID:    id,
		Name:  FallbackCategoryName,
		Icon:  FallbackCategoryIcon,
		Color: FallbackCategoryColor,
	}
}

func defaultExpenseCategories() []core.Category {
	return []core.Category{
		{ID: "cat-food", Name: "Food & Drinks", Icon: "utensils", Color: "#e53935", IsSystem: true},
		{ID: "cat-groceries", Name: "Groceries", Icon: "shopping-cart", Color: "#8bc34a", IsSystem: true},
		{ID: "cat-transport", Name: "Transport", Icon: "bus", Color: "#1e88e5", IsSystem: true},
		{ID: "cat-housing", Name: "Housing", Icon: "home", Color: "#6d4c41", IsSystem: true},
		{ID: "cat-health", Name: "Health", Icon: "heart-pulse", Color: "#d81b60", IsSystem: true},
		{ID: "cat-entertainment", Name: "Entertainment", Icon: "film", Color: "#8e24aa", IsSystem: true},
		{ID: "cat-shopping", Name: "Shopping", Icon: "shopping-bag", Color: "#fb8c00", IsSystem: true},
		{ID: "cat-education", Name: "Education", Icon: "book-open", Color: "#00897b", IsSystem: true},
		{ID: "cat-bills", Name: "Bills & Utilities", Icon: "receipt", Color: "#546e7a", IsSystem: true},
		{ID: "cat-other", Name: "Other", Icon: "circle-ellipsis", Color: "#9e9e9e", IsSystem: true},
	}
}

func defaultIncomeCategories() []core.Category {
	return []core.Category{
		{ID: "inc-salary", Name: "Salary", Icon: "banknote", Color: "#43a047", IsSystem: true},
		{ID: "inc-business", Name: "Business", Icon: "briefcase", Color: "#1e88e5", IsSystem: true},
		{ID: "inc-investment", Name: "Investments", Icon: "trending-up", Color: "#fdd835", IsSystem: true},
		{ID: "inc-gift", Name: "Gifts", Icon: "gift", Color: "#d81b60", IsSystem: true},
		{ID: "inc-other", Name: "Other", Icon: "circle-ellipsis", Color: "#9e9e9e", IsSystem: true},
	}
}
