// Package store implements the entity stores: each one owns an
// insertion-ordered collection of records and persists the entire
// collection through the KV collaborator on every mutation. Collections
// are small, so a full rewrite never leaves stale entries behind.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tally/internal/storage"
)

// collection is the shared base for all entity stores. id extracts the
// record's identifier, so lookups and merges stay generic.
type collection[T any] struct {
	mu  sync.Mutex
	kv  storage.KV
	key string
	id  func(T) string

	items  []T
	loaded bool
}

func newCollection[T any](kv storage.KV, key string, id func(T) string) collection[T] {
	return collection[T]{kv: kv, key: key, id: id}
}

// Load reads the persisted collection. seed is stored and used when
// nothing has been persisted yet.
func (c *collection[T]) load(ctx context.Context, seed []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, found, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("load %s: %w", c.key, err)
	}
	if !found {
		c.items = append([]T(nil), seed...)
		c.loaded = true
		if len(seed) == 0 {
			return nil
		}
		return c.persistLocked(ctx)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode %s: %w", c.key, err)
	}
	c.items = items
	c.loaded = true
	return nil
}

// persistLocked writes the whole collection. Callers must hold c.mu.
func (c *collection[T]) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(c.items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("persist %s: %w", c.key, err)
	}
	return nil
}

// All returns a copy of the collection in insertion order.
func (c *collection[T]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// GetByID looks a record up by id. Absence is reported through the
// boolean, never as an error.
func (c *collection[T]) GetByID(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.items {
		if c.id(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) append(ctx context.Context, item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
	if err := c.persistLocked(ctx); err != nil {
		c.items = c.items[:len(c.items)-1]
		return err
	}
	return nil
}

// mutate applies fn to the record matching id in place and persists.
// Returns the previous record and false when the id is absent (no-op).
func (c *collection[T]) mutate(ctx context.Context, id string, fn func(*T)) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) != id {
			continue
		}
		prev := c.items[i]
		fn(&c.items[i])
		if err := c.persistLocked(ctx); err != nil {
			c.items[i] = prev
			return prev, false, err
		}
		return prev, true, nil
	}
	var zero T
	return zero, false, nil
}

// remove deletes the record matching id and persists. Returns the removed
// record and false when the id is absent.
func (c *collection[T]) remove(ctx context.Context, id string) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) != id {
			continue
		}
		removed := c.items[i]
		rest := make([]T, 0, len(c.items)-1)
		rest = append(rest, c.items[:i]...)
		rest = append(rest, c.items[i+1:]...)
		prev := c.items
		c.items = rest
		if err := c.persistLocked(ctx); err != nil {
			c.items = prev
			var zero T
			return zero, false, err
		}
		return removed, true, nil
	}
	var zero T
	return zero, false, nil
}

// ClearAll replaces the collection with an empty one and persists.
func (c *collection[T]) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.items
	c.items = []T{}
	if err := c.persistLocked(ctx); err != nil {
		c.items = prev
		return err
	}
	return nil
}

// ReplaceAll overwrites the collection with items ("replace" restore).
func (c *collection[T]) ReplaceAll(ctx context.Context, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.items
	c.items = append([]T(nil), items...)
	if err := c.persistLocked(ctx); err != nil {
		c.items = prev
		return err
	}
	return nil
}

// MergeByID unions items into the collection, skipping ids already
// present ("merge" restore). Returns how many records were added.
func (c *collection[T]) MergeByID(ctx context.Context, items []T) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := make(map[string]struct{}, len(c.items))
	for _, item := range c.items {
		existing[c.id(item)] = struct{}{}
	}

	prev := c.items
	added := 0
	for _, item := range items {
		if _, ok := existing[c.id(item)]; ok {
			continue
		}
		c.items = append(c.items, item)
		existing[c.id(item)] = struct{}{}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := c.persistLocked(ctx); err != nil {
		c.items = prev
		return 0, err
	}
	return added, nil
}

// Key returns the collection's KV key.
func (c *collection[T]) Key() string {
	return c.key
}

// Encode marshals the current collection without persisting it. Used
// together with KV.SetAll for cross-store atomic writes.
func (c *collection[T]) Encode() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(c.items)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.key, err)
	}
	return data, nil
}

// Restore replaces the in-memory collection without persisting. It exists
// so a caller staging a multi-store write can roll back after a failed
// KV.SetAll.
func (c *collection[T]) Restore(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
}

// memAppend appends without persisting (staging for a batched write).
func (c *collection[T]) memAppend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

// memMutate applies fn in place without persisting.
func (c *collection[T]) memMutate(id string, fn func(*T)) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			prev := c.items[i]
			fn(&c.items[i])
			return prev, true
		}
	}
	var zero T
	return zero, false
}

// memRemove deletes without persisting.
func (c *collection[T]) memRemove(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.id(c.items[i]) == id {
			removed := c.items[i]
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return removed, true
		}
	}
	var zero T
	return zero, false
}
