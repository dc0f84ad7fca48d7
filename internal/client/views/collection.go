// Package views holds the client-side state behind each screen. Every
// controller is pessimistic: local state changes only after the server
// confirms, and responses for a view that is no longer current are dropped.
package views

import (
	"errors"
	"slices"

	"feedtrack/internal/client/api"
)

// ErrStale reports that a response arrived for a view identity or load
// generation that has since been replaced. The caller should ignore it.
var ErrStale = errors.New("views: response is no longer current")

// ErrNoSelection is returned by operations that need an open view identity.
var ErrNoSelection = errors.New("views: nothing selected")

type collection[T any] struct {
	key   func(T) int64
	items []T
}

func (c *collection[T]) set(items []T) {
	c.items = slices.Clone(items)
}

// upsert replaces the item with the same id or appends it.
func (c *collection[T]) upsert(item T) {
	id := c.key(item)
	for i := range c.items {
		if c.key(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

func (c *collection[T]) remove(id int64) {
	c.items = slices.DeleteFunc(c.items, func(item T) bool { return c.key(item) == id })
}

func (c *collection[T]) snapshot() []T {
	return slices.Clone(c.items)
}

func (c *collection[T]) reset() {
	c.items = nil
}

func projectID(p api.Project) int64   { return p.ID }
func feedbackID(f api.Feedback) int64 { return f.ID }
func labelID(l api.Label) int64       { return l.ID }
func commentID(c api.Comment) int64   { return c.ID }
