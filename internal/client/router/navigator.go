package router

import "sync"

// Navigator owns the current path and the back stack.
type Navigator struct {
	mu      sync.Mutex
	current string
	history []string
}

func NewNavigator(initial string) *Navigator {
	return &Navigator{current: Clean(initial)}
}

func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Push moves to path, keeping the current entry reachable through Back.
func (n *Navigator) Push(path string) {
	path = Clean(path)
	n.mu.Lock()
	defer n.mu.Unlock()
	if path == n.current {
		return
	}
	n.history = append(n.history, n.current)
	n.current = path
}

// Replace moves to path without leaving the current entry in history.
func (n *Navigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = Clean(path)
}

// Reset moves to path and forgets all history. Used when a session ends so
// nothing authenticated stays reachable.
func (n *Navigator) Reset(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = Clean(path)
	n.history = nil
}

// Back pops one history entry.
func (n *Navigator) Back() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return n.current, false
	}
	n.current = n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]
	return n.current, true
}

func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.history...)
}
