// Package authgate validates the stored session against the server once per
// navigation and produces the authenticated signal the router consumes.
package authgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"feedtrack/internal/client/api"
)

type State int

const (
	StateUnknown State = iota
	StateChecking
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

func (s State) terminal() bool {
	return s == StateAuthenticated || s == StateUnauthenticated
}

// Checker performs the identity round-trip for a given token.
type Checker interface {
	CheckIdentity(ctx context.Context, token string) (*api.User, error)
}

// Tokens is the credential store as seen by the gate.
type Tokens interface {
	Get(ctx context.Context) (string, bool)
	ClearIf(ctx context.Context, expected string) (bool, error)
	Subscribe(fn func(token string)) func()
}

const DefaultTimeout = 10 * time.Second

type flight struct {
	path  string
	token string
	done  chan struct{}
}

type Gate struct {
	checker Checker
	tokens  Tokens
	timeout time.Duration
	logger  *zap.Logger
	onEvict func()

	unsubscribe func()

	mu        sync.Mutex
	state     State
	hasToken  bool
	seq       uint64
	checked   bool
	lastPath  string
	lastToken string
	inflight  *flight
	requests  int
}

type Option func(*Gate)

func WithTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithEvictHandler sets the reaction to a failed check that cleared the
// session, typically a history-replacing redirect to the login view.
func WithEvictHandler(fn func()) Option {
	return func(g *Gate) { g.onEvict = fn }
}

func New(checker Checker, tokens Tokens, opts ...Option) *Gate {
	g := &Gate{
		checker: checker,
		tokens:  tokens,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	_, g.hasToken = tokens.Get(context.Background())
	g.unsubscribe = tokens.Subscribe(g.tokenChanged)
	return g
}

// Close detaches the gate from the credential store.
func (g *Gate) Close() {
	g.unsubscribe()
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsLoggedIn is optimistic until a check resolves: it reports whether a
// token exists while the state is unknown or checking.
func (g *Gate) IsLoggedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateAuthenticated:
		return true
	case StateUnauthenticated:
		return false
	default:
		return g.hasToken
	}
}

// Requests reports how many identity round-trips the gate has issued.
func (g *Gate) Requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

// tokenChanged supersedes any in-flight check and forgets the last result so
// the next navigation re-validates.
func (g *Gate) tokenChanged(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.checked = false
	g.inflight = nil
	g.hasToken = token != ""
	switch {
	case token == "":
		g.state = StateUnauthenticated
	case g.state == StateUnauthenticated || g.state == StateChecking:
		g.state = StateUnknown
	}
}

// Check validates the session for a navigation to path and returns the
// resulting state. Repeated calls for the same path and token reuse the
// previous result or join the check already in flight.
func (g *Gate) Check(ctx context.Context, path string) State {
	token, ok := g.tokens.Get(ctx)

	g.mu.Lock()
	if g.checked && g.state.terminal() && path == g.lastPath && token == g.lastToken {
		state := g.state
		g.mu.Unlock()
		return state
	}
	if fl := g.inflight; fl != nil && fl.path == path && fl.token == token {
		g.mu.Unlock()
		select {
		case <-fl.done:
		case <-ctx.Done():
		}
		return g.State()
	}

	g.seq++
	seq := g.seq
	g.lastPath = path
	g.lastToken = token
	g.checked = false
	if !ok {
		g.state = StateUnauthenticated
		g.checked = true
		g.inflight = nil
		g.mu.Unlock()
		return StateUnauthenticated
	}
	fl := &flight{path: path, token: token, done: make(chan struct{})}
	g.inflight = fl
	g.state = StateChecking
	g.requests++
	g.mu.Unlock()
	defer close(fl.done)

	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	_, err := g.checker.CheckIdentity(checkCtx, token)
	cancel()

	g.mu.Lock()
	if seq != g.seq {
		state := g.state
		g.mu.Unlock()
		g.logger.Debug("discarding superseded session check", zap.Uint64("seq", seq), zap.String("path", path))
		return state
	}
	g.inflight = nil
	if err != nil && ctx.Err() != nil {
		// The caller abandoned this navigation; that says nothing about the
		// session.
		g.state = StateUnknown
		g.mu.Unlock()
		return StateUnknown
	}
	if err == nil || errors.Is(err, api.ErrInvalidResponse) {
		g.state = StateAuthenticated
		g.checked = true
		g.mu.Unlock()
		return StateAuthenticated
	}
	g.state = StateUnauthenticated
	g.checked = true
	g.mu.Unlock()

	g.logger.Info("session check failed; clearing token", zap.String("path", path), zap.Error(err))
	cleared, clearErr := g.tokens.ClearIf(context.WithoutCancel(ctx), token)
	if clearErr != nil {
		g.logger.Warn("token clear failed", zap.Error(clearErr))
	}
	if cleared && g.onEvict != nil {
		g.onEvict()
	}
	return g.State()
}

// MarkChecked records path as already validated for the current token, so a
// redirect that lands on it does not trigger a second round-trip.
func (g *Gate) MarkChecked(path string) {
	token, _ := g.tokens.Get(context.Background())
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.checked || token != g.lastToken || !g.state.terminal() {
		return
	}
	g.lastPath = path
}
