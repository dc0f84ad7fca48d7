// Package app assembles the client: one Session per process owns the
// credential store, the auth gate, navigation and the view controllers.
package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"feedtrack/internal/client/api"
	"feedtrack/internal/client/authgate"
	"feedtrack/internal/client/credentials"
	"feedtrack/internal/client/router"
	"feedtrack/internal/client/session"
	"feedtrack/internal/client/views"
)

type Session struct {
	store  *credentials.Store
	client *api.Client
	gate   *authgate.Gate
	nav    *router.Navigator
	logger *zap.Logger

	Projects *views.Projects
	Feedback *views.FeedbackList
	Detail   *views.FeedbackDetail

	unsubscribe func()

	mu  sync.Mutex
	sel router.Selection
}

type options struct {
	logger         *zap.Logger
	httpClient     *http.Client
	requestTimeout time.Duration
	checkTimeout   time.Duration
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(o *options) { o.requestTimeout = timeout }
}

func WithCheckTimeout(timeout time.Duration) Option {
	return func(o *options) { o.checkTimeout = timeout }
}

func New(baseURL string, store *credentials.Store, opts ...Option) *Session {
	o := options{logger: zap.NewNop(), checkTimeout: authgate.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []api.Option{api.WithLogger(o.logger.Named("api"))}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	if o.requestTimeout > 0 {
		clientOpts = append(clientOpts, api.WithTimeout(o.requestTimeout))
	}
	client := api.New(baseURL, store, clientOpts...)

	s := &Session{
		store:    store,
		client:   client,
		nav:      router.NewNavigator(router.PathProjects),
		logger:   o.logger,
		Projects: views.NewProjects(client),
		Feedback: views.NewFeedbackList(client),
		Detail:   views.NewFeedbackDetail(client),
	}
	s.gate = authgate.New(client, store,
		authgate.WithTimeout(o.checkTimeout),
		authgate.WithLogger(o.logger.Named("authgate")),
		authgate.WithEvictHandler(s.endSession),
	)
	client.SetUnauthorizedHandler(s.endSession)
	s.unsubscribe = store.Subscribe(func(token string) {
		if token == "" {
			s.endSession()
		}
	})
	return s
}

// Close detaches the session from the credential store.
func (s *Session) Close() {
	s.unsubscribe()
	s.gate.Close()
}

func (s *Session) Client() *api.Client {
	return s.client
}

func (s *Session) Gate() *authgate.Gate {
	return s.gate
}

func (s *Session) Navigator() *router.Navigator {
	return s.nav
}

// Identity decodes the stored token for presentation. It is nil when logged
// out or when the token cannot be decoded.
func (s *Session) Identity(ctx context.Context) *session.Identity {
	token, ok := s.store.Get(ctx)
	if !ok {
		return nil
	}
	return session.Resolve(token)
}

func (s *Session) Affordances(ctx context.Context) router.Affordances {
	return router.AffordancesFor(s.Identity(ctx))
}

func (s *Session) Selection() router.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// endSession drops every trace of the authenticated session: history,
// selection and view state. It is safe to call repeatedly.
func (s *Session) endSession() {
	s.mu.Lock()
	s.sel = router.Selection{}
	s.mu.Unlock()

	s.nav.Reset(router.PathLogin)
	s.Projects.Reset()
	s.Feedback.Close()
	s.Detail.Close()
}

// Navigate pushes path and returns the view to render.
func (s *Session) Navigate(ctx context.Context, path string) router.Decision {
	s.nav.Push(path)
	return s.Current(ctx)
}

// Current validates the session for the current path and resolves the view,
// following redirects with history replacement.
func (s *Session) Current(ctx context.Context) router.Decision {
	var decision router.Decision
	for range 3 {
		path := s.nav.Current()
		s.gate.Check(ctx, path)
		decision = router.Resolve(s.gate.IsLoggedIn(), path, s.Selection())
		if decision.Redirect == "" || decision.Redirect == path {
			return decision
		}
		s.logger.Debug("redirect", zap.String("from", path), zap.String("to", decision.Redirect))
		s.nav.Replace(decision.Redirect)
		s.gate.MarkChecked(decision.Redirect)
	}
	return decision
}

// Refresh fetches the collection behind the decided view.
func (s *Session) Refresh(ctx context.Context, decision router.Decision) error {
	switch decision.View {
	case router.ViewProjects:
		return s.Projects.Load(ctx)
	case router.ViewFeedbackList:
		return s.Feedback.Open(ctx, decision.Selection.ProjectID)
	case router.ViewFeedbackDetail:
		return s.Detail.Open(ctx, decision.Selection.ProjectID, decision.Selection.FeedbackID)
	default:
		return nil
	}
}

func (s *Session) Login(ctx context.Context, username, password string) (router.Decision, error) {
	token, err := s.client.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return router.Decision{}, err
	}
	if err := s.store.Set(ctx, token); err != nil {
		return router.Decision{}, err
	}
	s.mu.Lock()
	s.sel = router.Selection{}
	s.mu.Unlock()
	s.nav.Replace(router.PathProjects)
	return s.Current(ctx), nil
}

func (s *Session) Register(ctx context.Context, reg api.Registration) (router.Decision, error) {
	if err := s.client.Register(ctx, reg); err != nil {
		return router.Decision{}, err
	}
	return s.Navigate(ctx, router.PathLogin), nil
}

// Logout tells the server to revoke the token, then forgets it locally
// whether or not the server call succeeded.
func (s *Session) Logout(ctx context.Context) router.Decision {
	if _, ok := s.store.Get(ctx); ok {
		if err := s.client.Logout(ctx); err != nil {
			s.logger.Warn("server logout failed", zap.Error(err))
		}
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("token clear failed", zap.Error(err))
	}
	s.endSession()
	return s.Current(ctx)
}

// OpenProject selects a project and loads its feedback.
func (s *Session) OpenProject(ctx context.Context, projectID int64) (router.Decision, error) {
	s.mu.Lock()
	s.sel = router.Selection{ProjectID: projectID}
	s.mu.Unlock()
	s.Detail.Close()

	decision := s.Current(ctx)
	if decision.View != router.ViewFeedbackList {
		return decision, nil
	}
	return decision, s.Feedback.Open(ctx, projectID)
}

// OpenFeedback selects a feedback item of the open project and loads it.
func (s *Session) OpenFeedback(ctx context.Context, feedbackID int64) (router.Decision, error) {
	s.mu.Lock()
	if s.sel.ProjectID == 0 {
		s.mu.Unlock()
		return s.Current(ctx), views.ErrNoSelection
	}
	s.sel.FeedbackID = feedbackID
	projectID := s.sel.ProjectID
	s.mu.Unlock()

	decision := s.Current(ctx)
	if decision.View != router.ViewFeedbackDetail {
		return decision, nil
	}
	return decision, s.Detail.Open(ctx, projectID, feedbackID)
}

// ResolveUser turns a user reference typed by a manager into an account id. A
// positive number is taken as the id; anything else is looked up as a
// username.
func (s *Session) ResolveUser(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if id <= 0 {
			return 0, errors.New("user id must be a positive number")
		}
		return id, nil
	}
	user, err := s.client.FindUser(ctx, ref)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Back clears one level of selection and refetches the parent view.
func (s *Session) Back(ctx context.Context) (router.Decision, error) {
	s.mu.Lock()
	prev := s.sel
	s.sel = s.sel.Back()
	s.mu.Unlock()

	switch {
	case prev.FeedbackID != 0:
		s.Detail.Close()
	case prev.ProjectID != 0:
		s.Feedback.Close()
	}

	decision := s.Current(ctx)
	err := s.Refresh(ctx, decision)
	if errors.Is(err, views.ErrStale) {
		err = nil
	}
	return decision, err
}
