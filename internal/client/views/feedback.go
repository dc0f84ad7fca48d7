package views

import (
	"context"
	"sync"

	"feedtrack/internal/client/api"
)

type FeedbackAPI interface {
	ListFeedback(ctx context.Context, projectID int64) ([]api.Feedback, error)
	CreateFeedback(ctx context.Context, projectID int64, in api.FeedbackInput) (*api.Feedback, error)
	UpdateFeedback(ctx context.Context, projectID, feedbackID int64, in api.FeedbackInput) (*api.Feedback, error)
	DeleteFeedback(ctx context.Context, projectID, feedbackID int64) error
}

// FeedbackList owns the feedback of the selected project.
type FeedbackList struct {
	client FeedbackAPI

	mu        sync.Mutex
	projectID int64
	gen       uint64
	loaded    bool
	items     collection[api.Feedback]
}

func NewFeedbackList(client FeedbackAPI) *FeedbackList {
	return &FeedbackList{
		client: client,
		items:  collection[api.Feedback]{key: feedbackID},
	}
}

// Open switches the list to projectID and fetches it. Items from the
// previous project are dropped immediately.
func (l *FeedbackList) Open(ctx context.Context, projectID int64) error {
	l.mu.Lock()
	if projectID != l.projectID {
		l.projectID = projectID
		l.items.reset()
		l.loaded = false
	}
	l.mu.Unlock()
	return l.Load(ctx)
}

// Load refetches the current project's feedback.
func (l *FeedbackList) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.projectID == 0 {
		l.mu.Unlock()
		return ErrNoSelection
	}
	l.gen++
	gen, projectID := l.gen, l.projectID
	l.mu.Unlock()

	items, err := l.client.ListFeedback(ctx, projectID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || projectID != l.projectID {
		return ErrStale
	}
	if err != nil {
		return err
	}
	l.items.set(items)
	l.loaded = true
	return nil
}

// Close deselects the project, invalidating responses still in flight.
func (l *FeedbackList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.projectID = 0
	l.gen++
	l.loaded = false
	l.items.reset()
}

func (l *FeedbackList) ProjectID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.projectID
}

func (l *FeedbackList) Items() []api.Feedback {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.snapshot()
}

func (l *FeedbackList) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *FeedbackList) target() (int64, uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.projectID == 0 {
		return 0, 0, ErrNoSelection
	}
	return l.projectID, l.gen, nil
}

func (l *FeedbackList) merge(projectID int64, gen uint64, apply func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if projectID != l.projectID || gen != l.gen {
		return ErrStale
	}
	apply()
	return nil
}

func (l *FeedbackList) Create(ctx context.Context, in api.FeedbackInput) (*api.Feedback, error) {
	projectID, gen, err := l.target()
	if err != nil {
		return nil, err
	}
	created, err := l.client.CreateFeedback(ctx, projectID, in)
	if err != nil {
		return nil, err
	}
	return created, l.merge(projectID, gen, func() { l.items.upsert(*created) })
}

func (l *FeedbackList) Update(ctx context.Context, feedbackID int64, in api.FeedbackInput) (*api.Feedback, error) {
	projectID, gen, err := l.target()
	if err != nil {
		return nil, err
	}
	updated, err := l.client.UpdateFeedback(ctx, projectID, feedbackID, in)
	if err != nil {
		return nil, err
	}
	return updated, l.merge(projectID, gen, func() { l.items.upsert(*updated) })
}

func (l *FeedbackList) Delete(ctx context.Context, feedbackID int64) error {
	projectID, gen, err := l.target()
	if err != nil {
		return err
	}
	if err := l.client.DeleteFeedback(ctx, projectID, feedbackID); err != nil {
		return err
	}
	return l.merge(projectID, gen, func() { l.items.remove(feedbackID) })
}
