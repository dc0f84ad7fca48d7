package views

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"feedtrack/internal/client/api"
)

type DetailAPI interface {
	GetFeedback(ctx context.Context, projectID, feedbackID int64) (*api.Feedback, error)
	UpdateFeedback(ctx context.Context, projectID, feedbackID int64, in api.FeedbackInput) (*api.Feedback, error)
	DeleteFeedback(ctx context.Context, projectID, feedbackID int64) error
	ListLabels(ctx context.Context, projectID, feedbackID int64) ([]api.Label, error)
	AttachLabel(ctx context.Context, projectID, feedbackID int64, in api.LabelInput) (*api.Label, error)
	DetachLabel(ctx context.Context, projectID, feedbackID, labelID int64) error
	ListComments(ctx context.Context, projectID, feedbackID int64) ([]api.Comment, error)
	CreateComment(ctx context.Context, projectID, feedbackID int64, in api.CommentInput) (*api.Comment, error)
	UpdateComment(ctx context.Context, projectID, feedbackID, commentID int64, in api.CommentInput) (*api.Comment, error)
	DeleteComment(ctx context.Context, projectID, feedbackID, commentID int64) error
}

type detailKey struct {
	projectID  int64
	feedbackID int64
}

// FeedbackDetail owns one feedback item with its labels and comments.
type FeedbackDetail struct {
	client DetailAPI

	mu       sync.Mutex
	key      detailKey
	gen      uint64
	feedback *api.Feedback
	labels   collection[api.Label]
	comments collection[api.Comment]
}

func NewFeedbackDetail(client DetailAPI) *FeedbackDetail {
	return &FeedbackDetail{
		client:   client,
		labels:   collection[api.Label]{key: labelID},
		comments: collection[api.Comment]{key: commentID},
	}
}

// Open selects a feedback item and fetches it together with its labels and
// comments. Nothing is applied unless all three succeed.
func (d *FeedbackDetail) Open(ctx context.Context, projectID, feedbackID int64) error {
	key := detailKey{projectID, feedbackID}
	d.mu.Lock()
	if key != d.key {
		d.key = key
		d.clearLocked()
	}
	d.mu.Unlock()
	return d.Load(ctx)
}

func (d *FeedbackDetail) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.key.feedbackID == 0 {
		d.mu.Unlock()
		return ErrNoSelection
	}
	d.gen++
	gen, key := d.gen, d.key
	d.mu.Unlock()

	var (
		feedback *api.Feedback
		labels   []api.Label
		comments []api.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feedback, err = d.client.GetFeedback(gctx, key.projectID, key.feedbackID)
		return err
	})
	g.Go(func() error {
		var err error
		labels, err = d.client.ListLabels(gctx, key.projectID, key.feedbackID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = d.client.ListComments(gctx, key.projectID, key.feedbackID)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || key != d.key {
		return ErrStale
	}
	if err != nil {
		return err
	}
	d.feedback = feedback
	d.labels.set(labels)
	d.comments.set(comments)
	return nil
}

// Close deselects the item, invalidating responses still in flight.
func (d *FeedbackDetail) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.key = detailKey{}
	d.clearLocked()
}

func (d *FeedbackDetail) clearLocked() {
	d.gen++
	d.feedback = nil
	d.labels.reset()
	d.comments.reset()
}

func (d *FeedbackDetail) Selected() (projectID, feedbackID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.key.projectID, d.key.feedbackID
}

// Feedback returns a copy of the loaded item, or nil before the first load.
func (d *FeedbackDetail) Feedback() *api.Feedback {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.feedback == nil {
		return nil
	}
	f := *d.feedback
	return &f
}

func (d *FeedbackDetail) Labels() []api.Label {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.labels.snapshot()
}

func (d *FeedbackDetail) Comments() []api.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.comments.snapshot()
}

func (d *FeedbackDetail) target() (detailKey, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.key.feedbackID == 0 {
		return detailKey{}, 0, ErrNoSelection
	}
	return d.key, d.gen, nil
}

func (d *FeedbackDetail) merge(key detailKey, gen uint64, apply func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if key != d.key || gen != d.gen {
		return ErrStale
	}
	apply()
	return nil
}

func (d *FeedbackDetail) Update(ctx context.Context, in api.FeedbackInput) (*api.Feedback, error) {
	key, gen, err := d.target()
	if err != nil {
		return nil, err
	}
	updated, err := d.client.UpdateFeedback(ctx, key.projectID, key.feedbackID, in)
	if err != nil {
		return nil, err
	}
	return updated, d.merge(key, gen, func() {
		f := *updated
		d.feedback = &f
	})
}

// Delete removes the open item. On success the view is closed; the caller
// navigates back and refetches the list.
func (d *FeedbackDetail) Delete(ctx context.Context) error {
	key, gen, err := d.target()
	if err != nil {
		return err
	}
	if err := d.client.DeleteFeedback(ctx, key.projectID, key.feedbackID); err != nil {
		return err
	}
	return d.merge(key, gen, func() {
		d.key = detailKey{}
		d.clearLocked()
	})
}

func (d *FeedbackDetail) AttachLabel(ctx context.Context, in api.LabelInput) (*api.Label, error) {
	key, gen, err := d.target()
	if err != nil {
		return nil, err
	}
	label, err := d.client.AttachLabel(ctx, key.projectID, key.feedbackID, in)
	if err != nil {
		return nil, err
	}
	return label, d.merge(key, gen, func() { d.labels.upsert(*label) })
}

func (d *FeedbackDetail) DetachLabel(ctx context.Context, labelID int64) error {
	key, gen, err := d.target()
	if err != nil {
		return err
	}
	if err := d.client.DetachLabel(ctx, key.projectID, key.feedbackID, labelID); err != nil {
		return err
	}
	return d.merge(key, gen, func() { d.labels.remove(labelID) })
}

func (d *FeedbackDetail) AddComment(ctx context.Context, in api.CommentInput) (*api.Comment, error) {
	key, gen, err := d.target()
	if err != nil {
		return nil, err
	}
	comment, err := d.client.CreateComment(ctx, key.projectID, key.feedbackID, in)
	if err != nil {
		return nil, err
	}
	return comment, d.merge(key, gen, func() { d.comments.upsert(*comment) })
}

func (d *FeedbackDetail) EditComment(ctx context.Context, commentID int64, in api.CommentInput) (*api.Comment, error) {
	key, gen, err := d.target()
	if err != nil {
		return nil, err
	}
	comment, err := d.client.UpdateComment(ctx, key.projectID, key.feedbackID, commentID, in)
	if err != nil {
		return nil, err
	}
	return comment, d.merge(key, gen, func() { d.comments.upsert(*comment) })
}

func (d *FeedbackDetail) DeleteComment(ctx context.Context, commentID int64) error {
	key, gen, err := d.target()
	if err != nil {
		return err
	}
	if err := d.client.DeleteComment(ctx, key.projectID, key.feedbackID, commentID); err != nil {
		return err
	}
	return d.merge(key, gen, func() { d.comments.remove(commentID) })
}
