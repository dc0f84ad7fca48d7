package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"feedtrack/internal/model"
)

// Memory is an in-process Repository used for local development
// (DATABASE_URL=memory) and tests. Ordering follows the Postgres queries.
type Memory struct {
	mu sync.Mutex

	nextID      int64
	users       map[int64]model.User
	projects    map[int64]model.Project
	enrollments map[int64]map[int64]bool
	feedback    map[int64]model.Feedback
	labels      map[int64]model.Label
	attached    map[int64]map[int64]bool
	comments    map[int64]model.Comment
	revoked     map[string]time.Time
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		users:       map[int64]model.User{},
		projects:    map[int64]model.Project{},
		enrollments: map[int64]map[int64]bool{},
		feedback:    map[int64]model.Feedback{},
		labels:      map[int64]model.Label{},
		attached:    map[int64]map[int64]bool{},
		comments:    map[int64]model.Comment{},
		revoked:     map[string]time.Time{},
	}
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func sortedByID[T any](values map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(values))
	for id, value := range values {
		if keep == nil || keep(value) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, values[id])
	}
	return out
}

func (m *Memory) CreateUser(_ context.Context, user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || strings.EqualFold(existing.Email, user.Email) {
			return model.User{}, ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = m.id()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return user, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByID(m.users, nil), nil
}

func (m *Memory) ListProjects(_ context.Context) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByID(m.projects, nil), nil
}

func (m *Memory) ListProjectsForUser(_ context.Context, userID int64) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByID(m.projects, func(p model.Project) bool {
		return m.enrollments[p.ID][userID]
	}), nil
}

func (m *Memory) GetProject(_ context.Context, id int64) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := m.projects[id]
	if !ok {
		return model.Project{}, ErrNotFound
	}
	return project, nil
}

func (m *Memory) CreateProject(_ context.Context, project model.Project) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[project.OwnerID]; !ok {
		return model.Project{}, ErrInvalidReference
	}
	now := time.Now().UTC()
	project.ID = m.id()
	project.CreatedAt = now
	project.UpdatedAt = now
	m.projects[project.ID] = project
	return project, nil
}

func (m *Memory) UpdateProject(_ context.Context, project model.Project) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[project.ID]
	if !ok {
		return model.Project{}, ErrNotFound
	}
	existing.Name = project.Name
	existing.Description = project.Description
	existing.UpdatedAt = time.Now().UTC()
	m.projects[project.ID] = existing
	return existing, nil
}

func (m *Memory) DeleteProject(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.projects, id)
	delete(m.enrollments, id)
	for fid, feedback := range m.feedback {
		if feedback.ProjectID == id {
			m.deleteFeedbackLocked(fid)
		}
	}
	for lid, label := range m.labels {
		if label.ProjectID == id {
			delete(m.labels, lid)
		}
	}
	return nil
}

func (m *Memory) IsEnrolled(_ context.Context, projectID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[projectID][userID], nil
}

func (m *Memory) ListEnrollments(_ context.Context, projectID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userIDs := []int64{}
	for userID := range m.enrollments[projectID] {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	return userIDs, nil
}

func (m *Memory) Enroll(_ context.Context, projectID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[projectID]; !ok {
		return ErrInvalidReference
	}
	if _, ok := m.users[userID]; !ok {
		return ErrInvalidReference
	}
	if m.enrollments[projectID] == nil {
		m.enrollments[projectID] = map[int64]bool{}
	}
	m.enrollments[projectID][userID] = true
	return nil
}

func (m *Memory) Unenroll(_ context.Context, projectID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enrollments[projectID][userID] {
		return ErrNotFound
	}
	delete(m.enrollments[projectID], userID)
	return nil
}

func (m *Memory) ListFeedback(_ context.Context, projectID int64) ([]model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedByID(m.feedback, func(f model.Feedback) bool { return f.ProjectID == projectID }), nil
}

func (m *Memory) GetFeedback(_ context.Context, projectID, feedbackID int64) (model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	feedback, ok := m.feedback[feedbackID]
	if !ok || feedback.ProjectID != projectID {
		return model.Feedback{}, ErrNotFound
	}
	return feedback, nil
}

func (m *Memory) CreateFeedback(_ context.Context, feedback model.Feedback) (model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[feedback.ProjectID]; !ok {
		return model.Feedback{}, ErrInvalidReference
	}
	if _, ok := m.users[feedback.CreatorID]; !ok {
		return model.Feedback{}, ErrInvalidReference
	}
	now := time.Now().UTC()
	feedback.ID = m.id()
	feedback.CreatedAt = now
	feedback.UpdatedAt = now
	m.feedback[feedback.ID] = feedback
	return feedback, nil
}

func (m *Memory) UpdateFeedback(_ context.Context, feedback model.Feedback) (model.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.feedback[feedback.ID]
	if !ok || existing.ProjectID != feedback.ProjectID {
		return model.Feedback{}, ErrNotFound
	}
	existing.Title = feedback.Title
	existing.Description = feedback.Description
	existing.Status = feedback.Status
	existing.Priority = feedback.Priority
	existing.UpdatedAt = time.Now().UTC()
	m.feedback[existing.ID] = existing
	return existing, nil
}

func (m *Memory) DeleteFeedback(_ context.Context, projectID, feedbackID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.feedback[feedbackID]
	if !ok || existing.ProjectID != projectID {
		return ErrNotFound
	}
	m.deleteFeedbackLocked(feedbackID)
	return nil
}

func (m *Memory) deleteFeedbackLocked(feedbackID int64) {
	delete(m.feedback, feedbackID)
	delete(m.attached, feedbackID)
	for cid, comment := range m.comments {
		if comment.FeedbackID == feedbackID {
			delete(m.comments, cid)
		}
	}
}

func (m *Memory) ListFeedbackLabels(_ context.Context, feedbackID int64) ([]model.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := sortedByID(m.labels, func(l model.Label) bool { return m.attached[feedbackID][l.ID] })
	sort.SliceStable(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	return labels, nil
}

func (m *Memory) AttachLabel(_ context.Context, feedbackID int64, label model.Label) (model.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.feedback[feedbackID]; !ok {
		return model.Label{}, ErrInvalidReference
	}
	found := false
	for id, existing := range m.labels {
		if existing.ProjectID == label.ProjectID && existing.Name == label.Name {
			existing.Color = label.Color
			m.labels[id] = existing
			label = existing
			found = true
			break
		}
	}
	if !found {
		label.ID = m.id()
		m.labels[label.ID] = label
	}
	if m.attached[feedbackID] == nil {
		m.attached[feedbackID] = map[int64]bool{}
	}
	m.attached[feedbackID][label.ID] = true
	return label, nil
}

func (m *Memory) DetachLabel(_ context.Context, feedbackID, labelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached[feedbackID][labelID] {
		return ErrNotFound
	}
	delete(m.attached[feedbackID], labelID)
	return nil
}

func (m *Memory) withUsername(comment model.Comment) model.Comment {
	comment.Username = m.users[comment.UserID].Username
	return comment
}

func (m *Memory) ListComments(_ context.Context, feedbackID int64) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comments := sortedByID(m.comments, func(c model.Comment) bool { return c.FeedbackID == feedbackID })
	for i := range comments {
		comments[i] = m.withUsername(comments[i])
	}
	return comments, nil
}

func (m *Memory) GetComment(_ context.Context, feedbackID, commentID int64) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[commentID]
	if !ok || comment.FeedbackID != feedbackID {
		return model.Comment{}, ErrNotFound
	}
	return m.withUsername(comment), nil
}

func (m *Memory) CreateComment(_ context.Context, comment model.Comment) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.feedback[comment.FeedbackID]; !ok {
		return model.Comment{}, ErrInvalidReference
	}
	if _, ok := m.users[comment.UserID]; !ok {
		return model.Comment{}, ErrInvalidReference
	}
	comment.ID = m.id()
	comment.CreatedAt = time.Now().UTC()
	m.comments[comment.ID] = comment
	return m.withUsername(comment), nil
}

func (m *Memory) UpdateComment(_ context.Context, comment model.Comment) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.comments[comment.ID]
	if !ok || existing.FeedbackID != comment.FeedbackID {
		return model.Comment{}, ErrNotFound
	}
	existing.Content = comment.Content
	m.comments[existing.ID] = existing
	return m.withUsername(existing), nil
}

func (m *Memory) DeleteComment(_ context.Context, feedbackID, commentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.comments[commentID]
	if !ok || existing.FeedbackID != feedbackID {
		return ErrNotFound
	}
	delete(m.comments, commentID)
	return nil
}

func (m *Memory) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	return nil
}

func (m *Memory) IsTokenRevoked(_ context.Context, jti string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiresAt, ok := m.revoked[jti]
	return ok && expiresAt.After(now), nil
}

func (m *Memory) PurgeRevokedTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for jti, expiresAt := range m.revoked {
		if !expiresAt.After(now) {
			delete(m.revoked, jti)
			purged++
		}
	}
	return purged, nil
}
