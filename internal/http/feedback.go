package http

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"feedtrack/internal/model"
	"feedtrack/internal/repository"
)

type feedbackRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
}

type feedbackResponse struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	CreatorID   int64     `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type labelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type labelResponse struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	ID         int64     `json:"id"`
	FeedbackID int64     `json:"feedback_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultLabelColor = "#808080"

func toFeedbackResponse(feedback model.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:          feedback.ID,
		ProjectID:   feedback.ProjectID,
		CreatorID:   feedback.CreatorID,
		Title:       feedback.Title,
		Description: feedback.Description,
		Status:      string(feedback.Status),
		Priority:    string(feedback.Priority),
		CreatedAt:   feedback.CreatedAt,
		UpdatedAt:   feedback.UpdatedAt,
	}
}

func toLabelResponse(label model.Label) labelResponse {
	return labelResponse{ID: label.ID, ProjectID: label.ProjectID, Name: label.Name, Color: label.Color}
}

func toCommentResponse(comment model.Comment) commentResponse {
	return commentResponse{
		ID:         comment.ID,
		FeedbackID: comment.FeedbackID,
		UserID:     comment.UserID,
		Username:   comment.Username,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
}

// validate returns the status and priority to store, falling back to the
// given values for fields the request omits, and an error code or "" when the
// request is acceptable.
func (req *feedbackRequest) validate(status model.Status, priority model.Priority) (model.Status, model.Priority, string) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "", "", "missing_title"
	}
	if req.Status != "" {
		parsed, ok := model.ParseStatus(req.Status)
		if !ok {
			return "", "", "invalid_status"
		}
		status = parsed
	}
	if req.Priority != "" {
		parsed, ok := model.ParsePriority(req.Priority)
		if !ok {
			return "", "", "invalid_priority"
		}
		priority = parsed
	}
	return status, priority, ""
}

// feedbackAccess resolves project access, then the feedback item scoped to
// that project.
func (s *Server) feedbackAccess(w http.ResponseWriter, r *http.Request) (model.Feedback, bool) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return model.Feedback{}, false
	}
	feedbackID, ok := pathID(r, "feedbackId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_feedback_id")
		return model.Feedback{}, false
	}
	feedback, err := s.store.GetFeedback(r.Context(), project.ID, feedbackID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback_not_found")
			return model.Feedback{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Feedback{}, false
	}
	return feedback, true
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	items, err := s.store.ListFeedback(r.Context(), project.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]feedbackResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toFeedbackResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateFeedback(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	status, priority, code := req.validate(model.StatusOpen, model.PriorityMedium)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	var description string
	if req.Description != nil {
		description = *req.Description
	}
	feedback, err := s.store.CreateFeedback(r.Context(), model.Feedback{
		ProjectID:   project.ID,
		CreatorID:   userID(claimsFromContext(r.Context())),
		Title:       req.Title,
		Description: description,
		Status:      status,
		Priority:    priority,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, toFeedbackResponse(feedback))
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackResponse(feedback))
}

func canModifyFeedback(r *http.Request, feedback model.Feedback) bool {
	claims := claimsFromContext(r.Context())
	return isManager(claims) || userID(claims) == feedback.CreatorID
}

func (s *Server) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	if !canModifyFeedback(r, feedback) {
		writeError(w, http.StatusForbidden, "not_feedback_owner")
		return
	}
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	status, priority, code := req.validate(feedback.Status, feedback.Priority)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	feedback.Title = req.Title
	if req.Description != nil {
		feedback.Description = *req.Description
	}
	feedback.Status = status
	feedback.Priority = priority
	updated, err := s.store.UpdateFeedback(r.Context(), feedback)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackResponse(updated))
}

func (s *Server) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	if !canModifyFeedback(r, feedback) {
		writeError(w, http.StatusForbidden, "not_feedback_owner")
		return
	}
	if err := s.store.DeleteFeedback(r.Context(), feedback.ProjectID, feedback.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "feedback_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	labels, err := s.store.ListFeedbackLabels(r.Context(), feedback.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]labelResponse, 0, len(labels))
	for _, label := range labels {
		out = append(out, toLabelResponse(label))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAttachLabel(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	var req labelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Color = strings.TrimSpace(req.Color)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	if req.Color == "" {
		req.Color = defaultLabelColor
	}
	if !colorPattern.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "invalid_color")
		return
	}
	label, err := s.store.AttachLabel(r.Context(), feedback.ID, model.Label{
		ProjectID: feedback.ProjectID,
		Name:      req.Name,
		Color:     req.Color,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, toLabelResponse(label))
}

func (s *Server) handleDetachLabel(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	labelID, ok := pathID(r, "labelId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_label_id")
		return
	}
	if err := s.store.DetachLabel(r.Context(), feedback.ID, labelID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "label_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	comments, err := s.store.ListComments(r.Context(), feedback.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, toCommentResponse(comment))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "missing_content")
		return
	}
	comment, err := s.store.CreateComment(r.Context(), model.Comment{
		FeedbackID: feedback.ID,
		UserID:     userID(claimsFromContext(r.Context())),
		Content:    req.Content,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

// commentAccess loads the comment named in the path, scoped to the feedback.
func (s *Server) commentAccess(w http.ResponseWriter, r *http.Request) (model.Comment, bool) {
	feedback, ok := s.feedbackAccess(w, r)
	if !ok {
		return model.Comment{}, false
	}
	commentID, ok := pathID(r, "commentId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_comment_id")
		return model.Comment{}, false
	}
	comment, err := s.store.GetComment(r.Context(), feedback.ID, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "comment_not_found")
			return model.Comment{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Comment{}, false
	}
	return comment, true
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := s.commentAccess(w, r)
	if !ok {
		return
	}
	if userID(claimsFromContext(r.Context())) != comment.UserID {
		writeError(w, http.StatusForbidden, "not_comment_author")
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "missing_content")
		return
	}
	comment.Content = req.Content
	updated, err := s.store.UpdateComment(r.Context(), comment)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(updated))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := s.commentAccess(w, r)
	if !ok {
		return
	}
	claims := claimsFromContext(r.Context())
	if !isManager(claims) && userID(claims) != comment.UserID {
		writeError(w, http.StatusForbidden, "not_comment_author")
		return
	}
	if err := s.store.DeleteComment(r.Context(), comment.FeedbackID, comment.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
