package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedtrack/internal/model"
	"feedtrack/internal/repository"
)

type projectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type projectResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type enrollmentRequest struct {
	UserID int64 `json:"user_id"`
}

type enrollmentResponse struct {
	ProjectID int64 `json:"project_id"`
	UserID    int64 `json:"user_id"`
}

func toProjectResponse(project model.Project) projectResponse {
	return projectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

func (req *projectRequest) normalize() bool {
	req.Name = strings.TrimSpace(req.Name)
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			req.Description = nil
		} else {
			req.Description = &trimmed
		}
	}
	return req.Name != ""
}

// projectAccess loads the project named in the path and checks that the
// caller may see it: managers see every project, students only those they
// are enrolled in.
func (s *Server) projectAccess(w http.ResponseWriter, r *http.Request) (model.Project, bool) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_project_id")
		return model.Project{}, false
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project_not_found")
			return model.Project{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Project{}, false
	}

	claims := claimsFromContext(r.Context())
	if isManager(claims) {
		return project, true
	}
	enrolled, err := s.store.IsEnrolled(r.Context(), project.ID, userID(claims))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Project{}, false
	}
	if !enrolled {
		writeError(w, http.StatusForbidden, "not_enrolled")
		return model.Project{}, false
	}
	return project, true
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var (
		projects []model.Project
		err      error
	)
	if isManager(claims) {
		projects, err = s.store.ListProjects(r.Context())
	} else {
		projects, err = s.store.ListProjectsForUser(r.Context(), userID(claims))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, project := range projects {
		out = append(out, toProjectResponse(project))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !req.normalize() {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	project, err := s.store.CreateProject(r.Context(), model.Project{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID(claimsFromContext(r.Context())),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(project))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_project_id")
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !req.normalize() {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	project, err := s.store.UpdateProject(r.Context(), model.Project{
		ID:          projectID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(project))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_project_id")
		return
	}
	if err := s.store.DeleteProject(r.Context(), projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	userIDs, err := s.store.ListEnrollments(r.Context(), project.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, userIDs)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	if err := s.store.Enroll(r.Context(), project.ID, req.UserID); err != nil {
		if errors.Is(err, repository.ErrInvalidReference) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, enrollmentResponse{ProjectID: project.ID, UserID: req.UserID})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectAccess(w, r)
	if !ok {
		return
	}
	uid, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || uid <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	if err := s.store.Unenroll(r.Context(), project.ID, uid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "enrollment_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
