package http

import (
	"errors"
	"net/http"
	"strings"

	"feedtrack/internal/repository"
)

// handleListUsers lists every account, or the single account named by the
// username query parameter. Managers use it to find who to enroll.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if username := strings.TrimSpace(r.URL.Query().Get("username")); username != "" {
		user, err := s.store.GetUserByUsername(r.Context(), username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeJSON(w, http.StatusOK, []userResponse{})
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		writeJSON(w, http.StatusOK, []userResponse{toUserResponse(user)})
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
