package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	MsgRegisterInvalid   = "Invalid input. Please check your data."
	MsgRegisterDuplicate = "Username or email already exists."
	MsgRegisterServer    = "Server error. Please try again later."
	MsgRegisterUnknown   = "An unexpected error occurred."
)

// Login exchanges credentials for a token. The server answers with the token
// as a JSON string; the quotes are removed here. A 401 is a credential
// failure, not a session eviction.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	creds.Username = strings.TrimSpace(creds.Username)
	res, err := c.send(ctx, request{method: http.MethodPost, path: "/api/login", body: creds, noEvict: true})
	if err != nil {
		return "", err
	}
	token := unquoteToken(res.body)
	if token == "" || strings.ContainsAny(token, " \t\r\n\"") {
		return "", fmt.Errorf("%w: login returned no token", ErrInvalidResponse)
	}
	return token, nil
}

func unquoteToken(body []byte) string {
	var token string
	if err := json.Unmarshal(body, &token); err == nil {
		return strings.TrimSpace(token)
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`)
}

// Register creates an account. Failures carry the fixed user-facing message
// for their status.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Role = strings.ToLower(strings.TrimSpace(reg.Role))
	_, err := c.send(ctx, request{method: http.MethodPost, path: "/api/register", body: reg, noEvict: true})
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return &RequestError{Status: reqErr.Status, Message: registerMessage(reqErr.Status)}
	}
	return err
}

func registerMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return MsgRegisterInvalid
	case http.StatusConflict:
		return MsgRegisterDuplicate
	case http.StatusInternalServerError:
		return MsgRegisterServer
	default:
		return MsgRegisterUnknown
	}
}

// Logout asks the server to revoke the current token.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.send(ctx, request{method: http.MethodPost, path: "/api/logout", noEvict: true})
	return err
}

// CheckIdentity validates token against the server without touching the
// stored session; the caller decides what a failure means.
func (c *Client) CheckIdentity(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/user", token: token, noEvict: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/user"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers is manager-only on the server.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out listOf[User]
	if err := c.call(ctx, request{method: http.MethodGet, path: "/api/users"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (*User, error) {
	var user User
	if err := c.call(ctx, request{method: http.MethodGet, path: fmt.Sprintf("/api/users/%d", userID)}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUser looks an account up by exact username and returns ErrNoSuchUser
// when none matches.
func (c *Client) FindUser(ctx context.Context, username string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username", "required")
	}
	var out listOf[User]
	path := "/api/users?username=" + url.QueryEscape(username)
	if err := c.call(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoSuchUser
	}
	return &out[0], nil
}

func projectPath(projectID int64) string {
	return fmt.Sprintf("/project/%d", projectID)
}

func feedbackPath(projectID, feedbackID int64) string {
	return fmt.Sprintf("/project/%d/feedback/%d/", projectID, feedbackID)
}

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out listOf[Project]
	if err := c.call(ctx, request{method: http.MethodGet, path: "/project/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, projectID int64) (*Project, error) {
	var out Project
	if err := c.call(ctx, request{method: http.MethodGet, path: projectPath(projectID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Project
	if err := c.call(ctx, request{method: http.MethodPost, path: "/project/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProject(ctx context.Context, projectID int64, in ProjectInput) (*Project, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Project
	if err := c.call(ctx, request{method: http.MethodPut, path: projectPath(projectID), body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, projectID int64) error {
	return c.call(ctx, request{method: http.MethodDelete, path: projectPath(projectID)}, nil)
}

func (c *Client) ListEnrollments(ctx context.Context, projectID int64) ([]int64, error) {
	var out userIDs
	if err := c.call(ctx, request{method: http.MethodGet, path: projectPath(projectID) + "/enrollment/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Enroll(ctx context.Context, projectID, userID int64) (*Enrollment, error) {
	if userID <= 0 {
		return nil, invalid("user_id", "must be a positive number")
	}
	var out Enrollment
	body := map[string]int64{"user_id": userID}
	if err := c.call(ctx, request{method: http.MethodPost, path: projectPath(projectID) + "/enrollment/", body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unenroll(ctx context.Context, projectID, userID int64) error {
	path := fmt.Sprintf("%s/enrollment/?user_id=%d", projectPath(projectID), userID)
	return c.call(ctx, request{method: http.MethodDelete, path: path}, nil)
}

func (c *Client) ListFeedback(ctx context.Context, projectID int64) ([]Feedback, error) {
	var out listOf[Feedback]
	if err := c.call(ctx, request{method: http.MethodGet, path: projectPath(projectID) + "/feedback/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetFeedback(ctx context.Context, projectID, feedbackID int64) (*Feedback, error) {
	var out Feedback
	if err := c.call(ctx, request{method: http.MethodGet, path: feedbackPath(projectID, feedbackID)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateFeedback(ctx context.Context, projectID int64, in FeedbackInput) (*Feedback, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Feedback
	if err := c.call(ctx, request{method: http.MethodPost, path: projectPath(projectID) + "/feedback/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateFeedback(ctx context.Context, projectID, feedbackID int64, in FeedbackInput) (*Feedback, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Feedback
	if err := c.call(ctx, request{method: http.MethodPut, path: feedbackPath(projectID, feedbackID), body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteFeedback(ctx context.Context, projectID, feedbackID int64) error {
	return c.call(ctx, request{method: http.MethodDelete, path: feedbackPath(projectID, feedbackID)}, nil)
}

func (c *Client) ListLabels(ctx context.Context, projectID, feedbackID int64) ([]Label, error) {
	var out listOf[Label]
	if err := c.call(ctx, request{method: http.MethodGet, path: feedbackPath(projectID, feedbackID) + "labels/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AttachLabel(ctx context.Context, projectID, feedbackID int64, in LabelInput) (*Label, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Label
	if err := c.call(ctx, request{method: http.MethodPost, path: feedbackPath(projectID, feedbackID) + "labels/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DetachLabel(ctx context.Context, projectID, feedbackID, labelID int64) error {
	path := fmt.Sprintf("%slabels/%d", feedbackPath(projectID, feedbackID), labelID)
	return c.call(ctx, request{method: http.MethodDelete, path: path}, nil)
}

func (c *Client) ListComments(ctx context.Context, projectID, feedbackID int64) ([]Comment, error) {
	var out listOf[Comment]
	if err := c.call(ctx, request{method: http.MethodGet, path: feedbackPath(projectID, feedbackID) + "comments/"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, projectID, feedbackID int64, in CommentInput) (*Comment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Comment
	if err := c.call(ctx, request{method: http.MethodPost, path: feedbackPath(projectID, feedbackID) + "comments/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateComment(ctx context.Context, projectID, feedbackID, commentID int64, in CommentInput) (*Comment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out Comment
	path := fmt.Sprintf("%scomments/%d", feedbackPath(projectID, feedbackID), commentID)
	if err := c.call(ctx, request{method: http.MethodPut, path: path, body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteComment(ctx context.Context, projectID, feedbackID, commentID int64) error {
	path := fmt.Sprintf("%scomments/%d", feedbackPath(projectID, feedbackID), commentID)
	return c.call(ctx, request{method: http.MethodDelete, path: path}, nil)
}
