package api

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"feedtrack/internal/model"
)

type validator interface {
	Validate() error
}

// ValidationError is a malformed input caught before any request is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u User) Validate() error {
	if u.ID <= 0 {
		return errors.New("user: missing id")
	}
	if u.Username == "" {
		return errors.New("user: missing username")
	}
	if _, ok := model.ParseRole(u.Role); !ok {
		return fmt.Errorf("user: unknown role %q", u.Role)
	}
	return nil
}

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Project) Validate() error {
	if p.ID <= 0 {
		return errors.New("project: missing id")
	}
	if p.Name == "" {
		return errors.New("project: missing name")
	}
	return nil
}

type Feedback struct {
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

func (f Feedback) Validate() error {
	if f.ID <= 0 {
		return errors.New("feedback: missing id")
	}
	if _, ok := model.ParseStatus(f.Status); !ok {
		return fmt.Errorf("feedback: unknown status %q", f.Status)
	}
	if _, ok := model.ParsePriority(f.Priority); !ok {
		return fmt.Errorf("feedback: unknown priority %q", f.Priority)
	}
	return nil
}

type Label struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
}

func (l Label) Validate() error {
	if l.ID <= 0 {
		return errors.New("label: missing id")
	}
	if l.Name == "" {
		return errors.New("label: missing name")
	}
	return nil
}

type Comment struct {
	ID         int64     `json:"id"`
	FeedbackID int64     `json:"feedback_id"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c Comment) Validate() error {
	if c.ID <= 0 {
		return errors.New("comment: missing id")
	}
	if c.UserID <= 0 {
		return errors.New("comment: missing user_id")
	}
	return nil
}

type Enrollment struct {
	ProjectID int64 `json:"project_id"`
	UserID    int64 `json:"user_id"`
}

func (e Enrollment) Validate() error {
	if e.ProjectID <= 0 || e.UserID <= 0 {
		return errors.New("enrollment: missing ids")
	}
	return nil
}

// listOf validates every element of a decoded JSON array.
type listOf[T validator] []T

func (l listOf[T]) Validate() error {
	if l == nil {
		return errors.New("expected a JSON array")
	}
	for i, item := range l {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

type userIDs []int64

func (ids userIDs) Validate() error {
	if ids == nil {
		return errors.New("expected a JSON array")
	}
	for i, id := range ids {
		if id <= 0 {
			return fmt.Errorf("item %d: invalid user id %d", i, id)
		}
	}
	return nil
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return invalid("username", "is required")
	}
	if c.Password == "" {
		return invalid("password", "is required")
	}
	return nil
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return invalid("username", "is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return invalid("email", "is not a valid address")
	}
	if r.Password == "" {
		return invalid("password", "is required")
	}
	if _, ok := model.ParseRole(r.Role); !ok {
		return invalid("role", "must be student, teacher or admin")
	}
	return nil
}

type ProjectInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func (p ProjectInput) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	return nil
}

// FeedbackInput fields left empty keep their stored value on update; on
// create the server defaults them to an empty description, open and medium.
type FeedbackInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	Priority    string  `json:"priority,omitempty"`
}

func (f FeedbackInput) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return invalid("title", "is required")
	}
	if f.Status != "" {
		if _, ok := model.ParseStatus(f.Status); !ok {
			return invalid("status", "must be one of open, in_progress, resolved, closed")
		}
	}
	if f.Priority != "" {
		if _, ok := model.ParsePriority(f.Priority); !ok {
			return invalid("priority", "must be one of low, medium, high")
		}
	}
	return nil
}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type LabelInput struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (l LabelInput) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return invalid("name", "is required")
	}
	if l.Color != "" && !colorPattern.MatchString(l.Color) {
		return invalid("color", "must look like #rrggbb")
	}
	return nil
}

type CommentInput struct {
	Content string `json:"content"`
}

func (c CommentInput) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return invalid("content", "is required")
	}
	return nil
}
