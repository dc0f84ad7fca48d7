package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole normalizes r and reports whether it is a known role.
func ParseRole(r string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(r))); role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// CanManage reports whether the role may administer projects and enrollment.
func (r Role) CanManage() bool {
	return r == RoleTeacher || r == RoleAdmin
}

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

func ParseStatus(s string) (Status, bool) {
	for _, status := range Statuses {
		if string(status) == strings.TrimSpace(s) {
			return status, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func ParsePriority(p string) (Priority, bool) {
	for _, priority := range Priorities {
		if string(priority) == strings.TrimSpace(p) {
			return priority, true
		}
	}
	return "", false
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID          int64
	Name        string
	Description *string
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Feedback struct {
	ID          int64
	ProjectID   int64
	CreatorID   int64
	Title       string
	Description string
	Status      Status
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Label struct {
	ID        int64
	ProjectID int64
	Name      string
	Color     string
}

type Comment struct {
	ID         int64
	FeedbackID int64
	UserID     int64
	Username   string
	Content    string
	CreatedAt  time.Time
}
