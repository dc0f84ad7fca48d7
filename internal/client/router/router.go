// Package router decides which view to show for the current authentication
// state, navigation path and selection.
package router

import (
	"strings"

	"feedtrack/internal/client/session"
)

const (
	PathLogin    = "/login"
	PathRegister = "/register"
	PathProjects = "/projects"
)

type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewProjects
	ViewFeedbackList
	ViewFeedbackDetail
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewRegister:
		return "register"
	case ViewProjects:
		return "projects"
	case ViewFeedbackList:
		return "feedback-list"
	case ViewFeedbackDetail:
		return "feedback-detail"
	default:
		return "unknown"
	}
}

// Authenticated reports whether the view requires a session.
func (v View) Authenticated() bool {
	return v == ViewProjects || v == ViewFeedbackList || v == ViewFeedbackDetail
}

// Selection is the in-memory drill-down state below the project list. Zero
// ids mean nothing is selected at that level.
type Selection struct {
	ProjectID  int64
	FeedbackID int64
}

// Back clears exactly one level of selection.
func (s Selection) Back() Selection {
	if s.FeedbackID != 0 {
		s.FeedbackID = 0
		return s
	}
	s.ProjectID = 0
	return s
}

func (s Selection) normalize() Selection {
	if s.ProjectID == 0 {
		s.FeedbackID = 0
	}
	return s
}

// Decision is the outcome of Resolve. When Redirect is set the caller must
// navigate there, replacing the current history entry.
type Decision struct {
	View      View
	Path      string
	Redirect  string
	Selection Selection
}

// Clean canonicalises a navigation path: leading slash, no trailing slash.
func Clean(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}

// Resolve is a pure function of its inputs.
func Resolve(authenticated bool, path string, sel Selection) Decision {
	path = Clean(path)
	if !authenticated {
		switch path {
		case PathLogin:
			return Decision{View: ViewLogin, Path: path}
		case PathRegister:
			return Decision{View: ViewRegister, Path: path}
		default:
			return Decision{View: ViewLogin, Path: PathLogin, Redirect: PathLogin}
		}
	}

	sel = sel.normalize()
	decision := Decision{View: ViewProjects, Path: PathProjects, Selection: sel}
	if path != PathProjects {
		decision.Redirect = PathProjects
	}
	switch {
	case sel.FeedbackID != 0:
		decision.View = ViewFeedbackDetail
	case sel.ProjectID != 0:
		decision.View = ViewFeedbackList
	}
	return decision
}

// Affordances lists the role-gated controls a view may show. They are
// presentation hints only.
type Affordances struct {
	CreateProject    bool
	EditProject      bool
	DeleteProject    bool
	ManageEnrollment bool
	ManageLabels     bool
}

func AffordancesFor(identity *session.Identity) Affordances {
	if !identity.CanManage() {
		return Affordances{}
	}
	return Affordances{
		CreateProject:    true,
		EditProject:      true,
		DeleteProject:    true,
		ManageEnrollment: true,
		ManageLabels:     true,
	}
}
