package views

import (
	"context"
	"slices"
	"sync"

	"feedtrack/internal/client/api"
)

type ProjectsAPI interface {
	ListProjects(ctx context.Context) ([]api.Project, error)
	CreateProject(ctx context.Context, in api.ProjectInput) (*api.Project, error)
	UpdateProject(ctx context.Context, projectID int64, in api.ProjectInput) (*api.Project, error)
	DeleteProject(ctx context.Context, projectID int64) error
	ListEnrollments(ctx context.Context, projectID int64) ([]int64, error)
	Enroll(ctx context.Context, projectID, userID int64) (*api.Enrollment, error)
	Unenroll(ctx context.Context, projectID, userID int64) error
}

// Projects owns the project list and the enrollment panel of whichever
// project currently has it open.
type Projects struct {
	client ProjectsAPI

	mu       sync.Mutex
	gen      uint64
	loaded   bool
	projects collection[api.Project]

	enrollProject int64
	enrollGen     uint64
	enrolled      []int64
}

func NewProjects(client ProjectsAPI) *Projects {
	return &Projects{
		client:   client,
		projects: collection[api.Project]{key: projectID},
	}
}

// Load fetches the list on mount or on a refetch signalled by a child view.
func (p *Projects) Load(ctx context.Context) error {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	items, err := p.client.ListProjects(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return ErrStale
	}
	if err != nil {
		return err
	}
	p.projects.set(items)
	p.loaded = true
	return nil
}

func (p *Projects) Items() []api.Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projects.snapshot()
}

func (p *Projects) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Reset forgets everything, invalidating responses still in flight.
func (p *Projects) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.loaded = false
	p.projects.reset()
	p.enrollProject = 0
	p.enrollGen++
	p.enrolled = nil
}

func (p *Projects) Create(ctx context.Context, in api.ProjectInput) (*api.Project, error) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	created, err := p.client.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}
	return created, p.merge(gen, func() { p.projects.upsert(*created) })
}

func (p *Projects) Update(ctx context.Context, id int64, in api.ProjectInput) (*api.Project, error) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	updated, err := p.client.UpdateProject(ctx, id, in)
	if err != nil {
		return nil, err
	}
	return updated, p.merge(gen, func() { p.projects.upsert(*updated) })
}

func (p *Projects) Delete(ctx context.Context, id int64) error {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	if err := p.client.DeleteProject(ctx, id); err != nil {
		return err
	}
	return p.merge(gen, func() {
		p.projects.remove(id)
		if p.enrollProject == id {
			p.enrollProject = 0
			p.enrollGen++
			p.enrolled = nil
		}
	})
}

// merge applies a confirmed change unless the list was reset or reloaded
// since the request was issued.
func (p *Projects) merge(gen uint64, apply func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return ErrStale
	}
	apply()
	return nil
}

// OpenEnrollment shows the enrolled user ids of projectID, replacing any
// panel that was open for another project.
func (p *Projects) OpenEnrollment(ctx context.Context, projectID int64) error {
	p.mu.Lock()
	p.enrollGen++
	gen := p.enrollGen
	p.enrollProject = projectID
	p.enrolled = nil
	p.mu.Unlock()

	ids, err := p.client.ListEnrollments(ctx, projectID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.enrollGen || projectID != p.enrollProject {
		return ErrStale
	}
	if err != nil {
		return err
	}
	p.enrolled = slices.Clone(ids)
	return nil
}

func (p *Projects) CloseEnrollment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enrollGen++
	p.enrollProject = 0
	p.enrolled = nil
}

// Enrollment returns the project whose panel is open (zero when none) and
// its enrolled user ids.
func (p *Projects) Enrollment() (int64, []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enrollProject, slices.Clone(p.enrolled)
}

func (p *Projects) Enroll(ctx context.Context, userID int64) error {
	projectID, gen, err := p.enrollTarget()
	if err != nil {
		return err
	}
	if _, err := p.client.Enroll(ctx, projectID, userID); err != nil {
		return err
	}
	return p.mergeEnrollment(projectID, gen, func() {
		if !slices.Contains(p.enrolled, userID) {
			p.enrolled = append(p.enrolled, userID)
		}
	})
}

func (p *Projects) Unenroll(ctx context.Context, userID int64) error {
	projectID, gen, err := p.enrollTarget()
	if err != nil {
		return err
	}
	if err := p.client.Unenroll(ctx, projectID, userID); err != nil {
		return err
	}
	return p.mergeEnrollment(projectID, gen, func() {
		p.enrolled = slices.DeleteFunc(p.enrolled, func(id int64) bool { return id == userID })
	})
}

func (p *Projects) enrollTarget() (int64, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enrollProject == 0 {
		return 0, 0, ErrNoSelection
	}
	return p.enrollProject, p.enrollGen, nil
}

func (p *Projects) mergeEnrollment(projectID int64, gen uint64, apply func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.enrollGen || projectID != p.enrollProject {
		return ErrStale
	}
	apply()
	return nil
}
