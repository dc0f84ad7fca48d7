package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"feedtrack/internal/model"
)

const projectColumns = `p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (model.Project, error) {
	var project model.Project
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.OwnerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	return project, translate(err)
}

func (s *Store) queryProjects(ctx context.Context, sql string, args ...any) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, translate(rows.Err())
}

func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	return s.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects p ORDER BY p.id`)
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]model.Project, error) {
	return s.queryProjects(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		JOIN project_enrollments e ON e.project_id = p.id
		WHERE e.user_id = $1
		ORDER BY p.id
	`, userID)
}

func (s *Store) GetProject(ctx context.Context, id int64) (model.Project, error) {
	return scanProject(s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, id))
}

func (s *Store) CreateProject(ctx context.Context, project model.Project) (model.Project, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects AS p (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING `+projectColumns,
		project.Name, project.Description, project.OwnerID)
	return scanProject(row)
}

func (s *Store) UpdateProject(ctx context.Context, project model.Project) (model.Project, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE projects AS p SET name = $1, description = $2, updated_at = now()
		WHERE p.id = $3
		RETURNING `+projectColumns,
		project.Name, project.Description, project.ID)
	return scanProject(row)
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	return expectAffected(tag)
}

func (s *Store) IsEnrolled(ctx context.Context, projectID, userID int64) (bool, error) {
	var enrolled bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM project_enrollments WHERE project_id = $1 AND user_id = $2)
	`, projectID, userID).Scan(&enrolled)
	return enrolled, translate(err)
}

func (s *Store) ListEnrollments(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM project_enrollments WHERE project_id = $1 ORDER BY user_id
	`, projectID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	userIDs := []int64{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, translate(err)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, translate(rows.Err())
}

func (s *Store) Enroll(ctx context.Context, projectID, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_enrollments (project_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, projectID, userID)
	return translate(err)
}

func (s *Store) Unenroll(ctx context.Context, projectID, userID int64) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM project_enrollments WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return translate(err)
	}
	return expectAffected(tag)
}
