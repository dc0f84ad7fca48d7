package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"feedtrack/internal/model"
)

var (
	ErrNotFound         = errors.New("not_found")
	ErrDuplicate        = errors.New("duplicate")
	ErrInvalidReference = errors.New("invalid_reference")
)

// Repository is the persistence contract of the HTTP API. Store (Postgres) and
// Memory both satisfy it.
type Repository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	ListProjects(ctx context.Context) ([]model.Project, error)
	ListProjectsForUser(ctx context.Context, userID int64) ([]model.Project, error)
	GetProject(ctx context.Context, id int64) (model.Project, error)
	CreateProject(ctx context.Context, project model.Project) (model.Project, error)
	UpdateProject(ctx context.Context, project model.Project) (model.Project, error)
	DeleteProject(ctx context.Context, id int64) error

	IsEnrolled(ctx context.Context, projectID, userID int64) (bool, error)
	ListEnrollments(ctx context.Context, projectID int64) ([]int64, error)
	Enroll(ctx context.Context, projectID, userID int64) error
	Unenroll(ctx context.Context, projectID, userID int64) error

	ListFeedback(ctx context.Context, projectID int64) ([]model.Feedback, error)
	GetFeedback(ctx context.Context, projectID, feedbackID int64) (model.Feedback, error)
	CreateFeedback(ctx context.Context, feedback model.Feedback) (model.Feedback, error)
	UpdateFeedback(ctx context.Context, feedback model.Feedback) (model.Feedback, error)
	DeleteFeedback(ctx context.Context, projectID, feedbackID int64) error

	ListFeedbackLabels(ctx context.Context, feedbackID int64) ([]model.Label, error)
	AttachLabel(ctx context.Context, feedbackID int64, label model.Label) (model.Label, error)
	DetachLabel(ctx context.Context, feedbackID, labelID int64) error

	ListComments(ctx context.Context, feedbackID int64) ([]model.Comment, error)
	GetComment(ctx context.Context, feedbackID, commentID int64) (model.Comment, error)
	CreateComment(ctx context.Context, comment model.Comment) (model.Comment, error)
	UpdateComment(ctx context.Context, comment model.Comment) (model.Comment, error)
	DeleteComment(ctx context.Context, feedbackID, commentID int64) error

	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error)
}

type Store struct {
	pool *pgxpool.Pool
}

var _ Repository = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// translate maps driver errors onto the package's sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrInvalidReference
		}
	}
	return err
}

func expectAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	user.Role = model.Role(role)
	return user, translate(err)
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		user.Username, user.Email, user.PasswordHash, string(user.Role))
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, translate(rows.Err())
}

func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, jti, expiresAt)
	return translate(err)
}

func (s *Store) IsTokenRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > $2)
	`, jti, now).Scan(&revoked)
	return revoked, translate(err)
}

func (s *Store) PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
