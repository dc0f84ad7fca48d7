package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"feedtrack/internal/model"
)

const feedbackColumns = `id, project_id, creator_id, title, description, status, priority, created_at, updated_at`

func scanFeedback(row pgx.Row) (model.Feedback, error) {
	var feedback model.Feedback
	var status, priority string
	err := row.Scan(
		&feedback.ID,
		&feedback.ProjectID,
		&feedback.CreatorID,
		&feedback.Title,
		&feedback.Description,
		&status,
		&priority,
		&feedback.CreatedAt,
		&feedback.UpdatedAt,
	)
	feedback.Status = model.Status(status)
	feedback.Priority = model.Priority(priority)
	return feedback, translate(err)
}

func (s *Store) ListFeedback(ctx context.Context, projectID int64) ([]model.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+feedbackColumns+` FROM feedback WHERE project_id = $1 ORDER BY id
	`, projectID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	items := []model.Feedback{}
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, feedback)
	}
	return items, translate(rows.Err())
}

func (s *Store) GetFeedback(ctx context.Context, projectID, feedbackID int64) (model.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+feedbackColumns+` FROM feedback WHERE id = $1 AND project_id = $2
	`, feedbackID, projectID)
	return scanFeedback(row)
}

func (s *Store) CreateFeedback(ctx context.Context, feedback model.Feedback) (model.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO feedback (project_id, creator_id, title, description, status, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+feedbackColumns,
		feedback.ProjectID, feedback.CreatorID, feedback.Title, feedback.Description,
		string(feedback.Status), string(feedback.Priority))
	return scanFeedback(row)
}

func (s *Store) UpdateFeedback(ctx context.Context, feedback model.Feedback) (model.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE feedback
		SET title = $1, description = $2, status = $3, priority = $4, updated_at = now()
		WHERE id = $5 AND project_id = $6
		RETURNING `+feedbackColumns,
		feedback.Title, feedback.Description, string(feedback.Status), string(feedback.Priority),
		feedback.ID, feedback.ProjectID)
	return scanFeedback(row)
}

func (s *Store) DeleteFeedback(ctx context.Context, projectID, feedbackID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM feedback WHERE id = $1 AND project_id = $2`, feedbackID, projectID)
	if err != nil {
		return translate(err)
	}
	return expectAffected(tag)
}

func (s *Store) ListFeedbackLabels(ctx context.Context, feedbackID int64) ([]model.Label, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.project_id, l.name, l.color
		FROM labels l
		JOIN feedback_labels fl ON fl.label_id = l.id
		WHERE fl.feedback_id = $1
		ORDER BY l.name
	`, feedbackID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	labels := []model.Label{}
	for rows.Next() {
		var label model.Label
		if err := rows.Scan(&label.ID, &label.ProjectID, &label.Name, &label.Color); err != nil {
			return nil, translate(err)
		}
		labels = append(labels, label)
	}
	return labels, translate(rows.Err())
}

// AttachLabel upserts the label by name within the project, then links it.
func (s *Store) AttachLabel(ctx context.Context, feedbackID int64, label model.Label) (model.Label, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO labels (project_id, name, color) VALUES ($1, $2, $3)
			ON CONFLICT (project_id, name) DO UPDATE SET color = EXCLUDED.color
			RETURNING id
		`, label.ProjectID, label.Name, label.Color).Scan(&label.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO feedback_labels (feedback_id, label_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, feedbackID, label.ID)
		return err
	})
	return label, translate(err)
}

func (s *Store) DetachLabel(ctx context.Context, feedbackID, labelID int64) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM feedback_labels WHERE feedback_id = $1 AND label_id = $2
	`, feedbackID, labelID)
	if err != nil {
		return translate(err)
	}
	return expectAffected(tag)
}

const commentSelect = `
	SELECT c.id, c.feedback_id, c.user_id, u.username, c.content, c.created_at
	FROM comments c
	JOIN users u ON u.id = c.user_id
`

func scanComment(row pgx.Row) (model.Comment, error) {
	var comment model.Comment
	err := row.Scan(
		&comment.ID,
		&comment.FeedbackID,
		&comment.UserID,
		&comment.Username,
		&comment.Content,
		&comment.CreatedAt,
	)
	return comment, translate(err)
}

func (s *Store) ListComments(ctx context.Context, feedbackID int64) ([]model.Comment, error) {
	rows, err := s.pool.Query(ctx, commentSelect+` WHERE c.feedback_id = $1 ORDER BY c.id`, feedbackID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, translate(rows.Err())
}

func (s *Store) GetComment(ctx context.Context, feedbackID, commentID int64) (model.Comment, error) {
	return scanComment(s.pool.QueryRow(ctx, commentSelect+` WHERE c.feedback_id = $1 AND c.id = $2`, feedbackID, commentID))
}

func (s *Store) CreateComment(ctx context.Context, comment model.Comment) (model.Comment, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO comments (feedback_id, user_id, content) VALUES ($1, $2, $3) RETURNING id
	`, comment.FeedbackID, comment.UserID, comment.Content).Scan(&id)
	if err != nil {
		return model.Comment{}, translate(err)
	}
	return s.GetComment(ctx, comment.FeedbackID, id)
}

func (s *Store) UpdateComment(ctx context.Context, comment model.Comment) (model.Comment, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE comments SET content = $1 WHERE id = $2 AND feedback_id = $3
	`, comment.Content, comment.ID, comment.FeedbackID)
	if err != nil {
		return model.Comment{}, translate(err)
	}
	if err := expectAffected(tag); err != nil {
		return model.Comment{}, err
	}
	return s.GetComment(ctx, comment.FeedbackID, comment.ID)
}

func (s *Store) DeleteComment(ctx context.Context, feedbackID, commentID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1 AND feedback_id = $2`, commentID, feedbackID)
	if err != nil {
		return translate(err)
	}
	return expectAffected(tag)
}
