package essay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reditto/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) Create(ctx context.Context, e models.Essay) (*models.Essay, error) {
	competencies, err := marshalNullable(e.Competencies)
	if err != nil {
		return nil, fmt.Errorf("marshal competencies: %w", err)
	}
	feedback, err := marshalNullable(e.Feedback)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback: %w", err)
	}

	var score any
	if e.FinalScore != nil {
		score = *e.FinalScore
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO essays (user_id, topic, essay_text, final_score, competencies, feedback)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.UserID, e.Topic, e.EssayText, score, competencies, feedback)
	if err != nil {
		return nil, fmt.Errorf("insert essay: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetByID(ctx, id, e.UserID)
}

// ExistsDuplicate reports whether the user already has a row with the
// same text and score. Retried submissions from flaky clients land
// here instead of creating a second record.
func (r *Repo) ExistsDuplicate(ctx context.Context, userID, essayText string, finalScore *float64) (bool, error) {
	q := sq.Select("COUNT(1)").
		From("essays").
		Where(sq.Eq{"user_id": userID, "essay_text": essayText})
	if finalScore != nil {
		q = q.Where(sq.Eq{"final_score": *finalScore})
	} else {
		q = q.Where(sq.Eq{"final_score": nil})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build duplicate query: %w", err)
	}

	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check duplicate essay: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64, userID string) (*models.Essay, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, topic, essay_text, final_score, competencies, feedback, created_at
		FROM essays
		WHERE id = ? AND user_id = ?
	`, id, userID)

	e, err := scanEssay(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get essay: %w", err)
	}
	return e, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Essay, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query, args, err := sq.Select("id", "user_id", "topic", "essay_text", "final_score", "competencies", "feedback", "created_at").
		From("essays").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list essays: %w", err)
	}
	defer rows.Close()

	out := make([]models.Essay, 0, limit)
	for rows.Next() {
		e, err := scanEssay(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan essay row: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM essays
		WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete essay: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete essay rows: %w", err)
	}
	return affected > 0, nil
}

func scanEssay(scan func(dest ...any) error) (*models.Essay, error) {
	var e models.Essay
	var topic sql.NullString
	var score sql.NullFloat64
	var competencies, feedback sql.NullString
	var ts time.Time

	if err := scan(&e.ID, &e.UserID, &topic, &e.EssayText, &score, &competencies, &feedback, &ts); err != nil {
		return nil, err
	}

	e.Topic = topic.String
	if score.Valid {
		v := score.Float64
		e.FinalScore = &v
	}
	if competencies.Valid && competencies.String != "" {
		if err := json.Unmarshal([]byte(competencies.String), &e.Competencies); err != nil {
			return nil, fmt.Errorf("unmarshal competencies: %w", err)
		}
	}
	if feedback.Valid && feedback.String != "" {
		var fb models.Feedback
		if err := json.Unmarshal([]byte(feedback.String), &fb); err != nil {
			return nil, fmt.Errorf("unmarshal feedback: %w", err)
		}
		e.Feedback = &fb
	}
	e.CreatedAt = ts
	return &e, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case map[string]float64:
		if t == nil {
			return nil, nil
		}
	case *models.Feedback:
		if t == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
