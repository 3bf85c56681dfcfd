package doubt

import (
	"context"
	"database/sql"
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

func (r *Repo) Create(ctx context.Context, d models.Doubt) (*models.Doubt, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO doubts (user_id, subject, doubt_text, doubt_image_url, ai_response)
		VALUES (?, ?, ?, ?, ?)
	`, d.UserID, d.Subject, d.DoubtText, nullable(d.DoubtImageURL), d.AIResponse)
	if err != nil {
		return nil, fmt.Errorf("insert doubt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetByID(ctx, id, d.UserID)
}

// ExistsDuplicate reports whether the user already stored this exact
// question and answer pair.
func (r *Repo) ExistsDuplicate(ctx context.Context, userID, doubtText, aiResponse string) (bool, error) {
	query, args, err := sq.Select("COUNT(1)").
		From("doubts").
		Where(sq.Eq{"user_id": userID, "doubt_text": doubtText, "ai_response": aiResponse}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build duplicate query: %w", err)
	}

	var n int
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check duplicate doubt: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) GetByID(ctx context.Context, id int64, userID string) (*models.Doubt, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, subject, doubt_text, doubt_image_url, ai_response, created_at
		FROM doubts
		WHERE id = ? AND user_id = ?
	`, id, userID)

	d, err := scanDoubt(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get doubt: %w", err)
	}
	return d, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Doubt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query, args, err := sq.Select("id", "user_id", "subject", "doubt_text", "doubt_image_url", "ai_response", "created_at").
		From("doubts").
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
		return nil, fmt.Errorf("list doubts: %w", err)
	}
	defer rows.Close()

	out := make([]models.Doubt, 0, limit)
	for rows.Next() {
		d, err := scanDoubt(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan doubt row: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM doubts
		WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete doubt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete doubt rows: %w", err)
	}
	return affected > 0, nil
}

func scanDoubt(scan func(dest ...any) error) (*models.Doubt, error) {
	var d models.Doubt
	var imageURL sql.NullString
	var ts time.Time

	if err := scan(&d.ID, &d.UserID, &d.Subject, &d.DoubtText, &imageURL, &d.AIResponse, &ts); err != nil {
		return nil, err
	}

	d.DoubtImageURL = imageURL.String
	d.CreatedAt = ts
	return &d, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
