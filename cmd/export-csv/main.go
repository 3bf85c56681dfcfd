package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"reditto/pkg/database"
)

func main() {
	var (
		essaysOut = flag.String("essays", "data/essays.csv", "output CSV path for essays")
		doubtsOut = flag.String("doubts", "data/doubts.csv", "output CSV path for doubts")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := exportEssays(ctx, db, *essaysOut); err != nil {
		log.Fatalf("export essays failed: %v", err)
	}
	if err := exportDoubts(ctx, db, *doubtsOut); err != nil {
		log.Fatalf("export doubts failed: %v", err)
	}

	log.Printf("✅ exported essays to %s and doubts to %s", *essaysOut, *doubtsOut)
}

func exportEssays(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "user_id", "topic", "final_score", "essay_text", "created_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, user_id, topic, final_score, essay_text, created_at
        FROM essays
        ORDER BY created_at
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        int64
			userID    string
			topic     sql.NullString
			score     sql.NullFloat64
			essayText string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &userID, &topic, &score, &essayText, &createdAt); err != nil {
			return err
		}

		scoreStr := ""
		if score.Valid {
			scoreStr = strconv.FormatFloat(score.Float64, 'g', -1, 64)
		}
		if err := w.Write([]string{
			strconv.FormatInt(id, 10),
			userID,
			topic.String,
			scoreStr,
			essayText,
			createdAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

func exportDoubts(ctx context.Context, db *sql.DB, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "user_id", "subject", "doubt_text", "ai_response", "created_at"}); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
        SELECT id, user_id, subject, doubt_text, ai_response, created_at
        FROM doubts
        ORDER BY created_at
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         int64
			userID     string
			subject    string
			doubtText  string
			aiResponse string
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &userID, &subject, &doubtText, &aiResponse, &createdAt); err != nil {
			return err
		}

		if err := w.Write([]string{
			strconv.FormatInt(id, 10),
			userID,
			subject,
			doubtText,
			aiResponse,
			createdAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
