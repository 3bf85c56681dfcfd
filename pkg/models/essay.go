package models

import "time"

type Essay struct {
	ID           int64              `json:"id"`
	UserID       string             `json:"user_id"`
	Topic        string             `json:"topic,omitempty"`
	EssayText    string             `json:"essay_text"`
	FinalScore   *float64           `json:"final_score,omitempty"`
	Competencies map[string]float64 `json:"competencies,omitempty"`
	Feedback     *Feedback          `json:"feedback,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}
