package models

import "time"

type Doubt struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Subject       string    `json:"subject"`
	DoubtText     string    `json:"doubt_text"`
	DoubtImageURL string    `json:"doubt_image_url,omitempty"`
	AIResponse    string    `json:"ai_response"`
	CreatedAt     time.Time `json:"created_at"`
}
