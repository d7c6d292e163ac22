package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisRecord is one stored analysis run, for data transfer between layers.
type AnalysisRecord struct {
	ID              uuid.UUID       `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Filename        string          `json:"filename"`
	FileType        string          `json:"file_type"`
	TextHash        string          `json:"text_hash"`
	DocumentType    string          `json:"document_type"`
	Method          string          `json:"method"`
	Summary         string          `json:"summary"`
	Reward          *float64        `json:"rl_reward,omitempty"`
	Result          json.RawMessage `json:"result"`
	FeedbackScore   *int            `json:"feedback_score,omitempty"`
	FeedbackComment *string         `json:"feedback_comment,omitempty"`
	FeedbackAt      *time.Time      `json:"feedback_at,omitempty"`
}

// LearningExample pairs a prompt input with a well-rated analysis.
type LearningExample struct {
	RecordID     uuid.UUID       `json:"record_id"`
	DocumentType string          `json:"document_type"`
	Method       string          `json:"method"`
	Score        int             `json:"score"`
	Comment      string          `json:"comment,omitempty"`
	Result       json.RawMessage `json:"result"`
}
