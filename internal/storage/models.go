package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one agent-rendered turn: which question was presented to
// which user, the context sent to the model, and what came back.
type Interaction struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	QuestionID int       `json:"question_id"`
	Kind       string    `json:"kind"` // "next", "submit", "skip"
	Prompt     string    `json:"prompt"`
	Response   string    `json:"response"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}
