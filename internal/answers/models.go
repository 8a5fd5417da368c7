package answers

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when the persistence layer fails for a reason
// other than "no record yet". Missing user files are not errors.
var ErrUnavailable = errors.New("answer store unavailable")

// ErrInvalidUserID is returned for user ids that cannot name a record file.
var ErrInvalidUserID = errors.New("invalid user id")

// Status marks a record as a real answer or a skip.
type Status string

const (
	StatusAnswered Status = "answered"
	StatusSkipped  Status = "skipped"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusAnswered || s == StatusSkipped
}

// AnswerRecord is one user's response (or skip marker) for one question.
// Field names follow the on-disk schema: timestamp is the creation time and
// is preserved across updates, last_modified advances on every upsert.
type AnswerRecord struct {
	QuestionID int       `json:"question_id"`
	Answer     string    `json:"answer"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"timestamp"`
	UpdatedAt  time.Time `json:"last_modified"`
}

// UserAnswerSet is the full persisted record set for one user.
type UserAnswerSet struct {
	UserID  string         `json:"user_id"`
	Answers []AnswerRecord `json:"answers"`
}

// Get returns the record for questionID, if present.
func (s UserAnswerSet) Get(questionID int) (AnswerRecord, bool) {
	for _, r := range s.Answers {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return AnswerRecord{}, false
}

// IDsWithStatus returns the question ids whose record has the given status.
func (s UserAnswerSet) IDsWithStatus(status Status) []int {
	var ids []int
	for _, r := range s.Answers {
		if r.Status == status {
			ids = append(ids, r.QuestionID)
		}
	}
	return ids
}

func validateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	for _, c := range userID {
		if c == '/' || c == '\\' || c == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
		}
	}
	if userID == "." || userID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}
	return nil
}
