package progress

import (
	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/catalog"
)

// AnswerSource is the read side of the answer store the tracker depends on.
// Implemented by *answers.Store.
type AnswerSource interface {
	Load(userID string) (answers.UserAnswerSet, error)
}

// Tracker computes the next question a user should see. It is a pure
// function of the catalog and the user's answer set; all state lives in
// its collaborators.
type Tracker struct {
	catalog *catalog.Catalog
	source  AnswerSource
}

// Summary describes a user's position in the question sequence.
type Summary struct {
	NextQuestionID int   `json:"next_question_id"` // 0 when the sequence is complete
	Answered       []int `json:"answered"`
	Skipped        []int `json:"skipped"`
	Remaining      []int `json:"remaining"`
}

// Complete reports whether every question has been answered or skipped,
// including revisits of skipped questions.
func (s Summary) Complete() bool {
	return s.NextQuestionID == 0
}

func New(c *catalog.Catalog, source AnswerSource) *Tracker {
	return &Tracker{catalog: c, source: source}
}

// Next returns the question to present to the user. Traversal is ascending
// by id over questions with no record; once none remain, skipped questions
// are revisited lowest-id first. ok is false when the sequence is complete.
func (t *Tracker) Next(userID string) (q catalog.Question, ok bool, err error) {
	sum, err := t.Summary(userID)
	if err != nil {
		return catalog.Question{}, false, err
	}
	if sum.Complete() {
		return catalog.Question{}, false, nil
	}
	q, err = t.catalog.ByID(sum.NextQuestionID)
	if err != nil {
		return catalog.Question{}, false, err
	}
	return q, true, nil
}

// Summary partitions the catalog ids by the user's records and picks the
// next id: minimum remaining, else minimum skipped, else 0 (complete).
func (t *Tracker) Summary(userID string) (Summary, error) {
	set, err := t.source.Load(userID)
	if err != nil {
		return Summary{}, err
	}

	status := make(map[int]answers.Status, len(set.Answers))
	for _, r := range set.Answers {
		if t.catalog.Has(r.QuestionID) {
			status[r.QuestionID] = r.Status
		}
	}

	sum := Summary{}
	for _, id := range t.catalog.IDs() {
		switch status[id] {
		case answers.StatusAnswered:
			sum.Answered = append(sum.Answered, id)
		case answers.StatusSkipped:
			sum.Skipped = append(sum.Skipped, id)
		default:
			sum.Remaining = append(sum.Remaining, id)
		}
	}

	// Catalog ids are ascending, so the first element is the minimum.
	switch {
	case len(sum.Remaining) > 0:
		sum.NextQuestionID = sum.Remaining[0]
	case len(sum.Skipped) > 0:
		sum.NextQuestionID = sum.Skipped[0]
	}
	return sum, nil
}
