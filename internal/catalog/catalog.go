package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrUnavailable is returned when the catalog resource cannot be read or parsed.
var ErrUnavailable = errors.New("catalog unavailable")

// ErrNotFound is returned when a question id is not in the catalog.
var ErrNotFound = errors.New("question not found")

// Question is one entry of the fixed question set.
type Question struct {
	ID       int    `json:"id"`
	Prompt   string `json:"question"`
	Guidance string `json:"guidance"`
}

// Catalog is the immutable, ordered question set. Questions are kept in
// ascending id order regardless of their order in the source file.
type Catalog struct {
	questions []Question
	byID      map[int]Question
}

type catalogFile struct {
	Questions []Question `json:"questions"`
}

// Load reads the catalog from a JSON file of the form
// {"questions": [{"id": 1, "question": "...", "guidance": "..."}, ...]}.
// Any read, parse, or validation failure wraps ErrUnavailable.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from raw JSON. Used by Load and by tests.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing catalog: %v", ErrUnavailable, err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%w: catalog has no questions", ErrUnavailable)
	}

	byID := make(map[int]Question, len(f.Questions))
	for _, q := range f.Questions {
		if q.ID <= 0 {
			return nil, fmt.Errorf("%w: question id %d is not positive", ErrUnavailable, q.ID)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %d", ErrUnavailable, q.ID)
		}
		byID[q.ID] = q
	}

	questions := make([]Question, 0, len(f.Questions))
	for _, q := range f.Questions {
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].ID < questions[j].ID
	})

	return &Catalog{questions: questions, byID: byID}, nil
}

// Len returns the number of questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Questions returns all questions in ascending id order. The returned slice
// is a copy; callers may not mutate the catalog.
func (c *Catalog) Questions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// IDs returns all question ids in ascending order.
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.questions))
	for i, q := range c.questions {
		ids[i] = q.ID
	}
	return ids
}

// Has reports whether id belongs to the catalog.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// ByID returns the question with the given id, or ErrNotFound.
func (c *Catalog) ByID(id int) (Question, error) {
	q, ok := c.byID[id]
	if !ok {
		return Question{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return q, nil
}
