package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/closerlab/thirtysix/internal/catalog"
)

// ErrUnavailable is returned when the prompt resource cannot be read or parsed.
var ErrUnavailable = errors.New("prompts unavailable")

// ErrUnknownPrompt is returned for a conversation prompt type that does not exist.
var ErrUnknownPrompt = errors.New("unknown prompt type")

// Library holds the interviewer personality and conversation snippets loaded
// from the prompts file. A conversation entry is either a single string or a
// list of strings; for lists, Conversation picks one at random.
type Library struct {
	system       string
	conversation map[string]json.RawMessage
	pick         func(n int) int
}

type promptsFile struct {
	System       string                     `json:"system"`
	Conversation map[string]json.RawMessage `json:"conversation"`
}

// Load reads the prompt library from a JSON file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, path, err)
	}
	return Parse(data)
}

// Parse builds a Library from raw JSON.
func Parse(data []byte) (*Library, error) {
	var f promptsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing prompts: %v", ErrUnavailable, err)
	}
	if f.System == "" {
		return nil, fmt.Errorf("%w: missing system prompt", ErrUnavailable)
	}
	return &Library{
		system:       f.System,
		conversation: f.Conversation,
		pick:         rand.Intn,
	}, nil
}

// System returns the system-level personality prompt.
func (l *Library) System() string {
	return l.system
}

// Conversation returns the prompt for the given type. For entries that are
// lists (like encouragement lines), one element is chosen at random.
func (l *Library) Conversation(promptType string) (string, error) {
	raw, ok := l.conversation[promptType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, promptType)
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[l.pick(len(list))], nil
	}

	return "", fmt.Errorf("%w: %q has unsupported shape", ErrUnknownPrompt, promptType)
}

// FormatQuestion renders a question with its guidance for presentation,
// framed by the question_intro and guidance_intro conversation prompts.
func (l *Library) FormatQuestion(q catalog.Question) string {
	var b strings.Builder

	if intro, err := l.Conversation("question_intro"); err == nil && intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}
	b.WriteString(q.Prompt)

	if q.Guidance != "" {
		b.WriteString("\n\n")
		if gi, err := l.Conversation("guidance_intro"); err == nil && gi != "" {
			b.WriteString(gi)
			b.WriteString("\n")
		}
		b.WriteString(q.Guidance)
	}
	return b.String()
}
