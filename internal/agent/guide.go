package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
)

// Guide is the thin wrapper around a hosted model that turns "what should
// this user see next" into a rendered HTML fragment. It gathers the user's
// progress and the next question itself, then asks the model for a
// {html, question_id} document conforming to resultSchema.
type Guide struct {
	provider Provider
	tracker  *progress.Tracker
	library  *prompts.Library
}

// Result is the guide's structured output.
type Result struct {
	HTML       string `json:"html"`
	QuestionID int    `json:"question_id"`
}

var resultSchema = &Schema{
	Name:        "question-fragment",
	Description: "An HTML fragment presenting the next question, and its catalog id.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"html": map[string]any{
				"type":        "string",
				"description": "HTML fragment to render inside the chat area",
			},
			"question_id": map[string]any{
				"type":        "integer",
				"description": "Catalog id of the question being presented",
			},
		},
		"required": []any{"html", "question_id"},
	},
}

func NewGuide(p Provider, tracker *progress.Tracker, library *prompts.Library) *Guide {
	return &Guide{provider: p, tracker: tracker, library: library}
}

// RenderNext produces the fragment for the user's next question. ok is false
// when the user has worked through the whole sequence; the caller renders a
// completion state without consulting the model.
func (g *Guide) RenderNext(ctx context.Context, userID string) (res Result, ok bool, err error) {
	q, hasNext, err := g.tracker.Next(userID)
	if err != nil {
		return Result{}, false, err
	}
	if !hasNext {
		return Result{}, false, nil
	}

	sum, err := g.tracker.Summary(userID)
	if err != nil {
		return Result{}, false, err
	}

	req := Request{
		System:      g.library.System(),
		Messages:    []Message{{Role: RoleUser, Content: g.buildContext(userID, sum, q.ID)}},
		Schema:      resultSchema,
		MaxTokens:   1024,
		Temperature: 0.7,
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return Result{}, false, err
	}

	if err := json.Unmarshal(resp.Content, &res); err != nil {
		return Result{}, false, &ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	if res.QuestionID != q.ID {
		// The model is not trusted to choose the question.
		slog.Warn("guide returned mismatched question id", "got", res.QuestionID, "want", q.ID)
		res.QuestionID = q.ID
	}
	return res, true, nil
}

// ModelID reports the underlying provider's model.
func (g *Guide) ModelID() string {
	return g.provider.ModelID()
}

func (g *Guide) buildContext(userID string, sum progress.Summary, questionID int) string {
	q, _, _ := g.tracker.Next(userID)

	var b strings.Builder
	fmt.Fprintf(&b, "The user has answered %d and skipped %d of the questions. ", len(sum.Answered), len(sum.Skipped))
	b.WriteString("Present the next question below as a warm, self-contained HTML fragment. ")
	fmt.Fprintf(&b, "The fragment must contain a textarea named %q, a submit control posting to /submit-answer/%d, and a skip control posting to /skip-question/%d.", "answer", questionID, questionID)

	if enc, err := g.library.Conversation("encouragement"); err == nil && len(sum.Answered) > 0 {
		b.WriteString(" Open with a short encouragement in the spirit of: ")
		b.WriteString(enc)
	}

	b.WriteString("\n\n")
	b.WriteString(g.library.FormatQuestion(q))
	return b.String()
}
