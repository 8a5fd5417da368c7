package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
)

type memSource struct {
	sets map[string]answers.UserAnswerSet
}

func (m *memSource) Load(userID string) (answers.UserAnswerSet, error) {
	if set, ok := m.sets[userID]; ok {
		return set, nil
	}
	return answers.UserAnswerSet{UserID: userID}, nil
}

func testGuide(t *testing.T, p Provider, sets map[string]answers.UserAnswerSet) *Guide {
	t.Helper()
	c, err := catalog.Parse([]byte(`{"questions": [
		{"id": 1, "question": "q1", "guidance": "g1"},
		{"id": 2, "question": "q2", "guidance": "g2"}
	]}`))
	if err != nil {
		t.Fatalf("Parse catalog: %v", err)
	}
	lib, err := prompts.Parse([]byte(`{
		"system": "You are a supportive interviewer.",
		"conversation": {
			"question_intro": "Next question:",
			"guidance_intro": "Guidance:",
			"encouragement": ["Well done."]
		}
	}`))
	if err != nil {
		t.Fatalf("Parse prompts: %v", err)
	}
	return NewGuide(p, progress.New(c, &memSource{sets: sets}), lib)
}

func TestRenderNext_UsesProviderResult(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"html": "<div>hello</div>", "question_id": 1}`),
	})
	g := testGuide(t, mock, nil)

	res, ok, err := g.RenderNext(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RenderNext failed: %v", err)
	}
	if !ok {
		t.Fatal("RenderNext reported completion for a fresh user")
	}
	if res.HTML != "<div>hello</div>" {
		t.Errorf("HTML = %q", res.HTML)
	}
	if res.QuestionID != 1 {
		t.Errorf("QuestionID = %d, want 1", res.QuestionID)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.System != "You are a supportive interviewer." {
		t.Errorf("System = %q", call.System)
	}
	if call.Schema == nil || call.Schema.Name != "question-fragment" {
		t.Errorf("Schema = %+v, want question-fragment", call.Schema)
	}
	if !strings.Contains(call.Messages[0].Content, "q1") {
		t.Errorf("request context missing question text:\n%s", call.Messages[0].Content)
	}
	if !strings.Contains(call.Messages[0].Content, "/submit-answer/1") {
		t.Errorf("request context missing submit endpoint:\n%s", call.Messages[0].Content)
	}
}

func TestRenderNext_OverridesMismatchedQuestionID(t *testing.T) {
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"html": "<div>x</div>", "question_id": 99}`),
	})
	g := testGuide(t, mock, nil)

	res, ok, err := g.RenderNext(context.Background(), "u1")
	if err != nil || !ok {
		t.Fatalf("RenderNext = (%v, %v, %v)", res, ok, err)
	}
	if res.QuestionID != 1 {
		t.Errorf("QuestionID = %d, want tracker's choice 1", res.QuestionID)
	}
}

func TestRenderNext_CompleteSkipsProvider(t *testing.T) {
	mock := NewMockProvider()
	sets := map[string]answers.UserAnswerSet{
		"done": {UserID: "done", Answers: []answers.AnswerRecord{
			{QuestionID: 1, Status: answers.StatusAnswered},
			{QuestionID: 2, Status: answers.StatusAnswered},
		}},
	}
	g := testGuide(t, mock, sets)

	_, ok, err := g.RenderNext(context.Background(), "done")
	if err != nil {
		t.Fatalf("RenderNext failed: %v", err)
	}
	if ok {
		t.Error("RenderNext returned a fragment for a completed user")
	}
	if len(mock.Calls) != 0 {
		t.Errorf("provider was called %d times for a completed user", len(mock.Calls))
	}
}

func TestRenderNext_BadProviderJSON(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`not json`)})
	g := testGuide(t, mock, nil)

	_, _, err := g.RenderNext(context.Background(), "u1")
	var invalid *ErrInvalidResponse
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestNewProvider_Selection(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("NewProvider(mock) failed: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Errorf("ModelID = %q, want mock", p.ModelID())
	}

	p, err = NewProvider(context.Background(), Config{})
	if err != nil || p != nil {
		t.Errorf("NewProvider with empty provider = (%v, %v), want (nil, nil)", p, err)
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "cohere"}); err == nil {
		t.Error("NewProvider(cohere) succeeded, want error")
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "openai"}); err == nil {
		t.Error("NewProvider(openai) without API key succeeded, want error")
	}
}
