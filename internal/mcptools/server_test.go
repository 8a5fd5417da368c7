package mcptools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
)

const testCatalogJSON = `{"questions": [
	{"id": 1, "question": "First question?", "guidance": "Take it slow."},
	{"id": 2, "question": "Second question?", "guidance": ""},
	{"id": 3, "question": "Third question?", "guidance": ""}
]}`

const testPromptsJSON = `{
	"system": "You are a warm guide.",
	"conversation": {
		"question_intro": "Here is your next question:",
		"encouragement": ["Keep going."]
	}
}`

// --- helpers ---

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	cat, err := catalog.Parse([]byte(testCatalogJSON))
	if err != nil {
		t.Fatalf("parsing catalog: %v", err)
	}
	lib, err := prompts.Parse([]byte(testPromptsJSON))
	if err != nil {
		t.Fatalf("parsing prompts: %v", err)
	}
	store, err := answers.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	return Deps{
		Catalog: cat,
		Store:   store,
		Tracker: progress.New(cat, store),
		Prompts: lib,
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_GetQuestion(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpGetQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_question", map[string]interface{}{
		"question_id": 1,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var q catalog.Question
	if err := json.Unmarshal([]byte(toolText(t, result)), &q); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if q.ID != 1 || q.Prompt != "First question?" {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestMCPTool_GetQuestion_Unknown(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpGetQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_question", map[string]interface{}{
		"question_id": 42,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown question")
	}
}

func TestMCPTool_SaveAnswerAndProgress(t *testing.T) {
	deps := newTestDeps(t)
	save := mcpSaveAnswer(deps)

	result, err := save(context.Background(), makeCallToolRequest("save_answer", map[string]interface{}{
		"user_id":     "u1",
		"question_id": 2,
		"answer":      "Quietly, among friends.",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	set, err := deps.Store.Load("u1")
	if err != nil {
		t.Fatalf("loading answers: %v", err)
	}
	rec, ok := set.Get(2)
	if !ok || rec.Status != answers.StatusAnswered {
		t.Fatalf("answer not persisted: %+v", set.Answers)
	}

	prog := mcpGetUserProgress(deps)
	result, err = prog(context.Background(), makeCallToolRequest("get_user_progress", map[string]interface{}{
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var sum progress.Summary
	if err := json.Unmarshal([]byte(toolText(t, result)), &sum); err != nil {
		t.Fatalf("failed to parse progress: %v", err)
	}
	if sum.NextQuestionID != 1 {
		t.Fatalf("NextQuestionID = %d, want 1", sum.NextQuestionID)
	}
	if len(sum.Answered) != 1 || sum.Answered[0] != 2 {
		t.Fatalf("Answered = %v, want [2]", sum.Answered)
	}
}

func TestMCPTool_SaveAnswer_SkipAllowsEmpty(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpSaveAnswer(deps)

	result, err := handler(context.Background(), makeCallToolRequest("save_answer", map[string]interface{}{
		"user_id":     "u1",
		"question_id": 1,
		"status":      "skipped",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	set, err := deps.Store.Load("u1")
	if err != nil {
		t.Fatalf("loading answers: %v", err)
	}
	if rec, ok := set.Get(1); !ok || rec.Status != answers.StatusSkipped {
		t.Fatalf("skip not persisted: %+v", set.Answers)
	}
}

func TestMCPTool_SaveAnswer_RejectsEmptyAnswered(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpSaveAnswer(deps)

	result, err := handler(context.Background(), makeCallToolRequest("save_answer", map[string]interface{}{
		"user_id":     "u1",
		"question_id": 1,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for empty answer with status answered")
	}
}

func TestMCPTool_SaveAnswer_InvalidStatus(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpSaveAnswer(deps)

	result, err := handler(context.Background(), makeCallToolRequest("save_answer", map[string]interface{}{
		"user_id":     "u1",
		"question_id": 1,
		"answer":      "x",
		"status":      "deferred",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for invalid status")
	}
}

func TestMCPTool_GetPrompt(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpGetPrompt(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_prompt", map[string]interface{}{
		"prompt_type": "question_intro",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Here is your next question:" {
		t.Fatalf("unexpected prompt: %s", got)
	}
}

func TestMCPTool_GetPrompt_Unknown(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpGetPrompt(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_prompt", map[string]interface{}{
		"prompt_type": "farewell",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown prompt type")
	}
}

func TestMCPResource_Catalog(t *testing.T) {
	deps := newTestDeps(t)
	handler := mcpResourceCatalog(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "catalog://questions"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if !strings.Contains(text.Text, "First question?") {
		t.Fatalf("catalog resource missing question text: %s", text.Text)
	}

	var payload struct {
		Questions []catalog.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}
	if len(payload.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(payload.Questions))
	}
}
