package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/closerlab/thirtysix/internal/agent"
	"github.com/closerlab/thirtysix/internal/answers"
	"github.com/closerlab/thirtysix/internal/auth"
	"github.com/closerlab/thirtysix/internal/catalog"
	"github.com/closerlab/thirtysix/internal/progress"
	"github.com/closerlab/thirtysix/internal/prompts"
	"github.com/closerlab/thirtysix/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const maxAnswerSize = 64 << 10 // 64KB

type Deps struct {
	Catalog  *catalog.Catalog
	Store    *answers.Store
	Tracker  *progress.Tracker
	Prompts  *prompts.Library
	Verifier auth.Verifier
	Guide    *agent.Guide   // optional; template fallback when nil
	Log      *storage.Store // optional; interaction recording is skipped when nil
	Logger   *slog.Logger
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/healthz", handleHealthz)
	r.Get("/", handlePage("login.html"))
	r.Get("/dashboard", handlePage("dashboard.html"))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(deps.Verifier))

		r.Get("/next-question", handleNextQuestion(deps))
		r.Get("/progress", handleProgress(deps))
		r.Post("/submit-answer/{questionID}", handleAnswer(deps, answers.StatusAnswered))
		r.Post("/skip-question/{questionID}", handleAnswer(deps, answers.StatusSkipped))
	})

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ExecuteTemplate(w, name, nil); err != nil {
			slog.Error("rendering page", "template", name, "error", err)
		}
	}
}

func handleNextQuestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.UserFromContext(r.Context())
		renderNext(deps, w, r, id.UserID, "next")
	}
}

func handleProgress(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.UserFromContext(r.Context())

		summary, err := deps.Tracker.Summary(id.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to compute progress: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}

func handleAnswer(deps Deps, status answers.Status) http.HandlerFunc {
	kind := "submit"
	if status == answers.StatusSkipped {
		kind = "skip"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.UserFromContext(r.Context())

		questionID, err := strconv.Atoi(chi.URLParam(r, "questionID"))
		if err != nil || questionID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid question id %q", chi.URLParam(r, "questionID"))
			return
		}
		if !deps.Catalog.Has(questionID) {
			httpError(w, http.StatusNotFound, "not_found", "question %d not found", questionID)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxAnswerSize)
		if err := r.ParseForm(); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid form body: %v", err)
			return
		}
		answer := r.PostFormValue("answer")
		if status == answers.StatusAnswered && answer == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "answer text is required")
			return
		}

		if _, err := deps.Store.Upsert(id.UserID, questionID, answer, status); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, answers.ErrInvalidUserID) {
				code = http.StatusBadRequest
			}
			httpError(w, code, "api_error", "failed to save answer: %v", err)
			return
		}

		renderNext(deps, w, r, id.UserID, kind)
	}
}

// renderNext writes the HTML fragment for the user's next question, or the
// completion fragment when every question is answered. The agent renders the
// fragment when configured; otherwise the static template is used.
func renderNext(deps Deps, w http.ResponseWriter, r *http.Request, userID, kind string) {
	if deps.Guide != nil {
		result, ok, err := deps.Guide.RenderNext(r.Context(), userID)
		if err != nil {
			deps.Logger.Warn("agent render failed, falling back to template", "user", userID, "error", err)
		} else if !ok {
			renderComplete(deps, w, userID)
			return
		} else {
			clean := SanitizeFragment(result.HTML)
			recordInteraction(deps, userID, result.QuestionID, kind, clean, deps.Guide.ModelID())
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, clean)
			return
		}
	}

	q, ok, err := deps.Tracker.Next(userID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to determine next question: %v", err)
		return
	}
	if !ok {
		renderComplete(deps, w, userID)
		return
	}

	summary, err := deps.Tracker.Summary(userID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to compute progress: %v", err)
		return
	}

	view := questionView{Question: q, Answered: len(summary.Answered), Total: deps.Catalog.Len()}
	if len(summary.Answered) > 0 && deps.Prompts != nil {
		if enc, err := deps.Prompts.Conversation("encouragement"); err == nil {
			view.Encouragement = enc
		}
	}

	recordInteraction(deps, userID, q.ID, kind, "", "")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "question.html", view); err != nil {
		deps.Logger.Error("rendering question fragment", "error", err)
	}
}

func renderComplete(deps Deps, w http.ResponseWriter, userID string) {
	summary, err := deps.Tracker.Summary(userID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to compute progress: %v", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "complete.html", completeView{Answered: len(summary.Answered)}); err != nil {
		deps.Logger.Error("rendering completion fragment", "error", err)
	}
}

func recordInteraction(deps Deps, userID string, questionID int, kind, response, model string) {
	if deps.Log == nil {
		return
	}
	err := deps.Log.SaveInteraction(storage.Interaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		QuestionID: questionID,
		Kind:       kind,
		Response:   response,
		Model:      model,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		deps.Logger.Warn("recording interaction", "user", userID, "error", err)
	}
}

type questionView struct {
	Question      catalog.Question
	Answered      int
	Total         int
	Encouragement string
}

type completeView struct {
	Answered int
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
