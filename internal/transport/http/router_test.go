package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestHealthz(t *testing.T) {
	service, _ := newSavedService()
	rec := httptest.NewRecorder()
	NewRouter(service).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	service := app.NewQuizService(memory.NewSessionStore(), nil, app.WithCategories(staticCategories{
		{ID: 9, Name: "General Knowledge"},
	}))
	rec := httptest.NewRecorder()
	NewRouter(service).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []domain.Category
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != 9 {
		t.Fatalf("unexpected categories %+v", got)
	}
}

func TestCategoriesUnavailable(t *testing.T) {
	service := app.NewQuizService(memory.NewSessionStore(), nil)
	rec := httptest.NewRecorder()
	NewRouter(service).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestSetupEndpoint(t *testing.T) {
	writer := &memoryWriter{}
	service := app.NewQuizService(memory.NewSessionStore(), map[domain.SourceKind]app.QuestionSource{
		domain.SourceTrivia: staticSource{
			{Prompt: "2 + 2?", CorrectAnswer: "4", Distractors: []string{"3", "5", "6"}},
		},
	}, app.WithQuestionWriter(writer), app.WithQuizCatalog(writer))
	router := NewRouter(service)

	body := strings.NewReader(`{"title":"Maths","category":"19","count":1,"timerSeconds":15}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quizzes/maths/setup", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if writer.quiz.ID != "maths" || writer.quiz.Title != "Maths" {
		t.Fatalf("unexpected quiz header %+v", writer.quiz)
	}
	if len(writer.questions) != 1 || writer.questions[0].TimerSeconds != 15 {
		t.Fatalf("unexpected saved questions %+v", writer.questions)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/quizzes", nil))
	var quizzes []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&quizzes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(quizzes) != 1 || quizzes[0]["id"] != "maths" {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
}

func TestSetupEndpointRejectsBadCount(t *testing.T) {
	service := app.NewQuizService(memory.NewSessionStore(), map[domain.SourceKind]app.QuestionSource{
		domain.SourceTrivia: staticSource{},
	}, app.WithQuestionWriter(&memoryWriter{}))
	rec := httptest.NewRecorder()
	NewRouter(service).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/quizzes/q/setup", strings.NewReader(`{"count":500}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type staticCategories []domain.Category

func (c staticCategories) Categories(context.Context) ([]domain.Category, error) {
	return c, nil
}

type staticSource []domain.Question

func (s staticSource) FetchQuestions(context.Context, string, int) ([]domain.Question, error) {
	return append([]domain.Question(nil), s...), nil
}

type memoryWriter struct {
	quiz      domain.SavedQuiz
	questions []domain.Question
}

func (w *memoryWriter) SaveQuestionSet(_ context.Context, quiz domain.SavedQuiz, questions []domain.Question) error {
	w.quiz, w.questions = quiz, questions
	return nil
}

func (w *memoryWriter) ListQuizzes(context.Context) ([]domain.SavedQuiz, error) {
	if w.quiz.ID == "" {
		return nil, nil
	}
	return []domain.SavedQuiz{w.quiz}, nil
}
