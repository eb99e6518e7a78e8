package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// NewRouter mounts the REST endpoints and the websocket entry point.
func NewRouter(service *app.QuizService) http.Handler {
	api := &apiHandler{service: service}
	ws := NewWSHandler(service)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	// long-lived; kept out of the request timeout below
	r.Get("/ws", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/categories", api.categories)
		r.Get("/quizzes", api.quizzes)
		r.Post("/quizzes/{quizID}/setup", api.setup)
	})
	return r
}

type apiHandler struct {
	service *app.QuizService
}

type setupBody struct {
	Title        string `json:"title"`
	Category     string `json:"category"`
	Count        int    `json:"count"`
	TimerSeconds int    `json:"timerSeconds"`
}

type setupResponse struct {
	QuizID    string `json:"quizId"`
	Questions int    `json:"questions"`
}

func (h *apiHandler) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *apiHandler) quizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := h.service.SavedQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *apiHandler) setup(w http.ResponseWriter, r *http.Request) {
	var body setupBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid setup payload"})
			return
		}
	}
	quizID := chi.URLParam(r, "quizID")
	questions, err := h.service.SetupQuiz(r.Context(), domain.SetupRequest{
		QuizID:       quizID,
		Title:        body.Title,
		Category:     body.Category,
		Count:        body.Count,
		TimerSeconds: body.TimerSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, setupResponse{QuizID: quizID, Questions: len(questions)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrTopicRequired),
		errors.Is(err, domain.ErrInvalidQuestionCount),
		errors.Is(err, domain.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
