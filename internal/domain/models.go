package domain

import "time"

// SourceKind selects which question source backs a session.
type SourceKind string

const (
	// SourceTrivia plays questions fetched live from the trivia API; topic is a category id.
	SourceTrivia SourceKind = "trivia"
	// SourceSaved plays a question set persisted by a setup step; topic is the quiz id.
	SourceSaved SourceKind = "saved"
)

// Phase is the lifecycle position of a quiz session.
type Phase string

const (
	PhaseNotStarted   Phase = "not_started"
	PhaseInProgress   Phase = "in_progress"
	PhaseAnswerLocked Phase = "answer_locked"
	PhaseFinished     Phase = "finished"
)

// Outcome is only meaningful once a session is finished.
type Outcome string

const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
)

// Question is a multiple-choice question with raw (undecoded) text as delivered by its source.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Distractors   []string `json:"incorrect_answers"`
	// Options is the fixed display order. Empty until arranged.
	Options      []string `json:"options,omitempty"`
	Category     string   `json:"category,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Type         string   `json:"type,omitempty"`
	TimerSeconds int      `json:"timer_seconds,omitempty"` // 0 means the configured default
}

// AnswerPool returns the distractors followed by the correct answer.
func (q Question) AnswerPool() []string {
	pool := make([]string, 0, len(q.Distractors)+1)
	pool = append(pool, q.Distractors...)
	return append(pool, q.CorrectAnswer)
}

// StartRequest asks for a new session.
type StartRequest struct {
	Source SourceKind `json:"source"`
	Topic  string     `json:"topic"`
	Count  int        `json:"count"`
}

// QuestionView is the decoded, display-ready form of the current question.
type QuestionView struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	Category     string   `json:"category,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	TimerSeconds int      `json:"timerSeconds"`
}

// Feedback describes how the current question was resolved.
type Feedback struct {
	SelectedOption int    `json:"selectedOption"` // -1 on timeout
	Correct        bool   `json:"correct"`
	CorrectAnswer  string `json:"correctAnswer"`
	TimedOut       bool   `json:"timedOut"`
}

// SessionView is a point-in-time snapshot of a session pushed to clients.
type SessionView struct {
	SessionID     string        `json:"sessionId,omitempty"`
	Source        SourceKind    `json:"source,omitempty"`
	Topic         string        `json:"topic,omitempty"`
	Phase         Phase         `json:"phase"`
	Outcome       Outcome       `json:"outcome"`
	QuestionIndex int           `json:"questionIndex"`
	QuestionCount int           `json:"questionCount"`
	Score         int           `json:"score"`
	TimeRemaining int           `json:"timeRemaining"`
	Question      *QuestionView `json:"question,omitempty"`
	Feedback      *Feedback     `json:"feedback,omitempty"`
	Error         string        `json:"error,omitempty"`
	Retryable     bool          `json:"retryable,omitempty"`
}

// ScoreRecord is the final result handed to a score sink.
type ScoreRecord struct {
	SessionID  string
	Source     SourceKind
	Topic      string
	Score      int
	Max        int
	Outcome    Outcome
	FinishedAt time.Time
}

// Category is a trivia topic.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SetupRequest persists a question set for later play.
type SetupRequest struct {
	QuizID       string `json:"quizId"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Count        int    `json:"count"`
	TimerSeconds int    `json:"timerSeconds"`
}

// SavedQuiz is a quiz header persisted by the setup step.
type SavedQuiz struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CurrentScore int       `json:"currentScore"`
	MaxScore     int       `json:"maxScore"`
	CreatedAt    time.Time `json:"createdAt"`
}
