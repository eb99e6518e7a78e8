package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"trivia-quiz-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID           string    `bun:"id,pk"`
	Title        string    `bun:"title"`
	CurrentScore int       `bun:"current_score"`
	MaxScore     int       `bun:"max_score"`
	CreatedAt    time.Time `bun:"created_at"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:quiz_questions"`

	ID               string    `bun:"id,pk"`
	QuizID           string    `bun:"quiz_id"`
	Position         int       `bun:"position"`
	Question         string    `bun:"question"`
	CorrectAnswer    string    `bun:"correct_answer"`
	IncorrectAnswers []string  `bun:"incorrect_answers,type:jsonb"`
	Options          []string  `bun:"options,type:jsonb"`
	Category         string    `bun:"category"`
	Difficulty       string    `bun:"difficulty"`
	Type             string    `bun:"type"`
	TimerSeconds     int       `bun:"timer_seconds"`
	CreatedAt        time.Time `bun:"created_at"`
}

// QuestionStore writes question sets produced by the setup step.
type QuestionStore struct {
	db *bun.DB
}

func NewQuestionStore(db *bun.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

// SaveQuestionSet upserts the quiz header and replaces its questions in one transaction.
func (s *QuestionStore) SaveQuestionSet(ctx context.Context, quiz domain.SavedQuiz, questions []domain.Question) error {
	createdAt := quiz.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	header := &quizRow{
		ID:        quiz.ID,
		Title:     quiz.Title,
		MaxScore:  len(questions),
		CreatedAt: createdAt,
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		rows[i] = questionRow{
			ID:               q.ID,
			QuizID:           quiz.ID,
			Position:         i,
			Question:         q.Prompt,
			CorrectAnswer:    q.CorrectAnswer,
			IncorrectAnswers: nonNil(q.Distractors),
			Options:          nonNil(q.Options),
			Category:         q.Category,
			Difficulty:       q.Difficulty,
			Type:             q.Type,
			TimerSeconds:     q.TimerSeconds,
			CreatedAt:        createdAt,
		}
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(header).
			On("CONFLICT (id) DO UPDATE").
			Set("title = EXCLUDED.title").
			Set("max_score = EXCLUDED.max_score").
			Set("current_score = 0").
			Exec(ctx); err != nil {
			return fmt.Errorf("save quiz: %w", err)
		}
		if _, err := tx.NewDelete().Model((*questionRow)(nil)).Where("quiz_id = ?", quiz.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear questions: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("save questions: %w", err)
		}
		return nil
	})
}

// ListQuizzes returns saved quiz headers, newest first.
func (s *QuestionStore) ListQuizzes(ctx context.Context) ([]domain.SavedQuiz, error) {
	var rows []quizRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes := make([]domain.SavedQuiz, len(rows))
	for i, r := range rows {
		quizzes[i] = domain.SavedQuiz{
			ID:           r.ID,
			Title:        r.Title,
			CurrentScore: r.CurrentScore,
			MaxScore:     r.MaxScore,
			CreatedAt:    r.CreatedAt,
		}
	}
	return quizzes, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
