package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-quiz-service/internal/domain"
)

// QuizLoader loads saved question sets from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

// LoadQuestions returns the quiz's questions in the order they were saved.
func (l *QuizLoader) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM quizzes WHERE id=$1)`, quizID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	if !exists {
		return nil, domain.ErrQuizNotFound
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, question, correct_answer, incorrect_answers, options, category, difficulty, type, timer_seconds
		FROM quiz_questions
		WHERE quiz_id=$1
		ORDER BY position ASC, created_at ASC`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q                       domain.Question
			rawDistractors, rawOpts []byte
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.CorrectAnswer, &rawDistractors, &rawOpts, &q.Category, &q.Difficulty, &q.Type, &q.TimerSeconds); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawDistractors, &q.Distractors); err != nil {
			return nil, fmt.Errorf("unmarshal incorrect answers: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}
