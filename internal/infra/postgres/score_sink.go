package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-quiz-service/internal/domain"
)

// ScoreSink appends final scores to quiz_scores. Saved quizzes also get their
// current_score/max_score columns refreshed.
type ScoreSink struct {
	pool *pgxpool.Pool
}

func NewScoreSink(pool *pgxpool.Pool) *ScoreSink {
	return &ScoreSink{pool: pool}
}

func (s *ScoreSink) RecordScore(ctx context.Context, record domain.ScoreRecord) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quiz_scores (session_id, source, topic, score, max_score, outcome, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.SessionID, string(record.Source), record.Topic, record.Score, record.Max, string(record.Outcome), record.FinishedAt,
		); err != nil {
			return err
		}
		if record.Source != domain.SourceSaved {
			return nil
		}
		_, err := tx.Exec(ctx, `UPDATE quizzes SET current_score=$2, max_score=$3 WHERE id=$1`,
			record.Topic, record.Score, record.Max)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSinkWrite, err)
	}
	return nil
}
