package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/domain"
)

// ScoreSink records final scores in Redis: one hash per session plus a per-topic leaderboard
// ranked by score.
type ScoreSink struct {
	client *redis.Client
	ttl    time.Duration
}

func NewScoreSink(client *redis.Client, ttl time.Duration) *ScoreSink {
	return &ScoreSink{client: client, ttl: ttl}
}

func (s *ScoreSink) RecordScore(ctx context.Context, record domain.ScoreRecord) error {
	key := scoreKey(record.SessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"source":     string(record.Source),
		"topic":      record.Topic,
		"score":      record.Score,
		"max":        record.Max,
		"outcome":    string(record.Outcome),
		"finishedAt": record.FinishedAt.UTC().Format(time.RFC3339),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	pipe.ZAdd(ctx, leaderboardKey(record.Source, record.Topic), redis.Z{
		Score:  float64(record.Score),
		Member: record.SessionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSinkWrite, err)
	}
	return nil
}

func scoreKey(sessionID string) string {
	return "quiz:score:" + sessionID
}

func leaderboardKey(source domain.SourceKind, topic string) string {
	return "quiz:leaderboard:" + string(source) + ":" + topic
}
