package redis

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

// QuizLoader fetches a saved question set from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuizRepository caches saved question sets in Redis and falls back to a loader on cache miss.
// Each question is stored as JSON in a hash keyed by its position:
//
//	HSET quiz:{quizID}:questions {position} {question json}
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchQuestions returns the first count questions of the saved set (all when count <= 0).
func (r *QuizRepository) FetchQuestions(ctx context.Context, quizID string, count int) ([]domain.Question, error) {
	questions, err := r.getQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if count > 0 && count < len(questions) {
		questions = questions[:count]
	}
	return questions, nil
}

func (r *QuizRepository) getQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	key := r.questionsKey(quizID)

	if questions, ok := r.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrEmptyResult
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for i, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, strconv.Itoa(i), data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("cache quiz %s: %v", quizID, err)
		}

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.Question)), nil
}

// Invalidate drops a cached set, e.g. after the setup step rewrote it.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.questionsKey(quizID)).Err()
}

func (r *QuizRepository) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	questions, ok := buildQuestionsFromCache(raw)
	return questions, ok
}

func (r *QuizRepository) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

// buildQuestionsFromCache restores position order; a gap or a bad entry counts as a miss.
func buildQuestionsFromCache(raw map[string]string) ([]domain.Question, bool) {
	questions := make([]domain.Question, len(raw))
	for pos, data := range raw {
		i, err := strconv.Atoi(pos)
		if err != nil || i < 0 || i >= len(raw) {
			return nil, false
		}
		if err := json.Unmarshal([]byte(data), &questions[i]); err != nil {
			return nil, false
		}
	}
	return questions, true
}

func cloneQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	copy(out, in)
	return out
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
