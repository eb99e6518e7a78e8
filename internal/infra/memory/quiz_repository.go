package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

// QuizLoader fetches a saved question set from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuizRepository caches saved question sets with TTL to avoid repeated DB hits.
// It is the "saved" question source: topic is the quiz id.
type QuizRepository struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

// FetchQuestions returns the first count questions of the saved set (all of them when count <= 0).
func (r *QuizRepository) FetchQuestions(ctx context.Context, quizID string, count int) ([]domain.Question, error) {
	questions, err := r.getQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return limit(questions, count), nil
}

func (r *QuizRepository) getQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[quizID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if len(questions) == 0 {
			return nil, domain.ErrEmptyResult
		}

		r.mu.Lock()
		r.cache[quizID] = cachedQuiz{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops a cached set, e.g. after the setup step rewrote it.
func (r *QuizRepository) Invalidate(_ context.Context, quizID string) error {
	r.mu.Lock()
	delete(r.cache, quizID)
	r.mu.Unlock()
	return nil
}

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[string][]domain.Question
}

func NewStaticQuizLoader(quizzes map[string][]domain.Question) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	if questions, ok := l.quizzes[quizID]; ok {
		return questions, nil
	}
	return nil, domain.ErrQuizNotFound
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func limit(questions []domain.Question, count int) []domain.Question {
	if count > 0 && count < len(questions) {
		questions = questions[:count]
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out
}
