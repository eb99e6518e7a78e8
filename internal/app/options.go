package app

import (
	"math/rand"
	"sort"
	"strings"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// OptionOrder controls how answer options are laid out when a question is loaded.
type OptionOrder string

const (
	OrderShuffle OptionOrder = "shuffle"
	OrderSorted  OptionOrder = "sorted"
)

// ParseOptionOrder falls back to shuffling for unknown values.
func ParseOptionOrder(raw string) OptionOrder {
	switch OptionOrder(strings.ToLower(strings.TrimSpace(raw))) {
	case OrderSorted:
		return OrderSorted
	default:
		return OrderShuffle
	}
}

// shuffler is a goroutine-safe wrapper around a seeded *rand.Rand.
type shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func newShuffler(rnd *rand.Rand) *shuffler {
	return &shuffler{rnd: rnd}
}

func (s *shuffler) shuffle(values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
}

// arrangeOptions fixes the display order of every question once. Questions that already carry
// an option order (pre-arranged saved sets) keep it. The input slice is not modified.
func arrangeOptions(questions []domain.Question, order OptionOrder, shuffle func([]string)) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.Distractors = append([]string(nil), q.Distractors...)
		if len(q.Options) > 0 {
			q.Options = append([]string(nil), q.Options...)
			out[i] = q
			continue
		}
		options := q.AnswerPool()
		if order == OrderSorted {
			sort.Strings(options)
		} else {
			shuffle(options)
		}
		q.Options = options
		out[i] = q
	}
	return out
}
