package app

import (
	"sync"

	"trivia-quiz-service/internal/domain"
)

// feeds fans session snapshots out to each player's subscribers. Subscriptions are keyed by
// player, not by session, so they survive retries and topic changes.
type feeds struct {
	mu       sync.Mutex
	byPlayer map[string]map[chan domain.SessionView]struct{}
}

func newFeeds() *feeds {
	return &feeds{byPlayer: make(map[string]map[chan domain.SessionView]struct{})}
}

// subscribe registers a channel for the player's updates. Callers seed it with the current state.
func (f *feeds) subscribe(playerID string) (chan domain.SessionView, func()) {
	ch := make(chan domain.SessionView, 8)

	f.mu.Lock()
	subs, ok := f.byPlayer[playerID]
	if !ok {
		subs = make(map[chan domain.SessionView]struct{})
		f.byPlayer[playerID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.byPlayer[playerID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.byPlayer, playerID)
		}
	}
	return ch, cancel
}

func (f *feeds) publish(playerID string, view domain.SessionView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.byPlayer[playerID] {
		push(ch, view)
	}
}

// seed delivers the initial snapshot unless a publish already reached ch.
func (f *feeds) seed(ch chan domain.SessionView, initial domain.SessionView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ch) == 0 {
		push(ch, initial)
	}
}

func push(ch chan domain.SessionView, view domain.SessionView) {
	select {
	case ch <- view:
	default:
		// Slow subscriber: drop its oldest snapshot so the newest one always lands.
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}
