package memory

import (
	"testing"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/clock"
	"trivia-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	req := domain.StartRequest{Source: domain.SourceTrivia, Topic: "9", Count: 5}
	first := app.NewSession("s1", req, app.DefaultSettings(), clock.NewManual())
	second := app.NewSession("s2", req, app.DefaultSettings(), clock.NewManual())

	if prev := store.Replace("p1", first); prev != nil {
		t.Fatalf("expected no previous session")
	}
	if prev := store.Replace("p1", second); prev != first {
		t.Fatalf("expected first session to be returned on replace")
	}
	if got, ok := store.Get("p1"); !ok || got != second {
		t.Fatalf("expected second session present")
	}

	if store.Remove("p1", first) {
		t.Fatalf("stale session must not remove the current one")
	}
	if !store.Remove("p1", second) {
		t.Fatalf("expected current session removed")
	}
	if _, ok := store.Get("p1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreAll(t *testing.T) {
	store := NewSessionStore()
	req := domain.StartRequest{Source: domain.SourceTrivia, Topic: "9"}
	store.Replace("p1", app.NewSession("s1", req, app.DefaultSettings(), clock.NewManual()))
	store.Replace("p2", app.NewSession("s2", req, app.DefaultSettings(), clock.NewManual()))

	ids := map[string]bool{}
	for _, session := range store.All() {
		ids[session.ID()] = true
	}
	if len(ids) != 2 || !ids["s1"] || !ids["s2"] {
		t.Fatalf("expected both sessions, got %v", ids)
	}
}
