package app

import (
	"sync"
	"time"

	"trivia-quiz-service/internal/clock"
	"trivia-quiz-service/internal/domain"
)

// Settings tune question timing and option layout for new sessions.
type Settings struct {
	QuestionDuration time.Duration
	FeedbackDelay    time.Duration
	OptionOrder      OptionOrder
	DefaultCount     int
	MaxCount         int
	SinkTimeout      time.Duration
}

// DefaultSettings mirrors the dashboard's behaviour: 30s per question, 2s of feedback, 5 questions.
func DefaultSettings() Settings {
	return Settings{
		QuestionDuration: 30 * time.Second,
		FeedbackDelay:    2 * time.Second,
		OptionOrder:      OrderShuffle,
		DefaultCount:     5,
		MaxCount:         50,
		SinkTimeout:      5 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.QuestionDuration < time.Second {
		s.QuestionDuration = d.QuestionDuration
	}
	if s.FeedbackDelay <= 0 {
		s.FeedbackDelay = d.FeedbackDelay
	}
	if s.OptionOrder == "" {
		s.OptionOrder = d.OptionOrder
	}
	if s.DefaultCount <= 0 {
		s.DefaultCount = d.DefaultCount
	}
	if s.MaxCount <= 0 {
		s.MaxCount = d.MaxCount
	}
	if s.SinkTimeout <= 0 {
		s.SinkTimeout = d.SinkTimeout
	}
	return s
}

// Session is one run through a fixed, ordered question set.
//
// All state changes happen under mu. Timer and auto-advance callbacks carry the epoch they
// were scheduled in; the epoch moves on every question transition and on teardown, so a
// late callback from a previous question or a closed session is ignored.
type Session struct {
	id       string
	request  domain.StartRequest
	settings Settings
	sched    clock.Scheduler
	now      func() time.Time

	// notify receives every state change; onFinish receives the final score once.
	notify   func(domain.SessionView)
	onFinish func(domain.ScoreRecord)

	mu            sync.Mutex
	questions     []domain.Question
	index         int
	score         int
	remaining     int
	phase         domain.Phase
	outcome       domain.Outcome
	feedback      *domain.Feedback
	lastErr       error
	epoch         uint64
	stopCountdown func()
	stopAdvance   func()
	closed        bool
}

// NewSession creates a session in the NotStarted phase.
func NewSession(id string, req domain.StartRequest, settings Settings, sched clock.Scheduler) *Session {
	if sched == nil {
		sched = clock.Real{}
	}
	return &Session{
		id:       id,
		request:  req,
		settings: settings.withDefaults(),
		sched:    sched,
		now:      time.Now,
		phase:    domain.PhaseNotStarted,
		outcome:  domain.OutcomeUnknown,
	}
}

func (s *Session) ID() string {
	return s.id
}

// Request returns the source, topic and count the session was created for.
func (s *Session) Request() domain.StartRequest {
	return s.request
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// begin loads the fetched questions and starts the first countdown.
func (s *Session) begin(questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase != domain.PhaseNotStarted {
		return domain.ErrStaleSession
	}
	if len(questions) == 0 {
		s.lastErr = domain.ErrEmptyResult
		s.publishLocked()
		return domain.ErrEmptyResult
	}

	s.questions = questions
	s.index = 0
	s.score = 0
	s.lastErr = nil
	s.enterQuestionLocked()
	s.publishLocked()
	return nil
}

// fail records a fetch failure. The session stays NotStarted and no timer runs.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.phase != domain.PhaseNotStarted {
		return domain.ErrStaleSession
	}
	s.lastErr = err
	s.publishLocked()
	return nil
}

// submit locks the current question with the option at index. Outside InProgress it is a no-op.
func (s *Session) submit(option int) (domain.SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.viewLocked(), domain.ErrStaleSession
	}
	if s.phase != domain.PhaseInProgress {
		return s.viewLocked(), nil
	}
	q := s.questions[s.index]
	if option < 0 || option >= len(q.Options) {
		return s.viewLocked(), domain.ErrOptionNotFound
	}
	s.lockLocked(option)
	return s.viewLocked(), nil
}

func (s *Session) tick(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch || s.phase != domain.PhaseInProgress {
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.lockLocked(-1)
		return
	}
	s.publishLocked()
}

// lockLocked resolves the current question. option -1 means the timer expired.
func (s *Session) lockLocked(option int) {
	s.cancelCountdownLocked()
	s.phase = domain.PhaseAnswerLocked

	q := s.questions[s.index]
	correct := option >= 0 && q.Options[option] == q.CorrectAnswer
	if correct {
		s.score++
	}
	s.feedback = &domain.Feedback{
		SelectedOption: option,
		Correct:        correct,
		CorrectAnswer:  domain.DisplayText(q.CorrectAnswer),
		TimedOut:       option < 0,
	}

	epoch := s.epoch
	s.stopAdvance = s.sched.After(s.settings.FeedbackDelay, func() { s.advance(epoch) })
	s.publishLocked()
}

func (s *Session) advance(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || epoch != s.epoch || s.phase != domain.PhaseAnswerLocked {
		return
	}
	s.stopAdvance = nil

	if s.index+1 < len(s.questions) {
		s.index++
		s.enterQuestionLocked()
		s.publishLocked()
		return
	}

	s.epoch++
	s.phase = domain.PhaseFinished
	if s.score == len(s.questions) {
		s.outcome = domain.OutcomeWon
	} else {
		s.outcome = domain.OutcomeLost
	}
	s.publishLocked()
	if s.onFinish != nil {
		s.onFinish(domain.ScoreRecord{
			SessionID:  s.id,
			Source:     s.request.Source,
			Topic:      s.request.Topic,
			Score:      s.score,
			Max:        len(s.questions),
			Outcome:    s.outcome,
			FinishedAt: s.now(),
		})
	}
}

// enterQuestionLocked makes questions[index] current: fresh clock, fresh countdown.
func (s *Session) enterQuestionLocked() {
	s.cancelCountdownLocked()
	s.phase = domain.PhaseInProgress
	s.feedback = nil
	s.remaining = s.durationLocked()

	s.epoch++
	epoch := s.epoch
	s.stopCountdown = s.sched.Every(time.Second, func() { s.tick(epoch) })
}

func (s *Session) durationLocked() int {
	if secs := s.questions[s.index].TimerSeconds; secs > 0 {
		return secs
	}
	return int(s.settings.QuestionDuration / time.Second)
}

func (s *Session) cancelCountdownLocked() {
	if s.stopCountdown != nil {
		s.stopCountdown()
		s.stopCountdown = nil
	}
}

// close tears the session down. Safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	s.cancelCountdownLocked()
	if s.stopAdvance != nil {
		s.stopAdvance()
		s.stopAdvance = nil
	}
}

// retryable reports whether Retry may rebuild this session.
func (s *Session) retryable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == domain.PhaseFinished || (s.phase == domain.PhaseNotStarted && s.lastErr != nil)
}

// announce publishes the current state unless the session has been torn down.
func (s *Session) announce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked()
}

func (s *Session) publishLocked() {
	if s.notify != nil && !s.closed {
		s.notify(s.viewLocked())
	}
}

func (s *Session) viewLocked() domain.SessionView {
	view := domain.SessionView{
		SessionID:     s.id,
		Source:        s.request.Source,
		Topic:         s.request.Topic,
		Phase:         s.phase,
		Outcome:       s.outcome,
		QuestionIndex: s.index,
		QuestionCount: len(s.questions),
		Score:         s.score,
		TimeRemaining: s.remaining,
	}
	if s.phase == domain.PhaseInProgress || s.phase == domain.PhaseAnswerLocked {
		q := s.questions[s.index]
		view.Question = &domain.QuestionView{
			Prompt:       domain.DisplayText(q.Prompt),
			Options:      domain.DisplayTexts(q.Options),
			Category:     domain.DisplayText(q.Category),
			Difficulty:   q.Difficulty,
			TimerSeconds: s.durationLocked(),
		}
	}
	if s.feedback != nil {
		fb := *s.feedback
		view.Feedback = &fb
	}
	if s.lastErr != nil {
		view.Error = s.lastErr.Error()
		view.Retryable = domain.Retryable(s.lastErr)
	}
	return view
}
