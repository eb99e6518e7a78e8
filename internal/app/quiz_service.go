package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"trivia-quiz-service/internal/clock"
	"trivia-quiz-service/internal/domain"

	"github.com/google/uuid"
)

// SessionRepository abstracts where each player's active session lives (in-memory, Redis, etc).
type SessionRepository interface {
	// Replace installs session as the player's active one and returns the previous session, if any.
	Replace(playerID string, session *Session) *Session
	Get(playerID string) (*Session, bool)
	// Remove deletes the player's session only if it is still session.
	Remove(playerID string, session *Session) bool
	// All returns every stored session.
	All() []*Session
}

// QuestionSource supplies an ordered question set for a topic.
type QuestionSource interface {
	FetchQuestions(ctx context.Context, topic string, count int) ([]domain.Question, error)
}

// ScoreSink persists final scores. Failures never affect gameplay.
type ScoreSink interface {
	RecordScore(ctx context.Context, record domain.ScoreRecord) error
}

// CategoryLister lists trivia topics.
type CategoryLister interface {
	Categories(ctx context.Context) ([]domain.Category, error)
}

// QuestionWriter persists a question set produced by the setup step.
type QuestionWriter interface {
	SaveQuestionSet(ctx context.Context, quiz domain.SavedQuiz, questions []domain.Question) error
}

// QuizCatalog lists saved quizzes.
type QuizCatalog interface {
	ListQuizzes(ctx context.Context) ([]domain.SavedQuiz, error)
}

// SetInvalidator drops a cached question set after it has been rewritten.
type SetInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithSettings(settings Settings) Option {
	return func(s *QuizService) { s.settings = settings.withDefaults() }
}

func WithScheduler(sched clock.Scheduler) Option {
	return func(s *QuizService) { s.sched = sched }
}

func WithScoreSink(sink ScoreSink) Option {
	return func(s *QuizService) { s.sink = sink }
}

func WithCategories(categories CategoryLister) Option {
	return func(s *QuizService) { s.categories = categories }
}

func WithQuestionWriter(writer QuestionWriter) Option {
	return func(s *QuizService) { s.writer = writer }
}

func WithQuizCatalog(catalog QuizCatalog) Option {
	return func(s *QuizService) { s.catalog = catalog }
}

// WithSavedCache lets SetupQuiz evict a rewritten set from the saved-source cache.
func WithSavedCache(cache SetInvalidator) Option {
	return func(s *QuizService) { s.savedCache = cache }
}

// WithRand fixes the option shuffle source; tests use a seeded one.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.shuffler = newShuffler(rnd) }
}

// WithClock overrides the wall clock used for score timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions   SessionRepository
	sources    map[domain.SourceKind]QuestionSource
	sink       ScoreSink
	categories CategoryLister
	writer     QuestionWriter
	catalog    QuizCatalog
	savedCache SetInvalidator
	settings   Settings
	sched      clock.Scheduler
	shuffler   *shuffler
	now        func() time.Time
	newID      func() string
	feeds      *feeds

	// pending tracks in-flight score writes. closeMu orders pending.Add and new
	// sessions against Close.
	closeMu sync.RWMutex
	closing bool
	pending sync.WaitGroup
}

func NewQuizService(store SessionRepository, sources map[domain.SourceKind]QuestionSource, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		sources:  sources,
		settings: DefaultSettings(),
		sched:    clock.Real{},
		shuffler: newShuffler(rand.New(rand.NewSource(time.Now().UnixNano()))),
		now:      time.Now,
		newID:    uuid.NewString,
		feeds:    newFeeds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start replaces the player's session with a fresh one for req and fetches its questions.
// A fetch failure leaves the new session NotStarted with a retryable error; the error is also
// returned. If the session is replaced while the fetch is in flight, the result is discarded and
// ErrStaleSession is returned.
func (s *QuizService) Start(ctx context.Context, playerID string, req domain.StartRequest) (domain.SessionView, error) {
	req, err := s.normalize(req)
	if err != nil {
		return domain.SessionView{}, err
	}
	source := s.sources[req.Source]

	session := s.newSession(playerID, req)
	s.closeMu.RLock()
	if s.closing {
		s.closeMu.RUnlock()
		return domain.SessionView{}, domain.ErrShuttingDown
	}
	prev := s.sessions.Replace(playerID, session)
	s.closeMu.RUnlock()
	if prev != nil {
		prev.close()
	}
	session.announce()

	questions, err := source.FetchQuestions(ctx, req.Topic, req.Count)
	if err == nil && len(questions) == 0 {
		err = domain.ErrEmptyResult
	}
	if err != nil {
		err = classifySourceError(err)
		if ferr := session.fail(err); ferr != nil {
			log.Printf("player %s: discarding failed fetch for stale session %s", playerID, session.ID())
			return domain.SessionView{}, ferr
		}
		log.Printf("player %s: fetch %s/%q failed: %v", playerID, req.Source, req.Topic, err)
		return session.Snapshot(), err
	}

	questions = arrangeOptions(questions, s.settings.OptionOrder, s.shuffler.shuffle)
	if err := session.begin(questions); err != nil {
		log.Printf("player %s: discarding questions for stale session %s", playerID, session.ID())
		return domain.SessionView{}, err
	}
	log.Printf("player %s: session %s started with %d questions (%s/%q)", playerID, session.ID(), len(questions), req.Source, req.Topic)
	return session.Snapshot(), nil
}

// Submit answers the current question with the option at index.
func (s *QuizService) Submit(_ context.Context, playerID string, option int) (domain.SessionView, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return session.submit(option)
}

// Retry re-fetches the same source, topic and count into a fresh session.
func (s *QuizService) Retry(ctx context.Context, playerID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	if !session.retryable() {
		return session.Snapshot(), domain.ErrRetryNotAllowed
	}
	return s.Start(ctx, playerID, session.Request())
}

// ChooseNewTopic discards the player's session and returns them to topic selection.
func (s *QuizService) ChooseNewTopic(playerID string) domain.SessionView {
	s.teardown(playerID)
	view := domain.SessionView{Phase: domain.PhaseNotStarted, Outcome: domain.OutcomeUnknown}
	s.feeds.publish(playerID, view)
	return view
}

// Leave tears down the player's session, e.g. when their connection closes.
func (s *QuizService) Leave(_ context.Context, playerID string) {
	s.teardown(playerID)
}

// Snapshot returns the player's current session state.
func (s *QuizService) Snapshot(playerID string) (domain.SessionView, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// Subscribe returns a channel of state updates for the player, starting with the current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, playerID string) (<-chan domain.SessionView, func()) {
	updates, cancel := s.feeds.subscribe(playerID)
	initial := domain.SessionView{Phase: domain.PhaseNotStarted, Outcome: domain.OutcomeUnknown}
	if session, ok := s.sessions.Get(playerID); ok {
		initial = session.Snapshot()
	}
	// anything published after registration is at least as new as the snapshot
	s.feeds.seed(updates, initial)
	return updates, cancel
}

// Categories lists the topics of the trivia source.
func (s *QuizService) Categories(ctx context.Context) ([]domain.Category, error) {
	if s.categories == nil {
		return nil, domain.ErrSourceUnavailable
	}
	categories, err := s.categories.Categories(ctx)
	if err != nil {
		return nil, classifySourceError(err)
	}
	return categories, nil
}

// SetupQuiz fetches questions from the trivia source, fixes their option order and persists
// them so the quiz can later be played through the saved source.
func (s *QuizService) SetupQuiz(ctx context.Context, req domain.SetupRequest) ([]domain.Question, error) {
	if s.writer == nil {
		return nil, fmt.Errorf("setup quiz: no question store configured")
	}
	req.QuizID = strings.TrimSpace(req.QuizID)
	if req.QuizID == "" {
		return nil, fmt.Errorf("setup quiz: %w", domain.ErrTopicRequired)
	}
	count, err := s.questionCount(req.Count)
	if err != nil {
		return nil, err
	}
	source, ok := s.sources[domain.SourceTrivia]
	if !ok {
		return nil, domain.ErrUnknownSource
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = AnyCategory
	}

	questions, err := source.FetchQuestions(ctx, category, count)
	if err == nil && len(questions) == 0 {
		err = domain.ErrEmptyResult
	}
	if err != nil {
		return nil, classifySourceError(err)
	}

	timer := req.TimerSeconds
	if timer <= 0 {
		timer = int(s.settings.QuestionDuration / time.Second)
	}
	questions = arrangeOptions(questions, OrderShuffle, s.shuffler.shuffle)
	for i := range questions {
		questions[i].ID = uuid.NewString()
		questions[i].TimerSeconds = timer
	}

	title := req.Title
	if title == "" {
		title = req.QuizID
	}
	quiz := domain.SavedQuiz{ID: req.QuizID, Title: title, MaxScore: len(questions), CreatedAt: s.now()}
	if err := s.writer.SaveQuestionSet(ctx, quiz, questions); err != nil {
		return nil, fmt.Errorf("setup quiz %s: %w", req.QuizID, err)
	}
	if s.savedCache != nil {
		if err := s.savedCache.Invalidate(ctx, req.QuizID); err != nil {
			log.Printf("quiz %s: cache invalidation failed: %v", req.QuizID, err)
		}
	}
	log.Printf("quiz %s: saved %d questions", req.QuizID, len(questions))
	return questions, nil
}

// SavedQuizzes lists the quizzes playable through the saved source.
func (s *QuizService) SavedQuizzes(ctx context.Context) ([]domain.SavedQuiz, error) {
	if s.catalog == nil {
		return []domain.SavedQuiz{}, nil
	}
	return s.catalog.ListQuizzes(ctx)
}

// Close tears down every live session, rejects new ones and waits for in-flight score writes.
func (s *QuizService) Close() {
	s.closeMu.Lock()
	s.closing = true
	s.closeMu.Unlock()

	for _, session := range s.sessions.All() {
		session.close()
	}
	s.pending.Wait()
}

// AnyCategory asks the trivia source for questions from every category.
const AnyCategory = "any"

func (s *QuizService) newSession(playerID string, req domain.StartRequest) *Session {
	session := NewSession(s.newID(), req, s.settings, s.sched)
	session.now = s.now
	session.notify = func(view domain.SessionView) { s.feeds.publish(playerID, view) }
	session.onFinish = func(record domain.ScoreRecord) {
		log.Printf("player %s: session %s finished %s with %d/%d", playerID, record.SessionID, record.Outcome, record.Score, record.Max)
		s.recordScore(record)
	}
	return session
}

func (s *QuizService) teardown(playerID string) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return
	}
	if s.sessions.Remove(playerID, session) {
		session.close()
	}
}

// recordScore writes to the sink in the background; errors are logged only.
func (s *QuizService) recordScore(record domain.ScoreRecord) {
	if s.sink == nil {
		return
	}
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closing {
		log.Printf("session %s: shutting down, score not recorded", record.SessionID)
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.settings.SinkTimeout)
		defer cancel()
		if err := s.sink.RecordScore(ctx, record); err != nil {
			log.Printf("session %s: %v: %v", record.SessionID, domain.ErrSinkWrite, err)
		}
	}()
}

func (s *QuizService) normalize(req domain.StartRequest) (domain.StartRequest, error) {
	if req.Source == "" {
		req.Source = domain.SourceTrivia
	}
	if _, ok := s.sources[req.Source]; !ok {
		return req, fmt.Errorf("%w: %q", domain.ErrUnknownSource, req.Source)
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return req, domain.ErrTopicRequired
	}
	if req.Source == domain.SourceSaved && req.Count == 0 {
		// saved quizzes are played in full
		return req, nil
	}
	count, err := s.questionCount(req.Count)
	if err != nil {
		return req, err
	}
	req.Count = count
	return req, nil
}

func (s *QuizService) questionCount(count int) (int, error) {
	if count == 0 {
		return s.settings.DefaultCount, nil
	}
	if count < 1 || count > s.settings.MaxCount {
		return 0, fmt.Errorf("%w: %d (allowed 1..%d)", domain.ErrInvalidQuestionCount, count, s.settings.MaxCount)
	}
	return count, nil
}

// classifySourceError maps any fetch failure onto the retryable taxonomy.
func classifySourceError(err error) error {
	if errors.Is(err, domain.ErrEmptyResult) || errors.Is(err, domain.ErrSourceUnavailable) {
		return err
	}
	if errors.Is(err, domain.ErrQuizNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrEmptyResult, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
}
