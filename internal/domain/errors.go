package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a player has no quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates a saved quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrOptionNotFound indicates a submitted option index is invalid.
	ErrOptionNotFound = errors.New("option not found")

	// ErrSourceUnavailable is a transient question source failure; the player may retry.
	ErrSourceUnavailable = errors.New("question source unavailable")
	// ErrEmptyResult means the source returned no questions for the topic.
	ErrEmptyResult = errors.New("question source returned no questions")
	// ErrSinkWrite wraps score persistence failures. Logged only.
	ErrSinkWrite = errors.New("score sink write failed")

	ErrTopicRequired        = errors.New("topic is required")
	ErrInvalidQuestionCount = errors.New("invalid question count")
	ErrUnknownSource        = errors.New("unknown question source")
	ErrRetryNotAllowed      = errors.New("retry is only allowed after a finished or failed session")
	// ErrStaleSession is returned when a fetch resolves after its session was replaced or torn down.
	ErrStaleSession = errors.New("quiz session is no longer active")
	// ErrShuttingDown rejects new sessions once the service is closing.
	ErrShuttingDown = errors.New("quiz service is shutting down")
)

// Retryable reports whether err leaves the player with a retry affordance.
func Retryable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrEmptyResult)
}
