package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/opentdb"
	"trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
	transport "trivia-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	deps, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(deps.service),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// services holds the wired quiz service and the connections it depends on.
type services struct {
	service *app.QuizService
	closers []func()
}

// close waits for pending score writes before releasing connections.
func (s *services) close() {
	s.service.Close()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildService(ctx context.Context, cfg config.Config) (*services, error) {
	deps := &services{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		deps.closers = append(deps.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		pool *pgxpool.Pool
		db   *bun.DB
		err  error
	)
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pool.Close)

		db = openBunDB(cfg.Postgres.URL)
		deps.closers = append(deps.closers, func() { _ = db.Close() })
	}

	settings := settingsFromConfig(cfg)
	trivia := opentdb.NewClient(cfg.Trivia.BaseURL, config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second))

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = postgres.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var saved interface {
		app.QuestionSource
		app.SetInvalidator
	}
	if redisClient != nil {
		saved = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		saved = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	opts := []app.Option{
		app.WithSettings(settings),
		app.WithCategories(trivia),
		app.WithSavedCache(saved),
	}
	switch {
	case pool != nil:
		opts = append(opts, app.WithScoreSink(postgres.NewScoreSink(pool)))
	case redisClient != nil:
		opts = append(opts, app.WithScoreSink(redisstore.NewScoreSink(redisClient, redisTTL)))
	default:
		log.Printf("no score store configured; final scores are not persisted")
	}
	if db != nil {
		questions := postgres.NewQuestionStore(db)
		opts = append(opts, app.WithQuestionWriter(questions), app.WithQuizCatalog(questions))
	}

	deps.service = app.NewQuizService(store, map[domain.SourceKind]app.QuestionSource{
		domain.SourceTrivia: trivia,
		domain.SourceSaved:  saved,
	}, opts...)
	return deps, nil
}

func settingsFromConfig(cfg config.Config) app.Settings {
	defaults := app.DefaultSettings()
	settings := app.Settings{
		QuestionDuration: time.Duration(cfg.Quiz.QuestionSeconds) * time.Second,
		FeedbackDelay:    config.TTLDuration(cfg.Quiz.FeedbackDelay, defaults.FeedbackDelay),
		DefaultCount:     cfg.Quiz.DefaultCount,
		MaxCount:         cfg.Quiz.MaxCount,
		SinkTimeout:      config.TTLDuration(cfg.Quiz.SinkTimeout, defaults.SinkTimeout),
	}
	if cfg.Quiz.OptionOrder != "" {
		settings.OptionOrder = app.ParseOptionOrder(cfg.Quiz.OptionOrder)
	}
	return settings
}

// sampleQuizzes backs the saved source when no database is configured.
func sampleQuizzes() map[string][]domain.Question {
	return map[string][]domain.Question{
		"sample": {
			{
				ID:            "sample-1",
				Prompt:        "What is 2 + 2?",
				CorrectAnswer: "4",
				Distractors:   []string{"3", "5", "22"},
				Category:      "Mathematics",
				Difficulty:    "easy",
				Type:          "multiple",
			},
			{
				ID:            "sample-2",
				Prompt:        "Which planet is known as the &quot;Red Planet&quot;?",
				CorrectAnswer: "Mars",
				Distractors:   []string{"Venus", "Jupiter", "Saturn"},
				Category:      "Science &amp; Nature",
				Difficulty:    "easy",
				Type:          "multiple",
			},
		},
	}
}
