package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/clock"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/postgres"
	pgmigrations "trivia-quiz-service/internal/infra/postgres/migrations"
	infraredis "trivia-quiz-service/internal/infra/redis"
)

func TestSavedQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()
	questions := postgres.NewQuestionStore(db)
	if err := questions.SaveQuestionSet(ctx, domain.SavedQuiz{ID: "quiz-1", Title: "Basics"}, sampleQuestions()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	sched := clock.NewManual()
	saved := infraredis.NewQuizRepository(redisClient, postgres.NewQuizLoader(pool), 5*time.Minute)
	service := app.NewQuizService(infraredis.NewSessionStore(redisClient, 5*time.Minute), map[domain.SourceKind]app.QuestionSource{
		domain.SourceSaved: saved,
	},
		app.WithScheduler(sched),
		app.WithScoreSink(postgres.NewScoreSink(pool)),
		app.WithQuizCatalog(questions),
	)

	view, err := service.Start(ctx, "p1", domain.StartRequest{Source: domain.SourceSaved, Topic: "quiz-1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.QuestionCount != 2 || view.TimeRemaining != 20 {
		t.Fatalf("expected persisted timer and count, got %+v", view)
	}
	// persisted option order is kept: correct answer is stored first
	if view.Question.Options[0] != "4" {
		t.Fatalf("expected persisted option order, got %v", view.Question.Options)
	}

	if _, err := service.Submit(ctx, "p1", 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sched.Advance(2 * time.Second)
	if _, err := service.Submit(ctx, "p1", 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sched.Advance(2 * time.Second)

	view, err = service.Snapshot("p1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if view.Phase != domain.PhaseFinished || view.Outcome != domain.OutcomeLost || view.Score != 1 {
		t.Fatalf("expected lost with 1 point, got %+v", view)
	}
	service.Close()

	var rows, score, maxScore int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM quiz_scores WHERE topic='quiz-1' AND outcome='lost'`).Scan(&rows); err != nil {
		t.Fatalf("count scores: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one score row, got %d", rows)
	}
	if err := pool.QueryRow(ctx, `SELECT current_score, max_score FROM quizzes WHERE id='quiz-1'`).Scan(&score, &maxScore); err != nil {
		t.Fatalf("read quiz: %v", err)
	}
	if score != 1 || maxScore != 2 {
		t.Fatalf("expected 1/2 on quiz header, got %d/%d", score, maxScore)
	}

	quizzes, err := service.SavedQuizzes(ctx)
	if err != nil || len(quizzes) != 1 || quizzes[0].Title != "Basics" {
		t.Fatalf("unexpected saved quizzes %+v (%v)", quizzes, err)
	}
}

func TestRedisScoreSinkEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	sink := infraredis.NewScoreSink(redisClient, time.Minute)
	record := domain.ScoreRecord{SessionID: "s1", Source: domain.SourceTrivia, Topic: "9", Score: 3, Max: 3, Outcome: domain.OutcomeWon, FinishedAt: time.Now()}
	if err := sink.RecordScore(ctx, record); err != nil {
		t.Fatalf("record: %v", err)
	}
	score, err := redisClient.ZScore(ctx, "quiz:leaderboard:trivia:9", "s1").Result()
	if err != nil || score != 3 {
		t.Fatalf("expected leaderboard score 3, got %v (%v)", score, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Prompt:        "What is 2 + 2?",
			CorrectAnswer: "4",
			Distractors:   []string{"3", "5", "22"},
			Options:       []string{"4", "3", "5", "22"},
			Type:          "multiple",
			TimerSeconds:  20,
		},
		{
			ID:            "q2",
			Prompt:        "Capital of France?",
			CorrectAnswer: "Paris",
			Distractors:   []string{"Rome", "Madrid", "Berlin"},
			Options:       []string{"Paris", "Rome", "Madrid", "Berlin"},
			Type:          "multiple",
			TimerSeconds:  20,
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
