package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/domain"
	"campus-quiz-service/internal/infra/memory"
	pgstore "campus-quiz-service/internal/infra/postgres"
	pgmigrations "campus-quiz-service/internal/infra/postgres/migrations"
	redisstore "campus-quiz-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	bank := memory.NewQuestionBank(pgstore.NewBankLoader(pool), 5*time.Minute, 50)
	snapshots := redisstore.NewSnapshotStore(redisClient, time.Hour)
	scores := pgstore.NewScoreStore(pool)
	service := app.NewSessionService(bank, snapshots, scores, app.Policy{
		TickInterval: time.Hour,
	})

	user, err := service.Login(ctx, "ENG/20/001", "Mechanical", "200L")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Name == "" {
		t.Fatalf("expected a generated display name")
	}

	sess, err := service.Begin(ctx, user.MatricNumber, "Maths", false)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Answer the first question, skip the second, leave any rest alone.
	if err := sess.SelectOption(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := sess.CommitAnswer(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := sess.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := sess.Skip(); err != nil {
		t.Fatalf("skip: %v", err)
	}

	// The resume point should be in Redis before submission.
	if _, err := service.PendingResume(ctx, user.MatricNumber); err != nil {
		t.Fatalf("pending resume: %v", err)
	}

	summary, err := service.Submit(ctx, user.MatricNumber)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if summary.Score != 1 || summary.Total != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := service.PendingResume(ctx, user.MatricNumber); !errors.Is(err, domain.ErrNoSnapshot) {
		t.Fatalf("resume slot must be consumed, got %v", err)
	}

	entries, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 1 {
		t.Fatalf("unexpected leaderboard: %+v", entries)
	}

	reports, err := service.Performance(ctx)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if len(reports) != 1 || len(reports[0].Performance) != 1 {
		t.Fatalf("unexpected performance: %+v", reports)
	}
	if row := reports[0].Performance[0]; row.Subject != "Maths" || row.Average != 1 {
		t.Fatalf("unexpected performance row: %+v", row)
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

func seedBank(t *testing.T, ctx context.Context, dsn string, bank domain.SubjectBank) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(bank.Questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO quizzes (subject, icon, description, color, questions)
		VALUES (?, ?, ?, ?, ?::jsonb)
		ON CONFLICT (subject) DO UPDATE SET questions = EXCLUDED.questions`,
		bank.Subject, bank.Icon, bank.Description, bank.Color, string(data)); err != nil {
		t.Fatalf("insert bank: %v", err)
	}
}

func sampleBank() domain.SubjectBank {
	questions := make([]domain.Question, 2)
	for i := range questions {
		questions[i] = domain.Question{
			Text:          "What is 2 + 2?",
			Options:       []string{"3", "4", "5", "6"},
			CorrectOption: 1,
		}
	}
	return domain.SubjectBank{
		Subject:     "Maths",
		Icon:        "Calculator",
		Description: "Engineering mathematics",
		Color:       "#3b82f6",
		Questions:   questions,
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
