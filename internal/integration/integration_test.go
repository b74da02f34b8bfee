package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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

	"placement-runner/internal/app"
	"placement-runner/internal/domain"
	pgloader "placement-runner/internal/infra/postgres"
	pgmigrations "placement-runner/internal/infra/postgres/migrations"
	infraredis "placement-runner/internal/infra/redis"
	"placement-runner/internal/runner"
)

func TestPlacementEndToEnd(t *testing.T) {
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
	defer redisClient.Close()

	loader := pgloader.NewQuestionLoader(pool)
	questions := infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewPlacementService(sessions, questions, app.DefaultPassRatio)
	attempts := infraredis.NewAttemptStores(redisClient, time.Hour)

	rn := runner.NewRunner(service, attempts.ForDevice("device-1"), runner.DefaultSettings())
	defer rn.Close()

	identity := domain.Identity{Name: "Sara", Email: "sara@example.com", Phone: "+201234567890", Country: "Egypt"}
	if err := rn.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	answers := []int{2, 1}
	for i, option := range answers {
		if err := rn.Select(option); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
		if err := rn.Submit(ctx); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if stage := rn.Controller().Stage(); stage != domain.StageTransition {
		t.Fatalf("expected transition, got %s", stage)
	}
	if err := rn.Continue(ctx); err != nil {
		t.Fatalf("continue: %v", err)
	}

	// Wrong answer on the last level finishes the attempt.
	if err := rn.Select(0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := rn.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	v := rn.View(ctx)
	if v.Stage != domain.StageCompletion || v.Results == nil {
		t.Fatalf("expected completion, got %+v", v)
	}
	if v.Results.FinalLevel != domain.LevelStarter || v.Results.Score != 67 {
		t.Fatalf("unexpected results %+v", v.Results)
	}

	stored, err := service.Existing(ctx, v.SessionID)
	if err != nil || stored.FinalResults == nil {
		t.Fatalf("expected persisted results, got %+v err=%v", stored, err)
	}
	if n, _ := redisClient.Exists(ctx, "placement:questions:Level 1").Result(); n != 1 {
		t.Fatalf("expected level 1 cached in redis")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "placement", "POSTGRES_PASSWORD": "placementpass", "POSTGRES_DB": "placementdb"},
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
	dsn := fmt.Sprintf("postgres://placement:placementpass@%s:%s/placementdb?sslmode=disable", host, port.Port())
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

func seedBank(t *testing.T, ctx context.Context, dsn string, bank map[domain.Level][]domain.BankQuestion) {
	t.Helper()
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

	for level, qs := range bank {
		data, err := json.Marshal(qs)
		if err != nil {
			t.Fatalf("marshal level: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO question_levels (level, data) VALUES (?, ?::jsonb) ON CONFLICT (level) DO UPDATE SET data=EXCLUDED.data`, string(level), string(data)); err != nil {
			t.Fatalf("insert level %s: %v", level, err)
		}
	}
}

func sampleBank() map[domain.Level][]domain.BankQuestion {
	return map[domain.Level][]domain.BankQuestion{
		domain.LevelStarter: {
			{Prompt: "We ___ happy.", Options: []string{"is", "am", "are"}, Correct: 2},
			{Prompt: "She ___ tea.", Options: []string{"drink", "drinks", "drinking"}, Correct: 1},
		},
		domain.Level1: {
			{Prompt: "I have lived here ___ 2019.", Options: []string{"for", "since", "from"}, Correct: 1},
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
