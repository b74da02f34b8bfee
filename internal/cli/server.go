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
	"golang.org/x/sync/errgroup"

	"placement-runner/internal/app"
	"placement-runner/internal/config"
	"placement-runner/internal/infra/memory"
	pgloader "placement-runner/internal/infra/postgres"
	infraredis "placement-runner/internal/infra/redis"
	"placement-runner/internal/infra/sqlite"
	"placement-runner/internal/runner"
	transport "placement-runner/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the placement runner server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var attemptDB *sqlite.DB
	if cfg.SQLite.Path != "" {
		attemptDB, err = sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer attemptDB.Close()
	}

	if err := pingStores(ctx, redisClient, pool, attemptDB); err != nil {
		return err
	}

	attemptTTL := config.TTLDuration(cfg.Runner.AttemptTTL, 24*time.Hour)
	questionTTL := config.TTLDuration(cfg.Placement.QuestionTTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Placement.SessionTTL, 24*time.Hour)

	var loader memory.QuestionLoader = memory.NewStaticQuestionBank(sampleBank())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	var questions app.QuestionRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		questions = infraredis.NewQuestionRepository(redisClient, loader, questionTTL)
		sessions = infraredis.NewSessionStore(redisClient, sessionTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
		sessions = memory.NewSessionStore()
	}

	var stores transport.AttemptStores
	switch {
	case redisClient != nil:
		redisStores := infraredis.NewAttemptStores(redisClient, attemptTTL)
		stores = func(id string) runner.AttemptStore { return redisStores.ForDevice(id) }
	case attemptDB != nil:
		stores = func(id string) runner.AttemptStore { return attemptDB.ForDevice(id) }
		go pruneAttempts(ctx, attemptDB, attemptTTL)
	default:
		memStores := memory.NewDeviceStores()
		stores = func(id string) runner.AttemptStore { return memStores.ForDevice(id) }
	}

	settings := runner.Settings{
		QuestionWindow: config.TTLDuration(cfg.Runner.QuestionWindow, 0),
		TickInterval:   config.TTLDuration(cfg.Runner.TickInterval, 0),
		MaxReplays:     cfg.Runner.MaxReplays,
	}
	service := app.NewPlacementService(sessions, questions, cfg.Placement.PassRatio)
	wsHandler := transport.NewWSHandler(service, stores, settings)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, wsHandler),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting placement runner on :%s", finalPort)
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

// pingStores checks every configured store concurrently.
func pingStores(ctx context.Context, redisClient *redis.Client, pool *pgxpool.Pool, attemptDB *sqlite.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if redisClient != nil {
		g.Go(func() error { return redisClient.Ping(gctx).Err() })
	}
	if pool != nil {
		g.Go(func() error { return pool.Ping(gctx) })
	}
	if attemptDB != nil {
		g.Go(func() error { return attemptDB.Ping(gctx) })
	}
	return g.Wait()
}

func pruneAttempts(ctx context.Context, db *sqlite.DB, ttl time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.Prune(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Printf("prune attempts: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("pruned %d stale attempt records", n)
			}
		}
	}
}
