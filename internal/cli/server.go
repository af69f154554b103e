package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"contest-service/internal/app"
	"contest-service/internal/config"
	amqppub "contest-service/internal/infra/amqp"
	"contest-service/internal/infra/memory"
	"contest-service/internal/infra/postgres"
	rediscache "contest-service/internal/infra/redis"
	"contest-service/internal/logger"
	"contest-service/internal/metrics"
	transport "contest-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the contest server",
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
	log := logger.New("contest-service", cfg.Log.Level)

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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
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

	// The in-memory store backs everything when postgres is not configured,
	// which keeps local development free of external services.
	var store app.ContestStore
	var ledger app.AttemptLedger
	if pool != nil {
		pg := postgres.NewStore(pool)
		store, ledger = pg, pg
	} else {
		mem := memory.NewContestStore()
		store, ledger = mem, mem
		log.Warn("postgres not configured, using in-memory store")
	}

	cacheTTL := config.Duration(cfg.Contest.CacheTTL, time.Minute)
	var reader app.ContestReader
	if redisClient != nil {
		reader = rediscache.NewContestCache(redisClient, store, cacheTTL)
	} else {
		reader = memory.NewContestCache(store, cacheTTL)
	}

	var winners app.WinnerPublisher
	if cfg.AMQP.URL != "" {
		pub, err := amqppub.NewWinnerPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		winners = pub
	} else {
		winners = memory.NewWinnerPublisher()
		log.Warn("amqp not configured, winner signals stay in memory")
	}

	service := app.NewContestService(store, reader, ledger, winners, log,
		app.WithSubmitTimeout(config.Duration(cfg.Contest.SubmitTimeout, 5*time.Second)))

	auth := transport.NewAuthService(cfg.Auth.Secret)
	handler := transport.NewHandler(service, auth, metrics.New(), log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting contest service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
