package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-portal/internal/app"
	"quiz-portal/internal/config"
	"quiz-portal/internal/infra/memory"
	"quiz-portal/internal/infra/postgres"
	redisinfra "quiz-portal/internal/infra/redis"
	"quiz-portal/internal/logging"
	"quiz-portal/internal/metrics"
	"quiz-portal/internal/monitor"
	"quiz-portal/internal/pocketbase"
	"quiz-portal/internal/security"
	"quiz-portal/internal/tracing"
	transport "quiz-portal/internal/transport/http"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config)")
	return cmd
}

// stores bundles the session and quiz storage picked at startup.
type stores struct {
	tokens   app.TokenStore
	progress app.ProgressStore
	quizzes  interface {
		app.QuizRepository
		transport.QuizCache
	}
	checks []transport.HealthCheck
	run    func(ctx context.Context) error
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.InitLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	sec, err := security.Preset(cfg.Security.Preset)
	if err != nil {
		return err
	}

	client := pocketbase.New(cfg.PocketBaseURL(),
		pocketbase.WithTimeout(config.TTLDuration(cfg.PocketBase.Timeout, 15*time.Second)),
		pocketbase.WithObserver(metrics.ObservePocketBase),
		pocketbase.WithBreaker(pocketbase.BreakerSettings{
			MaxFailures: cfg.PocketBase.Breaker.MaxFailures,
			OpenTimeout: config.TTLDuration(cfg.PocketBase.Breaker.OpenTimeout, 30*time.Second),
			OnChange: func(from, to string) {
				logger.Warn("pocketbase circuit breaker", "from", from, "to", to)
				metrics.BreakerChanged("pocketbase")(from, to)
			},
		}),
	)
	// The service portal never logs in; it reads what the collection rules
	// expose to guests for caches and leaderboards.
	service := app.NewPortal(client,
		app.WithLogger(logger),
		app.WithUsersCollection(cfg.PocketBase.UsersCollection),
	)

	st, cleanup, err := openStores(ctx, cfg, service)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		sinks   []app.SnapshotSink
		history transport.SnapshotHistory
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		snapshots := postgres.NewSnapshotStore(pool)
		sinks = append(sinks, snapshots)
		history = snapshots
		st.checks = append(st.checks, transport.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	realtime := pocketbase.NewRealtime(client, pocketbase.WithRealtimeLogger(logger))
	defer realtime.Close()
	hub := app.NewRealtimeHub(realtime,
		app.WithDebounce(config.TTLDuration(cfg.Realtime.Debounce, 0)),
		app.WithHubLogger(logger),
	)
	defer hub.Cleanup()

	feed := app.NewLeaderboardFeed(app.NewRankings(service, clockwork.NewRealClock()),
		app.WithEvents(hub),
		app.WithRefreshEvery(config.TTLDuration(cfg.Realtime.RefreshEvery, 5*time.Minute)),
		app.WithSinks(sinks...),
		app.WithFeedLogger(logger),
		app.WithRefreshHook(metrics.ObserveRefresh),
	)
	network := monitor.NewNetworkMonitor(client,
		monitor.WithInterval(config.TTLDuration(cfg.Monitor.Interval, 0)),
		monitor.WithMonitorLogger(logger),
		monitor.WithStatusHook(metrics.SetOnline),
	)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	server, err := transport.NewServer(transport.Options{
		Port:            finalPort,
		Backend:         func(auth *pocketbase.AuthStore) app.Backend { return client.WithAuth(auth) },
		Tokens:          st.tokens,
		Runner:          app.NewQuizRunner(st.quizzes, st.progress, nil, logger),
		Feed:            feed,
		QuizCache:       st.quizzes,
		History:         history,
		Network:         network,
		Security:        sec,
		HealthChecks:    st.checks,
		SessionSecret:   cfg.Server.SessionSecret,
		SessionMaxAge:   config.TTLDuration(cfg.Server.SessionMaxAge, 0),
		SecureCookie:    cfg.Server.SecureCookie,
		PocketBaseURL:   cfg.PocketBaseURL(),
		UsersCollection: cfg.PocketBase.UsersCollection,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	logger.Info("quiz portal configured",
		"pocketbase", cfg.PocketBaseURL(),
		"security_preset", cfg.Security.Preset,
		"redis", cfg.Redis.Addr != "",
		"postgres", cfg.Postgres.URL != "",
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(ctx) })
	g.Go(func() error {
		network.Run(ctx)
		return nil
	})
	if st.run != nil {
		g.Go(func() error { return st.run(ctx) })
	}
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down quiz portal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStores uses Redis when configured so sessions survive restarts and
// are shared between instances; otherwise everything lives in memory.
func openStores(ctx context.Context, cfg config.Config, loader redisinfra.QuizLoader) (*stores, func(), error) {
	authTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
	progressTTL := config.TTLDuration(cfg.Quiz.ProgressTTL, 2*time.Hour)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	if cfg.Redis.Addr == "" {
		sessions := memory.NewSessionStore(authTTL, progressTTL, nil)
		return &stores{
			tokens:   sessions,
			progress: sessions,
			quizzes:  memory.NewQuizRepository(loader, quizTTL, nil),
			run: func(ctx context.Context) error {
				sweepSessions(ctx, sessions)
				return nil
			},
		}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	client.AddHook(redisinfra.MetricsHook{})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err)
	}
	sessions := redisinfra.NewSessionStore(client, authTTL, progressTTL)
	return &stores{
		tokens:   sessions,
		progress: sessions,
		quizzes:  redisinfra.NewQuizRepository(client, loader, quizTTL),
		checks: []transport.HealthCheck{{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}}},
	}, func() { _ = client.Close() }, nil
}

func sweepSessions(ctx context.Context, sessions *memory.SessionStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				slog.Debug("swept expired sessions", "count", n)
			}
		}
	}
}
