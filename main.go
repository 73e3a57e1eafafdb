package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/analysis"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/auth"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/clickhouse"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dal"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	grpcserver "github.com/Billy-Davies-2/cricket-league-analysis/internal/grpc"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/handlers"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/mcptools"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/pubsub"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/session"
)

// Version is set during build using ldflags
var version = "dev"

const sweepInterval = time.Minute

func main() {
	// Initialize logger first
	logger.Init()

	logger.Info("Starting cricket league analysis service", "version", version)

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Service stopped")
}

// closers run in reverse order on shutdown
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(ctx context.Context, cfg Config) error {
	var cleanup closers
	defer cleanup.run()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	cleanup.add(func() { store.Close() })

	var checks []namedCheck
	checks = append(checks, namedCheck{"store", func(ctx context.Context) error {
		_, err := store.ListAnalyses(ctx, 1)
		return err
	}})

	ds, check, closeSource, err := loadDataset(ctx, cfg, store)
	if err != nil {
		return err
	}
	if closeSource != nil {
		cleanup.add(closeSource)
	}
	if check != nil {
		checks = append(checks, namedCheck{"clickhouse", check})
	}
	logger.Info("Dataset loaded", "source", cfg.MVPSource, "players", ds.Len(), "teams", len(ds.Teams()))

	upstream, natsCheck, closeEvents, err := openEvents(cfg)
	if err != nil {
		return err
	}
	cleanup.add(closeEvents)
	checks = append(checks, namedCheck{"nats", natsCheck})
	ps := pubsub.NewWithUpstream(upstream)

	sessions := session.NewStore(cfg.SessionTTL)
	sessions.OnExpire(func(kind session.Kind, id string) {
		ps.Publish(pubsub.NewEvent(pubsub.TypeSessionClose, map[string]string{
			"id":     id,
			"kind":   string(kind),
			"reason": "expired",
		}))
	})
	go sessions.Run(ctx, sweepInterval)

	svc := analysis.NewService(ds, store, ps)
	authProvider := newAuthProvider(cfg)

	// gRPC
	grpcServer := grpc.NewServer()
	grpcserver.Register(grpcServer, grpcserver.NewServer(svc, ps))
	lis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCPort, err)
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("gRPC server starting", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errc <- fmt.Errorf("gRPC server: %w", err)
		}
	}()
	cleanup.add(func() { stopGRPC(grpcServer, 5*time.Second) })

	// HTTP
	api := handlers.NewAPIHandlers(svc, sessions, ps)
	for _, c := range checks {
		api.AddReadinessCheck(c.name, c.check)
	}
	router := handlers.NewRouter(api, authProvider)

	tools := mcptools.NewServer(svc, version)
	router.Handle("/mcp", tools.Handler(cfg.MCPAPIKey))
	router.Handle("/mcp/tools", tools.ToolsHandler(cfg.MCPAPIKey)).Methods(http.MethodGet)
	logger.Info("MCP tools mounted", "path", "/mcp", "tools", len(tools.Tools()), "api_key", cfg.MCPAPIKey != "")

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Cancelling ctx ends long-lived SSE streams so Shutdown can finish
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Info("Server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	return nil
}

// stopGRPC drains in-flight calls, forcing event streams closed after timeout
func stopGRPC(s *grpc.Server, timeout time.Duration) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("gRPC graceful stop timed out, forcing")
		s.Stop()
	}
}

type namedCheck struct {
	name  string
	check handlers.ReadinessCheck
}

func openStore(ctx context.Context, cfg Config) (dal.PlayerDAL, error) {
	switch cfg.DBDriver {
	case "memory":
		logger.Info("Using in-memory data store")
		return dal.NewMemoryDAL(), nil
	case "sqlite":
		store, err := dal.NewSQLiteDAL(cfg.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		logger.Info("Connected to SQLite database", "file", cfg.SQLiteFile)
		return store, nil
	case "postgres":
		store, err := dal.NewPostgresDAL(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		logger.Info("Connected to Postgres database")
		return store, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := dal.NewMongoDAL(connectCtx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		logger.Info("Connected to MongoDB", "database", cfg.MongoDB)
		return store, nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
}

// loadDataset reads the MVP table once. The returned check and closer are
// non-nil only for sources that keep a connection open.
func loadDataset(ctx context.Context, cfg Config, store dal.PlayerDAL) (*dataset.Dataset, handlers.ReadinessCheck, func(), error) {
	switch cfg.MVPSource {
	case "clickhouse":
		ch, err := clickhouse.NewClient(cfg.ClickHouseAddr, cfg.ClickHouseDB, cfg.ClickHouseUser, cfg.ClickHousePassword)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
		}
		ch.WithTable(cfg.ClickHouseTable)
		logger.Info("Connected to ClickHouse", "address", cfg.ClickHouseAddr, "database", cfg.ClickHouseDB)

		records, err := ch.LoadPlayers(ctx)
		if err != nil {
			ch.Close()
			return nil, nil, nil, fmt.Errorf("failed to load players from ClickHouse: %w", err)
		}
		if len(records) == 0 {
			ch.Close()
			return nil, nil, nil, fmt.Errorf("ClickHouse table %s has no players", cfg.ClickHouseTable)
		}
		return dataset.New(records), ch.Ping, func() { ch.Close() }, nil
	case "file":
		f, err := os.Open(cfg.MVPFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open MVP_FILE: %w", err)
		}
		defer f.Close()
		ds, err := dataset.LoadJSON(f)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to parse MVP_FILE: %w", err)
		}
		return ds, nil, nil, nil
	default:
		records, err := store.ListPlayers(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load players from store: %w", err)
		}
		if len(records) == 0 {
			logger.Warn("Store holds no players, using bundled dataset")
			return dataset.Default(), nil, nil, nil
		}
		return dataset.New(records), nil, nil, nil
	}
}

// openEvents starts embedded NATS in development and connects to NATS_URL otherwise
func openEvents(cfg Config) (pubsub.Upstream, handlers.ReadinessCheck, func(), error) {
	if cfg.Development() {
		logger.Info("Starting embedded NATS server for local development")
		opts := pubsub.DefaultEmbeddedNATSOptions()
		opts.Subject = cfg.NATSSubject
		embedded, err := pubsub.NewEmbeddedNATSPubSub(opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize embedded NATS: %w", err)
		}
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
		return embedded, natsReady(embedded.NATSPubSub), embedded.Close, nil
	}

	logger.Info("Using NATS JetStream", "url", cfg.NATSURL)
	nps, err := pubsub.NewNATSPubSub(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize NATS: %w", err)
	}
	logger.Info("Connected to NATS", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
	return nps, natsReady(nps), nps.Close, nil
}

func natsReady(p *pubsub.NATSPubSub) handlers.ReadinessCheck {
	return func(context.Context) error {
		if !p.Healthy() {
			return errors.New("nats connection down")
		}
		return nil
	}
}

// newAuthProvider uses mock auth in development, Authentik OAuth2 otherwise
func newAuthProvider(cfg Config) auth.AuthProvider {
	if cfg.Development() {
		logger.Info("Using mock authentication for local development (no Authentik server required)")
		return auth.NewMockAuth()
	}
	logger.Info("Using Authentik authentication", "url", cfg.AuthentikBaseURL)
	return auth.NewAuthentikAuth(&auth.AuthentikConfig{
		BaseURL:      cfg.AuthentikBaseURL,
		ClientID:     cfg.AuthentikClientID,
		ClientSecret: cfg.AuthentikClientSecret,
		RedirectURL:  cfg.AuthentikRedirectURL,
		AppSlug:      cfg.AuthentikAppSlug,
		Scopes:       []string{"openid", "profile", "email"},
	})
}
