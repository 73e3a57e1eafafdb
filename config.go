package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/clickhouse"
)

// Config is everything main reads from the environment
type Config struct {
	Port        string
	GRPCPort    string
	Environment string

	DBDriver    string
	SQLiteFile  string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	MVPSource          string
	MVPFile            string
	ClickHouseAddr     string
	ClickHouseDB       string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseTable    string

	NATSURL     string
	NATSSubject string

	SessionTTL time.Duration

	AuthentikBaseURL      string
	AuthentikClientID     string
	AuthentikClientSecret string
	AuthentikRedirectURL  string
	AuthentikAppSlug      string

	MCPAPIKey string
}

// Development reports whether local stand-ins (embedded NATS, mock auth) are used
func (c Config) Development() bool {
	return c.Environment == "" || c.Environment == "development"
}

// loadConfig reads the environment through getenv, applying defaults
func loadConfig(getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:        env("PORT", "3000"),
		GRPCPort:    env("GRPC_PORT", "50051"),
		Environment: env("ENVIRONMENT", "development"),

		DBDriver:    env("DB_DRIVER", "memory"),
		SQLiteFile:  env("SQLITE_FILE", "dev.sqlite"),
		DatabaseURL: getenv("DATABASE_URL"),
		MongoURI:    env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     env("MONGO_DB", "cricket"),

		MVPSource:          env("MVP_SOURCE", "store"),
		MVPFile:            getenv("MVP_FILE"),
		ClickHouseAddr:     env("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:       env("CLICKHOUSE_DB", "default"),
		ClickHouseUser:     env("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseTable:    env("CLICKHOUSE_TABLE", clickhouse.DefaultTable),

		NATSURL:     env("NATS_URL", "nats://localhost:4222"),
		NATSSubject: env("NATS_SUBJECT", "analysis.events"),

		AuthentikBaseURL:      getenv("AUTHENTIK_BASE_URL"),
		AuthentikClientID:     getenv("AUTHENTIK_CLIENT_ID"),
		AuthentikClientSecret: getenv("AUTHENTIK_CLIENT_SECRET"),
		AuthentikRedirectURL:  env("AUTHENTIK_REDIRECT_URL", "http://localhost:3000/auth/callback"),
		AuthentikAppSlug:      getenv("AUTHENTIK_APP_SLUG"),

		MCPAPIKey: getenv("MCP_API_KEY"),
	}

	ttl, err := time.ParseDuration(env("SESSION_TTL", "30m"))
	if err != nil {
		return cfg, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.DBDriver {
	case "memory", "sqlite", "mongo":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER: %s (valid: memory, sqlite, postgres, mongo)", c.DBDriver)
	}

	switch c.MVPSource {
	case "store", "clickhouse":
	case "file":
		if c.MVPFile == "" {
			return fmt.Errorf("MVP_FILE is required when MVP_SOURCE=file")
		}
	default:
		return fmt.Errorf("unknown MVP_SOURCE: %s (valid: store, clickhouse, file)", c.MVPSource)
	}

	if !c.Development() {
		if c.AuthentikBaseURL == "" || c.AuthentikClientID == "" || c.AuthentikClientSecret == "" {
			return fmt.Errorf("AUTHENTIK_BASE_URL, AUTHENTIK_CLIENT_ID, and AUTHENTIK_CLIENT_SECRET environment variables are required for production")
		}
	}
	return nil
}
