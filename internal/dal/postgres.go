package dal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// PostgresDAL implements PlayerDAL using PostgreSQL
type PostgresDAL struct {
	db *sql.DB
}

// NewPostgresDAL creates a new PostgreSQL data access layer tuned for CloudNativePG
func NewPostgresDAL(connString string) (*PostgresDAL, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	// CloudNativePG default max_connections is 100
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// Retry the ping while cluster DNS settles
	maxRetries := 5
	retryDelay := 5 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		lastErr = db.PingContext(ctx)
		cancel()

		if lastErr == nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d retries: %w", maxRetries, lastErr)
	}

	dal := &PostgresDAL{db: db}

	if err := dal.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}

func (p *PostgresDAL) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		rank INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		team TEXT NOT NULL,
		batting_mvp DOUBLE PRECISION NOT NULL DEFAULT 0,
		bowling_mvp DOUBLE PRECISION NOT NULL DEFAULT 0,
		fielding_mvp DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_mvp DOUBLE PRECISION NOT NULL DEFAULT 0,
		photo_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		ts BIGINT NOT NULL,
		summary TEXT NOT NULL,
		result JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_players_team ON players(team);
	CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(ts DESC);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	var count int
	if err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM players").Scan(&count); err != nil {
		return err
	}

	if count == 0 {
		if err := p.seedData(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (p *PostgresDAL) seedData(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO players (rank, name, team, batting_mvp, bowling_mvp, fielding_mvp, total_mvp, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (rank) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, pl := range getDefaultPlayers() {
		if _, err := stmt.ExecContext(ctx, pl.Rank, pl.Name, pl.Team, pl.BattingMVP, pl.BowlingMVP, pl.FieldingMVP, pl.TotalMVP, pl.PhotoURL); err != nil {
			return fmt.Errorf("failed to seed player %d: %w", pl.Rank, err)
		}
	}

	return tx.Commit()
}

func (p *PostgresDAL) ListPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT rank, name, team, batting_mvp, bowling_mvp, fielding_mvp, total_mvp, photo_url
		FROM players ORDER BY rank
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlayers(rows)
}

func (p *PostgresDAL) RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := fillRecord(rec); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO analyses (id, kind, ts, summary, result) VALUES ($1, $2, $3, $4, $5::jsonb)
	`, rec.ID, string(rec.Kind), rec.TS, rec.Summary, rec.Result)
	return err
}

func (p *PostgresDAL) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	query := `SELECT id, kind, ts, summary, result::text FROM analyses ORDER BY ts DESC, created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

func (p *PostgresDAL) ClearAnalyses(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM analyses`)
	return err
}

func (p *PostgresDAL) Close() error {
	return p.db.Close()
}
