package dal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// SQLiteDAL implements PlayerDAL using SQLite
type SQLiteDAL struct {
	db *sql.DB
}

// NewSQLiteDAL creates a new SQLite data access layer
func NewSQLiteDAL(dbPath string) (*SQLiteDAL, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers; a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	dal := &SQLiteDAL{db: db}

	if err := dal.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return dal, nil
}

func (s *SQLiteDAL) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		rank INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		team TEXT NOT NULL,
		batting_mvp REAL NOT NULL DEFAULT 0,
		bowling_mvp REAL NOT NULL DEFAULT 0,
		fielding_mvp REAL NOT NULL DEFAULT 0,
		total_mvp REAL NOT NULL DEFAULT 0,
		photo_url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		ts INTEGER NOT NULL,
		summary TEXT NOT NULL,
		result TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_ts ON analyses(ts);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Seed default data if empty
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM players").Scan(&count); err != nil {
		return err
	}

	if count == 0 {
		if err := s.seedData(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteDAL) seedData(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range getDefaultPlayers() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO players (rank, name, team, batting_mvp, bowling_mvp, fielding_mvp, total_mvp, photo_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, p.Rank, p.Name, p.Team, p.BattingMVP, p.BowlingMVP, p.FieldingMVP, p.TotalMVP, p.PhotoURL)
		if err != nil {
			return fmt.Errorf("failed to seed player %d: %w", p.Rank, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteDAL) ListPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank, name, team, batting_mvp, bowling_mvp, fielding_mvp, total_mvp, photo_url
		FROM players ORDER BY rank
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlayers(rows)
}

func (s *SQLiteDAL) RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := fillRecord(rec); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, kind, ts, summary, result) VALUES (?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Kind), rec.TS, rec.Summary, rec.Result)
	return err
}

func (s *SQLiteDAL) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	query := `SELECT id, kind, ts, summary, result FROM analyses ORDER BY ts DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyses(rows)
}

func (s *SQLiteDAL) ClearAnalyses(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analyses`)
	return err
}

func (s *SQLiteDAL) Close() error {
	return s.db.Close()
}

// scanPlayers reads rows in the column order used by the SQL stores
func scanPlayers(rows *sql.Rows) ([]models.PlayerRecord, error) {
	players := []models.PlayerRecord{}
	for rows.Next() {
		var p models.PlayerRecord
		if err := rows.Scan(&p.Rank, &p.Name, &p.Team, &p.BattingMVP, &p.BowlingMVP, &p.FieldingMVP, &p.TotalMVP, &p.PhotoURL); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func scanAnalyses(rows *sql.Rows) ([]models.AnalysisRecord, error) {
	records := []models.AnalysisRecord{}
	for rows.Next() {
		var r models.AnalysisRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.TS, &r.Summary, &r.Result); err != nil {
			return nil, err
		}
		r.Kind = models.AnalysisKind(kind)
		records = append(records, r)
	}
	return records, rows.Err()
}
