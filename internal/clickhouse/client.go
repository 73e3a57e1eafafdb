package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// DefaultTable holds one row per player per season export
const DefaultTable = "player_mvp"

// Client reads league MVP figures from ClickHouse
type Client struct {
	conn  driver.Conn
	table string
}

// NewClient creates a new ClickHouse client
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &Client{conn: conn, table: DefaultTable}, nil
}

// WithTable points LoadPlayers at another table
func (c *Client) WithTable(table string) *Client {
	if table != "" {
		c.table = table
	}
	return c
}

// LoadPlayersQuery selects the latest row per player and team, ranked by total MVP.
// Names repeat across teams, so both columns form the key.
func LoadPlayersQuery(table string) string {
	return fmt.Sprintf(`
		SELECT
			toInt64(row_number() OVER (ORDER BY total_mvp DESC, player ASC, team ASC)) AS rank,
			player,
			team,
			batting_mvp,
			bowling_mvp,
			fielding_mvp,
			total_mvp,
			photo_url
		FROM (
			SELECT
				player,
				team,
				argMax(batting_mvp, updated_at) AS batting_mvp,
				argMax(bowling_mvp, updated_at) AS bowling_mvp,
				argMax(fielding_mvp, updated_at) AS fielding_mvp,
				argMax(total_mvp, updated_at) AS total_mvp,
				argMax(photo_url, updated_at) AS photo_url
			FROM %s
			GROUP BY player, team
		)
		ORDER BY rank
	`, table)
}

// LoadPlayers reads the dataset in rank order
func (c *Client) LoadPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	rows, err := c.conn.Query(ctx, LoadPlayersQuery(c.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := []models.PlayerRecord{}
	for rows.Next() {
		var (
			rank int64
			p    models.PlayerRecord
		)
		if err := rows.Scan(&rank, &p.Name, &p.Team, &p.BattingMVP, &p.BowlingMVP, &p.FieldingMVP, &p.TotalMVP, &p.PhotoURL); err != nil {
			return nil, err
		}
		p.Rank = int(rank)
		players = append(players, p)
	}

	return players, rows.Err()
}

// Ping checks the connection for readiness probes
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
