// Package dataset holds the read-only player MVP dataset shared by every analysis.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// XISize is the number of players in a side
const XISize = 11

// ErrPlayerNotFound is returned by lookups that match no record
var ErrPlayerNotFound = errors.New("player not found")

//go:embed players.json
var bundled []byte

// Dataset is an ordered, immutable collection of player records.
// It is safe for concurrent readers since nothing mutates it after New.
type Dataset struct {
	players []models.PlayerRecord
	byRank  map[int]int
}

// New builds a dataset from records in the given order. The slice is copied.
func New(records []models.PlayerRecord) *Dataset {
	d := &Dataset{
		players: make([]models.PlayerRecord, len(records)),
		byRank:  make(map[int]int, len(records)),
	}
	copy(d.players, records)
	for i, p := range d.players {
		if _, dup := d.byRank[p.Rank]; !dup {
			d.byRank[p.Rank] = i
		}
	}
	return d
}

// LoadJSON decodes a dataset file (an array of PlayerRecord objects)
func LoadJSON(r io.Reader) (*Dataset, error) {
	var records []models.PlayerRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	return New(records), nil
}

// Default returns the dataset bundled with the binary
func Default() *Dataset {
	d, err := LoadJSON(bytes.NewReader(bundled))
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultRecords returns a copy of the bundled records, used to seed stores
func DefaultRecords() []models.PlayerRecord {
	return Default().Players()
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.players)
}

// Players returns a copy of all records in dataset order
func (d *Dataset) Players() []models.PlayerRecord {
	out := make([]models.PlayerRecord, len(d.players))
	copy(out, d.players)
	return out
}

// ByRank looks a player up by its stable rank identifier
func (d *Dataset) ByRank(rank int) (models.PlayerRecord, error) {
	i, ok := d.byRank[rank]
	if !ok {
		return models.PlayerRecord{}, fmt.Errorf("rank %d: %w", rank, ErrPlayerNotFound)
	}
	return d.players[i], nil
}

// ByName returns the first record whose name matches exactly.
// Names are not guaranteed unique across teams; callers selecting by name inherit that ambiguity.
func (d *Dataset) ByName(name string) (models.PlayerRecord, bool) {
	for _, p := range d.players {
		if p.Name == name {
			return p, true
		}
	}
	return models.PlayerRecord{}, false
}

// Teams lists the distinct team names in order of first appearance
func (d *Dataset) Teams() []string {
	seen := make(map[string]bool)
	teams := []string{}
	for _, p := range d.players {
		if !seen[p.Team] {
			seen[p.Team] = true
			teams = append(teams, p.Team)
		}
	}
	return teams
}

// HasTeam reports whether any record belongs to team
func (d *Dataset) HasTeam(team string) bool {
	for _, p := range d.players {
		if p.Team == team {
			return true
		}
	}
	return false
}

// TeamPlayers returns every record of a team in dataset order
func (d *Dataset) TeamPlayers(team string) []models.PlayerRecord {
	out := []models.PlayerRecord{}
	for _, p := range d.players {
		if p.Team == team {
			out = append(out, p)
		}
	}
	return out
}

// DeriveXI picks the first eleven players of team in dataset order.
// This is a truncation, not an actual playing XI.
func (d *Dataset) DeriveXI(team string) []models.PlayerRecord {
	xi := make([]models.PlayerRecord, 0, XISize)
	for _, p := range d.players {
		if p.Team != team {
			continue
		}
		xi = append(xi, p)
		if len(xi) == XISize {
			break
		}
	}
	return xi
}

// TopBatters returns the n players with the highest batting MVP
func (d *Dataset) TopBatters(n int) []models.PlayerRecord {
	return d.top(n, func(p models.PlayerRecord) float64 { return p.BattingMVP })
}

// TopBowlers returns the n players with the highest bowling MVP
func (d *Dataset) TopBowlers(n int) []models.PlayerRecord {
	return d.top(n, func(p models.PlayerRecord) float64 { return p.BowlingMVP })
}

func (d *Dataset) top(n int, score func(models.PlayerRecord) float64) []models.PlayerRecord {
	sorted := d.Players()
	sort.SliceStable(sorted, func(i, j int) bool {
		return score(sorted[i]) > score(sorted[j])
	})
	if n < 0 {
		n = 0
	}
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
