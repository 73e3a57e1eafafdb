// Package roster manages the two sides picked for a team comparison.
package roster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// MaxMembers is the largest roster a side may hold
const MaxMembers = dataset.XISize

var (
	// ErrUnknownSide is returned when a side other than A or B is named
	ErrUnknownSide = errors.New("unknown side")
	// ErrEmptyName is returned when a pick names no player
	ErrEmptyName = errors.New("player name is required")
)

// ParseSide validates a side identifier
func ParseSide(s string) (models.Side, error) {
	switch models.Side(s) {
	case models.SideA, models.SideB:
		return models.Side(s), nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownSide)
}

// Selection is the pair of rosters being compared.
// A name appears on at most one side and no side exceeds MaxMembers.
type Selection struct {
	members map[models.Side][]string
}

// NewSelection returns an empty selection
func NewSelection() *Selection {
	return &Selection{
		members: map[models.Side][]string{
			models.SideA: {},
			models.SideB: {},
		},
	}
}

// Select adds name to side. Blank names, duplicates (on either side) and
// additions to a full roster are ignored; the return value reports whether
// the roster changed.
func (s *Selection) Select(side models.Side, name string) bool {
	roster, ok := s.members[side]
	if !ok {
		return false
	}
	if strings.TrimSpace(name) == "" || s.Contains(name) || len(roster) >= MaxMembers {
		return false
	}
	s.members[side] = append(roster, name)
	return true
}

// Remove drops name from side if present
func (s *Selection) Remove(side models.Side, name string) bool {
	roster, ok := s.members[side]
	if !ok {
		return false
	}
	for i, m := range roster {
		if m == name {
			s.members[side] = append(roster[:i:i], roster[i+1:]...)
			return true
		}
	}
	return false
}

// Members returns a copy of side's roster in insertion order
func (s *Selection) Members(side models.Side) []string {
	out := make([]string, len(s.members[side]))
	copy(out, s.members[side])
	return out
}

// Contains reports whether name is on either side
func (s *Selection) Contains(name string) bool {
	for _, roster := range s.members {
		for _, m := range roster {
			if m == name {
				return true
			}
		}
	}
	return false
}

// AvailablePlayers lists dataset players not yet picked by either side.
// The side argument names which dropdown is asking; the candidates are the same for both.
func (s *Selection) AvailablePlayers(side models.Side, ds *dataset.Dataset) []models.PlayerRecord {
	_ = side
	out := []models.PlayerRecord{}
	for _, p := range ds.Players() {
		if !s.Contains(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// IsReadyToAnalyze is true once both sides are full
func (s *Selection) IsReadyToAnalyze() bool {
	return len(s.members[models.SideA]) == MaxMembers && len(s.members[models.SideB]) == MaxMembers
}
