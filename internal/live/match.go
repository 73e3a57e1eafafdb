package live

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

var (
	ErrUnknownTeam   = errors.New("unknown team")
	ErrSameTeam      = errors.New("batting and bowling teams must differ")
	ErrBatterIndex   = errors.New("batter index out of range")
	ErrUnknownBowler = errors.New("bowler is not in the bowling XI")
	ErrNegative      = errors.New("value must not be negative")
)

// MissingFieldsError withholds an estimate until the listed inputs are supplied
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "please fill in all required fields: " + strings.Join(e.Fields, ", ")
}

// MatchState is the live-analysis input being built up by the user.
// Wickets are derived from battersOut and cannot be set directly.
type MatchState struct {
	BattingTeam    string
	BowlingTeam    string
	Runs           *float64
	Target         *float64
	OversCompleted *float64

	battersOut  map[int]bool
	bowlerUsage map[string]models.BowlerUsage
}

// NewMatchState returns an empty match
func NewMatchState() *MatchState {
	return &MatchState{
		battersOut:  make(map[int]bool),
		bowlerUsage: make(map[string]models.BowlerUsage),
	}
}

// SetBattingTeam chooses the chasing side. Changing team clears dismissals,
// since positions refer to the previous XI.
func (m *MatchState) SetBattingTeam(ds *dataset.Dataset, team string) error {
	if err := checkTeam(ds, team, m.BowlingTeam); err != nil {
		return err
	}
	if team != m.BattingTeam {
		m.BattingTeam = team
		m.battersOut = make(map[int]bool)
	}
	return nil
}

// SetBowlingTeam chooses the fielding side and clears bowler usage on change
func (m *MatchState) SetBowlingTeam(ds *dataset.Dataset, team string) error {
	if err := checkTeam(ds, team, m.BattingTeam); err != nil {
		return err
	}
	if team != m.BowlingTeam {
		m.BowlingTeam = team
		m.bowlerUsage = make(map[string]models.BowlerUsage)
	}
	return nil
}

// SetTeams sets both sides at once so they can be swapped in one step.
// An empty name keeps the current team for that side.
func (m *MatchState) SetTeams(ds *dataset.Dataset, batting, bowling string) error {
	if batting == "" {
		batting = m.BattingTeam
	}
	if bowling == "" {
		bowling = m.BowlingTeam
	}
	for _, team := range []string{batting, bowling} {
		if team != "" && !ds.HasTeam(team) {
			return fmt.Errorf("%q: %w", team, ErrUnknownTeam)
		}
	}
	if batting != "" && batting == bowling {
		return fmt.Errorf("%q: %w", batting, ErrSameTeam)
	}
	if batting != m.BattingTeam {
		m.BattingTeam = batting
		m.battersOut = make(map[int]bool)
	}
	if bowling != m.BowlingTeam {
		m.BowlingTeam = bowling
		m.bowlerUsage = make(map[string]models.BowlerUsage)
	}
	return nil
}

func checkTeam(ds *dataset.Dataset, team, other string) error {
	if !ds.HasTeam(team) {
		return fmt.Errorf("%q: %w", team, ErrUnknownTeam)
	}
	if team == other {
		return fmt.Errorf("%q: %w", team, ErrSameTeam)
	}
	return nil
}

// BattingXI is recomputed from the batting team on every call
func (m *MatchState) BattingXI(ds *dataset.Dataset) []models.PlayerRecord {
	if m.BattingTeam == "" {
		return []models.PlayerRecord{}
	}
	return ds.DeriveXI(m.BattingTeam)
}

// BowlingXI is recomputed from the bowling team on every call
func (m *MatchState) BowlingXI(ds *dataset.Dataset) []models.PlayerRecord {
	if m.BowlingTeam == "" {
		return []models.PlayerRecord{}
	}
	return ds.DeriveXI(m.BowlingTeam)
}

// SetScore records any of runs, target and overs; nil leaves a value unchanged
func (m *MatchState) SetScore(runs, target, overs *float64) error {
	for _, v := range []*float64{runs, target, overs} {
		if v != nil && *v < 0 {
			return ErrNegative
		}
	}
	if runs != nil {
		m.Runs = ptr(*runs)
	}
	if target != nil {
		m.Target = ptr(*target)
	}
	if overs != nil {
		m.OversCompleted = ptr(*overs)
	}
	return nil
}

// SetBatterOut marks the batter at position index of the batting XI
func (m *MatchState) SetBatterOut(ds *dataset.Dataset, index int, out bool) error {
	if index < 0 || index >= len(m.BattingXI(ds)) {
		return fmt.Errorf("index %d: %w", index, ErrBatterIndex)
	}
	if out {
		m.battersOut[index] = true
	} else {
		delete(m.battersOut, index)
	}
	return nil
}

// Wickets counts dismissed batters
func (m *MatchState) Wickets() int {
	return len(m.battersOut)
}

// DismissedNames lists dismissed batters in XI order
func (m *MatchState) DismissedNames(ds *dataset.Dataset) []string {
	xi := m.BattingXI(ds)
	names := []string{}
	for i, p := range xi {
		if m.battersOut[i] {
			names = append(names, p.Name)
		}
	}
	return names
}

// SetBowler records whether a bowler from the bowling XI has been used and for how many overs
func (m *MatchState) SetBowler(ds *dataset.Dataset, name string, selected bool, overs float64) error {
	if overs < 0 {
		return ErrNegative
	}
	found := false
	for _, p := range m.BowlingXI(ds) {
		if p.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%q: %w", name, ErrUnknownBowler)
	}
	m.bowlerUsage[name] = models.BowlerUsage{Selected: selected, OversBowled: overs}
	return nil
}

// BowlerUsage returns a copy of the usage table
func (m *MatchState) BowlerUsage() map[string]models.BowlerUsage {
	out := make(map[string]models.BowlerUsage, len(m.bowlerUsage))
	for k, v := range m.bowlerUsage {
		out[k] = v
	}
	return out
}

// BowlerOvers maps each selected bowler to overs bowled
func (m *MatchState) BowlerOvers() map[string]float64 {
	out := make(map[string]float64)
	for name, u := range m.bowlerUsage {
		if u.Selected {
			out[name] = u.OversBowled
		}
	}
	return out
}

// Missing lists required inputs that have not been supplied
func (m *MatchState) Missing() []string {
	var missing []string
	if m.BattingTeam == "" {
		missing = append(missing, "battingTeam")
	}
	if m.BowlingTeam == "" {
		missing = append(missing, "bowlingTeam")
	}
	if m.Target == nil {
		missing = append(missing, "target")
	}
	if m.Runs == nil {
		missing = append(missing, "runs")
	}
	if m.OversCompleted == nil {
		missing = append(missing, "overs")
	}
	return missing
}

// Input assembles the estimator input; call Missing first
func (m *MatchState) Input(ds *dataset.Dataset) Input {
	return Input{
		BattingXI:      m.BattingXI(ds),
		BowlingXI:      m.BowlingXI(ds),
		Target:         deref(m.Target),
		Runs:           deref(m.Runs),
		Wickets:        m.Wickets(),
		OversCompleted: deref(m.OversCompleted),
		Dismissed:      m.DismissedNames(ds),
		BowlerOvers:    m.BowlerOvers(),
	}
}

// Analyze produces the estimate, or a *MissingFieldsError when inputs are incomplete
func (m *MatchState) Analyze(ds *dataset.Dataset) (models.LiveAnalysis, error) {
	if missing := m.Missing(); len(missing) > 0 {
		return models.LiveAnalysis{}, &MissingFieldsError{Fields: missing}
	}
	p := Estimate(m.Input(ds))
	return models.LiveAnalysis{
		BattingTeam: m.BattingTeam,
		BowlingTeam: m.BowlingTeam,
		Probability: p,
		Message:     fmt.Sprintf("%s has a %.2f%% chance of winning.", m.BattingTeam, p),
	}, nil
}

// View is the JSON shape of a match for clients
type View struct {
	BattingTeam    string                        `json:"battingTeam"`
	BowlingTeam    string                        `json:"bowlingTeam"`
	BattingXI      []models.PlayerRecord         `json:"battingXI"`
	BowlingXI      []models.PlayerRecord         `json:"bowlingXI"`
	Runs           *float64                      `json:"runs"`
	Target         *float64                      `json:"target"`
	OversCompleted *float64                      `json:"overs"`
	Wickets        int                           `json:"wickets"`
	BattersOut     []int                         `json:"battersOut"`
	Bowlers        map[string]models.BowlerUsage `json:"bowlers"`
	BowlingTeams   []string                      `json:"bowlingTeamOptions"`
	Missing        []string                      `json:"missing"`
}

// View snapshots the match for display
func (m *MatchState) View(ds *dataset.Dataset) View {
	out := []int{}
	for i := range m.battersOut {
		out = append(out, i)
	}
	sort.Ints(out)

	options := []string{}
	for _, t := range ds.Teams() {
		if t != m.BattingTeam {
			options = append(options, t)
		}
	}

	missing := m.Missing()
	if missing == nil {
		missing = []string{}
	}

	return View{
		BattingTeam:    m.BattingTeam,
		BowlingTeam:    m.BowlingTeam,
		BattingXI:      m.BattingXI(ds),
		BowlingXI:      m.BowlingXI(ds),
		Runs:           m.Runs,
		Target:         m.Target,
		OversCompleted: m.OversCompleted,
		Wickets:        m.Wickets(),
		BattersOut:     out,
		Bowlers:        m.BowlerUsage(),
		BowlingTeams:   options,
		Missing:        missing,
	}
}

func ptr(v float64) *float64 { return &v }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
