package live

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

func f(v float64) *float64 { return &v }

func TestEstimateMidInnings(t *testing.T) {
	got := Estimate(Input{Target: 160, Runs: 80, OversCompleted: 10})
	if math.Abs(got-34) > 1e-9 {
		t.Errorf("Estimate() = %.4f, want 34.00", got)
	}
}

func TestEstimateNoOversRemaining(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want float64
	}{
		{"chase short at 20 overs", Input{Target: 160, Runs: 80, OversCompleted: 20}, 0},
		{"chase short past 20 overs", Input{Target: 160, Runs: 80, OversCompleted: 25}, 0},
		{"target reached at 20 overs", Input{Target: 160, Runs: 160, OversCompleted: 20}, 100},
		{"target passed at 20 overs", Input{Target: 160, Runs: 175, OversCompleted: 20}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Estimate(tt.in)
			if math.IsNaN(got) || got != tt.want {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateComponents(t *testing.T) {
	in := Input{
		Target:         150,
		Runs:           100,
		Wickets:        2,
		OversCompleted: 15,
		Dismissed:      []string{"a", "b"},
		BowlerOvers:    map[string]float64{"x": 4, "y": 3},
	}
	// batting 40, bowling 36 -> +0.4; rate 50/5*2 = 20; wickets 10
	want := 50 + 0.4 - 20 - 10
	if got := Estimate(in); math.Abs(got-want) > 1e-9 {
		t.Errorf("Estimate() = %v, want %v", got, want)
	}

	if got := RemainingBattingStrength(nil); got != 50 {
		t.Errorf("RemainingBattingStrength(nil) = %v", got)
	}
	if got := RemainingBowlingStrength(map[string]float64{"a": 2.5}); got != 45 {
		t.Errorf("RemainingBowlingStrength = %v, want 45", got)
	}
}

func TestEstimateClamps(t *testing.T) {
	if got := Estimate(Input{Target: 10, Runs: 500, OversCompleted: 1}); got != 100 {
		t.Errorf("expected clamp to 100, got %v", got)
	}
	if got := Estimate(Input{Target: 500, Runs: 0, OversCompleted: 19, Wickets: 9}); got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
}

func TestEstimateAlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 5000; i++ {
		in := Input{
			Target:         rng.Float64() * 400,
			Runs:           rng.Float64() * 400,
			Wickets:        rng.Intn(11),
			OversCompleted: rng.Float64() * 25,
			BowlerOvers:    map[string]float64{"b": rng.Float64() * 20},
		}
		if rng.Intn(10) == 0 {
			in.OversCompleted = 20
		}
		got := Estimate(in)
		if math.IsNaN(got) || got < 0 || got > 100 {
			t.Fatalf("Estimate(%+v) = %v out of range", in, got)
		}
	}

	if got := Estimate(Input{Target: 100, OversCompleted: math.NaN()}); got != 0 {
		t.Errorf("NaN overs should clamp to 0, got %v", got)
	}
}

func testDataset() *dataset.Dataset {
	records := []models.PlayerRecord{}
	rank := 1
	for _, team := range []string{"Hawks", "Owls"} {
		for i := 0; i < 13; i++ {
			records = append(records, models.PlayerRecord{
				Rank: rank,
				Name: team + string(rune('A'+i)),
				Team: team,
			})
			rank++
		}
	}
	return dataset.New(records)
}

func TestMatchStateMissingFields(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()

	_, err := m.Analyze(ds)
	var mf *MissingFieldsError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MissingFieldsError, got %v", err)
	}
	if len(mf.Fields) != 5 {
		t.Errorf("expected 5 missing fields, got %v", mf.Fields)
	}

	m.SetBattingTeam(ds, "Hawks")
	m.SetBowlingTeam(ds, "Owls")
	m.SetScore(f(0), f(120), nil)
	_, err = m.Analyze(ds)
	if !errors.As(err, &mf) || len(mf.Fields) != 1 || mf.Fields[0] != "overs" {
		t.Errorf("expected only overs missing, got %v", err)
	}

	m.SetScore(nil, nil, f(0))
	if _, err := m.Analyze(ds); err != nil {
		t.Errorf("zero values are valid inputs, got %v", err)
	}
}

func TestMatchStateTeams(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()

	if err := m.SetBattingTeam(ds, "Nobody"); !errors.Is(err, ErrUnknownTeam) {
		t.Errorf("expected ErrUnknownTeam, got %v", err)
	}
	if err := m.SetBattingTeam(ds, "Hawks"); err != nil {
		t.Fatalf("SetBattingTeam() failed: %v", err)
	}
	if err := m.SetBowlingTeam(ds, "Hawks"); !errors.Is(err, ErrSameTeam) {
		t.Errorf("expected ErrSameTeam, got %v", err)
	}
	if m.BowlingTeam != "" {
		t.Error("rejected team must not be stored")
	}

	if xi := m.BattingXI(ds); len(xi) != dataset.XISize || xi[0].Name != "HawksA" {
		t.Errorf("unexpected batting XI: %v", xi)
	}
	if xi := m.BowlingXI(ds); len(xi) != 0 {
		t.Errorf("bowling XI should be empty before a team is chosen, got %d", len(xi))
	}

	v := m.View(ds)
	if len(v.BowlingTeams) != 1 || v.BowlingTeams[0] != "Owls" {
		t.Errorf("bowling options should exclude batting team, got %v", v.BowlingTeams)
	}
}

func TestMatchStateSetTeamsSwap(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()
	if err := m.SetTeams(ds, "Hawks", "Owls"); err != nil {
		t.Fatalf("SetTeams() failed: %v", err)
	}
	m.SetBatterOut(ds, 2, true)
	m.SetBowler(ds, "OwlsA", true, 3)

	if err := m.SetTeams(ds, "Owls", "Hawks"); err != nil {
		t.Fatalf("swap failed: %v", err)
	}
	if m.BattingTeam != "Owls" || m.BowlingTeam != "Hawks" {
		t.Errorf("teams not swapped: %q/%q", m.BattingTeam, m.BowlingTeam)
	}
	if m.Wickets() != 0 || len(m.BowlerOvers()) != 0 {
		t.Error("swapping must reset per-XI state")
	}

	if err := m.SetTeams(ds, "", "Owls"); !errors.Is(err, ErrSameTeam) {
		t.Errorf("expected ErrSameTeam, got %v", err)
	}
	if err := m.SetTeams(ds, "Crows", ""); !errors.Is(err, ErrUnknownTeam) {
		t.Errorf("expected ErrUnknownTeam, got %v", err)
	}
	if m.BattingTeam != "Owls" {
		t.Error("failed SetTeams must leave state unchanged")
	}
}

func TestMatchStateWicketsDerived(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()
	m.SetBattingTeam(ds, "Hawks")

	if err := m.SetBatterOut(ds, 11, true); !errors.Is(err, ErrBatterIndex) {
		t.Errorf("expected ErrBatterIndex, got %v", err)
	}

	m.SetBatterOut(ds, 3, true)
	m.SetBatterOut(ds, 0, true)
	m.SetBatterOut(ds, 3, true)
	if m.Wickets() != 2 {
		t.Errorf("expected 2 wickets, got %d", m.Wickets())
	}
	names := m.DismissedNames(ds)
	if len(names) != 2 || names[0] != "HawksA" || names[1] != "HawksD" {
		t.Errorf("unexpected dismissed names %v", names)
	}

	m.SetBatterOut(ds, 0, false)
	if m.Wickets() != 1 {
		t.Errorf("expected 1 wicket after reinstating, got %d", m.Wickets())
	}

	// switching batting team invalidates positions
	m.SetBattingTeam(ds, "Owls")
	if m.Wickets() != 0 {
		t.Errorf("expected wickets reset on team change, got %d", m.Wickets())
	}
}

func TestMatchStateBowlers(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()
	m.SetBattingTeam(ds, "Hawks")
	m.SetBowlingTeam(ds, "Owls")

	if err := m.SetBowler(ds, "HawksA", true, 2); !errors.Is(err, ErrUnknownBowler) {
		t.Errorf("expected ErrUnknownBowler, got %v", err)
	}
	if err := m.SetBowler(ds, "OwlsL", true, 2); !errors.Is(err, ErrUnknownBowler) {
		t.Errorf("12th player is outside the XI, got %v", err)
	}
	if err := m.SetBowler(ds, "OwlsA", true, -1); !errors.Is(err, ErrNegative) {
		t.Errorf("expected ErrNegative, got %v", err)
	}

	m.SetBowler(ds, "OwlsA", true, 4)
	m.SetBowler(ds, "OwlsB", true, 3)
	m.SetBowler(ds, "OwlsC", false, 2)

	overs := m.BowlerOvers()
	if len(overs) != 2 || overs["OwlsA"] != 4 || overs["OwlsB"] != 3 {
		t.Errorf("only selected bowlers should count, got %v", overs)
	}
	if in := m.Input(ds); RemainingBowlingStrength(in.BowlerOvers) != 36 {
		t.Errorf("expected bowling strength 36, got %v", RemainingBowlingStrength(in.BowlerOvers))
	}
}

func TestMatchStateAnalyze(t *testing.T) {
	ds := testDataset()
	m := NewMatchState()
	m.SetBattingTeam(ds, "Hawks")
	m.SetBowlingTeam(ds, "Owls")
	if err := m.SetScore(f(80), f(160), f(10)); err != nil {
		t.Fatalf("SetScore() failed: %v", err)
	}
	if err := m.SetScore(f(-1), nil, nil); !errors.Is(err, ErrNegative) {
		t.Errorf("expected ErrNegative, got %v", err)
	}

	got, err := m.Analyze(ds)
	if err != nil {
		t.Fatalf("Analyze() failed: %v", err)
	}
	if math.Abs(got.Probability-34) > 1e-9 {
		t.Errorf("expected 34, got %v", got.Probability)
	}
	if got.Message != "Hawks has a 34.00% chance of winning." {
		t.Errorf("unexpected message %q", got.Message)
	}

	m.SetScore(nil, nil, f(20))
	got, _ = m.Analyze(ds)
	if got.Probability != 0 {
		t.Errorf("expected 0 with no overs left, got %v", got.Probability)
	}
}
