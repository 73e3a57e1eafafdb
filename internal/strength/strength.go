// Package strength turns rosters into batting/bowling totals and compares them.
package strength

import (
	"sort"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// Aggregate sums batting and bowling MVP over the named players.
// Each name resolves to its first dataset match; unknown names add nothing.
// Values are summed in sorted order so the result does not depend on roster order.
func Aggregate(members []string, ds *dataset.Dataset) models.Strength {
	batting := make([]float64, 0, len(members))
	bowling := make([]float64, 0, len(members))
	for _, name := range members {
		p, ok := ds.ByName(name)
		if !ok {
			continue
		}
		batting = append(batting, p.BattingMVP)
		bowling = append(bowling, p.BowlingMVP)
	}
	return models.Strength{Batting: sum(batting), Bowling: sum(bowling)}
}

func sum(vals []float64) float64 {
	sort.Float64s(vals)
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

// Compare decides which side is stronger on batting+bowling.
// Only exact equality is a tie.
func Compare(a, b models.Strength) models.Verdict {
	ta, tb := a.Total(), b.Total()
	switch {
	case ta > tb:
		return models.VerdictAWins
	case ta < tb:
		return models.VerdictBWins
	default:
		return models.VerdictTie
	}
}

// Analyze aggregates both sides and produces the verdict
func Analyze(membersA, membersB []string, ds *dataset.Dataset) models.TeamAnalysis {
	a := Aggregate(membersA, ds)
	b := Aggregate(membersB, ds)
	v := Compare(a, b)
	return models.TeamAnalysis{
		StrengthA: a,
		StrengthB: b,
		Verdict:   v,
		Message:   v.Message(),
	}
}
