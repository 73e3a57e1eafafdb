// Package live estimates the chasing side's win probability from in-match state.
package live

import (
	"math"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// Format constants for the 20-over game modelled here
const (
	TotalOvers       = 20
	BaseStrength     = 50
	PerWicketPenalty = 5
	PerOverPenalty   = 2
)

// Input carries everything the estimate needs. The XIs are accepted for
// parity with the match view but do not yet influence the result.
type Input struct {
	BattingXI      []models.PlayerRecord
	BowlingXI      []models.PlayerRecord
	Target         float64
	Runs           float64
	Wickets        int
	OversCompleted float64
	Dismissed      []string
	BowlerOvers    map[string]float64
}

// RemainingBattingStrength drops five points per dismissed batter
func RemainingBattingStrength(dismissed []string) float64 {
	return BaseStrength - float64(len(dismissed))*PerWicketPenalty
}

// RemainingBowlingStrength drops two points per over bowled
func RemainingBowlingStrength(bowlerOvers map[string]float64) float64 {
	var overs float64
	for _, o := range bowlerOvers {
		overs += o
	}
	return BaseStrength - overs*PerOverPenalty
}

// Estimate returns the batting side's chance of winning as a percentage in [0,100].
//
// With no overs left the required rate is undefined, so the chase is decided
// outright: 0 if runs are still needed, 100 otherwise.
func Estimate(in Input) float64 {
	runsNeeded := in.Target - in.Runs
	oversRemaining := TotalOvers - in.OversCompleted
	if oversRemaining <= 0 {
		if runsNeeded > 0 {
			return 0
		}
		return 100
	}

	batting := RemainingBattingStrength(in.Dismissed)
	bowling := RemainingBowlingStrength(in.BowlerOvers)

	raw := 50 +
		(batting-bowling)*0.1 -
		(runsNeeded/oversRemaining)*2 -
		float64(in.Wickets)*PerWicketPenalty

	return clamp(raw, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
