package models

// PlayerRecord is one row of the league MVP dataset
type PlayerRecord struct {
	Rank        int     `json:"Rank" bson:"rank"`
	Name        string  `json:"Player" bson:"player"`
	Team        string  `json:"Team" bson:"team"`
	BattingMVP  float64 `json:"Batting MVP" bson:"batting_mvp"`
	BowlingMVP  float64 `json:"Bowling MVP" bson:"bowling_mvp"`
	FieldingMVP float64 `json:"Fielding MVP" bson:"fielding_mvp"`
	TotalMVP    float64 `json:"Total MVP" bson:"total_mvp"`
	PhotoURL    string  `json:"Photo URL" bson:"photo_url"`
}

// Side identifies one of the two rosters in a team comparison
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// Other returns the opposing side
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Strength is the aggregated batting and bowling merit of a roster
type Strength struct {
	Batting float64 `json:"batting"`
	Bowling float64 `json:"bowling"`
}

// Total is batting plus bowling
func (s Strength) Total() float64 {
	return s.Batting + s.Bowling
}

// Verdict is the outcome of comparing two strengths
type Verdict string

const (
	VerdictAWins Verdict = "A_WINS"
	VerdictBWins Verdict = "B_WINS"
	VerdictTie   Verdict = "TIE"
)

// Message is the human readable form shown next to the charts
func (v Verdict) Message() string {
	switch v {
	case VerdictAWins:
		return "Team A is likely to win!"
	case VerdictBWins:
		return "Team B is likely to win!"
	default:
		return "It's a tie!"
	}
}

// BowlerUsage tracks whether a bowler has been used and for how many overs
type BowlerUsage struct {
	Selected    bool    `json:"selected"`
	OversBowled float64 `json:"oversBowled"`
}

// AnalysisKind distinguishes stored analysis results
type AnalysisKind string

const (
	AnalysisTeam AnalysisKind = "team"
	AnalysisLive AnalysisKind = "live"
)

// AnalysisRecord is a completed analysis kept for the history view
type AnalysisRecord struct {
	ID      string       `json:"id" bson:"_id"`
	Kind    AnalysisKind `json:"kind" bson:"kind"`
	TS      int64        `json:"ts" bson:"ts"`
	Summary string       `json:"summary" bson:"summary"`
	Result  string       `json:"result" bson:"result"` // JSON document
}

// TeamAnalysis is the result of comparing two full rosters
type TeamAnalysis struct {
	StrengthA Strength `json:"teamA"`
	StrengthB Strength `json:"teamB"`
	Verdict   Verdict  `json:"verdict"`
	Message   string   `json:"message"`
}

// LiveAnalysis is the result of a win-probability estimate
type LiveAnalysis struct {
	BattingTeam string  `json:"battingTeam"`
	BowlingTeam string  `json:"bowlingTeam"`
	Probability float64 `json:"probability"`
	Message     string  `json:"message"`
}
