package teamstats

import (
	"fmt"
	"strings"
)

// FormUnknown is the sentinel used when the provider has no recent-form
// data for a team.
const FormUnknown = "N/A"

// TeamStatistics is one team's season-aggregate record, either derived
// from a standings table or synthesized as a neutral estimate. Immutable
// once constructed; lifetime is bounded by its cache TTL.
type TeamStatistics struct {
	Name                 string  `json:"name"`
	Crest                string  `json:"crest,omitempty"`
	Competition          string  `json:"competition"`
	Form                 string  `json:"form"`
	GoalsScored          int     `json:"goalsScored"`
	GoalsConceded        int     `json:"goalsConceded"`
	Wins                 int     `json:"wins"`
	Draws                int     `json:"draws"`
	Losses               int     `json:"losses"`
	AveragePossession    float64 `json:"averagePossession"`
	ShotsPerGame         float64 `json:"shotsPerGame"`
	ShotsOnTargetPerGame float64 `json:"shotsOnTargetPerGame"`
	PassAccuracy         float64 `json:"passAccuracy"`
	TacklesPerGame       float64 `json:"tacklesPerGame"`
	FoulsPerGame         float64 `json:"foulsPerGame"`
	CornersPerGame       float64 `json:"cornersPerGame"`
}

func (t TeamStatistics) MatchesPlayed() int {
	return t.Wins + t.Draws + t.Losses
}

// ScoringRate is goals scored per game, or fallback when no matches have
// been played yet.
func (t TeamStatistics) ScoringRate(fallback float64) float64 {
	played := t.MatchesPlayed()
	if played == 0 {
		return fallback
	}
	return float64(t.GoalsScored) / float64(played)
}

// ConcedingRate is goals conceded per game, or fallback when no matches
// have been played yet.
func (t TeamStatistics) ConcedingRate(fallback float64) float64 {
	played := t.MatchesPlayed()
	if played == 0 {
		return fallback
	}
	return float64(t.GoalsConceded) / float64(played)
}

func (t TeamStatistics) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("team name is required")
	}
	if t.Wins < 0 || t.Draws < 0 || t.Losses < 0 {
		return fmt.Errorf("win/draw/loss counts must be non-negative")
	}
	if t.GoalsScored < 0 || t.GoalsConceded < 0 {
		return fmt.Errorf("goal counts must be non-negative")
	}
	if t.ShotsPerGame < 0 || t.ShotsOnTargetPerGame < 0 || t.CornersPerGame < 0 ||
		t.TacklesPerGame < 0 || t.FoulsPerGame < 0 {
		return fmt.Errorf("per-game rates must be non-negative")
	}
	if t.Form != FormUnknown {
		for _, r := range t.Form {
			switch r {
			case 'W', 'D', 'L', ',':
			default:
				return fmt.Errorf("form may only contain W/D/L results, got %q", t.Form)
			}
		}
	}
	return nil
}

// Neutral synthesizes a league-average estimate for a team missing from
// the standings table. Deterministic midpoint defaults keep downstream
// predictions reproducible.
func Neutral(name, competition, crest string) TeamStatistics {
	if strings.TrimSpace(name) == "" {
		name = "Unknown Team"
	}
	return TeamStatistics{
		Name:                 name,
		Crest:                crest,
		Competition:          competition,
		Form:                 FormUnknown,
		GoalsScored:          16,
		GoalsConceded:        16,
		Wins:                 4,
		Draws:                4,
		Losses:               4,
		AveragePossession:    50,
		ShotsPerGame:         10,
		ShotsOnTargetPerGame: 3.5,
		PassAccuracy:         78,
		TacklesPerGame:       15,
		FoulsPerGame:         10,
		CornersPerGame:       5,
	}
}

// FormScore sums W=1, D=0.5, L=0 over a form string such as "W,D,L,W,W"
// (separators optional). Unknown form scores a middling 2.5.
func FormScore(form string) float64 {
	form = strings.TrimSpace(form)
	if form == "" || form == FormUnknown {
		return 2.5
	}

	score := 0.0
	seen := false
	for _, r := range form {
		switch r {
		case 'W':
			score++
			seen = true
		case 'D':
			score += 0.5
			seen = true
		case 'L':
			seen = true
		}
	}
	if !seen {
		return 2.5
	}
	return score
}
