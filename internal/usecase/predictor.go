package usecase

import (
	"fmt"
	"math"

	"github.com/andryanduta/predikta/internal/domain/prediction"
	"github.com/andryanduta/predikta/internal/domain/teamstats"
)

const homeAdvantage = 1.08

// Predictor derives match predictions from two teams' season statistics.
// It is pure and deterministic: the same two inputs always produce the
// same output, so results are computed on demand and never stored.
type Predictor struct{}

func NewPredictor() *Predictor {
	return &Predictor{}
}

func (p *Predictor) Predict(home, away teamstats.TeamStatistics) prediction.Prediction {
	homeStrength := teamStrength(home)
	awayStrength := teamStrength(away)

	homeWin, draw, awayWin := winProbabilities(home, away, homeStrength, awayStrength)
	confidence := predictionConfidence(home, away, homeStrength, awayStrength)

	return prediction.Prediction{
		HomeWin:        homeWin,
		Draw:           draw,
		AwayWin:        awayWin,
		PredictedScore: predictScore(home, away),
		Confidence:     confidence,
		Insights:       matchInsights(home, away),
		Markets:        bettingMarkets(home, away, confidence),
	}
}

// teamStrength scores a team 0.2..0.95 from points ratio, goal difference,
// recent form, attack and defense. A team with no matches played scores a
// neutral 0.5.
func teamStrength(t teamstats.TeamStatistics) float64 {
	played := t.MatchesPlayed()
	if played == 0 {
		return 0.5
	}

	points := float64(3*t.Wins + t.Draws)
	pointsRatio := points / float64(3*played)

	goalDiffPerGame := float64(t.GoalsScored-t.GoalsConceded) / float64(played)
	goalDiffScore := clamp01((goalDiffPerGame + 2) / 4)

	formScore := teamstats.FormScore(t.Form) / 5

	attackScore := math.Min(1, t.ScoringRate(0)/2.5)
	defenseScore := math.Max(0, 1-t.ConcedingRate(0)/2)

	strength := pointsRatio*0.30 +
		goalDiffScore*0.20 +
		formScore*0.20 +
		attackScore*0.15 +
		defenseScore*0.15

	return math.Max(0.2, math.Min(0.95, strength))
}

// winProbabilities converts the two strength scores into 1X2 percentages.
// Home and away shares are rounded to one decimal and the draw absorbs the
// rounding remainder so the three always sum to exactly 100.
func winProbabilities(home, away teamstats.TeamStatistics, homeStrength, awayStrength float64) (homeWin, draw, awayWin float64) {
	adjustedHome := homeStrength * homeAdvantage

	total := adjustedHome + awayStrength
	rawHome := adjustedHome / total * 100
	rawAway := awayStrength / total * 100

	strengthDiff := math.Abs(homeStrength - awayStrength)
	rawDraw := math.Max(20, 28-strengthDiff*40)
	if math.Abs(teamstats.FormScore(home.Form)-teamstats.FormScore(away.Form)) < 1 {
		rawDraw += 3
	}

	sum := rawHome + rawDraw + rawAway
	homeWin = round1(rawHome / sum * 100)
	awayWin = round1(rawAway / sum * 100)
	draw = round1(100 - homeWin - awayWin)
	return homeWin, draw, awayWin
}

// predictScore estimates the final scoreline from each attack against the
// opposing defense, with a home boost and away penalty. Teams without data
// default to 1.2 goals per game.
func predictScore(home, away teamstats.TeamStatistics) prediction.Score {
	const rateDefault = 1.2

	expectedHome := (home.ScoringRate(rateDefault) + away.ConcedingRate(rateDefault)) / 2 * 1.10
	expectedAway := (away.ScoringRate(rateDefault) + home.ConcedingRate(rateDefault)) / 2 * 0.95

	return prediction.Score{
		Home: clampGoals(int(math.Round(expectedHome))),
		Away: clampGoals(int(math.Round(expectedAway))),
	}
}

func clampGoals(goals int) int {
	if goals < 0 {
		return 0
	}
	if goals > 4 {
		return 4
	}
	return goals
}

// predictionConfidence grows with the strength gap and is discounted when
// either side has fewer than ten matches of data. Capped at 95.
func predictionConfidence(home, away teamstats.TeamStatistics, homeStrength, awayStrength float64) int {
	strengthDiff := math.Abs(homeStrength - awayStrength)

	dataQuality := 1.0
	if min(home.MatchesPlayed(), away.MatchesPlayed()) < 10 {
		dataQuality = 0.85
	}

	confidence := int(math.Round((50 + strengthDiff*80) * dataQuality))
	if confidence > 95 {
		confidence = 95
	}
	return confidence
}

// matchInsights produces up to three human-readable notes in a fixed
// priority order: form comparison, then scoring, defense and win rate.
func matchInsights(home, away teamstats.TeamStatistics) []string {
	insights := make([]string, 0, 3)

	if home.Form != teamstats.FormUnknown && away.Form != teamstats.FormUnknown {
		homeForm := teamstats.FormScore(home.Form)
		awayForm := teamstats.FormScore(away.Form)
		switch {
		case homeForm >= 4 && awayForm <= 2:
			insights = append(insights, fmt.Sprintf("%s in excellent form (%s)", home.Name, home.Form))
		case awayForm >= 4 && homeForm <= 2:
			insights = append(insights, fmt.Sprintf("%s in excellent form (%s)", away.Name, away.Form))
		case math.Abs(homeForm-awayForm) < 0.5:
			insights = append(insights, "Both teams in similar form")
		}
	}

	homeScoring := home.ScoringRate(0)
	awayScoring := away.ScoringRate(0)
	if homeScoring >= 2.0 {
		insights = append(insights, fmt.Sprintf("%s averaging %.1f goals per game", home.Name, homeScoring))
	}
	if awayScoring >= 2.0 {
		insights = append(insights, fmt.Sprintf("%s averaging %.1f goals per game", away.Name, awayScoring))
	}

	if played := home.MatchesPlayed(); played > 0 {
		if conceded := home.ConcedingRate(0); conceded < 0.8 {
			insights = append(insights, fmt.Sprintf("%s has strong defense (%.1f conceded/game)", home.Name, conceded))
		}
	}
	if played := away.MatchesPlayed(); played > 0 {
		if conceded := away.ConcedingRate(0); conceded < 0.8 {
			insights = append(insights, fmt.Sprintf("%s has strong defense (%.1f conceded/game)", away.Name, conceded))
		}
	}

	if rate := winRate(home); rate >= 60 {
		insights = append(insights, fmt.Sprintf("%s winning %.0f%% of matches", home.Name, rate))
	}
	if rate := winRate(away); rate >= 60 {
		insights = append(insights, fmt.Sprintf("%s winning %.0f%% of matches", away.Name, rate))
	}

	if len(insights) > 3 {
		insights = insights[:3]
	}
	return insights
}

func winRate(t teamstats.TeamStatistics) float64 {
	played := t.MatchesPlayed()
	if played == 0 {
		return 0
	}
	return float64(t.Wins) / float64(played) * 100
}

// bettingMarkets derives over/under, both-teams-to-score and corners
// probabilities from expected goals and corners. A market is recommended
// only when both its own probability threshold and the overall confidence
// threshold are met.
func bettingMarkets(home, away teamstats.TeamStatistics, confidence int) prediction.Markets {
	const rateDefault = 1.5

	homeScoring := home.ScoringRate(rateDefault)
	awayScoring := away.ScoringRate(rateDefault)
	homeConceding := home.ConcedingRate(rateDefault)
	awayConceding := away.ConcedingRate(rateDefault)

	expectedGoals := (homeScoring+awayConceding)/2 + (awayScoring+homeConceding)/2

	over15 := overCurve(expectedGoals, 1.5, 30, 65, 2.0, 25, 95)
	over25 := overCurve(expectedGoals, 2.5, 20, 70, 2.0, 15, 90)
	over35 := overCurve(expectedGoals, 3.5, 15, 70, 2.0, 10, 85)

	attackStrength := (math.Min(1, homeScoring/2.0) + math.Min(1, awayScoring/2.0)) / 2
	defenseWeakness := (math.Min(1, homeConceding/2.0) + math.Min(1, awayConceding/2.0)) / 2
	btts := 35 + attackStrength*25 + defenseWeakness*25
	if homeScoring > 1.0 && awayScoring > 1.0 {
		btts += 5
	}
	if homeConceding < 0.6 || awayConceding < 0.6 {
		btts -= 10
	}
	btts = math.Max(20, math.Min(90, btts))

	expectedCorners := home.CornersPerGame + away.CornersPerGame
	corners65 := overCurve(expectedCorners, 6.5, 25, 70, 6.0, 20, 95)
	corners85 := overCurve(expectedCorners, 8.5, 20, 70, 5.5, 15, 90)
	corners105 := overCurve(expectedCorners, 10.5, 15, 70, 5.0, 10, 85)

	conf := float64(confidence)
	return prediction.Markets{
		Over15Goals: market(over15, 65, conf >= 65),
		Over25Goals: market(over25, 60, conf >= 65),
		Over35Goals: market(over35, 55, conf >= 70),
		BTTS:        market(btts, 60, conf >= 65),
		Corners: prediction.CornerMarkets{
			Over65:  market(corners65, 65, conf >= 65),
			Over85:  market(corners85, 60, conf >= 65),
			Over105: market(corners105, 55, conf >= 70),
		},
	}
}

// overCurve maps an expected total onto a probability that rises linearly
// from base once the line is reached, saturating after span units.
func overCurve(expected, line, base, scale, span, floor, ceiling float64) float64 {
	prob := base
	if expected >= line {
		prob = base + scale*math.Min(1, (expected-line)/span)
	}
	return math.Max(floor, math.Min(ceiling, prob))
}

func market(probability, threshold float64, confidentEnough bool) prediction.Market {
	return prediction.Market{
		Probability: round1(probability),
		Recommended: probability >= threshold && confidentEnough,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
