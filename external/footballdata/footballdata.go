package footballdata

import (
	"strings"
)

// Competition identifiers are short alphanumeric codes on the provider
// side; this table maps the human-readable league names tracked by the
// aggregator onto them.
var competitionCodeByName = map[string]string{
	"Premier League":        "PL",
	"La Liga":               "PD",
	"Serie A":               "SA",
	"Bundesliga":            "BL1",
	"Ligue 1":               "FL1",
	"Eredivisie":            "DED",
	"Primeira Liga":         "PPL",
	"Championship":          "ELC",
	"UEFA Champions League": "CL",
	"Europa League":         "EL",
}

// CompetitionCode resolves a league name to its provider code. Unknown
// names fall back to the Premier League, mirroring the tracked-league
// default.
func CompetitionCode(name string) string {
	if code, ok := competitionCodeByName[strings.TrimSpace(name)]; ok {
		return code
	}
	if looksLikeCode(name) {
		return strings.ToUpper(strings.TrimSpace(name))
	}
	return "PL"
}

func looksLikeCode(value string) bool {
	value = strings.TrimSpace(value)
	if len(value) < 2 || len(value) > 4 {
		return false
	}
	for _, r := range value {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Wire envelopes for the provider's v4 REST payloads.

type matchesEnvelope struct {
	Competition wireCompetition `json:"competition"`
	Matches     []wireMatch     `json:"matches"`
}

type wireCompetition struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type wireMatch struct {
	ID       int64    `json:"id"`
	UTCDate  string   `json:"utcDate"`
	Status   string   `json:"status"`
	Venue    string   `json:"venue"`
	HomeTeam wireTeam `json:"homeTeam"`
	AwayTeam wireTeam `json:"awayTeam"`
}

type wireTeam struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	Crest     string `json:"crest"`
}

type standingsEnvelope struct {
	Competition wireCompetition     `json:"competition"`
	Standings   []wireStandingBlock `json:"standings"`
}

type wireStandingBlock struct {
	Type  string            `json:"type"`
	Table []wireStandingRow `json:"table"`
}

type wireStandingRow struct {
	Position       int      `json:"position"`
	Team           wireTeam `json:"team"`
	PlayedGames    int      `json:"playedGames"`
	Form           string   `json:"form"`
	Won            int      `json:"won"`
	Draw           int      `json:"draw"`
	Lost           int      `json:"lost"`
	Points         int      `json:"points"`
	GoalsFor       int      `json:"goalsFor"`
	GoalsAgainst   int      `json:"goalsAgainst"`
	GoalDifference int      `json:"goalDifference"`
}

type errorEnvelope struct {
	Message   string `json:"message"`
	ErrorCode int    `json:"errorCode"`
	Error     string `json:"error"`
}
