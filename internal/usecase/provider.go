package usecase

import (
	"context"
	"time"
)

// MatchDataProvider is the upstream football data source. Implementations
// return a typed rate-limit error on quota exhaustion so the request queue
// can retry, and a transient error on outages so services can degrade.
type MatchDataProvider interface {
	FetchScheduledMatches(ctx context.Context, competitionCode string, dateFrom, dateTo time.Time) ([]ExternalFixture, error)
	FetchStandings(ctx context.Context, competitionCode string) ([]ExternalStanding, error)
}

type ExternalFixture struct {
	ExternalID         int64
	CompetitionCode    string
	CompetitionName    string
	HomeTeamExternalID int64
	HomeTeamName       string
	HomeCrest          string
	AwayTeamExternalID int64
	AwayTeamName       string
	AwayCrest          string
	KickoffAt          time.Time
	Status             string
	Venue              string
}

type ExternalStanding struct {
	TeamExternalID int64
	TeamName       string
	Crest          string
	Position       int
	Played         int
	Won            int
	Draw           int
	Lost           int
	GoalsFor       int
	GoalsAgainst   int
	GoalDifference int
	Points         int
	Form           string
}
