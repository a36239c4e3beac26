package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/andryanduta/predikta/internal/domain/teamstats"
	"github.com/andryanduta/predikta/internal/platform/cache"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
)

type stubProvider struct {
	mu             sync.Mutex
	standings      map[string][]ExternalStanding
	standingsErr   error
	standingsCalls int
	fixtures       map[string][]ExternalFixture
	fixturesErr    error
	fixturesErrFor map[string]error
	fixturesCalls  int
}

func (p *stubProvider) FetchStandings(_ context.Context, competitionCode string) ([]ExternalStanding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.standingsCalls++
	if p.standingsErr != nil {
		return nil, p.standingsErr
	}
	return p.standings[competitionCode], nil
}

func (p *stubProvider) FetchScheduledMatches(_ context.Context, competitionCode string, _, _ time.Time) ([]ExternalFixture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixturesCalls++
	if p.fixturesErr != nil {
		return nil, p.fixturesErr
	}
	if err := p.fixturesErrFor[competitionCode]; err != nil {
		return nil, err
	}
	return p.fixtures[competitionCode], nil
}

func newImmediateQueue(t *testing.T) *requestqueue.Queue {
	t.Helper()
	q := requestqueue.New(requestqueue.Config{}, logging.NewNop(),
		requestqueue.WithSleeper(func(context.Context, time.Duration) error { return nil }),
		requestqueue.WithJitter(func() time.Duration { return 0 }),
	)
	t.Cleanup(q.Close)
	return q
}

func premierLeagueStandings() []ExternalStanding {
	return []ExternalStanding{
		{
			TeamExternalID: 64, TeamName: "Liverpool FC", Crest: "lfc.png",
			Position: 1, Played: 10, Won: 8, Draw: 1, Lost: 1,
			GoalsFor: 24, GoalsAgainst: 8, GoalDifference: 16, Points: 25,
			Form: "W,W,W,D,W",
		},
		{
			TeamExternalID: 57, TeamName: "Arsenal FC",
			Position: 12, Played: 10, Won: 3, Draw: 4, Lost: 3,
			GoalsFor: 11, GoalsAgainst: 12, GoalDifference: -1, Points: 13,
		},
	}
}

func TestResolveFromStandings(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{standings: map[string][]ExternalStanding{
		"PL": premierLeagueStandings(),
	}}
	service := NewTeamStatsService(provider, newImmediateQueue(t),
		cache.NewStore(context.Background(), time.Hour), logging.NewNop())

	ctx := context.Background()
	stats := service.Resolve(ctx, "PL", "Premier League", 64, "Liverpool FC", "")

	if stats.Name != "Liverpool FC" || stats.Competition != "Premier League" {
		t.Errorf("identity = %q / %q", stats.Name, stats.Competition)
	}
	if stats.Wins != 8 || stats.Draws != 1 || stats.Losses != 1 {
		t.Errorf("record = %d-%d-%d, want 8-1-1", stats.Wins, stats.Draws, stats.Losses)
	}
	if stats.Form != "W,W,W,D,W" {
		t.Errorf("form = %q", stats.Form)
	}
	// 2.4 goals per game puts the side in the top finishing bracket.
	if stats.ShotsPerGame != 13.2 {
		t.Errorf("shots per game = %v, want 13.2", stats.ShotsPerGame)
	}
	if stats.ShotsOnTargetPerGame != 4.6 {
		t.Errorf("shots on target = %v, want 4.6", stats.ShotsOnTargetPerGame)
	}
	if stats.AveragePossession != 55 || stats.PassAccuracy != 85 {
		t.Errorf("position-derived rates = %v / %v, want 55 / 85 for first place",
			stats.AveragePossession, stats.PassAccuracy)
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("derived stats invalid: %v", err)
	}
}

func TestResolveSingleStandingsCallPerCompetition(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{standings: map[string][]ExternalStanding{
		"PL": premierLeagueStandings(),
	}}
	service := NewTeamStatsService(provider, newImmediateQueue(t),
		cache.NewStore(context.Background(), time.Hour), logging.NewNop())

	ctx := context.Background()
	service.Resolve(ctx, "PL", "Premier League", 64, "Liverpool FC", "")
	service.Resolve(ctx, "PL", "Premier League", 57, "Arsenal FC", "")
	service.Resolve(ctx, "PL", "Premier League", 64, "Liverpool FC", "")

	if provider.standingsCalls != 1 {
		t.Errorf("standings calls = %d, want 1", provider.standingsCalls)
	}
}

func TestResolveMissingTeamFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{standings: map[string][]ExternalStanding{
		"PL": premierLeagueStandings(),
	}}
	service := NewTeamStatsService(provider, newImmediateQueue(t),
		cache.NewStore(context.Background(), time.Hour), logging.NewNop())

	stats := service.Resolve(context.Background(), "PL", "Premier League", 999, "Newly Promoted FC", "np.png")

	want := teamstats.Neutral("Newly Promoted FC", "Premier League", "np.png")
	if stats != want {
		t.Errorf("fallback stats = %+v, want neutral defaults", stats)
	}
}

func TestResolveProviderFailureFallsBackToNeutral(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{standingsErr: fmt.Errorf("upstream down")}
	service := NewTeamStatsService(provider, newImmediateQueue(t),
		cache.NewStore(context.Background(), time.Hour), logging.NewNop())

	stats := service.Resolve(context.Background(), "PL", "Premier League", 64, "Liverpool FC", "")
	if stats.Form != teamstats.FormUnknown {
		t.Errorf("form = %q, want neutral sentinel on provider failure", stats.Form)
	}
	if stats.MatchesPlayed() == 0 {
		t.Error("neutral estimate should still carry a moderate record")
	}
}

func TestDeriveTeamStatistics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		row            ExternalStanding
		wantShots      float64
		wantCorners    float64
		wantPossession float64
		wantForm       string
	}{
		{
			name: "mid table average attack",
			row: ExternalStanding{
				TeamName: "Everton FC", Position: 11,
				Won: 4, Draw: 2, Lost: 4, GoalsFor: 12, GoalsAgainst: 13,
				Form: "W,L,D,W,L",
			},
			// 1.2 goals per game, 7.5 shots per goal
			wantShots:      9,
			wantCorners:    4.9, // form factor 7/15 nudges the base down
			wantPossession: 50,
			wantForm:       "W,L,D,W,L",
		},
		{
			name: "weak attack poor form",
			row: ExternalStanding{
				TeamName: "Struggler Town", Position: 20,
				Won: 1, Draw: 1, Lost: 8, GoalsFor: 5, GoalsAgainst: 25,
				Form: "L,L,L,L,L",
			},
			// 0.5 goals per game, 9.0 shots per goal
			wantShots:      4.5,
			wantCorners:    3, // base 4 minus full form penalty
			wantPossession: 45.5,
			wantForm:       "L,L,L,L,L",
		},
		{
			name: "no form reported",
			row: ExternalStanding{
				TeamName: "Quiet FC", Position: 5,
				Won: 5, Draw: 3, Lost: 2, GoalsFor: 16, GoalsAgainst: 10,
			},
			// 1.6 goals per game, 6.5 shots per goal
			wantShots:      10.4,
			wantCorners:    6, // neutral form factor, no adjustment
			wantPossession: 53,
			wantForm:       teamstats.FormUnknown,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stats := deriveTeamStatistics(tc.row, "Premier League")
			if stats.ShotsPerGame != tc.wantShots {
				t.Errorf("shots = %v, want %v", stats.ShotsPerGame, tc.wantShots)
			}
			if stats.CornersPerGame != tc.wantCorners {
				t.Errorf("corners = %v, want %v", stats.CornersPerGame, tc.wantCorners)
			}
			if stats.AveragePossession != tc.wantPossession {
				t.Errorf("possession = %v, want %v", stats.AveragePossession, tc.wantPossession)
			}
			if stats.Form != tc.wantForm {
				t.Errorf("form = %q, want %q", stats.Form, tc.wantForm)
			}
			if stats.TacklesPerGame != 15 || stats.FoulsPerGame != 10 {
				t.Errorf("fixed rates = %v / %v", stats.TacklesPerGame, stats.FoulsPerGame)
			}
			if err := stats.Validate(); err != nil {
				t.Errorf("derived stats invalid: %v", err)
			}
		})
	}
}
