package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/andryanduta/predikta/internal/domain/teamstats"
	"github.com/andryanduta/predikta/internal/platform/cache"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
)

// TeamStatsService resolves season statistics for teams, backed by one
// standings call per competition. Resolution never fails: a team missing
// from the table gets deterministic neutral estimates instead.
type TeamStatsService struct {
	provider MatchDataProvider
	queue    *requestqueue.Queue
	cache    *cache.Store
	logger   *logging.Logger
}

func NewTeamStatsService(provider MatchDataProvider, queue *requestqueue.Queue, cacheStore *cache.Store, logger *logging.Logger) *TeamStatsService {
	if logger == nil {
		logger = logging.Default()
	}
	return &TeamStatsService{
		provider: provider,
		queue:    queue,
		cache:    cacheStore,
		logger:   logger,
	}
}

func teamStatsKey(competitionCode string, teamExternalID int64) string {
	return fmt.Sprintf("team-%s-%d", competitionCode, teamExternalID)
}

func standingsKey(competitionCode string) string {
	return fmt.Sprintf("standings-%s", competitionCode)
}

// EnsureStandings fetches the competition table once through the request
// queue and caches a TeamStatistics entry per table row. Concurrent calls
// for the same competition collapse into one upstream request.
func (s *TeamStatsService) EnsureStandings(ctx context.Context, competitionCode, competitionName string) error {
	ctx, span := startUsecaseSpan(ctx, "TeamStatsService.EnsureStandings")
	defer span.End()

	competitionCode = strings.TrimSpace(competitionCode)
	if competitionCode == "" {
		return fmt.Errorf("%w: competition code is required", ErrInvalidInput)
	}

	_, err := s.cache.GetOrLoad(ctx, standingsKey(competitionCode), func(ctx context.Context) (any, error) {
		rows, loadErr := s.fetchStandings(ctx, competitionCode)
		if loadErr != nil {
			return nil, loadErr
		}
		for _, row := range rows {
			stats := deriveTeamStatistics(row, competitionName)
			s.cache.Set(ctx, teamStatsKey(competitionCode, row.TeamExternalID), stats)
		}
		s.logger.InfoContext(ctx, "standings resolved",
			"competition", competitionCode,
			"teams", len(rows),
		)
		return len(rows), nil
	})
	if err != nil {
		return fmt.Errorf("ensure standings competition=%s: %w", competitionCode, err)
	}
	return nil
}

// Resolve returns statistics for one team. A cache miss triggers a
// standings load; a team still absent afterwards gets neutral defaults.
// The fallback is logged but never surfaced as an error.
func (s *TeamStatsService) Resolve(ctx context.Context, competitionCode, competitionName string, teamExternalID int64, teamName, crest string) teamstats.TeamStatistics {
	ctx, span := startUsecaseSpan(ctx, "TeamStatsService.Resolve")
	defer span.End()

	key := teamStatsKey(competitionCode, teamExternalID)
	if value, ok := s.cache.Get(ctx, key); ok {
		if stats, ok := value.(teamstats.TeamStatistics); ok {
			return stats
		}
	}

	if err := s.EnsureStandings(ctx, competitionCode, competitionName); err != nil {
		s.logger.WarnContext(ctx, "standings unavailable, will use neutral estimates",
			"competition", competitionCode,
			"team", teamName,
			"error", err,
		)
	}

	if value, ok := s.cache.Get(ctx, key); ok {
		if stats, ok := value.(teamstats.TeamStatistics); ok {
			return stats
		}
	}

	s.logger.WarnContext(ctx, "team missing from standings, using neutral estimates",
		"competition", competitionCode,
		"team", teamName,
		"team_external_id", teamExternalID,
	)
	return teamstats.Neutral(teamName, competitionName, crest)
}

func (s *TeamStatsService) fetchStandings(ctx context.Context, competitionCode string) ([]ExternalStanding, error) {
	result, err := s.queue.Submit(ctx, func(ctx context.Context) (any, error) {
		return s.provider.FetchStandings(ctx, competitionCode)
	})
	if err != nil {
		if errors.Is(err, requestqueue.ErrRateLimitExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
		}
		return nil, err
	}

	rows, ok := result.([]ExternalStanding)
	if !ok {
		return nil, fmt.Errorf("unexpected standings payload type %T", result)
	}
	return rows, nil
}

// deriveTeamStatistics estimates per-game metrics from a standings row.
// The provider exposes no shot or possession data, so those are modeled
// from scoring output and table position. Fully deterministic.
func deriveTeamStatistics(row ExternalStanding, competitionName string) teamstats.TeamStatistics {
	played := row.Won + row.Draw + row.Lost

	goalsPerGame := 0.0
	if played > 0 {
		goalsPerGame = float64(row.GoalsFor) / float64(played)
	}

	// Better finishers need fewer shots per goal.
	shotsPerGoal := 9.0
	switch {
	case goalsPerGame >= 2.0:
		shotsPerGoal = 5.5
	case goalsPerGame >= 1.5:
		shotsPerGoal = 6.5
	case goalsPerGame >= 1.0:
		shotsPerGoal = 7.5
	}
	shotsPerGame := round1(goalsPerGame * shotsPerGoal)
	shotsOnTarget := round1(shotsPerGame * 0.35)

	possession := clampRange(55-float64(row.Position-1)*0.5, 45, 55)
	passAccuracy := clampRange(85-float64(row.Position-1)*0.5, 75, 85)

	form := strings.TrimSpace(row.Form)
	if form == "" {
		form = teamstats.FormUnknown
	}

	return teamstats.TeamStatistics{
		Name:                 row.TeamName,
		Crest:                row.Crest,
		Competition:          competitionName,
		Form:                 form,
		GoalsScored:          row.GoalsFor,
		GoalsConceded:        row.GoalsAgainst,
		Wins:                 row.Won,
		Draws:                row.Draw,
		Losses:               row.Lost,
		AveragePossession:    possession,
		ShotsPerGame:         shotsPerGame,
		ShotsOnTargetPerGame: shotsOnTarget,
		PassAccuracy:         passAccuracy,
		TacklesPerGame:       15,
		FoulsPerGame:         10,
		CornersPerGame:       estimateCorners(goalsPerGame, form),
	}
}

// estimateCorners models corner output from attacking strength, nudged up
// to one corner either way by recent form.
func estimateCorners(goalsPerGame float64, form string) float64 {
	base := 4.0
	switch {
	case goalsPerGame >= 2.0:
		base = 7.5
	case goalsPerGame >= 1.5:
		base = 6.0
	case goalsPerGame >= 1.0:
		base = 5.0
	}

	formFactor := 0.5
	if form != "" && form != teamstats.FormUnknown {
		score, results := 0.0, 0
		for _, r := range form {
			switch r {
			case 'W':
				score += 3
				results++
			case 'D':
				score++
				results++
			case 'L':
				results++
			}
		}
		if results > 0 {
			formFactor = score / (float64(results) * 3)
		}
	}

	corners := base + (formFactor-0.5)*2
	return round1(clampRange(corners, 3, 9))
}

func clampRange(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
