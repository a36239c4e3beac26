package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/andryanduta/predikta/internal/domain/match"
	"github.com/andryanduta/predikta/internal/domain/prediction"
	"github.com/andryanduta/predikta/internal/platform/logging"
)

// Competition is one tracked league: the provider code plus the display
// name used on matches and team statistics.
type Competition struct {
	Code string
	Name string
}

// MatchList is one aggregation cycle's output. Degraded is set when at
// least one tracked competition contributed nothing because of an
// upstream failure.
type MatchList struct {
	Matches  []match.Match
	Degraded bool
}

// MatchPrediction pairs a match with its derived prediction.
type MatchPrediction struct {
	Match      match.Match           `json:"match"`
	Prediction prediction.Prediction `json:"prediction"`
}

// MatchService aggregates upcoming matches across tracked competitions
// and computes predictions for them. Failures are contained at the
// narrowest possible level: a bad fixture is dropped, a bad competition
// contributes zero matches, and only a total wipeout yields an empty
// degraded list.
type MatchService struct {
	fixtures     *FixtureService
	teamStats    *TeamStatsService
	predictor    *Predictor
	competitions []Competition
	pool         *ants.Pool
	logger       *logging.Logger
}

func NewMatchService(
	fixtures *FixtureService,
	teamStats *TeamStatsService,
	predictor *Predictor,
	competitions []Competition,
	workerCount int,
	logger *logging.Logger,
) (*MatchService, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if workerCount < 1 {
		workerCount = 4
	}

	pool, err := ants.NewPool(workerCount, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create prediction worker pool: %w", err)
	}

	return &MatchService{
		fixtures:     fixtures,
		teamStats:    teamStats,
		predictor:    predictor,
		competitions: competitions,
		pool:         pool,
		logger:       logger,
	}, nil
}

// Close releases the prediction worker pool.
func (s *MatchService) Close() {
	s.pool.Release()
}

// FetchAllUpcoming walks every tracked competition sequentially: standings
// are warmed first so team resolution hits the cache, then fixtures are
// fetched and turned into matches. The result is deduplicated by composite
// id and sorted by kickoff time.
func (s *MatchService) FetchAllUpcoming(ctx context.Context, days int) (MatchList, error) {
	ctx, span := startUsecaseSpan(ctx, "MatchService.FetchAllUpcoming")
	defer span.End()

	if len(s.competitions) == 0 {
		return MatchList{}, fmt.Errorf("%w: no competitions configured", ErrInvalidInput)
	}

	// Warming standings up front means the per-team Resolve calls below
	// never trigger their own upstream requests.
	for _, comp := range s.competitions {
		if err := s.teamStats.EnsureStandings(ctx, comp.Code, comp.Name); err != nil {
			s.logger.WarnContext(ctx, "standings warmup failed",
				"competition", comp.Code,
				"error", err,
			)
		}
	}

	seen := make(map[string]struct{})
	out := MatchList{Matches: make([]match.Match, 0, 32)}

	for _, comp := range s.competitions {
		fixtures, err := s.fixtures.UpcomingFixtures(ctx, comp.Code, days)
		if err != nil {
			s.logger.WarnContext(ctx, "competition contributed no fixtures",
				"competition", comp.Code,
				"error", err,
			)
			out.Degraded = true
			continue
		}

		for _, fixture := range fixtures {
			built, buildErr := s.buildMatch(ctx, comp, fixture)
			if buildErr != nil {
				s.logger.WarnContext(ctx, "dropping malformed fixture",
					"competition", comp.Code,
					"fixture_id", fixture.ExternalID,
					"error", buildErr,
				)
				continue
			}
			if _, dup := seen[built.ID]; dup {
				continue
			}
			seen[built.ID] = struct{}{}
			out.Matches = append(out.Matches, built)
		}
	}

	sort.SliceStable(out.Matches, func(i, j int) bool {
		if !out.Matches[i].KickoffAt.Equal(out.Matches[j].KickoffAt) {
			return out.Matches[i].KickoffAt.Before(out.Matches[j].KickoffAt)
		}
		return out.Matches[i].ID < out.Matches[j].ID
	})

	s.logger.InfoContext(ctx, "aggregation cycle complete",
		"matches", len(out.Matches),
		"competitions", len(s.competitions),
		"degraded", out.Degraded,
	)
	return out, nil
}

// PredictAllUpcoming aggregates matches and attaches a prediction to each.
func (s *MatchService) PredictAllUpcoming(ctx context.Context, days int) ([]MatchPrediction, bool, error) {
	list, err := s.FetchAllUpcoming(ctx, days)
	if err != nil {
		return nil, false, err
	}
	return s.PredictAll(ctx, list.Matches), list.Degraded, nil
}

// PredictAll computes predictions for a match list on the worker pool,
// preserving input order. Prediction is pure CPU work, so a submit failure
// just computes inline instead.
func (s *MatchService) PredictAll(ctx context.Context, matches []match.Match) []MatchPrediction {
	_, span := startUsecaseSpan(ctx, "MatchService.PredictAll")
	defer span.End()

	out := make([]MatchPrediction, len(matches))

	var wg sync.WaitGroup
	for i, m := range matches {
		i, m := i, m
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i] = MatchPrediction{
				Match:      m,
				Prediction: s.predictor.Predict(m.HomeTeam, m.AwayTeam),
			}
		}
		if err := s.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	return out
}

func (s *MatchService) buildMatch(ctx context.Context, comp Competition, fixture ExternalFixture) (match.Match, error) {
	if fixture.ExternalID <= 0 {
		return match.Match{}, fmt.Errorf("fixture id is missing")
	}

	home := s.teamStats.Resolve(ctx, comp.Code, comp.Name, fixture.HomeTeamExternalID, fixture.HomeTeamName, fixture.HomeCrest)
	away := s.teamStats.Resolve(ctx, comp.Code, comp.Name, fixture.AwayTeamExternalID, fixture.AwayTeamName, fixture.AwayCrest)

	built := match.Match{
		ID:          match.ComposeID(comp.Code, fixture.ExternalID),
		Competition: comp.Name,
		HomeTeam:    home,
		AwayTeam:    away,
		KickoffAt:   fixture.KickoffAt,
		Venue:       fixture.Venue,
	}
	if err := built.Validate(); err != nil {
		return match.Match{}, err
	}
	return built, nil
}
