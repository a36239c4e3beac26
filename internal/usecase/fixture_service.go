package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andryanduta/predikta/internal/platform/cache"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
)

const (
	defaultLookaheadDays = 7
	maxLookaheadDays     = 30
)

// FixtureService fetches upcoming scheduled fixtures per competition with
// a short-TTL cache in front of the request queue. Upstream failures
// degrade to an empty list; the caller decides whether that counts as a
// degraded result.
type FixtureService struct {
	provider MatchDataProvider
	queue    *requestqueue.Queue
	cache    *cache.Store
	logger   *logging.Logger
	now      func() time.Time
}

func NewFixtureService(provider MatchDataProvider, queue *requestqueue.Queue, cacheStore *cache.Store, logger *logging.Logger) *FixtureService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FixtureService{
		provider: provider,
		queue:    queue,
		cache:    cacheStore,
		logger:   logger,
		now:      time.Now,
	}
}

func fixturesKey(competitionCode string, days int) string {
	return fmt.Sprintf("fixtures-%s-%d", competitionCode, days)
}

// UpcomingFixtures returns scheduled fixtures from today through
// today+days. On provider failure it returns an empty list alongside the
// error so callers can both degrade gracefully and account for the miss.
// Failed loads are never cached.
func (s *FixtureService) UpcomingFixtures(ctx context.Context, competitionCode string, days int) ([]ExternalFixture, error) {
	ctx, span := startUsecaseSpan(ctx, "FixtureService.UpcomingFixtures")
	defer span.End()

	competitionCode = strings.TrimSpace(competitionCode)
	if competitionCode == "" {
		return nil, fmt.Errorf("%w: competition code is required", ErrInvalidInput)
	}
	if days <= 0 {
		days = defaultLookaheadDays
	}
	if days > maxLookaheadDays {
		return nil, fmt.Errorf("%w: lookahead window is capped at %d days", ErrInvalidInput, maxLookaheadDays)
	}

	value, err := s.cache.GetOrLoad(ctx, fixturesKey(competitionCode, days), func(ctx context.Context) (any, error) {
		return s.fetchFixtures(ctx, competitionCode, days)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "fixtures unavailable, returning empty list",
			"competition", competitionCode,
			"days", days,
			"error", err,
		)
		return []ExternalFixture{}, fmt.Errorf("upcoming fixtures competition=%s: %w", competitionCode, err)
	}

	fixtures, ok := value.([]ExternalFixture)
	if !ok {
		return []ExternalFixture{}, fmt.Errorf("unexpected fixtures cache payload type %T", value)
	}
	return fixtures, nil
}

func (s *FixtureService) fetchFixtures(ctx context.Context, competitionCode string, days int) ([]ExternalFixture, error) {
	from := s.now().UTC().Truncate(24 * time.Hour)
	to := from.AddDate(0, 0, days)

	result, err := s.queue.Submit(ctx, func(ctx context.Context) (any, error) {
		return s.provider.FetchScheduledMatches(ctx, competitionCode, from, to)
	})
	if err != nil {
		if errors.Is(err, requestqueue.ErrRateLimitExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
		}
		return nil, err
	}

	fixtures, ok := result.([]ExternalFixture)
	if !ok {
		return nil, fmt.Errorf("unexpected fixtures payload type %T", result)
	}
	return fixtures, nil
}
