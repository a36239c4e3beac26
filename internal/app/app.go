package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/sourcegraph/conc"

	"github.com/andryanduta/predikta/external/footballdata"
	"github.com/andryanduta/predikta/internal/config"
	"github.com/andryanduta/predikta/internal/domain/teamstats"
	"github.com/andryanduta/predikta/internal/infrastructure/cachestore"
	"github.com/andryanduta/predikta/internal/interfaces/httpapi"
	"github.com/andryanduta/predikta/internal/observability"
	"github.com/andryanduta/predikta/internal/platform/cache"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
	"github.com/andryanduta/predikta/internal/platform/resilience"
	"github.com/andryanduta/predikta/internal/usecase"
)

// App owns every long-lived component of the service: telemetry, caches,
// the provider client, the request queue, the match service and the HTTP
// server. Close tears them down in reverse order.
type App struct {
	Server *http.Server

	cfg    config.Config
	logger *logging.Logger

	matchService *usecase.MatchService
	queue        *requestqueue.Queue
	db           *sqlx.DB

	shutdownTracing func(context.Context) error
	stopProfiler    func() error

	refreshCancel context.CancelFunc
	refreshWG     conc.WaitGroup
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init uptrace: %w", err)
	}
	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init pyroscope: %w", err)
	}

	var (
		db            *sqlx.DB
		teamStatsOpts = []cache.Option{cache.WithLogger(logger)}
		fixturesOpts  = []cache.Option{cache.WithLogger(logger)}
	)
	if cfg.CacheSnapshotEnabled {
		db, err = cachestore.OpenSQLite(ctx, cfg.CacheSnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open cache snapshot: %w", err)
		}
		teamStatsStore, storeErr := cachestore.NewSQLiteStore(ctx, db, "team_stats_cache")
		if storeErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create team stats snapshot store: %w", storeErr)
		}
		fixturesStore, storeErr := cachestore.NewSQLiteStore(ctx, db, "fixtures_cache")
		if storeErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create fixtures snapshot store: %w", storeErr)
		}
		teamStatsOpts = append(teamStatsOpts, cache.WithPersistence(teamStatsStore, sonic.Marshal, decodeTeamStatsEntry))
		fixturesOpts = append(fixturesOpts, cache.WithPersistence(fixturesStore, sonic.Marshal, decodeFixturesEntry))
	}

	teamStatsCache := cache.NewStore(ctx, cfg.TeamStatsCacheTTL, teamStatsOpts...)
	fixturesCache := cache.NewStore(ctx, cfg.FixturesCacheTTL, fixturesOpts...)

	queue := requestqueue.New(requestqueue.Config{
		RequestDelay:    cfg.RequestDelay,
		MaxAttempts:     cfg.MaxRetryAttempts,
		BaseRetryWait:   cfg.RetryBaseWait,
		MaxJitter:       cfg.RetryMaxJitter,
		MaxRequestDelay: cfg.MaxRequestDelay,
		AdaptAfter:      cfg.RateLimitAdaptAfter,
		DelayStep:       cfg.RequestDelayStep,
	}, logger)

	client := footballdata.NewClient(footballdata.ClientConfig{
		BaseURL: cfg.FootballDataBaseURL,
		Token:   cfg.FootballDataToken,
		Timeout: cfg.FootballDataTimeout,
		Logger:  logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FootballDataCircuitEnabled,
			FailureThreshold: cfg.FootballDataCircuitFailureCount,
			OpenTimeout:      cfg.FootballDataCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FootballDataCircuitHalfOpenMaxRq,
		},
	})

	teamStats := usecase.NewTeamStatsService(client, queue, teamStatsCache, logger)
	fixtures := usecase.NewFixtureService(client, queue, fixturesCache, logger)

	competitions := make([]usecase.Competition, 0, len(cfg.TrackedCompetitions))
	for _, name := range cfg.TrackedCompetitions {
		competitions = append(competitions, usecase.Competition{
			Code: footballdata.CompetitionCode(name),
			Name: name,
		})
	}

	matchService, err := usecase.NewMatchService(fixtures, teamStats, usecase.NewPredictor(), competitions, cfg.PredictionWorkers, logger)
	if err != nil {
		queue.Close()
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("create match service: %w", err)
	}

	handler := httpapi.NewHandler(matchService, teamStatsCache, fixturesCache, queue, cfg.LookaheadDays, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		queue.Close()
		matchService.Close()
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:          server,
		cfg:             cfg,
		logger:          logger,
		matchService:    matchService,
		queue:           queue,
		db:              db,
		shutdownTracing: shutdownTracing,
		stopProfiler:    stopProfiler,
	}, nil
}

// StartRefresh launches the background aggregation loop. A zero or
// negative interval disables it.
func (a *App) StartRefresh(ctx context.Context) {
	if a.cfg.RefreshInterval <= 0 {
		a.logger.Info("background refresh disabled", "reason", "REFRESH_INTERVAL=0")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.refreshCancel = cancel

	a.logger.Info("background refresh enabled", "interval", a.cfg.RefreshInterval)
	a.refreshWG.Go(func() {
		ticker := time.NewTicker(a.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.refreshOnce(ctx)
			}
		}
	})
}

// refreshOnce runs one aggregation cycle. Panics are contained so a bad
// cycle never kills the loop.
func (a *App) refreshOnce(ctx context.Context) {
	var wg conc.WaitGroup
	wg.Go(func() {
		list, err := a.matchService.FetchAllUpcoming(ctx, a.cfg.LookaheadDays)
		if err != nil {
			a.logger.ErrorContext(ctx, "background refresh failed", "error", err)
			return
		}
		a.logger.InfoContext(ctx, "background refresh completed",
			"matches", len(list.Matches),
			"degraded", list.Degraded,
		)
	})
	if recovered := wg.WaitAndRecover(); recovered != nil {
		a.logger.ErrorContext(ctx, "background refresh panicked", "panic", recovered.Value)
	}
}

// PredictUpcoming runs one aggregation and prediction cycle. Used by the
// one-shot scanner binary.
func (a *App) PredictUpcoming(ctx context.Context, days int) ([]usecase.MatchPrediction, bool, error) {
	return a.matchService.PredictAllUpcoming(ctx, days)
}

// Close stops the refresh loop, releases workers and the queue, then
// flushes telemetry. Safe to call once after the HTTP server is down.
func (a *App) Close(ctx context.Context) error {
	if a.refreshCancel != nil {
		a.refreshCancel()
	}
	if recovered := a.refreshWG.WaitAndRecover(); recovered != nil {
		a.logger.Error("refresh loop panicked during shutdown", "panic", recovered.Value)
	}

	a.matchService.Close()
	a.queue.Close()

	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache snapshot: %w", err))
		}
	}
	if a.stopProfiler != nil {
		if err := a.stopProfiler(); err != nil {
			errs = append(errs, fmt.Errorf("stop profiler: %w", err))
		}
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}

func decodeTeamStatsEntry(raw []byte) (any, error) {
	var stats teamstats.TeamStatistics
	if err := sonic.Unmarshal(raw, &stats); err == nil && stats.Name != "" {
		return stats, nil
	}

	// Standings marker entries hold a bare row count.
	var marker int
	if err := sonic.Unmarshal(raw, &marker); err != nil {
		return nil, fmt.Errorf("decode team stats cache entry: %w", err)
	}
	return marker, nil
}

func decodeFixturesEntry(raw []byte) (any, error) {
	var fixtures []usecase.ExternalFixture
	if err := sonic.Unmarshal(raw, &fixtures); err != nil {
		return nil, fmt.Errorf("decode fixtures cache entry: %w", err)
	}
	return fixtures, nil
}
