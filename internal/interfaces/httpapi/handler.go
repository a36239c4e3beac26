package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/andryanduta/predikta/internal/platform/cache"
	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
	"github.com/andryanduta/predikta/internal/usecase"
)

const matchCacheControl = "public, s-maxage=300, stale-while-revalidate=300"

type Handler struct {
	matchService   *usecase.MatchService
	teamStatsCache *cache.Store
	fixturesCache  *cache.Store
	queue          *requestqueue.Queue
	defaultDays    int
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	matchService *usecase.MatchService,
	teamStatsCache *cache.Store,
	fixturesCache *cache.Store,
	queue *requestqueue.Queue,
	defaultDays int,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if defaultDays < 1 {
		defaultDays = 7
	}

	return &Handler{
		matchService:   matchService,
		teamStatsCache: teamStatsCache,
		fixturesCache:  fixturesCache,
		queue:          queue,
		defaultDays:    defaultDays,
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type listMeta struct {
	Count    int  `json:"count"`
	Degraded bool `json:"degraded"`
}

// ListMatches returns upcoming matches across all tracked competitions.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatches")
	defer span.End()

	days, err := h.daysParam(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	list, err := h.matchService.FetchAllUpcoming(ctx, days)
	if err != nil {
		h.logger.ErrorContext(ctx, "list matches failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", matchCacheControl)
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"matches": list.Matches,
		"meta":    listMeta{Count: len(list.Matches), Degraded: list.Degraded},
	})
}

// ListPredictions returns upcoming matches with predictions attached.
func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListPredictions")
	defer span.End()

	days, err := h.daysParam(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	predictions, degraded, err := h.matchService.PredictAllUpcoming(ctx, days)
	if err != nil {
		h.logger.ErrorContext(ctx, "list predictions failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", matchCacheControl)
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"predictions": predictions,
		"meta":        listMeta{Count: len(predictions), Degraded: degraded},
	})
}

// CacheStats reports live entry counts and queue depth for operators.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CacheStats")
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"teamStats":   h.teamStatsCache.Len(),
		"fixtures":    h.fixturesCache.Len(),
		"queueLength": h.queue.Len(),
	})
}

// ClearCache drops both caches. The next aggregation cycle refetches
// everything from the provider.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ClearCache")
	defer span.End()

	h.teamStatsCache.Clear(ctx)
	h.fixturesCache.Clear(ctx)
	h.logger.InfoContext(ctx, "caches cleared via api")

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) daysParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return h.defaultDays, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer", usecase.ErrInvalidInput)
	}
	if err := h.validator.Var(days, "gte=1,lte=30"); err != nil {
		return 0, fmt.Errorf("%w: days must be between 1 and 30", usecase.ErrInvalidInput)
	}
	return days, nil
}
