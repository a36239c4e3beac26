package footballdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/andryanduta/predikta/internal/platform/logging"
	"github.com/andryanduta/predikta/internal/platform/requestqueue"
	"github.com/andryanduta/predikta/internal/platform/resilience"
	"github.com/andryanduta/predikta/internal/usecase"
)

const (
	defaultBaseURL = "https://api.football-data.org/v4"
	authHeader     = "X-Auth-Token"
	statusFilter   = "SCHEDULED"
	maxBodyBytes   = 4 << 20
	dateLayout     = "2006-01-02"
)

// ErrTransient marks provider failures worth falling back over: network
// errors, timeouts and 5xx responses. Rate limits are classified
// separately so the request queue can retry them in place.
var ErrTransient = crerr.New("football-data transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the football-data.org v4 REST API. It performs exactly
// one attempt per call: retry policy for rate limits lives in the request
// queue, and non-rate-limit transient failures propagate once so callers
// can substitute safe defaults.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = timeout
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        cfg.CircuitBreaker.NewBreaker(),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}
}

// FetchScheduledMatches returns fixtures with SCHEDULED status between the
// two dates (inclusive) for one competition.
func (c *Client) FetchScheduledMatches(ctx context.Context, competitionCode string, dateFrom, dateTo time.Time) ([]usecase.ExternalFixture, error) {
	competitionCode = strings.TrimSpace(competitionCode)
	if competitionCode == "" {
		return nil, fmt.Errorf("competition code is required")
	}

	path := fmt.Sprintf("/competitions/%s/matches", competitionCode)
	query := map[string]string{
		"status": statusFilter,
	}
	if !dateFrom.IsZero() {
		query["dateFrom"] = dateFrom.UTC().Format(dateLayout)
	}
	if !dateTo.IsZero() {
		query["dateTo"] = dateTo.UTC().Format(dateLayout)
	}

	var envelope matchesEnvelope
	if err := c.doJSON(ctx, path, query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch matches competition=%s: %w", competitionCode, err)
	}

	code := strings.TrimSpace(envelope.Competition.Code)
	if code == "" {
		code = competitionCode
	}
	name := strings.TrimSpace(envelope.Competition.Name)
	if name == "" {
		name = code
	}

	out := make([]usecase.ExternalFixture, 0, len(envelope.Matches))
	for _, item := range envelope.Matches {
		if item.ID <= 0 {
			continue
		}
		kickoff, err := parseUTCDate(item.UTCDate)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping fixture with unparseable kickoff",
				"competition", code,
				"fixture_id", item.ID,
				"utc_date", item.UTCDate,
			)
			continue
		}
		out = append(out, usecase.ExternalFixture{
			ExternalID:         item.ID,
			CompetitionCode:    code,
			CompetitionName:    name,
			HomeTeamExternalID: item.HomeTeam.ID,
			HomeTeamName:       teamName(item.HomeTeam),
			HomeCrest:          strings.TrimSpace(item.HomeTeam.Crest),
			AwayTeamExternalID: item.AwayTeam.ID,
			AwayTeamName:       teamName(item.AwayTeam),
			AwayCrest:          strings.TrimSpace(item.AwayTeam.Crest),
			KickoffAt:          kickoff,
			Status:             strings.TrimSpace(item.Status),
			Venue:              strings.TrimSpace(item.Venue),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].KickoffAt.Equal(out[j].KickoffAt) {
			return out[i].KickoffAt.Before(out[j].KickoffAt)
		}
		return out[i].ExternalID < out[j].ExternalID
	})

	return out, nil
}

// FetchStandings returns the overall table for one competition. Rows with
// no team id are dropped; other malformed fields default to zero values.
func (c *Client) FetchStandings(ctx context.Context, competitionCode string) ([]usecase.ExternalStanding, error) {
	competitionCode = strings.TrimSpace(competitionCode)
	if competitionCode == "" {
		return nil, fmt.Errorf("competition code is required")
	}

	path := fmt.Sprintf("/competitions/%s/standings", competitionCode)

	var envelope standingsEnvelope
	if err := c.doJSON(ctx, path, nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch standings competition=%s: %w", competitionCode, err)
	}

	table := selectOverallTable(envelope.Standings)
	out := make([]usecase.ExternalStanding, 0, len(table))
	for _, row := range table {
		if row.Team.ID <= 0 {
			continue
		}
		out = append(out, usecase.ExternalStanding{
			TeamExternalID: row.Team.ID,
			TeamName:       teamName(row.Team),
			Crest:          strings.TrimSpace(row.Team.Crest),
			Position:       row.Position,
			Played:         row.PlayedGames,
			Won:            row.Won,
			Draw:           row.Draw,
			Lost:           row.Lost,
			GoalsFor:       row.GoalsFor,
			GoalsAgainst:   row.GoalsAgainst,
			GoalDifference: row.GoalDifference,
			Points:         row.Points,
			Form:           strings.TrimSpace(row.Form),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].TeamExternalID < out[j].TeamExternalID
	})

	return out, nil
}

// selectOverallTable prefers the TOTAL standings block; some cup payloads
// only carry group tables, in which case the first non-empty one wins.
func selectOverallTable(blocks []wireStandingBlock) []wireStandingRow {
	for _, block := range blocks {
		if strings.EqualFold(strings.TrimSpace(block.Type), "TOTAL") && len(block.Table) > 0 {
			return block.Table
		}
	}
	for _, block := range blocks {
		if len(block.Table) > 0 {
			return block.Table
		}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "football-data circuit breaker rejected request", "state", c.breaker.State().String())
			return fmt.Errorf("%w: provider is temporarily unavailable", ErrTransient)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, ErrTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}

	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("%w: send request: %s", ErrTransient, c.sanitize(err.Error()))
		c.logger.WarnContext(ctx, "football-data request failed", "url", fullURL, "error", wrapped)
		return nil, wrapped
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrTransient, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, nil
	}

	message := providerMessage(raw)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: provider status=429 message=%s", requestqueue.ErrRateLimited, message)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: provider status=%d message=%s", ErrTransient, resp.StatusCode, message)
	default:
		return nil, fmt.Errorf("provider status=%d message=%s", resp.StatusCode, message)
	}
}

func providerMessage(raw []byte) string {
	var envelope errorEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err == nil {
		if msg := strings.TrimSpace(envelope.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(envelope.Error); msg != "" {
			return msg
		}
	}
	return abbreviateBody(raw)
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}

func (c *Client) sanitize(value string) string {
	if c.token == "" {
		return value
	}
	return strings.ReplaceAll(value, c.token, "REDACTED")
}

func teamName(team wireTeam) string {
	if name := strings.TrimSpace(team.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(team.ShortName); name != "" {
		return name
	}
	return "Unknown Team"
}

func parseUTCDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty kickoff timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", dateLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable kickoff timestamp %q", raw)
}
