package pubg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.pubg.com"
	requestTimeout = 25 * time.Second
	seasonCacheTTL = 7 * 24 * time.Hour

	// The /players filter accepts at most 10 comma-separated ids or names.
	maxBatchSize = 10
)

// RateLimitError is returned when 429 retries are exhausted. It carries the
// upstream quota diagnostics for the error string surfaced to operators.
type RateLimitError struct {
	Remaining string
	Reset     string
	Delay     time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("pubg api rate limited (remaining=%s, reset=%s, delay=%.1fs)",
		e.Remaining, e.Reset, e.Delay.Seconds())
}

// APIError is a non-retryable upstream error (4xx) or exhausted 5xx retries.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pubg api error %d: %s", e.Status, e.Body)
}

// Client talks to the PUBG stats API under a shared per-key rate budget.
type Client struct {
	baseURL string
	apiKey  string
	shard   string
	http    *http.Client
	limiter *minIntervalLimiter
	policy  *backoffPolicy
	sleep   func(context.Context, time.Duration) error
	log     zerolog.Logger

	seasonMu       sync.Mutex
	seasonID       string
	seasonCachedAt time.Time
}

// Options tunes client behavior. Zero values select the defaults that match
// the upstream key contract (10 RPM, 3 retries).
type Options struct {
	BaseURL    string
	RPM        int
	MaxRetries int
}

// NewClient creates a PUBG API client for one shard.
func NewClient(apiKey, shard string, opts Options, log zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rpm := opts.RPM
	if rpm <= 0 {
		rpm = 10
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		shard:   shard,
		http:    &http.Client{Timeout: requestTimeout},
		limiter: newMinIntervalLimiter(rpm),
		policy:  newBackoffPolicy(maxRetries),
		sleep:   sleepCtx,
		log:     log.With().Str("client", "pubg").Logger(),
	}
}

// get performs one rate-limited GET with the retry policy applied.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, http.Header, error) {
	reqURL := c.baseURL + "/shards/" + c.shard + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		body, headers, status, err := c.doOnce(ctx, reqURL)
		if err != nil {
			// Transport failure or timeout: retryable with backoff.
			lastErr = err
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if attempt < c.policy.maxRetries {
				delay := c.policy.backoffDelay(attempt)
				c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", delay).
					Str("path", path).Msg("Request failed, retrying")
				if err := c.sleep(ctx, delay); err != nil {
					return nil, nil, err
				}
				continue
			}
			return nil, nil, fmt.Errorf("pubg api network error: %w", lastErr)
		}

		switch c.policy.classify(status) {
		case decideSuccess:
			return body, headers, nil

		case decideRetry:
			if status == http.StatusTooManyRequests {
				delay := c.policy.rateLimitDelay(headers)
				if attempt < c.policy.maxRetries {
					c.log.Warn().Int("attempt", attempt+1).Dur("wait", delay).
						Str("path", path).Msg("Rate limited, backing off")
					if err := c.sleep(ctx, delay); err != nil {
						return nil, nil, err
					}
					continue
				}
				return nil, nil, &RateLimitError{
					Remaining: headers.Get("X-RateLimit-Remaining"),
					Reset:     headers.Get("X-RateLimit-Reset"),
					Delay:     delay,
				}
			}
			// 5xx
			lastErr = &APIError{Status: status, Body: truncateBody(body)}
			if attempt < c.policy.maxRetries {
				delay := c.policy.backoffDelay(attempt)
				c.log.Warn().Int("status", status).Int("attempt", attempt+1).Dur("wait", delay).
					Str("path", path).Msg("Server error, retrying")
				if err := c.sleep(ctx, delay); err != nil {
					return nil, nil, err
				}
				continue
			}
			return nil, nil, lastErr

		case decideFail:
			return nil, nil, &APIError{Status: status, Body: truncateBody(body)}
		}
	}

	return nil, nil, fmt.Errorf("pubg api request failed: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, http.Header, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, err
	}

	return body, resp.Header, resp.StatusCode, nil
}

func truncateBody(body []byte) string {
	const max = 300
	s := string(body)
	if len(s) > max {
		return s[:max]
	}
	return s
}

// PlayersByIDs looks up at most ten players by account id in one request.
// Exceeding the batch size is a caller contract violation, not a retryable
// condition.
func (c *Client) PlayersByIDs(ctx context.Context, ids []string) ([]Player, error) {
	return c.players(ctx, "filter[playerIds]", ids)
}

// PlayersByNames looks up at most ten players by display name in one request.
func (c *Client) PlayersByNames(ctx context.Context, names []string) ([]Player, error) {
	return c.players(ctx, "filter[playerNames]", names)
}

func (c *Client) players(ctx context.Context, filter string, values []string) ([]Player, error) {
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}
	if len(clean) > maxBatchSize {
		return nil, fmt.Errorf("player batch must be <= %d per request, got %d", maxBatchSize, len(clean))
	}

	params := url.Values{}
	params.Set(filter, strings.Join(clean, ","))

	body, _, err := c.get(ctx, "/players", params)
	if err != nil {
		return nil, err
	}
	return parsePlayers(body)
}

// PlayerByName looks up a single player by display name.
func (c *Client) PlayerByName(ctx context.Context, name string) (*Player, error) {
	players, err := c.PlayersByNames(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("player not found: %s", name)
	}
	return &players[0], nil
}

// Match fetches one match detail by id.
func (c *Client) Match(ctx context.Context, matchID string) (*MatchDetail, error) {
	body, _, err := c.get(ctx, "/matches/"+url.PathEscape(matchID), nil)
	if err != nil {
		return nil, err
	}
	return parseMatch(body)
}

// CurrentSeasonID returns the current season identifier, cached per client
// instance for a week since seasons change roughly every two months.
func (c *Client) CurrentSeasonID(ctx context.Context) (string, error) {
	c.seasonMu.Lock()
	if c.seasonID != "" && time.Since(c.seasonCachedAt) < seasonCacheTTL {
		id := c.seasonID
		c.seasonMu.Unlock()
		return id, nil
	}
	c.seasonMu.Unlock()

	body, _, err := c.get(ctx, "/seasons", nil)
	if err != nil {
		return "", err
	}
	id, err := parseCurrentSeason(body)
	if err != nil {
		return "", err
	}

	c.seasonMu.Lock()
	c.seasonID = id
	c.seasonCachedAt = time.Now()
	c.seasonMu.Unlock()

	return id, nil
}

// SeasonStats fetches a player's per-mode aggregates for one season.
func (c *Client) SeasonStats(ctx context.Context, playerID, seasonID string) (map[string]GameModeStats, error) {
	body, _, err := c.get(ctx, "/players/"+url.PathEscape(playerID)+"/seasons/"+url.PathEscape(seasonID), nil)
	if err != nil {
		return nil, err
	}
	return parseSeasonStats(body)
}

// RankedStats fetches a player's ranked per-mode aggregates for one season.
func (c *Client) RankedStats(ctx context.Context, playerID, seasonID string) (map[string]GameModeStats, error) {
	body, _, err := c.get(ctx, "/players/"+url.PathEscape(playerID)+"/seasons/"+url.PathEscape(seasonID)+"/ranked", nil)
	if err != nil {
		return nil, err
	}
	return parseSeasonStats(body)
}
