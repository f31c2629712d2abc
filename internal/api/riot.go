package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"
)

const DefaultClientPlatform = "ew0KCSJwbGF0Zm9ybVR5cGUiOiAiUEMiLA0KCSJwbGF0Zm9ybU9TIjogIldpbmRvd3MiLA0KCSJwbGF0Zm9ybU9TVmVyc2lvbiI6ICIxMC4wLjIyNjMxLjIyODgiLA0KCSJwbGF0Zm9ybUNoaXBzZXQiOiAiVW5rbm93biINCn0="

// Hosts are the remote base URLs. Tests point them at local servers.
type Hosts struct {
	GLZ    string
	PD     string
	Shared string
}

func HostsFor(session *domain.SessionContext) Hosts {
	return Hosts{GLZ: session.GLZHost(), PD: session.PDHost(), Shared: session.SharedHost()}
}

type RiotClient struct {
	session     *domain.SessionContext
	hosts       Hosts
	client      *fasthttp.Client
	breaker     *gobreaker.CircuitBreaker[any]
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
	logger      zerolog.Logger
}

type RateLimitInfo struct {
	Limited    int       `json:"limited"`
	RetryAfter int       `json:"retry_after"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewRiotClient(session *domain.SessionContext, logger zerolog.Logger) *RiotClient {
	return NewRiotClientWithHosts(session, HostsFor(session), logger)
}

func NewRiotClientWithHosts(session *domain.SessionContext, hosts Hosts, logger zerolog.Logger) *RiotClient {
	c := &RiotClient{
		session: session,
		hosts:   hosts,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger.With().Str("component", "riot").Logger(),
	}

	name := "riot-pd"
	metrics.BreakerState.WithLabelValues(name).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     constants.RateLimitCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.RateLimitTripCount
		},
		// only 429s count against the circuit
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return c
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func (c *RiotClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *RiotClient) recordRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	c.rateLimit.Limited++
	if v := string(resp.Header.Peek("Retry-After")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.rateLimit.RetryAfter = n
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func (c *RiotClient) setHeaders(req *fasthttp.Request) {
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken)
	req.Header.Set("X-Riot-Entitlements-JWT", c.session.EntitlementToken)
	req.Header.Set("X-Riot-ClientVersion", c.session.ClientVersion)
	platform := c.session.ClientPlatform
	if platform == "" {
		platform = DefaultClientPlatform
	}
	req.Header.Set("X-Riot-ClientPlatform", platform)
}

// CurrentMatchID returns "" with no error when the player is not in a match.
func (c *RiotClient) CurrentMatchID(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/core-game/v1/players/%s", c.hosts.GLZ, c.session.Puuid)
	resp, err := doRequest[PlayerMatchResponse](ctx, c, "presence", fasthttp.MethodGet, url, nil)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return resp.MatchID, nil
}

func (c *RiotClient) CoreGameMatch(ctx context.Context, matchID string) (*CoreGameMatchResponse, error) {
	url := fmt.Sprintf("%s/core-game/v1/matches/%s", c.hosts.GLZ, matchID)
	return doRequest[CoreGameMatchResponse](ctx, c, "core_game_match", fasthttp.MethodGet, url, nil)
}

func (c *RiotClient) Loadouts(ctx context.Context, matchID string) (*LoadoutsResponse, error) {
	url := fmt.Sprintf("%s/core-game/v1/matches/%s/loadouts", c.hosts.GLZ, matchID)
	return doRequest[LoadoutsResponse](ctx, c, "loadouts", fasthttp.MethodGet, url, nil)
}

func (c *RiotClient) PlayerNames(ctx context.Context, puuids []string) ([]NameEntry, error) {
	body, err := json.Marshal(puuids)
	if err != nil {
		return nil, fmt.Errorf("failed to encode puuids: %w", err)
	}
	url := fmt.Sprintf("%s/name-service/v2/players", c.hosts.PD)
	resp, err := doRequest[[]NameEntry](ctx, c, "names", fasthttp.MethodPut, url, body)
	if err != nil {
		return nil, err
	}
	return *resp, nil
}

func (c *RiotClient) MMR(ctx context.Context, puuid string) (*MMRResponse, error) {
	url := fmt.Sprintf("%s/mmr/v1/players/%s", c.hosts.PD, puuid)
	return guarded(c, func() (*MMRResponse, error) {
		return doRequest[MMRResponse](ctx, c, "mmr", fasthttp.MethodGet, url, nil)
	})
}

func (c *RiotClient) AccountXP(ctx context.Context, puuid string) (*AccountXPResponse, error) {
	url := fmt.Sprintf("%s/account-xp/v1/players/%s", c.hosts.PD, puuid)
	return guarded(c, func() (*AccountXPResponse, error) {
		return doRequest[AccountXPResponse](ctx, c, "account_xp", fasthttp.MethodGet, url, nil)
	})
}

func (c *RiotClient) Seasons(ctx context.Context) (*ContentResponse, error) {
	url := fmt.Sprintf("%s/content-service/v3/content", c.hosts.Shared)
	return doRequest[ContentResponse](ctx, c, "content", fasthttp.MethodGet, url, nil)
}

func (c *RiotClient) MatchHistory(ctx context.Context, puuid string, start, end int, queue string) (*MatchHistoryResponse, error) {
	url := fmt.Sprintf("%s/match-history/v1/history/%s?startIndex=%d&endIndex=%d&queue=%s", c.hosts.PD, puuid, start, end, queue)
	return guarded(c, func() (*MatchHistoryResponse, error) {
		return doRequest[MatchHistoryResponse](ctx, c, "match_history", fasthttp.MethodGet, url, nil)
	})
}

func (c *RiotClient) MatchDetails(ctx context.Context, matchID string) (*MatchDetailsResponse, error) {
	url := fmt.Sprintf("%s/match-details/v1/matches/%s", c.hosts.PD, matchID)
	return guarded(c, func() (*MatchDetailsResponse, error) {
		return doRequest[MatchDetailsResponse](ctx, c, "match_details", fasthttp.MethodGet, url, nil)
	})
}

// guarded runs a pd call through the breaker. An open or saturated circuit
// is reported as ErrRateLimited.
func guarded[T any](c *RiotClient, fn func() (*T, error)) (*T, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, err
	}
	typed, ok := res.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return typed, nil
}

func doRequest[T any](ctx context.Context, c *RiotClient, endpoint, method, url string, body []byte) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	c.setHeaders(req)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := do(ctx, c.client, req, resp); err != nil {
		metrics.RemoteRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK:
	case fasthttp.StatusTooManyRequests:
		c.recordRateLimit(resp)
		metrics.RemoteRequests.WithLabelValues(endpoint, "rate_limited").Inc()
		c.logger.Warn().Str("endpoint", endpoint).Msg("rate limited")
		return nil, fmt.Errorf("%s: %w", endpoint, ErrRateLimited)
	case fasthttp.StatusNotFound:
		metrics.RemoteRequests.WithLabelValues(endpoint, "not_found").Inc()
		return nil, fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	default:
		metrics.RemoteRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("API error: %s returned %d", endpoint, resp.StatusCode())
	}

	result, err := decode[T](resp.Body())
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(endpoint, "malformed").Inc()
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	metrics.RemoteRequests.WithLabelValues(endpoint, "ok").Inc()
	return result, nil
}

// do honours the context deadline, falling back to the fixed external call
// timeout.
func do(ctx context.Context, client *fasthttp.Client, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	return client.DoDeadline(req, resp, deadline)
}
