package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	ContentBaseURL     = "https://valorant-api.com/v1"
	StandardVandalName = "Standard Vandal"
)

// Catalog resolves agent and skin ids to display names.
type Catalog struct {
	Agents map[string]string
	Skins  map[string]string
}

func (c Catalog) AgentName(id string) string {
	if name, ok := c.Agents[strings.ToLower(id)]; ok {
		return name
	}
	return "?"
}

func (c Catalog) SkinName(id string) string {
	if id == "" {
		return "?"
	}
	if name, ok := c.Skins[strings.ToLower(id)]; ok {
		return name
	}
	return "?"
}

type ContentClient struct {
	baseURL  string
	language string
	client   *fasthttp.Client
	logger   zerolog.Logger
}

func NewContentClient(baseURL, language string, logger zerolog.Logger) *ContentClient {
	if baseURL == "" {
		baseURL = ContentBaseURL
	}
	return &ContentClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		client: &fasthttp.Client{
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger.With().Str("component", "content").Logger(),
	}
}

func (c *ContentClient) languageQuery() string {
	if c.language == "" {
		return ""
	}
	return "language=" + c.language
}

func (c *ContentClient) ClientVersion(ctx context.Context) (string, error) {
	resp, err := getJSON[versionResponse](ctx, c, "/version", "")
	if err != nil {
		return "", err
	}
	if resp.Data.RiotClientVersion == "" {
		return "", fmt.Errorf("version response has no riotClientVersion")
	}
	return resp.Data.RiotClientVersion, nil
}

func (c *ContentClient) Agents(ctx context.Context) (map[string]string, error) {
	query := "isPlayableCharacter=true"
	if lq := c.languageQuery(); lq != "" {
		query += "&" + lq
	}
	resp, err := getJSON[agentsResponse](ctx, c, "/agents", query)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Data))
	for _, a := range resp.Data {
		out[strings.ToLower(a.UUID)] = a.DisplayName
	}
	return out, nil
}

func (c *ContentClient) VandalSkins(ctx context.Context) (map[string]string, error) {
	resp, err := getJSON[weaponResponse](ctx, c, "/weapons/"+VandalID, c.languageQuery())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Data.Skins))
	for _, s := range resp.Data.Skins {
		name := skinDisplayName(s.DisplayName)
		out[strings.ToLower(s.UUID)] = name
		for _, ch := range s.Chromas {
			if ch.UUID != "" {
				out[strings.ToLower(ch.UUID)] = name
			}
		}
	}
	return out, nil
}

func skinDisplayName(name string) string {
	if strings.EqualFold(name, "vandal") || name == "Standard" || name == "" {
		return StandardVandalName
	}
	words := strings.Fields(strings.ToLower(name))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Catalog fetches agents and skins. Either half may come back empty when its
// endpoint fails; the error reports the first failure.
func (c *ContentClient) Catalog(ctx context.Context) (Catalog, error) {
	var firstErr error
	agents, err := c.Agents(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch agents")
		firstErr = err
		agents = map[string]string{}
	}
	skins, err := c.VandalSkins(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to fetch vandal skins")
		if firstErr == nil {
			firstErr = err
		}
		skins = map[string]string{}
	}
	return Catalog{Agents: agents, Skins: skins}, firstErr
}

func getJSON[T any](ctx context.Context, c *ContentClient, path, query string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	url := c.baseURL + path
	if query != "" {
		url += "?" + query
	}
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := do(ctx, c.client, req, resp); err != nil {
		metrics.RemoteRequests.WithLabelValues("content"+path, "error").Inc()
		return nil, fmt.Errorf("failed to call content %s: %w", path, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		metrics.RemoteRequests.WithLabelValues("content"+path, "error").Inc()
		return nil, fmt.Errorf("API error: content %s returned %d", path, resp.StatusCode())
	}
	metrics.RemoteRequests.WithLabelValues("content"+path, "ok").Inc()
	return decode[T](resp.Body())
}
