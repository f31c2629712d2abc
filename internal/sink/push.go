package sink

import (
	"fmt"
	"sync"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const PushPath = "/api/game/update"

// Push forwards snapshots to the dashboard process. Each post runs in its
// own goroutine and failures are only logged.
type Push struct {
	url    string
	client *fasthttp.Client
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func NewPush(baseURL string, logger zerolog.Logger) *Push {
	return &Push{
		url: baseURL + PushPath,
		client: &fasthttp.Client{
			ReadTimeout:  constants.PushTimeout,
			WriteTimeout: constants.PushTimeout,
		},
		logger: logger.With().Str("sink", "push").Logger(),
	}
}

func (p *Push) Snapshot(snapshot *domain.MatchSnapshot) {
	body, err := json.Marshal(NewGamePayload(snapshot))
	if err != nil {
		p.logger.Error().Err(err).Str("match_id", snapshot.MatchID).Msg("failed to encode snapshot")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.post(body); err != nil {
			metrics.RemoteRequests.WithLabelValues("push", "error").Inc()
			p.logger.Warn().Err(err).Str("match_id", snapshot.MatchID).Msg("failed to push snapshot")
			return
		}
		metrics.RemoteRequests.WithLabelValues("push", "ok").Inc()
		p.logger.Debug().Str("match_id", snapshot.MatchID).Msg("snapshot pushed")
	}()
}

func (p *Push) Waiting() {}

func (p *Push) Ended(string) {}

func (p *Push) StateChanged(string, api.Event) {}

// Wait blocks until in-flight posts finish.
func (p *Push) Wait() {
	p.wg.Wait()
}

func (p *Push) post(body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(p.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := p.client.DoTimeout(req, resp, constants.PushTimeout); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("dashboard returned status %d", code)
	}
	return nil
}
