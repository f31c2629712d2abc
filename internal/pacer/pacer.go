package pacer

import (
	"context"
	"time"

	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Pacer spaces consecutive remote calls at least interval apart. The first
// call after an idle period goes through immediately.
type Pacer struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter
	clock    clock.Clock
	logger   zerolog.Logger
}

func New(name string, interval time.Duration, clk clock.Clock, logger zerolog.Logger) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		name:     name,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		clock:    clk,
		logger:   logger.With().Str("pacer", name).Logger(),
	}
}

func (p *Pacer) Name() string { return p.name }

func (p *Pacer) Interval() time.Duration { return p.interval }

// Wait blocks until the caller may issue its call. If ctx ends first the
// reserved slot is handed back and ctx.Err() is returned.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return context.DeadlineExceeded
	}

	delay := r.DelayFrom(now)
	metrics.PacerWaitSeconds.WithLabelValues(p.name).Observe(delay.Seconds())
	if delay <= 0 {
		return nil
	}

	p.logger.Debug().Dur("delay", delay).Msg("pacing remote call")
	if err := p.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(p.clock.Now())
		return err
	}
	return nil
}
