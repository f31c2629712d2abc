package fx

import (
	"context"
	"database/sql"
	"os"

	"valorant-live-tracker/internal/api"
	"valorant-live-tracker/internal/cache"
	"valorant-live-tracker/internal/clock"
	"valorant-live-tracker/internal/config"
	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/database"
	"valorant-live-tracker/internal/domain"
	"valorant-live-tracker/internal/logger"
	"valorant-live-tracker/internal/monitor"
	"valorant-live-tracker/internal/pacer"
	"valorant-live-tracker/internal/rank"
	"valorant-live-tracker/internal/repository"
	"valorant-live-tracker/internal/server"
	"valorant-live-tracker/internal/service"
	"valorant-live-tracker/internal/sink"
	"valorant-live-tracker/internal/stats"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideClock() clock.Clock {
	return clock.Real{}
}

// ProvideLogger re-levels the bootstrap logger once .env has been read.
func ProvideLogger(l zerolog.Logger, cfg *config.Config) zerolog.Logger {
	return l.Level(cfg.Level())
}

func ProvideCache(cfg *config.Config, clk clock.Clock, logger zerolog.Logger) *cache.Cache {
	c := cache.New(cfg.CacheTTL, clk, logger)
	c.SetTTL(cache.Content, constants.ContentCacheTTL)
	return c
}

func ProvideContentClient(cfg *config.Config, logger zerolog.Logger) *api.ContentClient {
	return api.NewContentClient(api.ContentBaseURL, cfg.ContentLanguage, logger)
}

func ProvideSession(cfg *config.Config, content *api.ContentClient, logger zerolog.Logger) (*domain.SessionContext, error) {
	return api.BuildSession(context.Background(), api.SessionOptions{
		LockfilePath: cfg.LockfilePath,
		Region:       cfg.Region,
		Shard:        cfg.Shard,
	}, content, logger)
}

func ProvidePacers(cfg *config.Config, clk clock.Clock, logger zerolog.Logger) service.Pacers {
	return service.Pacers{
		Rank:    pacer.New("rank", cfg.RankCallDelay, clk, logger),
		History: pacer.New("history", cfg.HistoryCallDelay, clk, logger),
	}
}

func ProvideResolver(cfg *config.Config) *rank.Resolver {
	return rank.NewResolver(cfg.RankMinSampleGames)
}

func ProvideAggregator(cfg *config.Config) *stats.Aggregator {
	return stats.NewAggregator(cfg.StatsWindow, constants.MapWindow)
}

func ProvideAssembler(
	riot *api.RiotClient,
	content *api.ContentClient,
	c *cache.Cache,
	pacers service.Pacers,
	resolver *rank.Resolver,
	aggregator *stats.Aggregator,
	cfg *config.Config,
	clk clock.Clock,
	logger zerolog.Logger,
) *service.Assembler {
	return service.NewAssembler(riot, content, c, pacers, resolver, aggregator, service.AssemblerConfig{
		Shard:        cfg.Shard,
		Queue:        api.QueueComp,
		HistoryDepth: cfg.HistoryDepth,
	}, clk, logger)
}

func ProvideStatusServer(cfg *config.Config, logger zerolog.Logger) *server.StatusServer {
	return server.NewStatusServer(cfg.StatusPort, logger)
}

// ProvidePush returns nil when no dashboard url is configured.
func ProvidePush(cfg *config.Config, logger zerolog.Logger) *sink.Push {
	if cfg.PushURL == "" {
		return nil
	}
	return sink.NewPush(cfg.PushURL, logger)
}

func ProvideSinks(
	status *server.StatusServer,
	push *sink.Push,
	repo *repository.MatchRepository,
	clk clock.Clock,
	logger zerolog.Logger,
) []monitor.Sink {
	sinks := []monitor.Sink{
		sink.NewConsole(os.Stdout, logger),
		status,
		sink.NewArchive(repo, clk, logger),
	}
	if push != nil {
		sinks = append(sinks, push)
	}
	return sinks
}

func ProvideMonitor(
	riot *api.RiotClient,
	assembler *service.Assembler,
	session *domain.SessionContext,
	sinks []monitor.Sink,
	cfg *config.Config,
	clk clock.Clock,
	logger zerolog.Logger,
) *monitor.Monitor {
	stream := monitor.StreamSubscriber{Stream: api.NewEventStream(session, logger)}
	return monitor.New(riot, assembler, stream, sinks, clk, monitor.Intervals{
		Poll:    cfg.PollInterval,
		Backoff: cfg.ErrorBackoff,
	}, logger)
}

// RegisterLifecycle starts the status server and the monitor loop, and tears
// them down in reverse order.
func RegisterLifecycle(
	lc fx.Lifecycle,
	m *monitor.Monitor,
	status *server.StatusServer,
	push *sink.Push,
	db *sql.DB,
	logger zerolog.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := status.Start(); err != nil {
				cancel()
				return err
			}
			go func() {
				defer close(done)
				if err := m.Run(runCtx); err != nil && runCtx.Err() == nil {
					logger.Error().Err(err).Msg("monitor exited")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn().Msg("monitor did not stop before shutdown deadline")
			}
			if push != nil {
				push.Wait()
			}

			shutdownCtx, stop := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer stop()
			err := status.Stop(shutdownCtx)

			if cerr := db.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("error closing database connection")
			}
			return err
		},
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Module("tracker",
		fx.Decorate(ProvideLogger),
		fx.Provide(ProvideClock),
		fx.Provide(database.New),
		// repos
		fx.Provide(repository.NewMatchRepository),
		fx.Provide(ProvideCache),
		// api clients
		fx.Provide(ProvideContentClient),
		fx.Provide(ProvideSession),
		fx.Provide(api.NewRiotClient),
		// svc
		fx.Provide(ProvidePacers),
		fx.Provide(ProvideResolver),
		fx.Provide(ProvideAggregator),
		fx.Provide(ProvideAssembler),
		// sinks
		fx.Provide(ProvideStatusServer),
		fx.Provide(ProvidePush),
		fx.Provide(ProvideSinks),
		fx.Provide(ProvideMonitor),
		fx.Invoke(RegisterLifecycle),
	),
)
