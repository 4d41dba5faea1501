package di

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/clientdata"
	"github.com/xfw5/Market-Research/internal/config"
	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/events"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/execution"
	"github.com/xfw5/Market-Research/internal/modules/marketdata"
	"github.com/xfw5/Market-Research/internal/modules/paper"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
)

// InitializeServices builds the decision engine on top of the open databases
func InitializeServices(container *Container, cfg *config.Config, clock domain.Clock, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.EventBus = events.NewBus(log)

	container.Registry = prometheus.NewRegistry()
	container.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	container.Metrics = execution.NewMetrics(container.Registry)

	// Market data: the store reads market.db, the cycle cache gives each cycle one snapshot
	container.MarketStore = marketdata.NewStore(container.MarketDB.Conn(), "sqlite", clock, log)
	if cfg.SeedFile != "" {
		seed, err := marketdata.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to load seed: %w", err)
		}
		summary, err := container.MarketStore.Import(seed)
		if err != nil {
			return fmt.Errorf("failed to import seed: %w", err)
		}
		log.Info().Interface("summary", summary).Str("file", cfg.SeedFile).Msg("Seed imported")
	}
	container.CycleCache = clientdata.NewCycleCache(container.MarketStore, container.MarketStore, log)

	// Paper account behind the circuit breaker
	broker, err := paper.NewBroker(container.PaperDB.Conn(), container.MarketStore, cfg.PaperOptions(), clock, log)
	if err != nil {
		return fmt.Errorf("failed to open paper broker: %w", err)
	}
	container.Broker = broker
	container.Gateway = execution.NewBreakerGateway(broker, cfg.Breaker.ConsecutiveFailures, cfg.Breaker.Cooldown, log)

	container.Monitor = risk.NewProfitMonitor(cfg.MonitorConfig(), log)

	// The classifier reads the store directly: the daily average refresh runs outside cycles
	container.Classifier = market_regime.NewRegimeClassifier(cfg.RegimeOptions(), container.MarketStore, clock, log)
	container.History = market_regime.NewRegimeHistory(0)

	container.Pipeline = selection.NewPipeline(
		cfg.FilterOptions(),
		cfg.OrderInOptions(),
		container.CycleCache,
		container.CycleCache,
		log,
	)
	container.Allocator = allocation.NewCapitalAllocator(
		cfg.AllocationOptions(),
		broker,
		container.Gateway,
		container.CycleCache,
		container.Monitor,
		log,
	)

	container.Orchestrator = execution.NewOrchestrator(execution.Dependencies{
		Classifier: container.Classifier,
		History:    container.History,
		Pipeline:   container.Pipeline,
		Allocator:  container.Allocator,
		Monitor:    container.Monitor,
		Portfolio:  broker,
		Universe:   container.MarketStore,
		Clock:      clock,
		Cache:      container.CycleCache,
		Events:     container.EventBus,
		Metrics:    container.Metrics,
	}, log)

	log.Info().Msg("Services initialized")
	return nil
}
