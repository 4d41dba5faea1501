// Package di wires the engine's components into a Container.
package di

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xfw5/Market-Research/internal/clientdata"
	"github.com/xfw5/Market-Research/internal/database"
	"github.com/xfw5/Market-Research/internal/events"
	"github.com/xfw5/Market-Research/internal/market_regime"
	"github.com/xfw5/Market-Research/internal/modules/allocation"
	"github.com/xfw5/Market-Research/internal/modules/execution"
	"github.com/xfw5/Market-Research/internal/modules/marketdata"
	"github.com/xfw5/Market-Research/internal/modules/paper"
	"github.com/xfw5/Market-Research/internal/modules/risk"
	"github.com/xfw5/Market-Research/internal/modules/selection"
	"github.com/xfw5/Market-Research/internal/reliability"
	"github.com/xfw5/Market-Research/internal/scheduler"
)

// Container holds every long-lived component of the engine.
//
// Databases:
//   - market.db: daily bars, instrument flags, fundamentals, universe
//   - paper.db: paper broker account, holdings and fills
type Container struct {
	MarketDB *database.DB
	PaperDB  *database.DB

	EventBus *events.Bus
	Registry *prometheus.Registry

	MarketStore  *marketdata.Store
	CycleCache   *clientdata.CycleCache
	Broker       *paper.Broker
	Gateway      *execution.BreakerGateway
	Monitor      *risk.ProfitMonitor
	Classifier   *market_regime.RegimeClassifier
	History      *market_regime.RegimeHistory
	Pipeline     *selection.Pipeline
	Allocator    *allocation.CapitalAllocator
	Metrics      *execution.Metrics
	Orchestrator *execution.Orchestrator

	Calendar  *scheduler.TradingCalendar
	Scheduler *scheduler.Scheduler
	Backup    *reliability.BackupService // nil when no bucket is configured
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	DecisionCycle scheduler.Job
	MaRefresh     scheduler.Job
	Maintenance   scheduler.Job
	Backup        scheduler.Job // nil when backups are disabled
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.MarketDB, c.PaperDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops the scheduler and closes the databases
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	var errs []error
	for _, db := range c.Databases() {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
