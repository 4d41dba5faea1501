package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/modules/execution"
)

// CycleRunner runs one decision cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*execution.CycleReport, error)
}

// DecisionCycleJob invokes the decision engine once per trading interval
type DecisionCycleJob struct {
	runner   CycleRunner
	calendar *TradingCalendar // nil runs regardless of market hours
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewDecisionCycleJob creates a new DecisionCycleJob
func NewDecisionCycleJob(runner CycleRunner, calendar *TradingCalendar, timeout time.Duration, log zerolog.Logger) *DecisionCycleJob {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &DecisionCycleJob{
		runner:   runner,
		calendar: calendar,
		timeout:  timeout,
		now:      time.Now,
		log:      log.With().Str("job", "decision_cycle").Logger(),
	}
}

// Name returns the job name
func (j *DecisionCycleJob) Name() string {
	return "decision_cycle"
}

// Run executes one cycle when the market is open
func (j *DecisionCycleJob) Run() error {
	if j.calendar != nil && !j.calendar.IsOpen(j.now()) {
		j.log.Debug().Msg("Market closed, skipping cycle")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.runner.RunCycle(ctx)
	if errors.Is(err, execution.ErrCycleInProgress) {
		j.log.Warn().Msg("Previous cycle still running, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Debug().
		Str("cycle_id", report.ID).
		Str("outcome", string(report.Outcome)).
		Msg("Scheduled cycle finished")
	return nil
}
