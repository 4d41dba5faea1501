package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xfw5/Market-Research/internal/domain"
)

// AverageRefresher reloads the index moving averages
type AverageRefresher interface {
	RefreshMovingAverages() error
}

// MaRefreshJob reloads the index averages once per trading day. Market data for
// the previous session may land late, so missing data is retried with backoff.
type MaRefreshJob struct {
	refresher  AverageRefresher
	calendar   *TradingCalendar
	initial    time.Duration
	maxElapsed time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewMaRefreshJob creates a new MaRefreshJob
func NewMaRefreshJob(refresher AverageRefresher, calendar *TradingCalendar, maxElapsed time.Duration, log zerolog.Logger) *MaRefreshJob {
	if maxElapsed <= 0 {
		maxElapsed = 10 * time.Minute
	}
	return &MaRefreshJob{
		refresher:  refresher,
		calendar:   calendar,
		initial:    time.Second,
		maxElapsed: maxElapsed,
		now:        time.Now,
		log:        log.With().Str("job", "ma_refresh").Logger(),
	}
}

// Name returns the job name
func (j *MaRefreshJob) Name() string {
	return "ma_refresh"
}

// Run executes the refresh
func (j *MaRefreshJob) Run() error {
	if j.calendar != nil && !j.calendar.IsTradingDay(j.now()) {
		j.log.Debug().Msg("Not a trading day, skipping moving average refresh")
		return nil
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := j.refresher.RefreshMovingAverages()
		if err == nil {
			return nil
		}
		// Only missing data is worth waiting for
		if !errors.Is(err, domain.ErrDataUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = j.initial
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = j.maxElapsed

	notify := func(err error, wait time.Duration) {
		j.log.Warn().
			Err(err).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("Moving average refresh failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("moving average refresh failed after %d attempts: %w", attempts, err)
	}

	j.log.Info().Int("attempts", attempts).Msg("Moving averages refreshed")
	return nil
}
