package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xfw5/Market-Research/internal/database"
	"github.com/xfw5/Market-Research/internal/domain"
	"github.com/xfw5/Market-Research/internal/modules/execution"
)

// MockCycleRunner is a testify mock of CycleRunner
type MockCycleRunner struct {
	mock.Mock
}

func (m *MockCycleRunner) RunCycle(ctx context.Context) (*execution.CycleReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*execution.CycleReport), args.Error(1)
}

// MockRefresher is a testify mock of AverageRefresher
type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RefreshMovingAverages() error {
	return m.Called().Error(0)
}

func TestDecisionCycleJob_RunsWhenOpen(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(&execution.CycleReport{ID: "c1"}, nil).Once()

	cal := NewTradingCalendar(nil, zerolog.Nop())
	job := NewDecisionCycleJob(runner, cal, time.Minute, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 10, 8, 10, 0, 0, 0, cal.Timezone) }

	assert.Equal(t, "decision_cycle", job.Name())
	require.NoError(t, job.Run())
	runner.AssertExpectations(t)
}

func TestDecisionCycleJob_SkipsWhenClosed(t *testing.T) {
	runner := new(MockCycleRunner)
	cal := NewTradingCalendar(nil, zerolog.Nop())
	job := NewDecisionCycleJob(runner, cal, time.Minute, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 10, 8, 20, 0, 0, 0, cal.Timezone) }

	require.NoError(t, job.Run())
	runner.AssertNotCalled(t, "RunCycle", mock.Anything)
}

func TestDecisionCycleJob_InProgressIsNotAFailure(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(nil, execution.ErrCycleInProgress)

	job := NewDecisionCycleJob(runner, nil, 0, zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestDecisionCycleJob_PropagatesErrors(t *testing.T) {
	runner := new(MockCycleRunner)
	runner.On("RunCycle", mock.Anything).Return(nil, errors.New("broken"))

	job := NewDecisionCycleJob(runner, nil, 0, zerolog.Nop())
	assert.EqualError(t, job.Run(), "broken")
}

func TestMaRefreshJob_RetriesMissingData(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("RefreshMovingAverages").Return(domain.ErrDataUnavailable).Twice()
	refresher.On("RefreshMovingAverages").Return(nil).Once()

	job := NewMaRefreshJob(refresher, nil, 5*time.Second, zerolog.Nop())
	job.initial = time.Millisecond

	assert.Equal(t, "ma_refresh", job.Name())
	require.NoError(t, job.Run())
	refresher.AssertNumberOfCalls(t, "RefreshMovingAverages", 3)
}

func TestMaRefreshJob_OtherErrorsArePermanent(t *testing.T) {
	refresher := new(MockRefresher)
	boom := errors.New("disk I/O error")
	refresher.On("RefreshMovingAverages").Return(boom)

	job := NewMaRefreshJob(refresher, nil, 5*time.Second, zerolog.Nop())
	job.initial = time.Millisecond

	err := job.Run()
	assert.ErrorIs(t, err, boom)
	refresher.AssertNumberOfCalls(t, "RefreshMovingAverages", 1)
}

func TestMaRefreshJob_SkipsNonTradingDay(t *testing.T) {
	refresher := new(MockRefresher)
	cal := NewTradingCalendar(nil, zerolog.Nop())

	job := NewMaRefreshJob(refresher, cal, time.Second, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 10, 5, 9, 20, 0, 0, cal.Timezone) }

	require.NoError(t, job.Run())
	refresher.AssertNotCalled(t, "RefreshMovingAverages")
}

func TestMaintenanceJob_Run(t *testing.T) {
	dir := t.TempDir()
	open := func(name string) *database.DB {
		db, err := database.New(database.Config{Path: filepath.Join(dir, name+".db"), Name: name})
		require.NoError(t, err)
		require.NoError(t, db.Migrate())
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	job := NewMaintenanceJob(open(database.NameMarket), open(database.NamePaper), nil)
	job.SetLogger(zerolog.Nop())

	assert.Equal(t, "database_maintenance", job.Name())
	assert.Len(t, job.databases, 2)
	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_NoDatabases(t *testing.T) {
	job := NewMaintenanceJob()
	assert.NoError(t, job.Run())
}

type recordingBackup struct {
	calls    int
	deadline bool
}

func (r *recordingBackup) Backup(ctx context.Context) error {
	r.calls++
	_, r.deadline = ctx.Deadline()
	return nil
}

func TestBackupJob_Run(t *testing.T) {
	runner := &recordingBackup{}
	job := NewBackupJob(runner, 0, zerolog.Nop())

	assert.Equal(t, "database_backup", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, runner.calls)
	assert.True(t, runner.deadline)
}
