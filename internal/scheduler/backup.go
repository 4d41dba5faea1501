package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackupRunner uploads a database backup
type BackupRunner interface {
	Backup(ctx context.Context) error
}

// BackupJob uploads the databases to object storage
type BackupJob struct {
	runner  BackupRunner
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(runner BackupRunner, timeout time.Duration, log zerolog.Logger) *BackupJob {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &BackupJob{
		runner:  runner,
		timeout: timeout,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "database_backup"
}

// Run executes the backup
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting database backup")
	return j.runner.Backup(ctx)
}
