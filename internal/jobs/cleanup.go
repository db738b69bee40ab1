package jobs

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"trafficlens/internal/store"
)

const cleanupBatchSize = 1000

// CleanupJob removes events and sessions older than the retention period.
type CleanupJob struct {
	db            *gorm.DB
	logger        *slog.Logger
	retentionDays int
	now           func() time.Time
}

func NewCleanupJob(db *gorm.DB, logger *slog.Logger, retentionDays int) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Enabled reports whether a retention period is configured.
func (j *CleanupJob) Enabled() bool {
	return j.retentionDays > 0
}

// Run deletes expired rows in batches so writers are not blocked for long.
func (j *CleanupJob) Run() error {
	if !j.Enabled() {
		return nil
	}
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting retention cleanup",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	events, err := j.deleteBatched(&store.WebsiteEvent{}, "website_events", cutoff)
	if err != nil {
		return err
	}
	sessions, err := j.deleteBatched(&store.Session{}, "sessions", cutoff)
	if err != nil {
		return err
	}

	j.logger.Info("Retention cleanup finished",
		slog.Int64("events_deleted", events),
		slog.Int64("sessions_deleted", sessions))
	return nil
}

func (j *CleanupJob) deleteBatched(model any, table string, cutoff time.Time) (int64, error) {
	var total int64
	for {
		batch := j.db.Table(table).Select("id").Where("created_at < ?", cutoff).Limit(cleanupBatchSize)
		result := j.db.Where("id IN (?)", batch).Delete(model)
		if result.Error != nil {
			j.logger.Error("Failed to delete expired rows",
				slog.String("table", table),
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", total))
			return total, result.Error
		}
		total += result.RowsAffected
		if result.RowsAffected < cleanupBatchSize {
			return total, nil
		}
	}
}
