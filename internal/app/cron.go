package app

import (
	"context"
	"fmt"
	"time"

	"github.com/edumorph/core/internal/models"
	pkgcron "github.com/edumorph/core/internal/pkg/cron"
	"github.com/edumorph/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	staleProcessingAge = time.Hour
	failedLessonMaxAge = 30 * 24 * time.Hour
	completedTaskAge   = 24 * time.Hour
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, db *gorm.DB, taskSvc *taskqueue.Service, logger *zap.Logger) {
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        "cleanup_completed_tasks",
		Description: "drop finished queue tasks older than a day",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			before := time.Now().Add(-completedTaskAge).UnixMilli()
			if err := taskSvc.DeleteCompleted(ctx, before); err != nil {
				cronLogger.Warn("task cleanup failed", zap.Error(err))
				return err
			}
			cronLogger.Info("completed task cleanup done")
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "fail_stuck_lessons",
		Description: "mark lessons stuck in processing as failed",
		Interval:    30 * time.Minute,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().Add(-staleProcessingAge)
			result := db.WithContext(ctx).Model(&models.LessonModel{}).
				Where("status IN ? AND updated_at < ?", []models.LessonStatus{
					models.LessonStatusPending, models.LessonStatusProcessing,
				}, cutoff).
				Updates(map[string]interface{}{
					"status":      models.LessonStatusFailed,
					"fail_reason": "generation did not finish in time",
				})
			if result.Error != nil {
				cronLogger.Warn("stuck lesson sweep failed", zap.Error(result.Error))
				return result.Error
			}
			if result.RowsAffected > 0 {
				cronLogger.Info(fmt.Sprintf("marked %d stuck lessons as failed", result.RowsAffected))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "prune_failed_lessons",
		Description: "delete failed lessons older than 30 days",
		Interval:    24 * time.Hour,
		Fn: func(ctx context.Context) error {
			cutoff := time.Now().Add(-failedLessonMaxAge)
			result := db.WithContext(ctx).
				Where("status = ? AND updated_at < ?", models.LessonStatusFailed, cutoff).
				Delete(&models.LessonModel{})
			if result.Error != nil {
				cronLogger.Warn("failed lesson pruning failed", zap.Error(result.Error))
				return result.Error
			}
			if result.RowsAffected > 0 {
				cronLogger.Info(fmt.Sprintf("pruned %d failed lessons", result.RowsAffected))
			}
			return nil
		},
	})
}
