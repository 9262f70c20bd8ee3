package incident

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

// StartCleanupWorker 启动定时清理协程，每天执行一次清理
// 保留天数由 WithRetainDays 注入，超过该天数的事件将被删除
func (c Core) StartCleanupWorker() {
	if c.retainDays <= 0 {
		slog.Info("incident cleanup disabled", "retain_days", c.retainDays)
		return
	}

	slog.Info("incident cleanup worker started", "retain_days", c.retainDays)

	// 启动时先执行一次清理
	c.cleanupExpiredIncidents()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanupExpiredIncidents()
	}
}

// cleanupExpiredIncidents 清理过期的事件，先删除本地快照文件，再删除数据库记录
func (c Core) cleanupExpiredIncidents() {
	ctx := context.Background()
	cutoffTime := time.Now().AddDate(0, 0, -c.retainDays)

	slog.Info("starting incident cleanup",
		"cutoff_time", cutoffTime.Format(time.DateTime),
		"retain_days", c.retainDays,
	)

	// 分批查询并删除，避免一次性加载过多数据
	batchSize := 100
	totalDeleted := 0
	totalFilesDeleted := 0

	for {
		var incidents []*Incident
		pager := web.PagerFilter{Page: 1, Size: batchSize}
		_, err := c.store.Incident().Find(ctx, &incidents, &pager,
			orm.Where("detected_at < ?", orm.Time{Time: cutoffTime}),
		)
		if err != nil {
			slog.Error("failed to query expired incidents", "err", err)
			break
		}

		if len(incidents) == 0 {
			break
		}

		// 收集需要删除的快照路径（去重）
		snapshotPaths := make(map[string]struct{})
		ids := make([]int64, 0, len(incidents))
		for _, inc := range incidents {
			ids = append(ids, inc.ID)
			if inc.VideoSnapshotPath != "" {
				snapshotPaths[inc.VideoSnapshotPath] = struct{}{}
			}
		}

		// 先删除本地快照文件
		for p := range snapshotPaths {
			fullPath := filepath.Join(c.snapshotDir, p)
			if err := os.Remove(fullPath); err != nil {
				if !os.IsNotExist(err) {
					slog.Warn("failed to delete incident snapshot", "path", fullPath, "err", err)
				}
			} else {
				totalFilesDeleted++
			}
		}

		// 批量删除数据库记录，使用 WHERE IN 一次性删除
		err = c.store.Incident().Session(ctx, func(tx *gorm.DB) error {
			if err := tx.Where("incident_id IN ?", ids).Delete(&NotificationLog{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", ids).Delete(&Incident{}).Error
		})
		if err != nil {
			slog.Warn("failed to batch delete incidents", "count", len(ids), "err", err)
			break
		}
		totalDeleted += len(ids)
	}

	// 清理空目录
	cleanupEmptyDirs(c.snapshotDir)

	slog.Info("incident cleanup completed",
		"incidents_deleted", totalDeleted,
		"files_deleted", totalFilesDeleted,
	)
}

// cleanupEmptyDirs 递归删除空目录
func cleanupEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			subDir := filepath.Join(dir, entry.Name())
			cleanupEmptyDirs(subDir)

			subEntries, err := os.ReadDir(subDir)
			if err == nil && len(subEntries) == 0 {
				if err := os.Remove(subDir); err == nil {
					slog.Debug("removed empty directory", "path", subDir)
				}
			}
		}
	}
}
