// job/cache_cleaner_job.go - 分析缓存过期清理任务
package job

import (
	"context"
	"time"

	"workspace-orchestrator/internal/cache"
	"workspace-orchestrator/pkg/logger"
)

const cacheCleanInterval = 6 * time.Hour

// CacheCleanerJob 定期淘汰过期的分析缓存条目
type CacheCleanerJob struct {
	contentCache cache.CacheInterface
	logger       logger.Logger
}

// NewCacheCleanerJob 创建缓存清理任务
func NewCacheCleanerJob(contentCache cache.CacheInterface, logger logger.Logger) *CacheCleanerJob {
	return &CacheCleanerJob{
		contentCache: contentCache,
		logger:       logger,
	}
}

// Start 启动清理循环，直到ctx取消
func (j *CacheCleanerJob) Start(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("recovered from panic in cache cleaner job: %v", r)
		}
	}()

	j.logger.Info("cache cleaner job started, interval: %v", cacheCleanInterval)

	ticker := time.NewTicker(cacheCleanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cache cleaner job stopped")
			return
		case <-ticker.C:
			purged, err := j.contentCache.PurgeExpired()
			if err != nil {
				j.logger.Error("cache purge failed: %v", err)
				continue
			}
			if purged > 0 {
				j.logger.Info("cache purge removed %d expired entries", purged)
			}
		}
	}
}
