// job/workspace_sweeper_job.go - 工作区老化清扫任务
package job

import (
	"context"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/pkg/logger"
)

// WorkspaceSweeperJob 定期把久未访问的工作区标记为不活跃
// 只改标记不删目录，删除始终由显式清理触发
type WorkspaceSweeperJob struct {
	registry repository.WorkspaceRegistry
	logger   logger.Logger
}

// NewWorkspaceSweeperJob 创建工作区清扫任务
func NewWorkspaceSweeperJob(registry repository.WorkspaceRegistry, logger logger.Logger) *WorkspaceSweeperJob {
	return &WorkspaceSweeperJob{
		registry: registry,
		logger:   logger,
	}
}

// Start 启动清扫循环，直到ctx取消
func (j *WorkspaceSweeperJob) Start(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("recovered from panic in workspace sweeper job: %v", r)
		}
	}()

	sweepConfig := config.GetClientConfig().Sweep
	interval := time.Duration(sweepConfig.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	j.logger.Info("workspace sweeper job started, interval: %v", interval)

	// 启动时先清扫一次
	j.executeSweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("workspace sweeper job stopped")
			return
		case <-ticker.C:
			j.executeSweep()
		}
	}
}

// executeSweep 执行一轮清扫
func (j *WorkspaceSweeperJob) executeSweep() {
	maxAge := time.Duration(config.GetClientConfig().Sweep.MaxAgeDays) * 24 * time.Hour
	if maxAge <= 0 {
		return
	}

	swept, err := j.registry.SweepOlderThan(maxAge)
	if err != nil {
		j.logger.Error("workspace sweep failed: %v", err)
		return
	}
	if swept > 0 {
		j.logger.Info("workspace sweep marked %d workspaces inactive", swept)
	}
}
