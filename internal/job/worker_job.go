// job/worker_job.go - 任务队列worker
// 单goroutine轮询队列，串行消费任务。串行是有意为之：
// 工作区目录不支持并发修改
package job

import (
	"context"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/service"
	"workspace-orchestrator/pkg/logger"
)

// WorkerJob 任务消费worker
type WorkerJob struct {
	queue  service.JobQueueInterface
	logger logger.Logger
}

// NewWorkerJob 创建任务消费worker
func NewWorkerJob(queue service.JobQueueInterface, logger logger.Logger) *WorkerJob {
	return &WorkerJob{
		queue:  queue,
		logger: logger,
	}
}

// Start 启动worker循环，直到ctx取消
func (j *WorkerJob) Start(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("recovered from panic in worker job: %v", r)
		}
	}()

	pollInterval := time.Duration(config.GetClientConfig().Worker.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	j.logger.Info("worker job started, poll interval: %v", pollInterval)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("worker job stopped")
			return
		default:
		}

		processed, err := j.queue.ProcessNext(ctx)
		if err != nil {
			j.logger.Error("failed to claim next job: %v", err)
		}

		// 刚处理完一个任务就立刻看下一个，队列空了才退避等待
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			j.logger.Info("worker job stopped")
			return
		case <-time.After(pollInterval):
		}
	}
}
