// daemon/daemon.go - 守护进程
// 统一管理HTTP服务和后台任务的生命周期
package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/job"
	"workspace-orchestrator/internal/server"
	"workspace-orchestrator/pkg/logger"
)

type Daemon struct {
	httpServer server.Server
	worker     *job.WorkerJob
	sweeper    *job.WorkspaceSweeperJob
	cleaner    *job.CacheCleanerJob
	logger     logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewDaemon(
	httpServer server.Server,
	worker *job.WorkerJob,
	sweeper *job.WorkspaceSweeperJob,
	cleaner *job.CacheCleanerJob,
	logger logger.Logger,
) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		httpServer: httpServer,
		worker:     worker,
		sweeper:    sweeper,
		cleaner:    cleaner,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动HTTP服务和全部后台任务
func (d *Daemon) Start() {
	d.logger.Info("daemon starting")

	go func() {
		addr := config.GetClientConfig().Server.ListenAddr
		if err := d.httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Fatal("failed to serve: %v", err)
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.worker.Start(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweeper.Start(d.ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.cleaner.Start(d.ctx)
	}()

	d.logger.Info("daemon started")
}

// Stop 优雅停机：先停收新请求，再等后台任务退出
func (d *Daemon) Stop() {
	d.logger.Info("daemon stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("failed to shut down HTTP server: %v", err)
	}

	d.cancel()
	d.wg.Wait()

	d.logger.Info("daemon stopped")
}
