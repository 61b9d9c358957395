// internal/server/router.go - 路由配置和服务器初始化
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"workspace-orchestrator/internal/handler"
	"workspace-orchestrator/pkg/logger"
)

// Server 服务器接口
type Server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// NewServer 创建新的HTTP服务器
func NewServer(
	workspaceHandler *handler.WorkspaceHandler,
	jobHandler *handler.JobHandler,
	logger logger.Logger,
) Server {
	return &server{
		workspaceHandler: workspaceHandler,
		jobHandler:       jobHandler,
		logger:           logger,
	}
}

type server struct {
	engine           *gin.Engine
	workspaceHandler *handler.WorkspaceHandler
	jobHandler       *handler.JobHandler
	logger           logger.Logger
	httpServer       *http.Server
}

// Start 启动服务器
func (s *server) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)

	s.engine = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info("starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown 优雅关闭服务器
func (s *server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// setupMiddleware 设置中间件
func (s *server) setupMiddleware() {
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(CORSMiddleware())
	s.engine.Use(RateLimitMiddleware(s.logger))
}

// setupRoutes 设置路由
func (s *server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		workspaces := v1.Group("/workspaces")
		{
			workspaces.POST("", s.workspaceHandler.CloneWorkspace)
			workspaces.GET("", s.workspaceHandler.ListWorkspaces)
			workspaces.GET("/stats", s.workspaceHandler.RegistryStats)
			workspaces.GET("/:id", s.workspaceHandler.GetWorkspace)
			workspaces.DELETE("/:id", s.workspaceHandler.DeleteWorkspace)
			workspaces.GET("/:id/branches", s.workspaceHandler.ListBranches)
			workspaces.GET("/:id/status", s.workspaceHandler.WorkspaceStatus)
			workspaces.GET("/:id/analysis", s.workspaceHandler.AnalyzeWorkspace)
			workspaces.GET("/:id/config", s.workspaceHandler.GetGitConfig)
			workspaces.PUT("/:id/config", s.workspaceHandler.SetGitConfig)
			workspaces.DELETE("/:id/config", s.workspaceHandler.UnsetGitConfig)
			workspaces.GET("/:id/permissions", s.workspaceHandler.GetPermissions)
			workspaces.POST("/:id/permissions", s.workspaceHandler.RefreshPermissions)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("", s.jobHandler.SubmitJob)
			jobs.GET("", s.jobHandler.ListJobs)
			jobs.GET("/:id", s.jobHandler.GetJob)
			jobs.DELETE("/:id", s.jobHandler.DeleteJob)
		}
	}
}
