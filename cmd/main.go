// cmd/main.go - Program entry
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"workspace-orchestrator/internal/agent"
	"workspace-orchestrator/internal/cache"
	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/daemon"
	"workspace-orchestrator/internal/database"
	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/handler"
	"workspace-orchestrator/internal/job"
	"workspace-orchestrator/internal/permission"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/scanner"
	"workspace-orchestrator/internal/server"
	"workspace-orchestrator/internal/service"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/pkg/logger"
)

var (
	// set by the linker during build
	version string
)

func main() {
	appName := flag.String("appname", "workspace-orchestrator", "app name")
	listenAddr := flag.String("http", "", "HTTP server address, overrides config file")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := initDir(*appName); err != nil {
		fmt.Printf("failed to initialize directory: %v\n", err)
		return
	}
	if err := initConfig(*appName, *listenAddr); err != nil {
		fmt.Printf("failed to initialize configuration: %v\n", err)
		return
	}

	appLogger, err := logger.NewLogger(utils.LogsDir, *logLevel, *appName)
	if err != nil {
		fmt.Printf("failed to initialize logging system: %v\n", err)
		return
	}
	appLogger.Info("OS: %s, Arch: %s, App: %s, Version: %s, Starting...", runtime.GOOS, runtime.GOARCH, *appName, version)

	// Infrastructure layer
	dbManager := database.NewSQLiteManager(config.DefaultDatabaseConfig(), appLogger)
	if err := dbManager.Initialize(); err != nil {
		appLogger.Fatal("failed to initialize database manager: %v", err)
		return
	}
	defer dbManager.Close()

	registry := repository.NewWorkspaceRegistry(utils.RegistryFile, appLogger)
	if err := registry.Initialize(); err != nil {
		appLogger.Fatal("failed to initialize workspace registry: %v", err)
		return
	}

	contentCache, err := cache.NewContentCache(utils.CacheDir, config.GetClientConfig().Cache, appLogger)
	if err != nil {
		appLogger.Fatal("failed to initialize content cache: %v", err)
		return
	}
	defer contentCache.Close()

	// Repositories
	jobRepo := repository.NewJobRepository(dbManager, appLogger)
	fileScanner := scanner.NewFileScanner(appLogger)
	gitEngine := gitcmd.NewEngine(config.GetClientConfig().Git, appLogger)
	resolver := permission.NewResolver(appLogger)
	agentRunner := agent.NewRunner(config.GetClientConfig().Worker, appLogger)

	// Service layer
	workspaceService := service.NewWorkspaceService(registry, gitEngine, fileScanner, contentCache, resolver, appLogger)
	jobQueue := service.NewJobQueue(jobRepo, registry, gitEngine, agentRunner, workspaceService, appLogger)

	// Handlers and HTTP server
	workspaceHandler := handler.NewWorkspaceHandler(workspaceService, appLogger)
	jobHandler := handler.NewJobHandler(jobQueue, appLogger)
	httpServer := server.NewServer(workspaceHandler, jobHandler, appLogger)

	// Background jobs
	workerJob := job.NewWorkerJob(jobQueue, appLogger)
	sweeperJob := job.NewWorkspaceSweeperJob(registry, appLogger)
	cleanerJob := job.NewCacheCleanerJob(contentCache, appLogger)

	daemonProcess := daemon.NewDaemon(httpServer, workerJob, sweeperJob, cleanerJob, appLogger)
	daemonProcess.Start()

	// Handle system signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	appLogger.Info("received shutdown signal, shutting down gracefully...")
	daemonProcess.Stop()
	appLogger.Info("shutdown complete")
}

// initDir creates the application directory layout
func initDir(appName string) error {
	rootPath, err := utils.GetRootDir(appName)
	if err != nil {
		return fmt.Errorf("failed to get root directory: %v", err)
	}
	fmt.Printf("root directory: %s\n", rootPath)

	if _, err := utils.GetLogDir(rootPath); err != nil {
		return fmt.Errorf("failed to get log directory: %v", err)
	}
	if _, err := utils.GetDbDir(rootPath); err != nil {
		return fmt.Errorf("failed to get database directory: %v", err)
	}
	if _, err := utils.GetCacheDir(rootPath); err != nil {
		return fmt.Errorf("failed to get cache directory: %v", err)
	}
	if _, err := utils.GetWorkspacesDir(rootPath); err != nil {
		return fmt.Errorf("failed to get workspaces directory: %v", err)
	}
	if _, err := utils.GetAuthJsonFile(rootPath); err != nil {
		return fmt.Errorf("failed to get auth file path: %v", err)
	}

	return nil
}

// initConfig loads file configuration over the defaults
func initConfig(appName, listenAddr string) error {
	config.SetAppInfo(config.AppInfo{
		AppName:  appName,
		Version:  version,
		OSName:   runtime.GOOS,
		ArchName: runtime.GOARCH,
	})

	if err := config.LoadClientConfig(utils.ConfigFile); err != nil {
		return err
	}
	if err := config.LoadAuthConfig(utils.AuthJsonFile); err != nil {
		return err
	}

	if listenAddr != "" {
		clientConfig := config.GetClientConfig()
		clientConfig.Server.ListenAddr = listenAddr
		config.SetClientConfig(clientConfig)
	}

	return nil
}
