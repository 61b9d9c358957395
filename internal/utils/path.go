// utils/path.go - Path handling utilities
package utils

import (
	"os"
	"path/filepath"
	"runtime"
)

var (
	AppRootDir    = "./.workspace-orchestrator"
	LogsDir       = "./.workspace-orchestrator/logs"
	DbDir         = "./.workspace-orchestrator/db"
	CacheDir      = "./.workspace-orchestrator/cache"
	WorkspacesDir = "./.workspace-orchestrator/workspaces"
	RegistryFile  = "./.workspace-orchestrator/workspaces/index.json"
	AuthJsonFile  = "./.workspace-orchestrator/auth.json"
	ConfigFile    = "./.workspace-orchestrator/config.toml"
)

// GetRootDir gets cross-platform root directory
// Returns paths like Windows: %USERPROFILE%/.appname, Linux/macOS: ~/.appname
func GetRootDir(appName string) (string, error) {
	var rootDir string

	switch runtime.GOOS {
	case "windows":
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			rootDir = filepath.Join(userProfile, "."+appName)
		} else if appData := os.Getenv("APPDATA"); appData != "" {
			rootDir = filepath.Join(appData, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	default:
		// Linux/macOS: XDG_CONFIG_HOME when set, otherwise hidden home directory
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" && runtime.GOOS != "darwin" {
			rootDir = filepath.Join(xdgConfig, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			rootDir = filepath.Join(homeDir, "."+appName)
		}
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return "", err
	}

	AppRootDir = rootDir
	AuthJsonFile = filepath.Join(rootDir, "auth.json")
	ConfigFile = filepath.Join(rootDir, "config.toml")
	return rootDir, nil
}

// GetLogDir gets the log directory
func GetLogDir(rootPath string) (string, error) {
	logDir := filepath.Join(rootPath, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", err
	}

	LogsDir = logDir
	return logDir, nil
}

// GetDbDir gets the database directory
func GetDbDir(rootPath string) (string, error) {
	dbDir := filepath.Join(rootPath, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}

	DbDir = dbDir
	return dbDir, nil
}

// GetCacheDir gets the analysis cache directory
func GetCacheDir(rootPath string) (string, error) {
	cacheDir := filepath.Join(rootPath, "cache")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return "", err
	}

	CacheDir = cacheDir
	return cacheDir, nil
}

// GetWorkspacesDir gets the workspace checkouts directory
func GetWorkspacesDir(rootPath string) (string, error) {
	workspacesDir := filepath.Join(rootPath, "workspaces")
	if err := os.MkdirAll(workspacesDir, 0755); err != nil {
		return "", err
	}

	WorkspacesDir = workspacesDir
	RegistryFile = filepath.Join(workspacesDir, "index.json")
	return workspacesDir, nil
}

// GetAuthJsonFile gets the auth.json file path
func GetAuthJsonFile(rootPath string) (string, error) {
	authFile := filepath.Join(rootPath, "auth.json")
	AuthJsonFile = authFile
	return authFile, nil
}
