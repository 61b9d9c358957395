// config.go - Client configuration management

package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ConfigServer struct {
	ListenAddr string `toml:"listenAddr" json:"listenAddr"`
}

type ConfigGit struct {
	BinaryPath            string `toml:"binaryPath" json:"binaryPath"`
	CloneDepth            int    `toml:"cloneDepth" json:"cloneDepth"`
	SingleBranch          bool   `toml:"singleBranch" json:"singleBranch"`
	CommandTimeoutSeconds int    `toml:"commandTimeoutSeconds" json:"commandTimeoutSeconds"`
}

type ConfigScan struct {
	MaxFileCount         int      `toml:"maxFileCount" json:"maxFileCount"`
	MaxStructureEntries  int      `toml:"maxStructureEntries" json:"maxStructureEntries"`
	FolderIgnorePatterns []string `toml:"folderIgnorePatterns" json:"folderIgnorePatterns"`
	FileIgnorePatterns   []string `toml:"fileIgnorePatterns" json:"fileIgnorePatterns"`
}

type ConfigCache struct {
	MaxAgeDays    int   `toml:"maxAgeDays" json:"maxAgeDays"`
	MaxTotalBytes int64 `toml:"maxTotalBytes" json:"maxTotalBytes"`
}

type ConfigWorker struct {
	PollIntervalSeconds int      `toml:"pollIntervalSeconds" json:"pollIntervalSeconds"`
	AgentCommand        string   `toml:"agentCommand" json:"agentCommand"`
	AgentArgs           []string `toml:"agentArgs" json:"agentArgs"`
	AgentTimeoutMinutes int      `toml:"agentTimeoutMinutes" json:"agentTimeoutMinutes"`
}

type ConfigSweep struct {
	MaxAgeDays    int `toml:"maxAgeDays" json:"maxAgeDays"`
	IntervalHours int `toml:"intervalHours" json:"intervalHours"`
}

// Client configuration file structure
type ClientConfig struct {
	Server ConfigServer `toml:"server" json:"server"`
	Git    ConfigGit    `toml:"git" json:"git"`
	Scan   ConfigScan   `toml:"scan" json:"scan"`
	Cache  ConfigCache  `toml:"cache" json:"cache"`
	Worker ConfigWorker `toml:"worker" json:"worker"`
	Sweep  ConfigSweep  `toml:"sweep" json:"sweep"`
}

var DefaultConfigServer = ConfigServer{
	// Loopback only, the daemon is a local companion process
	ListenAddr: "127.0.0.1:9480",
}

var DefaultConfigGit = ConfigGit{
	BinaryPath:            "git",
	CloneDepth:            1,
	SingleBranch:          true,
	CommandTimeoutSeconds: 300,
}

var DefaultFolderIgnorePatterns = []string{
	// Filter all directories starting with dot
	".*",
	// Keep other specific directories not starting with dot
	"logs/", "temp/", "tmp/", "node_modules/",
	"bin/", "dist/", "build/", "out/",
	"__pycache__/", "venv/", "target/", "vendor/",
}

var DefaultFileIgnorePatterns = []string{
	".*",
	"*.log", "*.tmp", "*.bak", "*.backup",
	"*.swp", "*.swo", "*.ds_store",
	"*.pyc", "*.class", "*.o",
	"*.exe", "*.dll", "*.so", "*.dylib",
	"*.sqlite", "*.db", "*.cache",
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.ico", "*.svg", "*.webp",
	"*.mp4", "*.mkv", "*.mov", "*.avi",
	"*.mp3", "*.wav", "*.flac", "*.ogg",
	"*.7z", "*.bz2", "*.gz", "*.tgz", "*.rar", "*.tar", "*.xz", "*.zip",
	"*.woff", "*.woff2", "*.otf", "*.ttf", "*.eot",
	"*.pdf", "*.doc", "*.docx", "*.xls", "*.xlsx", "*.ppt", "*.pptx",
}

var DefaultConfigScan = ConfigScan{
	MaxFileCount:         100000,
	MaxStructureEntries:  200,
	FolderIgnorePatterns: DefaultFolderIgnorePatterns,
	FileIgnorePatterns:   DefaultFileIgnorePatterns,
}

var DefaultConfigCache = ConfigCache{
	MaxAgeDays:    7,                // Default entry validity period in days
	MaxTotalBytes: 64 * 1024 * 1024, // Default cache byte budget
}

var DefaultConfigWorker = ConfigWorker{
	PollIntervalSeconds: 2,
	AgentCommand:        "ai-agent",
	AgentArgs:           []string{},
	AgentTimeoutMinutes: 30,
}

var DefaultConfigSweep = ConfigSweep{
	MaxAgeDays:    30, // Workspaces untouched this long are marked inactive
	IntervalHours: 24,
}

// Default client configuration
var DefaultClientConfig = ClientConfig{
	Server: DefaultConfigServer,
	Git:    DefaultConfigGit,
	Scan:   DefaultConfigScan,
	Cache:  DefaultConfigCache,
	Worker: DefaultConfigWorker,
	Sweep:  DefaultConfigSweep,
}

// Global client configuration
var clientConfig ClientConfig

// GetClientConfig gets the current client configuration
func GetClientConfig() ClientConfig {
	return clientConfig
}

// SetClientConfig sets the client configuration
func SetClientConfig(config ClientConfig) {
	clientConfig = config
}

// LoadClientConfig loads configuration from a TOML file over the defaults.
// A missing file is not an error; the defaults stay in effect.
func LoadClientConfig(configPath string) error {
	clientConfig = DefaultClientConfig

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &clientConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// AppInfo holds application metadata
type AppInfo struct {
	AppName  string `json:"appName"`
	Version  string `json:"version"`
	OSName   string `json:"osName"`
	ArchName string `json:"archName"`
}

var appInfo AppInfo

func GetAppInfo() AppInfo {
	return appInfo
}

func SetAppInfo(info AppInfo) {
	appInfo = info
}
