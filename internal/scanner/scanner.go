// scanner/scanner.go - 目录扫描与分析
package scanner

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"

	gitignore "github.com/sabhiram/go-gitignore"
)

// 扩展名到语言的映射
var languageByExtension = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".jsx":   "JavaScript",
	".ts":    "TypeScript",
	".tsx":   "TypeScript",
	".java":  "Java",
	".c":     "C",
	".h":     "C",
	".cc":    "C++",
	".cpp":   "C++",
	".hpp":   "C++",
	".cs":    "C#",
	".rb":    "Ruby",
	".rs":    "Rust",
	".php":   "PHP",
	".kt":    "Kotlin",
	".swift": "Swift",
	".scala": "Scala",
	".sh":    "Shell",
	".sql":   "SQL",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "CSS",
	".md":    "Markdown",
	".json":  "JSON",
	".yaml":  "YAML",
	".yml":   "YAML",
	".toml":  "TOML",
	".xml":   "XML",
}

// ScannerConfig 扫描配置
type ScannerConfig struct {
	FolderIgnorePatterns []string
	FileIgnorePatterns   []string
	MaxFileCount         int
	MaxStructureEntries  int
}

// ScannerInterface 目录扫描接口
type ScannerInterface interface {
	SetScannerConfig(config *ScannerConfig)
	// AnalyzeDirectory 遍历目录生成分析结果
	AnalyzeDirectory(dirPath string) (*model.DirectoryAnalysis, error)
	// DirectoryFingerprint 计算目录内容指纹
	DirectoryFingerprint(dirPath string) (string, error)
}

type FileScanner struct {
	scannerConfig *ScannerConfig
	logger        logger.Logger
}

func NewFileScanner(logger logger.Logger) *FileScanner {
	return &FileScanner{
		scannerConfig: defaultScannerConfig(),
		logger:        logger,
	}
}

// defaultScannerConfig 默认扫描配置
func defaultScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		FolderIgnorePatterns: config.DefaultConfigScan.FolderIgnorePatterns,
		FileIgnorePatterns:   config.DefaultConfigScan.FileIgnorePatterns,
		MaxFileCount:         config.DefaultConfigScan.MaxFileCount,
		MaxStructureEntries:  config.DefaultConfigScan.MaxStructureEntries,
	}
}

// SetScannerConfig 更新扫描配置
func (fs *FileScanner) SetScannerConfig(config *ScannerConfig) {
	if config == nil {
		return
	}
	if len(config.FolderIgnorePatterns) > 0 {
		fs.scannerConfig.FolderIgnorePatterns = config.FolderIgnorePatterns
	}
	if len(config.FileIgnorePatterns) > 0 {
		fs.scannerConfig.FileIgnorePatterns = config.FileIgnorePatterns
	}
	if config.MaxFileCount > 0 {
		fs.scannerConfig.MaxFileCount = config.MaxFileCount
	}
	if config.MaxStructureEntries > 0 {
		fs.scannerConfig.MaxStructureEntries = config.MaxStructureEntries
	}
}

// compileIgnore 合并默认规则与目录下的.gitignore
func (fs *FileScanner) compileIgnore(dirPath string) *gitignore.GitIgnore {
	patterns := append([]string{}, fs.scannerConfig.FolderIgnorePatterns...)
	patterns = append(patterns, fs.scannerConfig.FileIgnorePatterns...)

	ignoreFilePath := filepath.Join(dirPath, ".gitignore")
	if content, err := os.ReadFile(ignoreFilePath); err == nil {
		for _, line := range bytes.Split(content, []byte{'\n'}) {
			if len(line) > 0 && !bytes.HasPrefix(line, []byte{'#'}) {
				patterns = append(patterns, string(line))
			}
		}
	} else if !os.IsNotExist(err) {
		fs.logger.Warn("failed to read .gitignore: %v", err)
	}

	return gitignore.CompileIgnoreLines(patterns...)
}

// walkEntry 扫描过程收集的单个文件
type walkEntry struct {
	relPath string
	size    int64
}

// walk 遍历目录并返回未被忽略的文件列表
func (fs *FileScanner) walk(dirPath string) ([]walkEntry, error) {
	ignore := fs.compileIgnore(dirPath)
	maxFiles := fs.scannerConfig.MaxFileCount

	var entries []walkEntry
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fs.logger.Warn("failed to access %s: %v", path, err)
			return nil // 继续扫描其他文件
		}

		relPath, relErr := filepath.Rel(dirPath, path)
		if relErr != nil || relPath == "." {
			return nil
		}

		if info.IsDir() {
			// 对于目录，检查是否应该跳过整个目录
			if ignore != nil && ignore.MatchesPath(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore != nil && ignore.MatchesPath(relPath) {
			return nil
		}

		entries = append(entries, walkEntry{relPath: filepath.ToSlash(relPath), size: info.Size()})
		if len(entries) >= maxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %v", dirPath, err)
	}

	return entries, nil
}

// AnalyzeDirectory 遍历目录生成分析结果
func (fs *FileScanner) AnalyzeDirectory(dirPath string) (*model.DirectoryAnalysis, error) {
	startTime := time.Now()

	entries, err := fs.walk(dirPath)
	if err != nil {
		return nil, err
	}

	analysis := &model.DirectoryAnalysis{
		Languages: make(map[string]int),
	}

	for _, entry := range entries {
		analysis.FileCount++
		analysis.TotalSize += entry.size

		ext := strings.ToLower(filepath.Ext(entry.relPath))
		if lang, ok := languageByExtension[ext]; ok {
			analysis.Languages[lang]++
		}
	}

	// 结构树取排序后的相对路径，超出上限则截断
	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })
	maxEntries := fs.scannerConfig.MaxStructureEntries
	for i, entry := range entries {
		if i >= maxEntries {
			analysis.Truncated = true
			break
		}
		analysis.Structure = append(analysis.Structure, entry.relPath)
	}

	fs.logger.Debug("directory analyzed: %s, %d files, took %v",
		dirPath, analysis.FileCount, time.Since(startTime))
	return analysis, nil
}

// DirectoryFingerprint 计算目录内容指纹
// 对排序后的相对路径与文件大小做sha256，作为缓存键的一部分
func (fs *FileScanner) DirectoryFingerprint(dirPath string) (string, error) {
	entries, err := fs.walk(dirPath)
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	hash := sha256.New()
	for _, entry := range entries {
		fmt.Fprintf(hash, "%s\x00%d\n", entry.relPath, entry.size)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
