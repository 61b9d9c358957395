package model

import "time"

// DirectoryAnalysis 目录分析结果
type DirectoryAnalysis struct {
	FileCount int            `json:"fileCount"`
	TotalSize int64          `json:"totalSize"`
	Languages map[string]int `json:"languages"`
	Structure []string       `json:"structure"`
	Truncated bool           `json:"truncated,omitempty"`
}

// CacheEntry 分析缓存条目，按（目录指纹，提交哈希）键入
// 工作区出现新提交后，旧条目一概视为失效
type CacheEntry struct {
	DirectoryHash string            `json:"directoryHash"`
	CommitHash    string            `json:"commitHash"`
	LastUpdated   time.Time         `json:"lastUpdated"`
	Analysis      DirectoryAnalysis `json:"analysis"`
}
