package scanner_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-orchestrator/internal/scanner"
	"workspace-orchestrator/test/mocks"
)

func newTestScanner() *scanner.FileScanner {
	return scanner.NewFileScanner(&mocks.MockLogger{})
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	fullPath := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
}

func TestAnalyzeDirectory(t *testing.T) {
	fileScanner := newTestScanner()

	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "internal/server/server.go", "package server\n")
	writeFile(t, dir, "docs/README.md", "# readme\n")
	writeFile(t, dir, "scripts/build.sh", "#!/bin/sh\n")
	writeFile(t, dir, "LICENSE", "MIT\n")

	analysis, err := fileScanner.AnalyzeDirectory(dir)
	require.NoError(t, err)

	t.Run("统计文件数量和总大小", func(t *testing.T) {
		assert.Equal(t, 5, analysis.FileCount)
		var wantSize int64
		for _, relPath := range []string{"main.go", "internal/server/server.go", "docs/README.md", "scripts/build.sh", "LICENSE"} {
			info, statErr := os.Stat(filepath.Join(dir, relPath))
			require.NoError(t, statErr)
			wantSize += info.Size()
		}
		assert.Equal(t, wantSize, analysis.TotalSize)
	})

	t.Run("按扩展名统计语言分布", func(t *testing.T) {
		assert.Equal(t, 2, analysis.Languages["Go"])
		assert.Equal(t, 1, analysis.Languages["Markdown"])
		assert.Equal(t, 1, analysis.Languages["Shell"])
		// 无扩展名的文件不计入语言分布
		assert.Len(t, analysis.Languages, 3)
	})

	t.Run("结构树按相对路径排序", func(t *testing.T) {
		assert.Equal(t, []string{
			"LICENSE",
			"docs/README.md",
			"internal/server/server.go",
			"main.go",
			"scripts/build.sh",
		}, analysis.Structure)
		assert.False(t, analysis.Truncated)
	})
}

func TestAnalyzeDirectoryIgnorePatterns(t *testing.T) {
	fileScanner := newTestScanner()

	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "app.log", "noise\n")
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = 1\n")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")

	t.Run("默认规则过滤日志、依赖目录和隐藏目录", func(t *testing.T) {
		analysis, err := fileScanner.AnalyzeDirectory(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"main.go"}, analysis.Structure)
	})

	t.Run("合并目录下的gitignore规则", func(t *testing.T) {
		writeFile(t, dir, "generated.go", "package main\n")
		writeFile(t, dir, ".gitignore", "# generated code\ngenerated.go\n")

		analysis, err := fileScanner.AnalyzeDirectory(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"main.go"}, analysis.Structure)
	})
}

func TestAnalyzeDirectoryTruncation(t *testing.T) {
	fileScanner := newTestScanner()
	fileScanner.SetScannerConfig(&scanner.ScannerConfig{MaxStructureEntries: 3})

	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
		writeFile(t, dir, name, "package main\n")
	}

	analysis, err := fileScanner.AnalyzeDirectory(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, analysis.FileCount)
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, analysis.Structure)
	assert.True(t, analysis.Truncated)
}

func TestSetScannerConfig(t *testing.T) {
	fileScanner := newTestScanner()
	defaults := scanner.DefaultScannerConfig()

	t.Run("nil配置不生效", func(t *testing.T) {
		fileScanner.SetScannerConfig(nil)
		assert.Equal(t, defaults.MaxFileCount, fileScanner.CurrentScannerConfig().MaxFileCount)
	})

	t.Run("只覆盖非零字段", func(t *testing.T) {
		fileScanner.SetScannerConfig(&scanner.ScannerConfig{MaxFileCount: 10})
		assert.Equal(t, 10, fileScanner.CurrentScannerConfig().MaxFileCount)
		assert.Equal(t, defaults.MaxStructureEntries, fileScanner.CurrentScannerConfig().MaxStructureEntries)
		assert.Equal(t, defaults.FolderIgnorePatterns, fileScanner.CurrentScannerConfig().FolderIgnorePatterns)
	})
}

func TestDirectoryFingerprint(t *testing.T) {
	fileScanner := newTestScanner()

	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "util/strings.go", "package util\n")

	first, err := fileScanner.DirectoryFingerprint(dir)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	t.Run("内容不变指纹稳定", func(t *testing.T) {
		again, fpErr := fileScanner.DirectoryFingerprint(dir)
		require.NoError(t, fpErr)
		assert.Equal(t, first, again)
	})

	t.Run("相同布局的目录指纹一致", func(t *testing.T) {
		other := t.TempDir()
		writeFile(t, other, "main.go", "package main\n")
		writeFile(t, other, "util/strings.go", "package util\n")

		fingerprint, fpErr := fileScanner.DirectoryFingerprint(other)
		require.NoError(t, fpErr)
		assert.Equal(t, first, fingerprint)
	})

	t.Run("文件大小变化指纹变化", func(t *testing.T) {
		writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n")
		fingerprint, fpErr := fileScanner.DirectoryFingerprint(dir)
		require.NoError(t, fpErr)
		assert.NotEqual(t, first, fingerprint)
	})

	t.Run("新增文件指纹变化", func(t *testing.T) {
		writeFile(t, dir, "main.go", "package main\n")
		writeFile(t, dir, "extra.go", strings.Repeat("x", 16))
		fingerprint, fpErr := fileScanner.DirectoryFingerprint(dir)
		require.NoError(t, fpErr)
		assert.NotEqual(t, first, fingerprint)
	})
}
