package cache_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-orchestrator/internal/cache"
	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/test/mocks"
)

func newTestCache(t *testing.T, cacheConfig config.ConfigCache) *cache.ContentCache {
	t.Helper()
	contentCache, err := cache.NewContentCache(t.TempDir(), cacheConfig, &mocks.MockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = contentCache.Close() })
	return contentCache
}

func testEntry(dirHash, commitHash string) *model.CacheEntry {
	return &model.CacheEntry{
		DirectoryHash: dirHash,
		CommitHash:    commitHash,
		LastUpdated:   time.Now(),
		Analysis: model.DirectoryAnalysis{
			FileCount: 10,
			TotalSize: 4096,
			Languages: map[string]int{"Go": 8, "Markdown": 2},
			Structure: []string{"cmd/", "internal/"},
		},
	}
}

func TestCacheSetAndGet(t *testing.T) {
	contentCache := newTestCache(t, config.DefaultConfigCache)

	entry := testEntry("dir-1", "commit-a")
	require.NoError(t, contentCache.Set(entry))

	t.Run("精确命中", func(t *testing.T) {
		got, ok := contentCache.Get("dir-1", "commit-a")
		require.True(t, ok)
		assert.Equal(t, 10, got.Analysis.FileCount)
		assert.Equal(t, map[string]int{"Go": 8, "Markdown": 2}, got.Analysis.Languages)
	})

	t.Run("其他提交未命中", func(t *testing.T) {
		_, ok := contentCache.Get("dir-1", "commit-b")
		assert.False(t, ok)
	})

	t.Run("其他目录未命中", func(t *testing.T) {
		_, ok := contentCache.Get("dir-2", "commit-a")
		assert.False(t, ok)
	})

	t.Run("覆盖写入", func(t *testing.T) {
		updated := testEntry("dir-1", "commit-a")
		updated.Analysis.FileCount = 42
		require.NoError(t, contentCache.Set(updated))

		got, ok := contentCache.Get("dir-1", "commit-a")
		require.True(t, ok)
		assert.Equal(t, 42, got.Analysis.FileCount)
	})
}

func TestCacheExpiration(t *testing.T) {
	contentCache := newTestCache(t, config.ConfigCache{
		MaxAgeDays:    1,
		MaxTotalBytes: 64 * 1024 * 1024,
	})

	stale := testEntry("dir-stale", "commit-a")
	stale.LastUpdated = time.Now().Add(-48 * time.Hour)
	require.NoError(t, contentCache.Set(stale))

	fresh := testEntry("dir-fresh", "commit-a")
	require.NoError(t, contentCache.Set(fresh))

	t.Run("超龄条目读取时惰性淘汰", func(t *testing.T) {
		_, ok := contentCache.Get("dir-stale", "commit-a")
		assert.False(t, ok)
	})

	t.Run("批量清理只删超龄条目", func(t *testing.T) {
		another := testEntry("dir-stale2", "commit-a")
		another.LastUpdated = time.Now().Add(-72 * time.Hour)
		require.NoError(t, contentCache.Set(another))

		purged, err := contentCache.PurgeExpired()
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		_, ok := contentCache.Get("dir-fresh", "commit-a")
		assert.True(t, ok)
	})
}

func TestCacheEviction(t *testing.T) {
	// 预算只够容纳少量条目
	contentCache := newTestCache(t, config.ConfigCache{
		MaxAgeDays:    7,
		MaxTotalBytes: 2048,
	})

	padding := strings.Repeat("x", 400)
	for i := 0; i < 8; i++ {
		entry := testEntry(fmt.Sprintf("dir-%d", i), "commit-a")
		entry.LastUpdated = time.Now().Add(time.Duration(i-8) * time.Minute)
		entry.Analysis.Structure = []string{padding}
		require.NoError(t, contentCache.Set(entry))
	}

	// 最旧的条目被淘汰，最新写入的保留
	_, oldest := contentCache.Get("dir-0", "commit-a")
	assert.False(t, oldest)

	_, newest := contentCache.Get("dir-7", "commit-a")
	assert.True(t, newest)
}
