// cache/cache.go - 目录分析缓存
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// CacheInterface 分析缓存接口
// 缓存只是建议性的：未命中时调用方必须自行重算，缓存永远不是事实来源
type CacheInterface interface {
	// Get 按（目录指纹，提交哈希）精确命中，其他提交一律未命中
	Get(directoryHash, commitHash string) (*model.CacheEntry, bool)
	// Set 写入或覆盖缓存条目
	Set(entry *model.CacheEntry) error
	// PurgeExpired 删除超龄条目
	PurgeExpired() (int, error)
	Close() error
}

// ContentCache 基于LevelDB的缓存实现
type ContentCache struct {
	db       *leveldb.DB
	cacheDir string
	config   config.ConfigCache
	logger   logger.Logger
	mutex    sync.Mutex
}

// NewContentCache 创建内容缓存
func NewContentCache(cacheDir string, cacheConfig config.ConfigCache, logger logger.Logger) (*ContentCache, error) {
	logger.Info("cache: checking base directory %s", cacheDir)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := leveldb.OpenFile(cacheDir, nil)
	if err != nil {
		if ldberrors.IsCorrupted(err) {
			logger.Warn("cache database corrupted, recovering: %v", err)
			db, err = leveldb.RecoverFile(cacheDir, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open cache database: %w", err)
		}
	}

	logger.Info("cache: initialized successfully, dir: %s", cacheDir)
	return &ContentCache{
		db:       db,
		cacheDir: cacheDir,
		config:   cacheConfig,
		logger:   logger,
	}, nil
}

// cacheKey 组合缓存键
func cacheKey(directoryHash, commitHash string) []byte {
	return []byte(directoryHash + ":" + commitHash)
}

// maxAge 条目有效期
func (c *ContentCache) maxAge() time.Duration {
	return time.Duration(c.config.MaxAgeDays) * 24 * time.Hour
}

// Get 按（目录指纹，提交哈希）精确命中
// 读取时惰性淘汰超龄条目
func (c *ContentCache) Get(directoryHash, commitHash string) (*model.CacheEntry, bool) {
	key := cacheKey(directoryHash, commitHash)

	data, err := c.db.Get(key, nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			c.logger.Warn("cache read failed: %v", err)
		}
		return nil, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("cache entry corrupted, dropping: %v", err)
		_ = c.db.Delete(key, nil)
		return nil, false
	}

	if time.Since(entry.LastUpdated) > c.maxAge() {
		c.logger.Debug("cache entry expired: %s", string(key))
		_ = c.db.Delete(key, nil)
		return nil, false
	}

	// 提交哈希必须精确匹配，其他提交都是未命中
	if entry.CommitHash != commitHash {
		return nil, false
	}

	return &entry, true
}

// Set 写入或覆盖缓存条目
// 超出字节预算时先淘汰最旧条目再写入
func (c *ContentCache) Set(entry *model.CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is empty")
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	if err := c.evictForBudget(int64(len(data))); err != nil {
		c.logger.Warn("cache eviction failed: %v", err)
	}

	key := cacheKey(entry.DirectoryHash, entry.CommitHash)
	if err := c.db.Put(key, data, nil); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// indexedEntry 淘汰排序使用的条目摘要
type indexedEntry struct {
	key         []byte
	lastUpdated time.Time
	size        int64
}

// evictForBudget 在写入前腾出空间：按lastUpdated从旧到新淘汰，直到总量回到预算内
func (c *ContentCache) evictForBudget(incoming int64) error {
	budget := c.config.MaxTotalBytes
	if budget <= 0 {
		return nil
	}

	var total int64
	var entries []indexedEntry

	iter := c.db.NewIterator(nil, nil)
	for iter.Next() {
		size := int64(len(iter.Value()))
		total += size

		var entry model.CacheEntry
		lastUpdated := time.Time{}
		if err := json.Unmarshal(iter.Value(), &entry); err == nil {
			lastUpdated = entry.LastUpdated
		}

		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		entries = append(entries, indexedEntry{key: key, lastUpdated: lastUpdated, size: size})
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}

	if total+incoming <= budget {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastUpdated.Before(entries[j].lastUpdated)
	})

	evicted := 0
	for _, entry := range entries {
		if total+incoming <= budget {
			break
		}
		if err := c.db.Delete(entry.key, nil); err != nil {
			return err
		}
		total -= entry.size
		evicted++
	}

	if evicted > 0 {
		c.logger.Info("cache evicted %d oldest entries to stay under %d bytes", evicted, budget)
	}
	return nil
}

// PurgeExpired 删除所有超龄条目
func (c *ContentCache) PurgeExpired() (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cutoff := time.Now().Add(-c.maxAge())
	purged := 0

	iter := c.db.NewIterator(nil, nil)
	var staleKeys [][]byte
	for iter.Next() {
		var entry model.CacheEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil || entry.LastUpdated.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			staleKeys = append(staleKeys, key)
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, err
	}

	for _, key := range staleKeys {
		if err := c.db.Delete(key, nil); err != nil {
			return purged, err
		}
		purged++
	}

	if purged > 0 {
		c.logger.Info("cache purged %d expired entries", purged)
	}
	return purged, nil
}

// Close 关闭缓存数据库
func (c *ContentCache) Close() error {
	return c.db.Close()
}
