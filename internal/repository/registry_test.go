package repository_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/test/mocks"
)

func newTestRegistry(t *testing.T) (repository.WorkspaceRegistry, string) {
	t.Helper()
	indexPath := filepath.Join(t.TempDir(), "workspaces", "index.json")
	registry := repository.NewWorkspaceRegistry(indexPath, &mocks.MockLogger{})
	require.NoError(t, registry.Initialize())
	return registry, indexPath
}

func testWorkspace(id string) *model.Workspace {
	now := time.Now()
	return &model.Workspace{
		ID:           id,
		Path:         "/tmp/checkouts/" + id,
		RepoURL:      "https://gitlab.com/group/project.git",
		TargetBranch: "main",
		CreatedAt:    now,
		LastAccessed: now,
		Metadata:     model.WorkspaceMetadata{IsActive: true, Size: 1024},
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	registry, indexPath := newTestRegistry(t)

	ws := testWorkspace("ws-1")
	require.NoError(t, registry.Save(ws))

	t.Run("加载已保存的工作区", func(t *testing.T) {
		loaded, err := registry.Load("ws-1")
		require.NoError(t, err)
		assert.Equal(t, ws.ID, loaded.ID)
		assert.Equal(t, ws.RepoURL, loaded.RepoURL)
		assert.Equal(t, ws.TargetBranch, loaded.TargetBranch)
	})

	t.Run("加载推进lastAccessed", func(t *testing.T) {
		before, err := registry.Load("ws-1")
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		after, err := registry.Load("ws-1")
		require.NoError(t, err)
		assert.True(t, !after.LastAccessed.Before(before.LastAccessed))
	})

	t.Run("索引文件落盘为数组格式", func(t *testing.T) {
		data, err := os.ReadFile(indexPath)
		require.NoError(t, err)

		var list []*model.Workspace
		require.NoError(t, json.Unmarshal(data, &list))
		require.Len(t, list, 1)
		assert.Equal(t, "ws-1", list[0].ID)
	})

	t.Run("加载不存在的工作区", func(t *testing.T) {
		_, err := registry.Load("missing")
		assert.Error(t, err)
	})
}

func TestRegistryReload(t *testing.T) {
	registry, indexPath := newTestRegistry(t)
	require.NoError(t, registry.Save(testWorkspace("ws-1")))
	require.NoError(t, registry.Save(testWorkspace("ws-2")))

	// 新实例从同一索引文件恢复
	reloaded := repository.NewWorkspaceRegistry(indexPath, &mocks.MockLogger{})
	require.NoError(t, reloaded.Initialize())

	list, err := reloaded.ListAll()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRegistryLegacyMapFormat(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.json")
	legacy := map[string]*model.Workspace{
		"ws-legacy": {
			Path:         "/tmp/legacy",
			RepoURL:      "https://gitlab.com/group/legacy.git",
			CreatedAt:    time.Now(),
			LastAccessed: time.Now(),
		},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(indexPath, data, 0644))

	registry := repository.NewWorkspaceRegistry(indexPath, &mocks.MockLogger{})
	require.NoError(t, registry.Initialize())

	// map的键回填为工作区ID
	loaded, err := registry.Load("ws-legacy")
	require.NoError(t, err)
	assert.Equal(t, "ws-legacy", loaded.ID)
	assert.Equal(t, "/tmp/legacy", loaded.Path)
}

func TestRegistryUnrecognizedFormat(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(indexPath, []byte("not json at all"), 0644))

	registry := repository.NewWorkspaceRegistry(indexPath, &mocks.MockLogger{})
	require.NoError(t, registry.Initialize())

	list, err := registry.ListAll()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegistryUpdate(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Save(testWorkspace("ws-1")))

	t.Run("部分更新只改指定字段", func(t *testing.T) {
		commit := "abc123"
		size := int64(2048)
		require.NoError(t, registry.Update("ws-1", repository.WorkspaceUpdate{
			CommitHash: &commit,
			Size:       &size,
		}))

		loaded, err := registry.Load("ws-1")
		require.NoError(t, err)
		assert.Equal(t, "abc123", loaded.Metadata.CommitHash)
		assert.Equal(t, int64(2048), loaded.Metadata.Size)
		assert.Equal(t, "https://gitlab.com/group/project.git", loaded.RepoURL)
	})

	t.Run("更新权限快照", func(t *testing.T) {
		snapshot := &model.WorkspacePermissions{
			Provider:        "gitlab",
			AccessLevel:     40,
			AccessLevelName: "Maintainer",
			CheckedAt:       time.Now(),
		}
		require.NoError(t, registry.Update("ws-1", repository.WorkspaceUpdate{Permissions: snapshot}))

		loaded, err := registry.Load("ws-1")
		require.NoError(t, err)
		require.NotNil(t, loaded.Metadata.Permissions)
		assert.Equal(t, 40, loaded.Metadata.Permissions.AccessLevel)
	})

	t.Run("更新不存在的工作区", func(t *testing.T) {
		active := false
		err := registry.Update("missing", repository.WorkspaceUpdate{IsActive: &active})
		assert.Error(t, err)
	})
}

func TestRegistryDelete(t *testing.T) {
	registry, _ := newTestRegistry(t)
	require.NoError(t, registry.Save(testWorkspace("ws-1")))

	require.NoError(t, registry.Delete("ws-1"))
	_, err := registry.Load("ws-1")
	assert.Error(t, err)

	// 删除不存在的记录不报错
	assert.NoError(t, registry.Delete("ws-1"))
}

func TestRegistrySweep(t *testing.T) {
	registry, _ := newTestRegistry(t)

	stale := testWorkspace("ws-stale")
	stale.LastAccessed = time.Now().Add(-40 * 24 * time.Hour)
	require.NoError(t, registry.Save(stale))

	fresh := testWorkspace("ws-fresh")
	require.NoError(t, registry.Save(fresh))

	swept, err := registry.SweepOlderThan(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	list, err := registry.ListAll()
	require.NoError(t, err)
	for _, ws := range list {
		switch ws.ID {
		case "ws-stale":
			assert.False(t, ws.Metadata.IsActive)
		case "ws-fresh":
			assert.True(t, ws.Metadata.IsActive)
		}
	}

	// 已标记的不会重复计数
	swept, err = registry.SweepOlderThan(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestRegistryStats(t *testing.T) {
	registry, _ := newTestRegistry(t)

	active := testWorkspace("ws-active")
	require.NoError(t, registry.Save(active))

	inactive := testWorkspace("ws-inactive")
	inactive.Metadata.IsActive = false
	inactive.Metadata.Size = 4096
	require.NoError(t, registry.Save(inactive))

	stats, err := registry.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalWorkspaces)
	assert.Equal(t, 1, stats.ActiveWorkspaces)
	assert.Equal(t, 1, stats.InactiveWorkspaces)
	assert.Equal(t, int64(1024+4096), stats.TotalSize)
}
