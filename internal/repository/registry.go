// repository/registry.go - 工作区注册表
package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"
)

// WorkspaceUpdate 部分更新，nil 字段保持原值
type WorkspaceUpdate struct {
	RepoURL      *string
	TargetBranch *string
	Size         *int64
	CommitHash   *string
	IsActive     *bool
	Tags         []string
	Permissions  *model.WorkspacePermissions
}

// RegistryStats 注册表汇总统计
type RegistryStats struct {
	TotalWorkspaces    int       `json:"totalWorkspaces"`
	ActiveWorkspaces   int       `json:"activeWorkspaces"`
	InactiveWorkspaces int       `json:"inactiveWorkspaces"`
	TotalSize          int64     `json:"totalSize"`
	OldestAccess       time.Time `json:"oldestAccess"`
	NewestAccess       time.Time `json:"newestAccess"`
}

// WorkspaceRegistry 工作区注册表，进程内工作区记录的唯一写入方
type WorkspaceRegistry interface {
	// Initialize 幂等初始化：确保索引文件及目录存在并载入内存索引
	Initialize() error
	// Save 保存工作区并落盘
	Save(workspace *model.Workspace) error
	// Load 根据ID获取工作区，同时推进 lastAccessed 并落盘
	Load(id string) (*model.Workspace, error)
	// Delete 删除工作区记录
	Delete(id string) error
	// ListAll 列出所有工作区
	ListAll() ([]*model.Workspace, error)
	// Update 部分更新，工作区不存在时返回 not_found
	Update(id string, partial WorkspaceUpdate) error
	// Stats 汇总统计
	Stats() (*RegistryStats, error)
	// SweepOlderThan 将久未访问的工作区标记为不活跃（不删除）
	SweepOlderThan(maxAge time.Duration) (int, error)
}

// workspaceRegistry 基于单个JSON索引文件的注册表实现
// 每次变更后整体落盘，持久化失败必须报告给调用方
type workspaceRegistry struct {
	indexPath  string
	workspaces map[string]*model.Workspace
	logger     logger.Logger
	rwMutex    sync.RWMutex
}

// NewWorkspaceRegistry 创建工作区注册表
func NewWorkspaceRegistry(indexPath string, logger logger.Logger) WorkspaceRegistry {
	return &workspaceRegistry{
		indexPath:  indexPath,
		workspaces: make(map[string]*model.Workspace),
		logger:     logger,
	}
}

// Initialize 幂等初始化
func (r *workspaceRegistry) Initialize() error {
	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	indexDir := filepath.Dir(r.indexPath)
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to create registry directory %s", indexDir)
	}

	data, err := os.ReadFile(r.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			r.workspaces = make(map[string]*model.Workspace)
			return nil
		}
		return errs.Wrap(errs.KindInternal, err, "failed to read registry index %s", r.indexPath)
	}

	r.workspaces = r.decodeIndex(data)
	r.logger.Info("workspace registry loaded, %d workspaces", len(r.workspaces))
	return nil
}

// decodeIndex 解析索引文件内容
// 当前格式为工作区记录数组；兼容早期按ID键入的map格式；
// 无法识别的内容按空索引处理，降级而不是崩溃
func (r *workspaceRegistry) decodeIndex(data []byte) map[string]*model.Workspace {
	workspaces := make(map[string]*model.Workspace)

	var list []*model.Workspace
	if err := json.Unmarshal(data, &list); err == nil {
		for _, ws := range list {
			if ws != nil && ws.ID != "" {
				workspaces[ws.ID] = ws
			}
		}
		return workspaces
	}

	var legacy map[string]*model.Workspace
	if err := json.Unmarshal(data, &legacy); err == nil {
		for id, ws := range legacy {
			if ws == nil {
				continue
			}
			if ws.ID == "" {
				ws.ID = id
			}
			workspaces[ws.ID] = ws
		}
		r.logger.Info("workspace registry loaded from legacy map format, %d workspaces", len(workspaces))
		return workspaces
	}

	r.logger.Warn("unrecognized registry index format, starting with empty index: %s", r.indexPath)
	return make(map[string]*model.Workspace)
}

// persistLocked 将内存索引整体落盘，调用方必须持有写锁
func (r *workspaceRegistry) persistLocked() error {
	list := make([]*model.Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		list = append(list, ws)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to serialize registry index")
	}

	if err := os.WriteFile(r.indexPath, data, 0644); err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to write registry index %s", r.indexPath)
	}
	return nil
}

// Save 保存工作区
func (r *workspaceRegistry) Save(workspace *model.Workspace) error {
	if workspace == nil || workspace.ID == "" {
		return errs.NewMissingParamErr("workspace.id")
	}

	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	r.workspaces[workspace.ID] = workspace
	if err := r.persistLocked(); err != nil {
		return err
	}

	r.logger.Info("workspace saved: %s, path: %s", workspace.ID, workspace.Path)
	return nil
}

// Load 获取工作区并推进 lastAccessed
// 读取带有副作用：访问时间被更新并立即落盘
func (r *workspaceRegistry) Load(id string) (*model.Workspace, error) {
	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	ws, exists := r.workspaces[id]
	if !exists {
		return nil, errs.NewRecordNotFoundErr("workspace", id)
	}

	// lastAccessed 单调不减
	now := time.Now()
	if now.After(ws.LastAccessed) {
		ws.LastAccessed = now
	}

	if err := r.persistLocked(); err != nil {
		return nil, err
	}

	cloned := *ws
	return &cloned, nil
}

// Delete 删除工作区记录
func (r *workspaceRegistry) Delete(id string) error {
	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	if _, exists := r.workspaces[id]; !exists {
		r.logger.Warn("workspace not found for delete: %s", id)
		return nil
	}

	delete(r.workspaces, id)
	if err := r.persistLocked(); err != nil {
		return err
	}

	r.logger.Info("workspace deleted: %s", id)
	return nil
}

// ListAll 列出所有工作区，按创建时间排序
func (r *workspaceRegistry) ListAll() ([]*model.Workspace, error) {
	r.rwMutex.RLock()
	defer r.rwMutex.RUnlock()

	list := make([]*model.Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		cloned := *ws
		list = append(list, &cloned)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})

	return list, nil
}

// Update 部分更新工作区
func (r *workspaceRegistry) Update(id string, partial WorkspaceUpdate) error {
	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	ws, exists := r.workspaces[id]
	if !exists {
		return errs.NewRecordNotFoundErr("workspace", id)
	}

	if partial.RepoURL != nil {
		ws.RepoURL = *partial.RepoURL
	}
	if partial.TargetBranch != nil {
		ws.TargetBranch = *partial.TargetBranch
	}
	if partial.Size != nil {
		ws.Metadata.Size = *partial.Size
	}
	if partial.CommitHash != nil {
		ws.Metadata.CommitHash = *partial.CommitHash
	}
	if partial.IsActive != nil {
		ws.Metadata.IsActive = *partial.IsActive
	}
	if partial.Tags != nil {
		ws.Metadata.Tags = partial.Tags
	}
	if partial.Permissions != nil {
		ws.Metadata.Permissions = partial.Permissions
	}

	if err := r.persistLocked(); err != nil {
		return err
	}

	r.logger.Info("workspace updated: %s", id)
	return nil
}

// Stats 汇总统计
func (r *workspaceRegistry) Stats() (*RegistryStats, error) {
	r.rwMutex.RLock()
	defer r.rwMutex.RUnlock()

	stats := &RegistryStats{}
	for _, ws := range r.workspaces {
		stats.TotalWorkspaces++
		if ws.Metadata.IsActive {
			stats.ActiveWorkspaces++
		} else {
			stats.InactiveWorkspaces++
		}
		stats.TotalSize += ws.Metadata.Size

		if stats.OldestAccess.IsZero() || ws.LastAccessed.Before(stats.OldestAccess) {
			stats.OldestAccess = ws.LastAccessed
		}
		if ws.LastAccessed.After(stats.NewestAccess) {
			stats.NewestAccess = ws.LastAccessed
		}
	}

	return stats, nil
}

// SweepOlderThan 将久未访问的工作区标记为不活跃
func (r *workspaceRegistry) SweepOlderThan(maxAge time.Duration) (int, error) {
	r.rwMutex.Lock()
	defer r.rwMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	swept := 0
	for _, ws := range r.workspaces {
		if ws.Metadata.IsActive && ws.LastAccessed.Before(cutoff) {
			ws.Metadata.IsActive = false
			swept++
		}
	}

	if swept == 0 {
		return 0, nil
	}

	if err := r.persistLocked(); err != nil {
		return 0, err
	}

	r.logger.Info("registry sweep completed, %d workspaces marked inactive (cutoff: %s)",
		swept, cutoff.Format(time.RFC3339))
	return swept, nil
}
