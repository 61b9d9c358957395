// workspace.go - 工作区业务服务
// 串联注册表、Git引擎、扫描器、内容缓存和权限解析器，
// 对外暴露工作区粒度的完整操作
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"workspace-orchestrator/internal/cache"
	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/permission"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/scanner"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/pkg/logger"
)

// CloneRequest 创建工作区请求
type CloneRequest struct {
	RepoURL      string   `json:"repoUrl"`
	TargetBranch string   `json:"targetBranch"`
	Tags         []string `json:"tags,omitempty"`
	// 仅用于本次克隆的凭证，不持久化
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// BranchListResult 分支列表
type BranchListResult struct {
	Current  string   `json:"current"`
	Local    []string `json:"local"`
	Remote   []string `json:"remote"`
	Detached bool     `json:"detached"`
}

// WorkspaceServiceInterface 工作区服务接口
type WorkspaceServiceInterface interface {
	CloneWorkspace(ctx context.Context, request CloneRequest) (*model.Workspace, error)
	GetWorkspace(id string) (*model.Workspace, error)
	ListWorkspaces() ([]*model.Workspace, error)
	DeleteWorkspace(id string, removeFiles bool) error
	ListBranches(ctx context.Context, id string) (*BranchListResult, error)
	WorkspaceStatus(ctx context.Context, id string) (*gitcmd.StatusResult, error)
	GetGitConfig(ctx context.Context, id string) (*gitcmd.ConfigOptions, error)
	SetGitConfig(ctx context.Context, id string, options gitcmd.ConfigOptions) error
	UnsetGitConfig(ctx context.Context, id string, keys []string) error
	RefreshPermissions(ctx context.Context, id string) (*permission.Result, error)
	GetPermissions(ctx context.Context, id string) (*permission.Result, error)
	AnalyzeWorkspace(id string) (*model.DirectoryAnalysis, error)
	RegistryStats() (*repository.RegistryStats, error)
}

// WorkspaceService 工作区服务实现
type WorkspaceService struct {
	registry     repository.WorkspaceRegistry
	git          gitcmd.GitEngine
	scanner      scanner.ScannerInterface
	contentCache cache.CacheInterface
	resolver     permission.ResolverInterface
	logger       logger.Logger
}

// NewWorkspaceService 创建工作区服务
func NewWorkspaceService(
	registry repository.WorkspaceRegistry,
	git gitcmd.GitEngine,
	fileScanner scanner.ScannerInterface,
	contentCache cache.CacheInterface,
	resolver permission.ResolverInterface,
	logger logger.Logger,
) *WorkspaceService {
	return &WorkspaceService{
		registry:     registry,
		git:          git,
		scanner:      fileScanner,
		contentCache: contentCache,
		resolver:     resolver,
		logger:       logger,
	}
}

// CloneWorkspace 克隆远程仓库并登记为新工作区
// 克隆成功才写注册表；权限查询和目录分析失败只降级，不阻塞创建
func (s *WorkspaceService) CloneWorkspace(ctx context.Context, request CloneRequest) (*model.Workspace, error) {
	if request.RepoURL == "" {
		return nil, errs.NewMissingParamErr("repoUrl")
	}
	if !gitcmd.ValidateURL(request.RepoURL) {
		return nil, errs.NewInvalidParamErr("repoUrl", request.RepoURL)
	}

	id, err := utils.GenerateUUID()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to generate workspace id")
	}
	dirName := fmt.Sprintf("%s-%s", gitcmd.RepoNameFromURL(request.RepoURL), id[:8])
	targetPath := filepath.Join(utils.WorkspacesDir, dirName)

	gitConfig := config.GetClientConfig().Git
	err = s.git.Clone(ctx, request.RepoURL, targetPath, gitcmd.CloneOptions{
		Depth:        gitConfig.CloneDepth,
		SingleBranch: gitConfig.SingleBranch,
		TargetBranch: request.TargetBranch,
		Username:     request.Username,
		Password:     request.Password,
	})
	if err != nil {
		// 不留下半克隆的目录
		_ = os.RemoveAll(targetPath)
		return nil, err
	}

	targetBranch := request.TargetBranch
	if targetBranch == "" {
		if current, berr := s.git.CurrentBranch(ctx, targetPath); berr == nil {
			targetBranch = current
		}
	}

	now := time.Now()
	workspace := &model.Workspace{
		ID:           id,
		Path:         targetPath,
		RepoURL:      request.RepoURL,
		TargetBranch: targetBranch,
		CreatedAt:    now,
		LastAccessed: now,
		Metadata: model.WorkspaceMetadata{
			IsActive: true,
			Tags:     request.Tags,
		},
	}

	if commit, cerr := s.git.CurrentCommit(ctx, targetPath); cerr == nil {
		workspace.Metadata.CommitHash = commit
	}
	if size, serr := utils.DirSize(targetPath); serr == nil {
		workspace.Metadata.Size = size
	}

	if result := s.resolver.FetchPermissions(request.RepoURL, targetBranch); result.Permissions != nil {
		workspace.Metadata.Permissions = result.Permissions
	} else if result.MissingConfig {
		s.logger.Info("skipping permission snapshot for %s: %s", request.RepoURL, result.Guidance)
	}

	if err := s.registry.Save(workspace); err != nil {
		_ = os.RemoveAll(targetPath)
		return nil, err
	}

	// 预热内容缓存，失败不影响创建
	if _, aerr := s.AnalyzeWorkspace(id); aerr != nil {
		s.logger.Warn("failed to warm analysis cache for workspace %s: %v", id, aerr)
	}

	s.logger.Info("created workspace %s for %s at %s", id, request.RepoURL, targetPath)
	return workspace, nil
}

// GetWorkspace 获取工作区，推进其 lastAccessed
func (s *WorkspaceService) GetWorkspace(id string) (*model.Workspace, error) {
	return s.registry.Load(id)
}

// ListWorkspaces 列出所有工作区
func (s *WorkspaceService) ListWorkspaces() ([]*model.Workspace, error) {
	return s.registry.ListAll()
}

// DeleteWorkspace 删除工作区记录，removeFiles为真时同时删除目录
func (s *WorkspaceService) DeleteWorkspace(id string, removeFiles bool) error {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return err
	}

	if removeFiles && workspace.Path != "" {
		if err := os.RemoveAll(workspace.Path); err != nil {
			return errs.Wrap(errs.KindInternal, err, "failed to remove workspace directory %s", workspace.Path)
		}
	}

	return s.registry.Delete(id)
}

// ListBranches 列出工作区的本地和远程分支
// 先校验目标分支的远程引用，过期引用修复后再读分支列表
func (s *WorkspaceService) ListBranches(ctx context.Context, id string) (*BranchListResult, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}

	if workspace.TargetBranch != "" {
		if _, rerr := s.git.EnsureFreshRemoteRef(ctx, workspace.Path, workspace.TargetBranch); rerr != nil {
			s.logger.Warn("failed to refresh remote ref for workspace %s: %v", id, rerr)
		}
	}

	result := &BranchListResult{}
	if current, berr := s.git.CurrentBranch(ctx, workspace.Path); berr == nil {
		result.Current = current
	} else if errors.Is(berr, gitcmd.ErrDetachedHead) {
		result.Detached = true
	} else {
		return nil, berr
	}

	if result.Local, err = s.git.ListBranches(ctx, workspace.Path, workspace.TargetBranch); err != nil {
		return nil, err
	}
	if result.Remote, err = s.git.AllRemoteBranches(ctx, workspace.Path, workspace.TargetBranch); err != nil {
		return nil, err
	}
	return result, nil
}

// WorkspaceStatus 返回工作区的未提交变更状态
func (s *WorkspaceService) WorkspaceStatus(ctx context.Context, id string) (*gitcmd.StatusResult, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}
	return s.git.Status(ctx, workspace.Path)
}

// GetGitConfig 读取工作区级git身份
func (s *WorkspaceService) GetGitConfig(ctx context.Context, id string) (*gitcmd.ConfigOptions, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}
	return s.git.GetConfig(ctx, workspace.Path)
}

// SetGitConfig 设置工作区级git身份
func (s *WorkspaceService) SetGitConfig(ctx context.Context, id string, options gitcmd.ConfigOptions) error {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return err
	}
	return s.git.SetConfig(ctx, workspace.Path, options)
}

// UnsetGitConfig 清除工作区级git身份键
func (s *WorkspaceService) UnsetGitConfig(ctx context.Context, id string, keys []string) error {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		keys = []string{"user.email", "user.name", "user.signingkey"}
	}
	return s.git.UnsetConfig(ctx, workspace.Path, keys)
}

// RefreshPermissions 重新查询权限并替换注册表里的快照
func (s *WorkspaceService) RefreshPermissions(ctx context.Context, id string) (*permission.Result, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}

	result := s.resolver.FetchPermissions(workspace.RepoURL, workspace.TargetBranch)
	if result.Permissions != nil {
		if uerr := s.registry.Update(id, repository.WorkspaceUpdate{Permissions: result.Permissions}); uerr != nil {
			return nil, uerr
		}
	}
	return result, nil
}

// GetPermissions 返回缓存的权限快照，没有快照时触发一次刷新
func (s *WorkspaceService) GetPermissions(ctx context.Context, id string) (*permission.Result, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}

	if workspace.Metadata.Permissions != nil {
		return &permission.Result{
			Provider:    permission.Provider(workspace.Metadata.Permissions.Provider),
			Permissions: workspace.Metadata.Permissions,
		}, nil
	}
	return s.RefreshPermissions(ctx, id)
}

// AnalyzeWorkspace 返回工作区目录分析，优先命中内容缓存
// 缓存键绑定目录指纹和提交哈希，任一变化都会自然失效
func (s *WorkspaceService) AnalyzeWorkspace(id string) (*model.DirectoryAnalysis, error) {
	workspace, err := s.registry.Load(id)
	if err != nil {
		return nil, err
	}

	fingerprint, err := s.scanner.DirectoryFingerprint(workspace.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to fingerprint workspace %s", id)
	}

	commitHash := workspace.Metadata.CommitHash
	if entry, ok := s.contentCache.Get(fingerprint, commitHash); ok {
		return &entry.Analysis, nil
	}

	analysis, err := s.scanner.AnalyzeDirectory(workspace.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to analyze workspace %s", id)
	}

	// 缓存只是加速手段，写失败不影响结果
	entry := &model.CacheEntry{
		DirectoryHash: fingerprint,
		CommitHash:    commitHash,
		LastUpdated:   time.Now(),
		Analysis:      *analysis,
	}
	if cerr := s.contentCache.Set(entry); cerr != nil {
		s.logger.Warn("failed to cache analysis for workspace %s: %v", id, cerr)
	}

	if uerr := s.registry.Update(id, repository.WorkspaceUpdate{Size: &analysis.TotalSize}); uerr != nil {
		s.logger.Warn("failed to update size for workspace %s: %v", id, uerr)
	}

	return analysis, nil
}

// RegistryStats 注册表汇总统计
func (s *WorkspaceService) RegistryStats() (*repository.RegistryStats, error) {
	return s.registry.Stats()
}
