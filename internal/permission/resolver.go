// resolver.go - 仓库权限解析器
// 根据仓库地址识别托管平台，查询调用者的访问级别和目标分支的保护状态。
// 未配置凭证是合法状态（MissingConfig），不是失败。
package permission

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"
)

// Provider 托管平台类型
type Provider string

const (
	ProviderGitLab  Provider = "gitlab"
	ProviderGitHub  Provider = "github"
	ProviderUnknown Provider = "unknown"
)

// Result 权限解析结果，调用方先检查 MissingConfig 再看 Error
type Result struct {
	Provider      Provider                    `json:"provider"`
	Permissions   *model.WorkspacePermissions `json:"permissions,omitempty"`
	MissingConfig bool                        `json:"missingConfig"`
	Guidance      string                      `json:"guidance,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

// ResolverInterface 权限解析器接口
type ResolverInterface interface {
	FetchPermissions(repoURL, branch string) *Result
}

type providerClient interface {
	GetRepositoryPermissions(repoURL, branch string) (*model.WorkspacePermissions, error)
}

// Resolver 权限解析器实现
type Resolver struct {
	logger logger.Logger
	gitlab providerClient
	github providerClient
}

// NewResolver 创建权限解析器
func NewResolver(logger logger.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		gitlab: newGitLabClient(logger),
		github: newGitHubClient(logger),
	}
}

// DetectProvider 按主机名识别托管平台
// 除公有域名外，还匹配auth配置中登记的自建实例主机
func DetectProvider(repoURL string, auth config.AuthInfo) Provider {
	host := hostOf(repoURL)
	if host == "" {
		return ProviderUnknown
	}

	if host == "github.com" || strings.HasSuffix(host, ".github.com") {
		return ProviderGitHub
	}
	if host == "gitlab.com" || strings.Contains(host, "gitlab") {
		return ProviderGitLab
	}

	for _, extra := range auth.GitLab.Hosts {
		if strings.EqualFold(host, extra) {
			return ProviderGitLab
		}
	}
	for _, extra := range auth.GitHub.Hosts {
		if strings.EqualFold(host, extra) {
			return ProviderGitHub
		}
	}

	return ProviderUnknown
}

// hostOf 提取仓库地址的主机名，兼容scp风格SSH地址
func hostOf(repoURL string) string {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return ""
	}

	// git@host:group/project.git
	if !strings.Contains(repoURL, "://") {
		if at := strings.Index(repoURL, "@"); at >= 0 {
			rest := repoURL[at+1:]
			if colon := strings.Index(rest, ":"); colon > 0 {
				return strings.ToLower(rest[:colon])
			}
		}
		return ""
	}

	parsed, err := url.Parse(repoURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// FetchPermissions 查询仓库权限快照
func (r *Resolver) FetchPermissions(repoURL, branch string) *Result {
	auth := config.GetAuthInfo()
	provider := DetectProvider(repoURL, auth)

	switch provider {
	case ProviderGitLab:
		if !auth.GitLab.Configured() {
			return missingConfigResult(provider, "no GitLab token configured, add a gitlab token to auth.json to enable permission checks")
		}
		return r.query(provider, r.gitlab, repoURL, branch)
	case ProviderGitHub:
		if !auth.GitHub.Configured() {
			return missingConfigResult(provider, "no GitHub token configured, add a github token to auth.json to enable permission checks")
		}
		return r.query(provider, r.github, repoURL, branch)
	default:
		return &Result{
			Provider: ProviderUnknown,
			Error:    fmt.Sprintf("unsupported provider for repository url: %s", repoURL),
		}
	}
}

func missingConfigResult(provider Provider, guidance string) *Result {
	return &Result{
		Provider:      provider,
		MissingConfig: true,
		Guidance:      guidance,
		Error:         fmt.Sprintf("no credential configured for provider %s", provider),
	}
}

func (r *Resolver) query(provider Provider, client providerClient, repoURL, branch string) *Result {
	permissions, err := client.GetRepositoryPermissions(repoURL, branch)
	if err != nil {
		r.logger.Warn("permission query against %s failed: %v", provider, err)
		return &Result{Provider: provider, Error: err.Error()}
	}

	permissions.Provider = string(provider)
	permissions.CheckedAt = time.Now()
	return &Result{Provider: provider, Permissions: permissions}
}

// projectPathOf 从仓库地址提取 group/project 路径段
func projectPathOf(repoURL string) (string, error) {
	repoURL = strings.TrimSpace(repoURL)

	var path string
	if strings.Contains(repoURL, "://") {
		parsed, err := url.Parse(repoURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse repository url %s: %w", repoURL, err)
		}
		path = parsed.Path
	} else if at := strings.Index(repoURL, "@"); at >= 0 {
		rest := repoURL[at+1:]
		colon := strings.Index(rest, ":")
		if colon < 0 {
			return "", fmt.Errorf("cannot extract project path from %s", repoURL)
		}
		path = rest[colon+1:]
	} else {
		return "", fmt.Errorf("cannot extract project path from %s", repoURL)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" || !strings.Contains(path, "/") {
		return "", fmt.Errorf("cannot extract project path from %s", repoURL)
	}
	return path, nil
}
