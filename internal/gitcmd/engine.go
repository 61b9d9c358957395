// gitcmd/engine.go - Git同步引擎
// 所有操作直接调用git命令行，而不是Go的git库：更简单可靠，
// 且天然兼容用户已有配置（SSH密钥、凭证助手）
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/pkg/logger"
)

// ErrDetachedHead HEAD未指向任何分支
var ErrDetachedHead = errors.New("detached HEAD, no branch checked out")

// CloneOptions 克隆选项
type CloneOptions struct {
	Depth        int
	SingleBranch bool
	TargetBranch string
	// 仅用于单次克隆调用的凭证，绝不落盘
	Username string
	Password string
}

// StatusResult 工作区文件状态
type StatusResult struct {
	Clean     bool     `json:"clean"`
	Staged    []string `json:"staged"`
	Modified  []string `json:"modified"`
	Untracked []string `json:"untracked"`
}

// ConfigOptions 工作区级git身份配置
type ConfigOptions struct {
	UserEmail  string
	UserName   string
	SigningKey string
}

// GitEngine Git同步引擎接口
type GitEngine interface {
	Clone(ctx context.Context, repoURL, targetPath string, options CloneOptions) error
	Status(ctx context.Context, repoPath string) (*StatusResult, error)
	CurrentBranch(ctx context.Context, repoPath string) (string, error)
	CurrentCommit(ctx context.Context, repoPath string) (string, error)
	ListBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error)
	AllRemoteBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error)
	EnsureFreshRemoteRef(ctx context.Context, repoPath, branch string) (*RefSyncResult, error)
	Checkout(ctx context.Context, repoPath, branch string, create bool) error
	CommitAll(ctx context.Context, repoPath, message string) (bool, error)
	Push(ctx context.Context, repoPath, branch string) error
	SetConfig(ctx context.Context, repoPath string, options ConfigOptions) error
	GetConfig(ctx context.Context, repoPath string) (*ConfigOptions, error)
	UnsetConfig(ctx context.Context, repoPath string, keys []string) error
}

// Engine 基于git命令行的实现
type Engine struct {
	gitPath string
	timeout time.Duration
	logger  logger.Logger
}

// NewEngine 创建Git同步引擎
func NewEngine(gitConfig config.ConfigGit, logger logger.Logger) *Engine {
	gitPath := gitConfig.BinaryPath
	if gitPath == "" {
		gitPath = "git"
	}
	timeout := time.Duration(gitConfig.CommandTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Engine{
		gitPath: gitPath,
		timeout: timeout,
		logger:  logger,
	}
}

// run 执行git命令并返回标准输出
// 失败时错误文本带上stderr诊断，调用方据此分支处理而不是捕获异常
func (e *Engine) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.gitPath, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("git %s (dir: %s)", strings.Join(redactArgs(args), " "), dir)
	if err := cmd.Run(); err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return strings.TrimSpace(stdout.String()), fmt.Errorf("git %s: %s", args[0], diag)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// isOwnershipError 识别git的目录所有权安全拒绝
func isOwnershipError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "dubious ownership")
}

// EnsureTrusted 将路径登记为git信任目录，避免所有权安全拒绝
func (e *Engine) EnsureTrusted(ctx context.Context, repoPath string) error {
	_, err := e.run(ctx, "", "config", "--global", "--add", "safe.directory", repoPath)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to register trusted directory %s", repoPath)
	}
	return nil
}

// runTrusted 执行命令，遇到所有权拒绝时登记信任目录后重试一次
// 其他失败立即向上传播
func (e *Engine) runTrusted(ctx context.Context, repoPath string, args ...string) (string, error) {
	out, err := e.run(ctx, repoPath, args...)
	if err == nil || !isOwnershipError(err) {
		return out, err
	}

	e.logger.Warn("git refused %s due to ownership check, registering trusted directory and retrying once", repoPath)
	if terr := e.EnsureTrusted(ctx, repoPath); terr != nil {
		return out, err
	}
	return e.run(ctx, repoPath, args...)
}

// Clone 克隆远程仓库到目标路径
func (e *Engine) Clone(ctx context.Context, repoURL, targetPath string, options CloneOptions) error {
	if !ValidateURL(repoURL) {
		return errs.NewInvalidParamErr("repoUrl", repoURL)
	}

	if err := os.MkdirAll(targetPath, 0755); err != nil {
		return errs.Wrap(errs.KindInternal, err, "failed to create target path %s", targetPath)
	}

	cloneURL := repoURL
	if options.Username != "" || options.Password != "" {
		embedded, err := EmbedCredentials(repoURL, options.Username, options.Password)
		if err != nil {
			return errs.NewInvalidParamErr("repoUrl", repoURL)
		}
		cloneURL = embedded
	}

	args := []string{"clone"}
	if options.Depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", options.Depth))
	}
	if options.SingleBranch {
		args = append(args, "--single-branch")
	}
	if options.TargetBranch != "" {
		args = append(args, "--branch", options.TargetBranch)
	}
	args = append(args, cloneURL, targetPath)

	startTime := time.Now()
	if _, err := e.run(ctx, "", args...); err != nil {
		return errs.Wrap(errs.KindRemoteSync, err, "failed to clone %s", repoURL)
	}
	e.logger.Info("cloned %s into %s, took %v", repoURL, targetPath, time.Since(startTime))

	// 登记为信任目录，避免后续操作被所有权检查拒绝
	if err := e.EnsureTrusted(ctx, targetPath); err != nil {
		e.logger.Warn("failed to register cloned path as trusted: %v", err)
	}

	return nil
}

// Status 返回工作区文件状态
func (e *Engine) Status(ctx context.Context, repoPath string) (*StatusResult, error) {
	out, err := e.runTrusted(ctx, repoPath, "status", "--porcelain")
	if err != nil {
		return nil, errs.Wrap(errs.KindRemoteSync, err, "failed to get status of %s", repoPath)
	}
	return ParseStatus(out), nil
}

// ParseStatus 解析 git status --porcelain 输出
func ParseStatus(out string) *StatusResult {
	result := &StatusResult{}
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		index, worktree := line[0], line[1]
		path := strings.TrimSpace(line[3:])

		switch {
		case index == '?' && worktree == '?':
			result.Untracked = append(result.Untracked, path)
		default:
			if index != ' ' {
				result.Staged = append(result.Staged, path)
			}
			if worktree != ' ' {
				result.Modified = append(result.Modified, path)
			}
		}
	}
	result.Clean = len(result.Staged) == 0 && len(result.Modified) == 0 && len(result.Untracked) == 0
	return result
}

// CurrentBranch 返回当前检出的分支名
func (e *Engine) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	out, err := e.runTrusted(ctx, repoPath, "branch", "--show-current")
	if err != nil {
		return "", errs.Wrap(errs.KindRemoteSync, err, "failed to get current branch of %s", repoPath)
	}
	if out == "" {
		return "", ErrDetachedHead
	}
	return out, nil
}

// CurrentCommit 返回HEAD的提交哈希
func (e *Engine) CurrentCommit(ctx context.Context, repoPath string) (string, error) {
	out, err := e.runTrusted(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", errs.Wrap(errs.KindRemoteSync, err, "failed to get current commit of %s", repoPath)
	}
	return out, nil
}

// ListBranches 列出本地分支
func (e *Engine) ListBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error) {
	out, err := e.runTrusted(ctx, repoPath, "branch", "--format", "%(refname:short)")
	if err != nil {
		return nil, errs.Wrap(errs.KindRemoteSync, err, "failed to list branches of %s", repoPath)
	}
	return CleanBranchList(out, targetBranch), nil
}

// AllRemoteBranches 列出远程跟踪分支
func (e *Engine) AllRemoteBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error) {
	out, err := e.runTrusted(ctx, repoPath, "branch", "-r", "--format", "%(refname:short)")
	if err != nil {
		return nil, errs.Wrap(errs.KindRemoteSync, err, "failed to list remote branches of %s", repoPath)
	}
	return CleanBranchList(out, targetBranch), nil
}

// CleanBranchList 规整分支名列表：剥掉远程前缀、去重
// 目标分支存在则排在最前，其余按字典序
func CleanBranchList(out, targetBranch string) []string {
	seen := make(map[string]bool)
	var branches []string

	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.Contains(name, "HEAD") {
			continue
		}
		name = strings.TrimPrefix(name, "origin/")
		if seen[name] {
			continue
		}
		seen[name] = true
		branches = append(branches, name)
	}

	sort.Strings(branches)

	if targetBranch != "" && seen[targetBranch] {
		ordered := []string{targetBranch}
		for _, name := range branches {
			if name != targetBranch {
				ordered = append(ordered, name)
			}
		}
		return ordered
	}

	return branches
}

// Checkout 检出分支，create为真时先创建
func (e *Engine) Checkout(ctx context.Context, repoPath, branch string, create bool) error {
	args := []string{"checkout"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, branch)

	if _, err := e.runTrusted(ctx, repoPath, args...); err != nil {
		return errs.Wrap(errs.KindRemoteSync, err, "failed to checkout %s in %s", branch, repoPath)
	}
	return nil
}

// CommitAll 暂存全部变更并提交，没有可提交内容时返回 false
func (e *Engine) CommitAll(ctx context.Context, repoPath, message string) (bool, error) {
	if _, err := e.runTrusted(ctx, repoPath, "add", "-A"); err != nil {
		return false, errs.Wrap(errs.KindRemoteSync, err, "failed to stage changes in %s", repoPath)
	}

	status, err := e.Status(ctx, repoPath)
	if err != nil {
		return false, err
	}
	if status.Clean {
		return false, nil
	}

	if _, err := e.runTrusted(ctx, repoPath, "commit", "-m", message); err != nil {
		return false, errs.Wrap(errs.KindRemoteSync, err, "failed to commit in %s", repoPath)
	}
	return true, nil
}

// Push 推送命名分支，分支为空时推送当前分支
// 对可能被外部改写历史的分支，调用方应先执行 EnsureFreshRemoteRef
func (e *Engine) Push(ctx context.Context, repoPath, branch string) error {
	if branch == "" {
		current, err := e.CurrentBranch(ctx, repoPath)
		if err != nil {
			return err
		}
		branch = current
	}

	if _, err := e.runTrusted(ctx, repoPath, "push", "origin", branch); err != nil {
		return errs.Wrap(errs.KindRemoteSync, err, "failed to push %s from %s", branch, repoPath)
	}

	e.logger.Info("pushed branch %s from %s", branch, repoPath)
	return nil
}

// SetConfig 设置工作区级git身份，独立于全局配置
func (e *Engine) SetConfig(ctx context.Context, repoPath string, options ConfigOptions) error {
	entries := map[string]string{
		"user.email":      options.UserEmail,
		"user.name":       options.UserName,
		"user.signingkey": options.SigningKey,
	}

	for key, value := range entries {
		if value == "" {
			continue
		}
		if _, err := e.runTrusted(ctx, repoPath, "config", key, value); err != nil {
			return errs.Wrap(errs.KindInternal, err, "failed to set %s in %s", key, repoPath)
		}
	}
	return nil
}

// GetConfig 读取工作区级git身份，未设置的键为空串
func (e *Engine) GetConfig(ctx context.Context, repoPath string) (*ConfigOptions, error) {
	options := &ConfigOptions{}

	keys := []struct {
		name   string
		target *string
	}{
		{"user.email", &options.UserEmail},
		{"user.name", &options.UserName},
		{"user.signingkey", &options.SigningKey},
	}

	for _, key := range keys {
		out, err := e.runTrusted(ctx, repoPath, "config", "--get", key.name)
		if err != nil {
			// 键未设置时git以非零退出，按空值处理
			continue
		}
		*key.target = out
	}

	return options, nil
}

// UnsetConfig 清除指定的工作区级git配置键
func (e *Engine) UnsetConfig(ctx context.Context, repoPath string, keys []string) error {
	for _, key := range keys {
		if _, err := e.runTrusted(ctx, repoPath, "config", "--unset", key); err != nil {
			if strings.Contains(err.Error(), "key") || strings.Contains(err.Error(), "exit status 5") {
				// 键本来就不存在
				continue
			}
			return errs.Wrap(errs.KindInternal, err, "failed to unset %s in %s", key, repoPath)
		}
	}
	return nil
}
