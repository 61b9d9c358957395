package gitcmd

import (
	"context"
	"strings"

	"workspace-orchestrator/internal/errs"
)

// RefSyncResult 远程引用校验结果
type RefSyncResult struct {
	Branch       string `json:"branch"`
	RemoteExists bool   `json:"remoteExists"`
	RemoteCommit string `json:"remoteCommit"`
	LocalCommit  string `json:"localCommit"`
	WasStale     bool   `json:"wasStale"`
	Repaired     bool   `json:"repaired"`
}

// EnsureFreshRemoteRef 校验本地远程跟踪引用与远程实际状态是否一致
// 远程分支可能被外部改写历史（force push）或删除，本地的 refs/remotes/origin/<branch>
// 会悄悄过期，直接基于它推送或对比会得出错误结论。流程：
//  1. git ls-remote 查询远程分支的真实提交
//  2. git rev-parse 读取本地远程跟踪引用
//  3. 二者不一致时执行针对该分支的强制fetch修复引用
func (e *Engine) EnsureFreshRemoteRef(ctx context.Context, repoPath, branch string) (*RefSyncResult, error) {
	result := &RefSyncResult{Branch: branch}

	out, err := e.runTrusted(ctx, repoPath, "ls-remote", "origin", "refs/heads/"+branch)
	if err != nil {
		return nil, errs.Wrap(errs.KindRemoteSync, err, "failed to query remote ref for branch %s", branch)
	}

	remoteCommit := parseLsRemoteCommit(out)
	if remoteCommit == "" {
		// 远程分支不存在，清理过期的本地跟踪引用
		result.RemoteExists = false
		if local := e.revParseRemoteRef(ctx, repoPath, branch); local != "" {
			result.LocalCommit = local
			result.WasStale = true
			if _, derr := e.runTrusted(ctx, repoPath, "update-ref", "-d", "refs/remotes/origin/"+branch); derr == nil {
				result.Repaired = true
				result.LocalCommit = ""
				e.logger.Info("removed stale tracking ref for deleted remote branch %s in %s", branch, repoPath)
			} else {
				e.logger.Warn("failed to remove stale tracking ref for %s: %v", branch, derr)
			}
		}
		return result, nil
	}

	result.RemoteExists = true
	result.RemoteCommit = remoteCommit
	result.LocalCommit = e.revParseRemoteRef(ctx, repoPath, branch)

	if result.LocalCommit == remoteCommit {
		return result, nil
	}
	result.WasStale = true

	// 只拉取这一条引用，避免全量fetch的开销
	refspec := "+refs/heads/" + branch + ":refs/remotes/origin/" + branch
	if _, err := e.runTrusted(ctx, repoPath, "fetch", "origin", refspec); err != nil {
		return result, errs.Wrap(errs.KindRemoteSync, err, "failed to repair stale ref for branch %s", branch)
	}

	result.LocalCommit = e.revParseRemoteRef(ctx, repoPath, branch)
	if result.LocalCommit != remoteCommit {
		return result, errs.New(errs.KindRemoteSync,
			"ref for branch %s still stale after fetch: local %s, remote %s",
			branch, result.LocalCommit, remoteCommit)
	}

	result.Repaired = true
	e.logger.Info("repaired stale tracking ref for branch %s in %s, now at %s", branch, repoPath, remoteCommit)
	return result, nil
}

// revParseRemoteRef 读取本地远程跟踪引用的提交，引用不存在时返回空串
func (e *Engine) revParseRemoteRef(ctx context.Context, repoPath, branch string) string {
	out, err := e.runTrusted(ctx, repoPath, "rev-parse", "refs/remotes/origin/"+branch)
	if err != nil {
		return ""
	}
	return out
}

// parseLsRemoteCommit 解析 ls-remote 输出的第一行提交哈希
func parseLsRemoteCommit(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	fields := strings.Fields(strings.Split(out, "\n")[0])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
