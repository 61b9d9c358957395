package gitcmd

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// https://host/group/project(.git)
	httpsURLPattern = regexp.MustCompile(`^https?://[\w.\-]+(:\d+)?/[\w.\-~/]+?(\.git)?/?$`)
	// git@host:group/project(.git)
	scpURLPattern = regexp.MustCompile(`^[\w.\-]+@[\w.\-]+:[\w.\-~/]+?(\.git)?$`)
	// ssh://git@host(:port)/group/project(.git)
	sshURLPattern = regexp.MustCompile(`^ssh://[\w.\-]+@[\w.\-]+(:\d+)?/[\w.\-~/]+?(\.git)?$`)
	// http(s)地址中的userinfo段
	httpUserinfoPattern = regexp.MustCompile(`(https?://)[^/@\s]+@`)
)

// redactArgs 将命令参数中http(s)地址的userinfo替换为***
// 凭证只随单次克隆调用传给git，不允许落入任何日志
func redactArgs(args []string) []string {
	redacted := make([]string, len(args))
	for i, arg := range args {
		redacted[i] = httpUserinfoPattern.ReplaceAllString(arg, "${1}***@")
	}
	return redacted
}

// ValidateURL 校验仓库地址格式，支持HTTPS、scp风格SSH和ssh://三种写法
func ValidateURL(repoURL string) bool {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return false
	}
	return httpsURLPattern.MatchString(repoURL) ||
		scpURLPattern.MatchString(repoURL) ||
		sshURLPattern.MatchString(repoURL)
}

// EmbedCredentials 将凭证嵌入HTTPS仓库地址的userinfo段
// 用户名密码做URL编码，特殊字符（@、:等）不会破坏地址结构
func EmbedCredentials(repoURL, username, password string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse repo url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("credentials can only be embedded in http(s) urls, got %s", parsed.Scheme)
	}

	if password != "" {
		parsed.User = url.UserPassword(username, password)
	} else {
		parsed.User = url.User(username)
	}
	return parsed.String(), nil
}

// RepoNameFromURL 从仓库地址提取项目名，用于生成工作区目录名
func RepoNameFromURL(repoURL string) string {
	name := strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	name = strings.TrimSuffix(name, ".git")
	if idx := strings.LastIndexAny(name, "/:"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}
