// github.go - GitHub权限查询客户端
package permission

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"
)

// GitHub权限名映射为与GitLab同一把数字标尺，方便上层统一比较
var githubAccessLevels = map[string]int{
	"admin":    50,
	"maintain": 40,
	"push":     30,
	"triage":   20,
	"pull":     10,
}

type githubClient struct {
	httpClient *fasthttp.Client
	logger     logger.Logger
}

func newGitHubClient(logger logger.Logger) *githubClient {
	return &githubClient{
		httpClient: &fasthttp.Client{
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			MaxConnsPerHost:     100,
		},
		logger: logger,
	}
}

func (c *githubClient) doGet(requestURL, token string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(requestURL)
	req.Header.SetMethod("GET")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)

	if err := c.httpClient.Do(req, resp); err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %v", err)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, resp.StatusCode(), nil
}

// GetRepositoryPermissions 查询调用者在GitHub仓库中的权限快照
func (c *githubClient) GetRepositoryPermissions(repoURL, branch string) (*model.WorkspacePermissions, error) {
	auth := config.GetAuthInfo().GitHub
	baseURL := auth.BaseURL
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}

	projectPath, err := projectPathOf(repoURL)
	if err != nil {
		return nil, err
	}

	repoBody, status, err := c.doGet(fmt.Sprintf("%s/repos/%s", baseURL, projectPath), auth.Token)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to get github repository %s, status: %d, response: %s",
			projectPath, status, string(repoBody))
	}

	role, level := githubHighestRole(repoBody)
	isAdmin := gjson.GetBytes(repoBody, "permissions.admin").Bool()

	userName, err := c.authenticatedUser(baseURL, auth.Token)
	if err != nil {
		c.logger.Warn("failed to resolve github authenticated user: %v", err)
	}

	permissions := &model.WorkspacePermissions{
		AccessLevel:       level,
		AccessLevelName:   role,
		AuthenticatedUser: userName,
	}

	protected, blocked, err := c.branchProtection(baseURL, projectPath, branch, auth.Token)
	if err != nil {
		return nil, err
	}
	permissions.TargetBranchProtected = protected

	// 管理员可绕过保护规则直接推送
	permissions.CanPushToProtected = !protected || isAdmin || !blocked
	if protected && !permissions.CanPushToProtected {
		permissions.Warning = fmt.Sprintf(
			"branch %s is protected and requires reviews or restricts pushes, open a pull request instead of pushing directly",
			branch)
	}

	return permissions, nil
}

func (c *githubClient) authenticatedUser(baseURL, token string) (string, error) {
	body, status, err := c.doGet(baseURL+"/user", token)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("failed to get github user, status: %d", status)
	}
	return gjson.GetBytes(body, "login").String(), nil
}

// branchProtection 查询分支保护，返回是否受保护以及保护规则是否阻断直推
// 404表示分支未启用保护
func (c *githubClient) branchProtection(baseURL, projectPath, branch, token string) (protected, blocked bool, err error) {
	protectionURL := fmt.Sprintf("%s/repos/%s/branches/%s/protection", baseURL, projectPath, branch)
	body, status, err := c.doGet(protectionURL, token)
	if err != nil {
		return false, false, err
	}
	switch status {
	case fasthttp.StatusNotFound:
		return false, false, nil
	case fasthttp.StatusForbidden:
		// token无权读保护规则，按受保护且阻断处理
		return true, true, nil
	case fasthttp.StatusOK:
	default:
		return false, false, fmt.Errorf("failed to get github branch protection for %s, status: %d, response: %s",
			branch, status, string(body))
	}

	requiresReviews := gjson.GetBytes(body, "required_pull_request_reviews").Exists()
	restrictsPushes := gjson.GetBytes(body, "restrictions").Exists()
	return true, requiresReviews || restrictsPushes, nil
}

// githubHighestRole 从permissions映射取最高角色
func githubHighestRole(repoBody []byte) (string, int) {
	role, level := "none", 0
	gjson.GetBytes(repoBody, "permissions").ForEach(func(key, value gjson.Result) bool {
		if !value.Bool() {
			return true
		}
		name := strings.ToLower(key.String())
		if l, ok := githubAccessLevels[name]; ok && l > level {
			role, level = name, l
		}
		return true
	})
	return role, level
}
