// gitlab.go - GitLab权限查询客户端
package permission

import (
	"fmt"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"
)

// GitLab数字访问级别
const (
	gitlabAccessGuest      = 10
	gitlabAccessReporter   = 20
	gitlabAccessDeveloper  = 30
	gitlabAccessMaintainer = 40
	gitlabAccessOwner      = 50
)

var gitlabAccessLevelNames = map[int64]string{
	gitlabAccessGuest:      "Guest",
	gitlabAccessReporter:   "Reporter",
	gitlabAccessDeveloper:  "Developer",
	gitlabAccessMaintainer: "Maintainer",
	gitlabAccessOwner:      "Owner",
}

type gitlabClient struct {
	httpClient *fasthttp.Client
	logger     logger.Logger
}

func newGitLabClient(logger logger.Logger) *gitlabClient {
	return &gitlabClient{
		httpClient: &fasthttp.Client{
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			MaxConnsPerHost:     100,
		},
		logger: logger,
	}
}

// doGet 执行带bearer token的GET请求并返回响应体
func (c *gitlabClient) doGet(requestURL, token string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(requestURL)
	req.Header.SetMethod("GET")
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	if err := c.httpClient.Do(req, resp); err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %v", err)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, resp.StatusCode(), nil
}

// GetRepositoryPermissions 查询调用者在GitLab项目中的权限快照
func (c *gitlabClient) GetRepositoryPermissions(repoURL, branch string) (*model.WorkspacePermissions, error) {
	auth := config.GetAuthInfo().GitLab
	baseURL := auth.BaseURL
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}

	projectPath, err := projectPathOf(repoURL)
	if err != nil {
		return nil, err
	}
	encodedPath := url.PathEscape(projectPath)

	// 项目详情，permissions字段带项目级和组级访问级别
	projectURL := fmt.Sprintf("%s/api/v4/projects/%s", baseURL, encodedPath)
	body, status, err := c.doGet(projectURL, auth.Token)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("failed to get gitlab project %s, status: %d, response: %s",
			projectPath, status, string(body))
	}

	accessLevel := gjson.GetBytes(body, "permissions.project_access.access_level").Int()
	if groupLevel := gjson.GetBytes(body, "permissions.group_access.access_level").Int(); groupLevel > accessLevel {
		accessLevel = groupLevel
	}

	userName, err := c.authenticatedUser(baseURL, auth.Token)
	if err != nil {
		c.logger.Warn("failed to resolve gitlab authenticated user: %v", err)
	}

	permissions := &model.WorkspacePermissions{
		AccessLevel:       int(accessLevel),
		AccessLevelName:   gitlabAccessName(accessLevel),
		AuthenticatedUser: userName,
	}

	protected, pushAllowed, err := c.branchProtection(baseURL, encodedPath, branch, auth.Token, accessLevel)
	if err != nil {
		return nil, err
	}
	permissions.TargetBranchProtected = protected
	permissions.CanPushToProtected = !protected || pushAllowed

	if protected && !pushAllowed {
		permissions.Warning = fmt.Sprintf(
			"branch %s is protected and your access level (%s) cannot push to it directly, use a merge request instead",
			branch, permissions.AccessLevelName)
	}

	return permissions, nil
}

// authenticatedUser 查询token对应的用户名
func (c *gitlabClient) authenticatedUser(baseURL, token string) (string, error) {
	body, status, err := c.doGet(baseURL+"/api/v4/user", token)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", fmt.Errorf("failed to get gitlab user, status: %d", status)
	}
	return gjson.GetBytes(body, "username").String(), nil
}

// branchProtection 查询分支保护规则并判定调用者能否直接推送
func (c *gitlabClient) branchProtection(baseURL, encodedPath, branch, token string, accessLevel int64) (protected, pushAllowed bool, err error) {
	protectionURL := fmt.Sprintf("%s/api/v4/projects/%s/protected_branches/%s",
		baseURL, encodedPath, url.PathEscape(branch))
	body, status, err := c.doGet(protectionURL, token)
	if err != nil {
		return false, false, err
	}
	if status == fasthttp.StatusNotFound {
		// 分支未受保护
		return false, true, nil
	}
	if status != fasthttp.StatusOK {
		return false, false, fmt.Errorf("failed to get gitlab branch protection for %s, status: %d, response: %s",
			branch, status, string(body))
	}

	// push_access_levels列出允许直推的最低级别，取其中最小值与调用者比较
	minPushLevel := int64(gitlabAccessMaintainer)
	levels := gjson.GetBytes(body, "push_access_levels.#.access_level").Array()
	for i, level := range levels {
		if i == 0 || level.Int() < minPushLevel {
			minPushLevel = level.Int()
		}
	}

	return true, accessLevel >= minPushLevel, nil
}

func gitlabAccessName(level int64) string {
	if name, ok := gitlabAccessLevelNames[level]; ok {
		return name
	}
	return fmt.Sprintf("Level %d", level)
}
