// internal/handler/workspace.go - 工作区HTTP处理器
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/service"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/pkg/logger"
	"workspace-orchestrator/pkg/response"
)

// WorkspaceHandler 工作区HTTP处理器
type WorkspaceHandler struct {
	workspaceService service.WorkspaceServiceInterface
	logger           logger.Logger
}

// NewWorkspaceHandler 创建工作区处理器
func NewWorkspaceHandler(workspaceService service.WorkspaceServiceInterface, logger logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaceService: workspaceService,
		logger:           logger,
	}
}

// CloneWorkspace 克隆仓库创建工作区
func (h *WorkspaceHandler) CloneWorkspace(c *gin.Context) {
	var req service.CloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid clone request format: %v", err)
		fail(c, errs.NewInvalidParamErr("body", err.Error()))
		return
	}

	workspace, err := h.workspaceService.CloneWorkspace(c, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, workspace)
}

// ListWorkspaces 列出所有工作区
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaceService.ListWorkspaces()
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, workspaces)
}

// GetWorkspace 获取单个工作区
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsValidUUID(id) {
		fail(c, errs.NewInvalidParamErr("id", id))
		return
	}

	workspace, err := h.workspaceService.GetWorkspace(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, workspace)
}

// DeleteWorkspace 删除工作区，removeFiles=true时连同目录删除
func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	id := c.Param("id")
	removeFiles, _ := strconv.ParseBool(c.DefaultQuery("removeFiles", "false"))

	if err := h.workspaceService.DeleteWorkspace(id, removeFiles); err != nil {
		fail(c, err)
		return
	}
	response.Ok(c)
}

// ListBranches 列出工作区分支
func (h *WorkspaceHandler) ListBranches(c *gin.Context) {
	branches, err := h.workspaceService.ListBranches(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, branches)
}

// WorkspaceStatus 获取工作区未提交变更
func (h *WorkspaceHandler) WorkspaceStatus(c *gin.Context) {
	status, err := h.workspaceService.WorkspaceStatus(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, status)
}

// GetGitConfig 读取工作区git身份
func (h *WorkspaceHandler) GetGitConfig(c *gin.Context) {
	options, err := h.workspaceService.GetGitConfig(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, gin.H{
		"userEmail":  options.UserEmail,
		"userName":   options.UserName,
		"signingKey": options.SigningKey,
	})
}

type gitConfigRequest struct {
	UserEmail  string `json:"userEmail"`
	UserName   string `json:"userName"`
	SigningKey string `json:"signingKey"`
}

// SetGitConfig 设置工作区git身份
func (h *WorkspaceHandler) SetGitConfig(c *gin.Context) {
	var req gitConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.NewInvalidParamErr("body", err.Error()))
		return
	}
	if req.UserEmail == "" && req.UserName == "" && req.SigningKey == "" {
		fail(c, errs.NewMissingParamErr("userEmail or userName or signingKey"))
		return
	}

	err := h.workspaceService.SetGitConfig(c, c.Param("id"), gitcmd.ConfigOptions{
		UserEmail:  req.UserEmail,
		UserName:   req.UserName,
		SigningKey: req.SigningKey,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Ok(c)
}

// UnsetGitConfig 清除工作区git身份
func (h *WorkspaceHandler) UnsetGitConfig(c *gin.Context) {
	keys := c.QueryArray("key")
	if err := h.workspaceService.UnsetGitConfig(c, c.Param("id"), keys); err != nil {
		fail(c, err)
		return
	}
	response.Ok(c)
}

// RefreshPermissions 重新查询并缓存权限快照
func (h *WorkspaceHandler) RefreshPermissions(c *gin.Context) {
	result, err := h.workspaceService.RefreshPermissions(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, result)
}

// GetPermissions 获取缓存的权限快照
func (h *WorkspaceHandler) GetPermissions(c *gin.Context) {
	result, err := h.workspaceService.GetPermissions(c, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, result)
}

// AnalyzeWorkspace 获取工作区目录分析
func (h *WorkspaceHandler) AnalyzeWorkspace(c *gin.Context) {
	analysis, err := h.workspaceService.AnalyzeWorkspace(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, analysis)
}

// RegistryStats 注册表汇总统计
func (h *WorkspaceHandler) RegistryStats(c *gin.Context) {
	stats, err := h.workspaceService.RegistryStats()
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, stats)
}
