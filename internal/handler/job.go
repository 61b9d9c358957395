// internal/handler/job.go - 任务队列HTTP处理器
package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/service"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/pkg/logger"
	"workspace-orchestrator/pkg/response"
)

// JobHandler 任务队列HTTP处理器
type JobHandler struct {
	jobQueue service.JobQueueInterface
	logger   logger.Logger
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobQueue service.JobQueueInterface, logger logger.Logger) *JobHandler {
	return &JobHandler{
		jobQueue: jobQueue,
		logger:   logger,
	}
}

type submitJobRequest struct {
	Type   string          `json:"type" binding:"required"`
	Params model.JobParams `json:"params" binding:"required"`
}

// SubmitJob 提交新任务
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req submitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid job request format: %v", err)
		fail(c, errs.NewInvalidParamErr("body", err.Error()))
		return
	}

	job, err := h.jobQueue.SubmitJob(model.JobType(req.Type), req.Params)
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, job)
}

// GetJob 根据ID获取任务
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if !utils.IsValidUUID(id) {
		fail(c, errs.NewInvalidParamErr("id", id))
		return
	}

	job, err := h.jobQueue.GetJob(id)
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, job)
}

// ListJobs 列出任务，支持 status=pending,processing 过滤和 limit 截断
func (h *JobHandler) ListJobs(c *gin.Context) {
	var statuses []model.JobStatus
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := model.JobStatus(strings.TrimSpace(s))
			switch status {
			case model.JobStatusPending, model.JobStatusProcessing, model.JobStatusCompleted, model.JobStatusFailed:
				statuses = append(statuses, status)
			default:
				fail(c, errs.NewInvalidParamErr("status", s))
				return
			}
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	jobs, err := h.jobQueue.ListJobs(statuses, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.OkJson(c, jobs)
}

// DeleteJob 删除已终态任务，未终态返回conflict
func (h *JobHandler) DeleteJob(c *gin.Context) {
	if err := h.jobQueue.DeleteFinishedJob(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Ok(c)
}
