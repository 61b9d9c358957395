// jobqueue.go - 任务队列服务
// 提交、查询、删除异步任务，并承载worker的串行执行逻辑。
// 不变式：整个进程同一时刻最多一个任务处于 processing 状态
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"workspace-orchestrator/internal/agent"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/pkg/logger"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 500
)

// JobOutcome 任务执行结果，序列化后写入任务记录
type JobOutcome struct {
	Output    string `json:"output,omitempty"`
	Committed bool   `json:"committed,omitempty"`
	Pushed    bool   `json:"pushed,omitempty"`
	Branch    string `json:"branch,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// JobQueueInterface 任务队列服务接口
type JobQueueInterface interface {
	SubmitJob(jobType model.JobType, params model.JobParams) (*model.Job, error)
	GetJob(id string) (*model.Job, error)
	ListJobs(statuses []model.JobStatus, limit int) ([]*model.Job, error)
	DeleteFinishedJob(id string) error
	HasPendingJobs() (bool, error)
	IsProcessing() bool
	ProcessNext(ctx context.Context) (bool, error)
}

// JobQueue 任务队列服务实现
type JobQueue struct {
	jobs      repository.JobRepository
	registry  repository.WorkspaceRegistry
	git       gitcmd.GitEngine
	runner    agent.RunnerInterface
	workspace WorkspaceServiceInterface
	logger    logger.Logger

	mutex     sync.Mutex
	isRunning bool
}

// NewJobQueue 创建任务队列服务
func NewJobQueue(
	jobs repository.JobRepository,
	registry repository.WorkspaceRegistry,
	git gitcmd.GitEngine,
	runner agent.RunnerInterface,
	workspace WorkspaceServiceInterface,
	logger logger.Logger,
) *JobQueue {
	return &JobQueue{
		jobs:      jobs,
		registry:  registry,
		git:       git,
		runner:    runner,
		workspace: workspace,
		logger:    logger,
	}
}

// SubmitJob 创建新任务，校验目标工作区存在后入队
func (q *JobQueue) SubmitJob(jobType model.JobType, params model.JobParams) (*model.Job, error) {
	if jobType != model.JobTypeAsk && jobType != model.JobTypeEdit {
		return nil, errs.NewInvalidParamErr("type", jobType)
	}
	if params.WorkspaceID == "" {
		return nil, errs.NewMissingParamErr("workspaceId")
	}
	if params.Instruction == "" {
		return nil, errs.NewMissingParamErr("instruction")
	}
	if _, err := q.registry.Load(params.WorkspaceID); err != nil {
		return nil, err
	}

	paramsData, err := json.Marshal(params)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to encode job params")
	}

	id, err := utils.GenerateUUID()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to generate job id")
	}

	job := &model.Job{
		ID:          id,
		Type:        jobType,
		Status:      model.JobStatusPending,
		WorkspaceID: params.WorkspaceID,
		Params:      string(paramsData),
		CreatedAt:   time.Now(),
	}

	if err := q.jobs.CreateJob(job); err != nil {
		return nil, err
	}

	q.logger.Info("submitted %s job %s for workspace %s", jobType, job.ID, params.WorkspaceID)
	return job, nil
}

// GetJob 根据ID获取任务
func (q *JobQueue) GetJob(id string) (*model.Job, error) {
	return q.jobs.GetJobByID(id)
}

// ListJobs 列出任务，条数有上限
func (q *JobQueue) ListJobs(statuses []model.JobStatus, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	if limit > maxJobListLimit {
		limit = maxJobListLimit
	}
	return q.jobs.ListJobs(statuses, limit)
}

// DeleteFinishedJob 删除已终态的任务
// 删除 pending/processing 任务会破坏队列语义，返回 conflict
func (q *JobQueue) DeleteFinishedJob(id string) error {
	job, err := q.jobs.GetJobByID(id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return errs.New(errs.KindConflict, "job %s is %s, only completed or failed jobs can be deleted", id, job.Status)
	}
	return q.jobs.DeleteJob(id)
}

// HasPendingJobs 队列里是否还有待处理任务
func (q *JobQueue) HasPendingJobs() (bool, error) {
	count, err := q.jobs.CountByStatus(model.JobStatusPending)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsProcessing 当前是否有任务正在执行
func (q *JobQueue) IsProcessing() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.isRunning
}

// ProcessNext 取出最早的待处理任务并执行到终态
// 返回是否实际执行了任务。同一时刻只允许一个执行者进入，
// 单个任务的失败写入任务记录，不向上抛出
func (q *JobQueue) ProcessNext(ctx context.Context) (bool, error) {
	q.mutex.Lock()
	if q.isRunning {
		q.mutex.Unlock()
		return false, nil
	}
	q.isRunning = true
	q.mutex.Unlock()

	defer func() {
		q.mutex.Lock()
		q.isRunning = false
		q.mutex.Unlock()
	}()

	job, err := q.jobs.ClaimOldestPending()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	q.logger.Info("processing %s job %s for workspace %s", job.Type, job.ID, job.WorkspaceID)
	outcome, runErr := q.executeJob(ctx, job)

	if runErr != nil {
		q.logger.Error("job %s failed: %v", job.ID, runErr)
		if ferr := q.jobs.FailJob(job.ID, runErr.Error()); ferr != nil {
			q.logger.Error("failed to record failure of job %s: %v", job.ID, ferr)
		}
		return true, nil
	}

	resultData, merr := json.Marshal(outcome)
	if merr != nil {
		resultData = []byte(fmt.Sprintf(`{"output":%q}`, outcome.Output))
	}
	if cerr := q.jobs.CompleteJob(job.ID, string(resultData)); cerr != nil {
		q.logger.Error("failed to record completion of job %s: %v", job.ID, cerr)
	}
	return true, nil
}

// executeJob 执行单个任务的业务流程
func (q *JobQueue) executeJob(ctx context.Context, job *model.Job) (*JobOutcome, error) {
	var params model.JobParams
	if err := json.Unmarshal([]byte(job.Params), &params); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "failed to decode params of job %s", job.ID)
	}

	workspace, err := q.registry.Load(job.WorkspaceID)
	if err != nil {
		return nil, err
	}

	branch := params.TargetBranch
	if branch == "" {
		branch = workspace.TargetBranch
	}

	// 先校验远程引用，过期的跟踪引用在这里被修复
	if branch != "" {
		if _, rerr := q.git.EnsureFreshRemoteRef(ctx, workspace.Path, branch); rerr != nil {
			return nil, rerr
		}
	}

	switch job.Type {
	case model.JobTypeAsk:
		return q.executeAsk(ctx, workspace, params)
	case model.JobTypeEdit:
		return q.executeEdit(ctx, workspace, params, branch)
	default:
		return nil, errs.NewInvalidParamErr("type", job.Type)
	}
}

// executeAsk 只读问答任务：调用协作进程，不产生提交
func (q *JobQueue) executeAsk(ctx context.Context, workspace *model.Workspace, params model.JobParams) (*JobOutcome, error) {
	result, err := q.runner.Run(ctx, agent.RunRequest{
		WorkspacePath: workspace.Path,
		Instruction:   params.Instruction,
		Context:       params.Context,
	})
	if err != nil {
		return nil, err
	}
	return &JobOutcome{Output: result.Output}, nil
}

// executeEdit 编辑任务：检出分支、运行协作进程、提交，按需推送
func (q *JobQueue) executeEdit(ctx context.Context, workspace *model.Workspace, params model.JobParams, branch string) (*JobOutcome, error) {
	outcome := &JobOutcome{Branch: branch}

	if branch != "" {
		current, err := q.git.CurrentBranch(ctx, workspace.Path)
		if err != nil && !errors.Is(err, gitcmd.ErrDetachedHead) {
			return nil, err
		}
		if current != branch {
			if err := q.git.Checkout(ctx, workspace.Path, branch, false); err != nil {
				// 分支不存在时基于当前HEAD新建
				if cerr := q.git.Checkout(ctx, workspace.Path, branch, true); cerr != nil {
					return nil, err
				}
			}
		}
	}

	result, err := q.runner.Run(ctx, agent.RunRequest{
		WorkspacePath: workspace.Path,
		Instruction:   params.Instruction,
		Context:       params.Context,
	})
	if err != nil {
		return nil, err
	}
	outcome.Output = result.Output

	committed, err := q.git.CommitAll(ctx, workspace.Path, commitMessage(params.Instruction))
	if err != nil {
		return nil, err
	}
	outcome.Committed = committed

	if committed {
		q.refreshWorkspaceMetadata(ctx, workspace)
	}

	if params.Push && committed {
		if warning := q.pushBlockedWarning(ctx, workspace, branch); warning != "" {
			outcome.Warning = warning
		} else {
			// 推送前再校验一次远程引用，避免推到过期的跟踪引用上
			if branch != "" {
				if _, rerr := q.git.EnsureFreshRemoteRef(ctx, workspace.Path, branch); rerr != nil {
					return nil, rerr
				}
			}
			if err := q.git.Push(ctx, workspace.Path, branch); err != nil {
				return nil, err
			}
			outcome.Pushed = true
			// 推送可能改变远程分支保护关系，快照刷新失败不影响任务结果
			if _, perr := q.workspace.RefreshPermissions(ctx, workspace.ID); perr != nil {
				q.logger.Warn("failed to refresh permissions for workspace %s after push: %v", workspace.ID, perr)
			}
		}
	}

	return outcome, nil
}

// commitMessage 截取指令开头作为提交信息，在rune边界截断避免切坏多字节字符
func commitMessage(instruction string) string {
	const maxLen = 72
	if len(instruction) <= maxLen {
		return instruction
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(instruction[cut]) {
		cut--
	}
	return instruction[:cut]
}

// pushBlockedWarning 推送前检查权限快照，保护规则阻断直推时返回提示
// 没有快照或凭证未配置时不拦截，交给git本身判定
func (q *JobQueue) pushBlockedWarning(ctx context.Context, workspace *model.Workspace, branch string) string {
	result, err := q.workspace.GetPermissions(ctx, workspace.ID)
	if err != nil || result == nil || result.Permissions == nil {
		return ""
	}
	if branch == workspace.TargetBranch && result.Permissions.TargetBranchProtected && !result.Permissions.CanPushToProtected {
		if result.Permissions.Warning != "" {
			return result.Permissions.Warning
		}
		return fmt.Sprintf("branch %s is protected, push skipped, use a merge request instead", branch)
	}
	return ""
}

// refreshWorkspaceMetadata 提交后回写最新的提交哈希和目录大小
func (q *JobQueue) refreshWorkspaceMetadata(ctx context.Context, workspace *model.Workspace) {
	update := repository.WorkspaceUpdate{}
	if commit, err := q.git.CurrentCommit(ctx, workspace.Path); err == nil {
		update.CommitHash = &commit
	}
	if size, err := utils.DirSize(workspace.Path); err == nil {
		update.Size = &size
	}
	if err := q.registry.Update(workspace.ID, update); err != nil {
		q.logger.Warn("failed to refresh metadata of workspace %s: %v", workspace.ID, err)
	}
}
