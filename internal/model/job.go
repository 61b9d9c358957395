package model

import "time"

// JobStatus 任务状态，只能单向前进：pending -> processing -> completed/failed
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal 判断任务是否已到达终态
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobType 任务类型
type JobType string

const (
	JobTypeAsk  JobType = "ask"
	JobTypeEdit JobType = "edit"
)

// Job 异步任务数据模型
type Job struct {
	ID          string     `json:"id" db:"id"`
	Type        JobType    `json:"type" db:"type"`
	Status      JobStatus  `json:"status" db:"status"`
	WorkspaceID string     `json:"workspaceId" db:"workspace_id"`
	Params      string     `json:"params,omitempty" db:"params"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	Result      string     `json:"result,omitempty" db:"result"`
	Error       string     `json:"error,omitempty" db:"error"`
}

// JobParams 任务操作参数
type JobParams struct {
	WorkspaceID  string `json:"workspaceId"`
	Instruction  string `json:"instruction"`
	Context      string `json:"context,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty"`
	Push         bool   `json:"push,omitempty"`
}
