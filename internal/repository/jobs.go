// repository/jobs.go - 任务数据访问层
package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"workspace-orchestrator/internal/database"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/pkg/logger"
)

const jobColumns = "id, type, status, workspace_id, params, created_at, started_at, completed_at, result, error"

// JobRepository 任务数据访问层
type JobRepository interface {
	// CreateJob 创建任务
	CreateJob(job *model.Job) error
	// GetJobByID 根据ID获取任务
	GetJobByID(id string) (*model.Job, error)
	// ListJobs 列出任务，可按状态过滤，按创建时间倒序
	ListJobs(statuses []model.JobStatus, limit int) ([]*model.Job, error)
	// ClaimOldestPending 取出最早的待处理任务并置为 processing，队列为空时返回 (nil, nil)
	ClaimOldestPending() (*model.Job, error)
	// CompleteJob 将任务置为 completed 并记录结果
	CompleteJob(id string, result string) error
	// FailJob 将任务置为 failed 并记录错误
	FailJob(id string, errMsg string) error
	// DeleteJob 删除任务记录
	DeleteJob(id string) error
	// CountByStatus 统计指定状态的任务数
	CountByStatus(status model.JobStatus) (int, error)
}

// jobRepository 任务Repository实现
type jobRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewJobRepository 创建任务Repository
func NewJobRepository(db database.DatabaseManager, logger logger.Logger) JobRepository {
	return &jobRepository{
		db:     db,
		logger: logger,
	}
}

// CreateJob 创建任务
func (r *jobRepository) CreateJob(job *model.Job) error {
	query := `
		INSERT INTO jobs (id, type, status, workspace_id, params, created_at, result, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.GetDB().Exec(query,
		job.ID,
		job.Type,
		job.Status,
		job.WorkspaceID,
		job.Params,
		job.CreatedAt,
		job.Result,
		job.Error,
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "[DB] failed to create job")
	}

	r.logger.Debug("job %s created: type %s, workspace %s", job.ID, job.Type, job.WorkspaceID)
	return nil
}

// scanJob 扫描单行任务记录
func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var job model.Job
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.WorkspaceID,
		&job.Params,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.Result,
		&job.Error,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

// GetJobByID 根据ID获取任务
func (r *jobRepository) GetJobByID(id string) (*model.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = ?", jobColumns)

	row := r.db.GetDB().QueryRow(query, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.NewRecordNotFoundErr("job", id)
		}
		return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to get job by ID")
	}

	return job, nil
}

// ListJobs 列出任务，可按状态过滤，按创建时间倒序
func (r *jobRepository) ListJobs(statuses []model.JobStatus, limit int) ([]*model.Job, error) {
	var query string
	var args []any

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query = fmt.Sprintf("SELECT %s FROM jobs WHERE status IN (%s) ORDER BY created_at DESC",
			jobColumns, strings.Join(placeholders, ", "))
	} else {
		query = fmt.Sprintf("SELECT %s FROM jobs ORDER BY created_at DESC", jobColumns)
	}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.GetDB().Query(query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to list jobs")
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to scan jobs table row")
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// ClaimOldestPending 取出最早的待处理任务并置为 processing
// 单工作协程是唯一调用方，状态条件仍然在UPDATE中复查以保证单向迁移
func (r *jobRepository) ClaimOldestPending() (*model.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT 1", jobColumns)

	row := r.db.GetDB().QueryRow(query, model.JobStatusPending)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to query pending job")
	}

	now := time.Now()
	result, err := r.db.GetDB().Exec(
		"UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		model.JobStatusProcessing, now, job.ID, model.JobStatusPending,
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to claim job")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "[DB] failed to get rows affected")
	}
	if rowsAffected == 0 {
		// Claimed elsewhere between select and update; treat as empty queue
		return nil, nil
	}

	job.Status = model.JobStatusProcessing
	job.StartedAt = &now
	r.logger.Debug("job %s claimed for processing", job.ID)
	return job, nil
}

// finishJob 将处理中的任务迁移到终态
func (r *jobRepository) finishJob(id string, status model.JobStatus, resultText, errMsg string) error {
	now := time.Now()
	result, err := r.db.GetDB().Exec(
		"UPDATE jobs SET status = ?, completed_at = ?, result = ?, error = ? WHERE id = ? AND status = ?",
		status, now, resultText, errMsg, id, model.JobStatusProcessing,
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "[DB] failed to finish job")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "[DB] failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errs.NewRecordNotFoundErr("processing job", id)
	}

	r.logger.Debug("job %s finished with status %s", id, status)
	return nil
}

// CompleteJob 将任务置为 completed 并记录结果
func (r *jobRepository) CompleteJob(id string, result string) error {
	return r.finishJob(id, model.JobStatusCompleted, result, "")
}

// FailJob 将任务置为 failed 并记录错误
func (r *jobRepository) FailJob(id string, errMsg string) error {
	return r.finishJob(id, model.JobStatusFailed, "", errMsg)
}

// DeleteJob 删除任务记录
func (r *jobRepository) DeleteJob(id string) error {
	result, err := r.db.GetDB().Exec("DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "[DB] failed to delete job")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.KindInternal, err, "[DB] failed to get rows affected")
	}
	if rowsAffected == 0 {
		return errs.NewRecordNotFoundErr("job", id)
	}

	return nil
}

// CountByStatus 统计指定状态的任务数
func (r *jobRepository) CountByStatus(status model.JobStatus) (int, error) {
	var count int
	err := r.db.GetDB().QueryRow("SELECT COUNT(*) FROM jobs WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, errs.Wrap(errs.KindInternal, err, "[DB] failed to count jobs by status")
	}
	return count, nil
}
