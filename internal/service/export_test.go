package service

import "workspace-orchestrator/internal/repository"

// 仅测试使用：暴露包内未导出标识符给外部测试包
const MaxJobListLimit = maxJobListLimit

var CommitMessage = commitMessage

func (q *JobQueue) JobsRepository() repository.JobRepository {
	return q.jobs
}
