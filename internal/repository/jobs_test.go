package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/database"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/utils"
	"workspace-orchestrator/test/mocks"
)

func newTestJobRepo(t *testing.T) repository.JobRepository {
	t.Helper()

	dbConfig := &config.DatabaseConfig{
		DataDir:         t.TempDir(),
		DatabaseName:    "test_jobs.db",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
	manager := database.NewSQLiteManager(dbConfig, &mocks.MockLogger{})
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() { _ = manager.Close() })

	return repository.NewJobRepository(manager, &mocks.MockLogger{})
}

func testJob(jobType model.JobType) *model.Job {
	id, _ := utils.GenerateUUID()
	return &model.Job{
		ID:          id,
		Type:        jobType,
		Status:      model.JobStatusPending,
		WorkspaceID: "ws-1",
		Params:      `{"workspaceId":"ws-1","instruction":"test"}`,
		CreatedAt:   time.Now(),
	}
}

func TestJobCreateAndGet(t *testing.T) {
	repo := newTestJobRepo(t)

	job := testJob(model.JobTypeAsk)
	require.NoError(t, repo.CreateJob(job))

	loaded, err := repo.GetJobByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, model.JobStatusPending, loaded.Status)
	assert.Nil(t, loaded.StartedAt)
	assert.Nil(t, loaded.CompletedAt)

	_, err = repo.GetJobByID("missing")
	assert.True(t, errs.IsNotFound(err))
}

func TestClaimOldestPending(t *testing.T) {
	repo := newTestJobRepo(t)

	t.Run("空队列返回nil", func(t *testing.T) {
		job, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("按创建时间顺序取出", func(t *testing.T) {
		first := testJob(model.JobTypeAsk)
		first.CreatedAt = time.Now().Add(-2 * time.Minute)
		require.NoError(t, repo.CreateJob(first))

		second := testJob(model.JobTypeEdit)
		second.CreatedAt = time.Now().Add(-1 * time.Minute)
		require.NoError(t, repo.CreateJob(second))

		claimed, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, first.ID, claimed.ID)
		assert.Equal(t, model.JobStatusProcessing, claimed.Status)
		require.NotNil(t, claimed.StartedAt)

		// 已取出的不会被再次取出
		next, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, second.ID, next.ID)

		empty, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		assert.Nil(t, empty)
	})
}

func TestJobStatusTransitions(t *testing.T) {
	repo := newTestJobRepo(t)

	t.Run("完成任务记录结果和时间戳", func(t *testing.T) {
		job := testJob(model.JobTypeAsk)
		require.NoError(t, repo.CreateJob(job))

		claimed, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		require.NotNil(t, claimed)

		require.NoError(t, repo.CompleteJob(claimed.ID, `{"output":"done"}`))

		finished, err := repo.GetJobByID(claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, finished.Status)
		assert.Equal(t, `{"output":"done"}`, finished.Result)
		require.NotNil(t, finished.StartedAt)
		require.NotNil(t, finished.CompletedAt)
		assert.True(t, !finished.CompletedAt.Before(*finished.StartedAt))
		assert.True(t, !finished.StartedAt.Before(finished.CreatedAt))
	})

	t.Run("失败任务记录错误", func(t *testing.T) {
		job := testJob(model.JobTypeEdit)
		require.NoError(t, repo.CreateJob(job))

		claimed, err := repo.ClaimOldestPending()
		require.NoError(t, err)
		require.NotNil(t, claimed)

		require.NoError(t, repo.FailJob(claimed.ID, "clone failed"))

		failed, err := repo.GetJobByID(claimed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		assert.Equal(t, "clone failed", failed.Error)
	})

	t.Run("pending任务不能直接到终态", func(t *testing.T) {
		job := testJob(model.JobTypeAsk)
		require.NoError(t, repo.CreateJob(job))

		// 未经claim的任务仍是pending，完成操作不生效
		err := repo.CompleteJob(job.ID, "result")
		assert.Error(t, err)

		loaded, err := repo.GetJobByID(job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, loaded.Status)
	})
}

func TestListJobs(t *testing.T) {
	repo := newTestJobRepo(t)

	for i := 0; i < 3; i++ {
		job := testJob(model.JobTypeAsk)
		job.CreatedAt = time.Now().Add(time.Duration(-i) * time.Minute)
		require.NoError(t, repo.CreateJob(job))
	}
	claimed, err := repo.ClaimOldestPending()
	require.NoError(t, err)
	require.NotNil(t, claimed)

	t.Run("不过滤返回全部", func(t *testing.T) {
		jobs, err := repo.ListJobs(nil, 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 3)
	})

	t.Run("按状态过滤", func(t *testing.T) {
		pending, err := repo.ListJobs([]model.JobStatus{model.JobStatusPending}, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		processing, err := repo.ListJobs([]model.JobStatus{model.JobStatusProcessing}, 10)
		require.NoError(t, err)
		assert.Len(t, processing, 1)
	})

	t.Run("limit截断", func(t *testing.T) {
		jobs, err := repo.ListJobs(nil, 1)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestDeleteJob(t *testing.T) {
	repo := newTestJobRepo(t)

	job := testJob(model.JobTypeAsk)
	require.NoError(t, repo.CreateJob(job))
	require.NoError(t, repo.DeleteJob(job.ID))

	_, err := repo.GetJobByID(job.ID)
	assert.True(t, errs.IsNotFound(err))

	err = repo.DeleteJob(job.ID)
	assert.True(t, errs.IsNotFound(err))
}

func TestCountByStatus(t *testing.T) {
	repo := newTestJobRepo(t)

	count, err := repo.CountByStatus(model.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, repo.CreateJob(testJob(model.JobTypeAsk)))
	require.NoError(t, repo.CreateJob(testJob(model.JobTypeEdit)))

	count, err = repo.CountByStatus(model.JobStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
