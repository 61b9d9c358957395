package service_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"workspace-orchestrator/internal/agent"
	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/database"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/permission"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/service"
	"workspace-orchestrator/test/mocks"
)

type queueFixture struct {
	queue     *service.JobQueue
	registry  repository.WorkspaceRegistry
	git       *mocks.MockGitEngine
	runner    *mocks.MockAgentRunner
	workspace *mocks.MockWorkspaceService
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()
	logger := &mocks.MockLogger{}

	dbConfig := &config.DatabaseConfig{
		DataDir:         t.TempDir(),
		DatabaseName:    "test_queue.db",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
	manager := database.NewSQLiteManager(dbConfig, logger)
	require.NoError(t, manager.Initialize())
	t.Cleanup(func() { _ = manager.Close() })

	registry := repository.NewWorkspaceRegistry(filepath.Join(t.TempDir(), "index.json"), logger)
	require.NoError(t, registry.Initialize())

	git := &mocks.MockGitEngine{}
	runner := &mocks.MockAgentRunner{}
	workspace := &mocks.MockWorkspaceService{}

	queue := service.NewJobQueue(repository.NewJobRepository(manager, logger), registry, git, runner, workspace, logger)
	return &queueFixture{
		queue:     queue,
		registry:  registry,
		git:       git,
		runner:    runner,
		workspace: workspace,
	}
}

func (f *queueFixture) saveWorkspace(t *testing.T, id string) *model.Workspace {
	t.Helper()
	now := time.Now()
	ws := &model.Workspace{
		ID:           id,
		Path:         "/tmp/checkouts/" + id,
		RepoURL:      "https://gitlab.com/group/project.git",
		TargetBranch: "main",
		CreatedAt:    now,
		LastAccessed: now,
		Metadata:     model.WorkspaceMetadata{IsActive: true},
	}
	require.NoError(t, f.registry.Save(ws))
	return ws
}

func TestSubmitJob(t *testing.T) {
	f := newQueueFixture(t)
	f.saveWorkspace(t, "ws-1")

	t.Run("合法提交", func(t *testing.T) {
		job, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{
			WorkspaceID: "ws-1",
			Instruction: "explain the build",
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.NotEmpty(t, job.ID)
	})

	t.Run("未知任务类型", func(t *testing.T) {
		_, err := f.queue.SubmitJob("compile", model.JobParams{WorkspaceID: "ws-1", Instruction: "x"})
		assert.True(t, errs.Is(err, errs.KindInvalidInput))
	})

	t.Run("缺少指令", func(t *testing.T) {
		_, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{WorkspaceID: "ws-1"})
		assert.True(t, errs.Is(err, errs.KindInvalidInput))
	})

	t.Run("工作区不存在", func(t *testing.T) {
		_, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{WorkspaceID: "missing", Instruction: "x"})
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestDeleteFinishedJob(t *testing.T) {
	f := newQueueFixture(t)
	ws := f.saveWorkspace(t, "ws-1")

	job, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{
		WorkspaceID: ws.ID,
		Instruction: "explain",
	})
	require.NoError(t, err)

	t.Run("未终态任务拒绝删除", func(t *testing.T) {
		err := f.queue.DeleteFinishedJob(job.ID)
		assert.True(t, errs.IsConflict(err))
	})

	t.Run("终态任务可删除", func(t *testing.T) {
		f.git.On("EnsureFreshRemoteRef", mock.Anything, ws.Path, "main").
			Return(&gitcmd.RefSyncResult{Branch: "main", RemoteExists: true}, nil)
		f.runner.On("Run", mock.Anything, mock.Anything).
			Return(&agent.RunResult{Output: "answer"}, nil)

		processed, err := f.queue.ProcessNext(context.Background())
		require.NoError(t, err)
		require.True(t, processed)

		require.NoError(t, f.queue.DeleteFinishedJob(job.ID))
		_, err = f.queue.GetJob(job.ID)
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestProcessNextAskJob(t *testing.T) {
	f := newQueueFixture(t)
	ws := f.saveWorkspace(t, "ws-1")

	job, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{
		WorkspaceID: ws.ID,
		Instruction: "summarize the module layout",
	})
	require.NoError(t, err)

	f.git.On("EnsureFreshRemoteRef", mock.Anything, ws.Path, "main").
		Return(&gitcmd.RefSyncResult{Branch: "main", RemoteExists: true}, nil)
	f.runner.On("Run", mock.Anything, agent.RunRequest{
		WorkspacePath: ws.Path,
		Instruction:   "summarize the module layout",
	}).Return(&agent.RunResult{Output: "three packages"}, nil)

	processed, err := f.queue.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	finished, err := f.queue.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, finished.Status)

	var outcome service.JobOutcome
	require.NoError(t, json.Unmarshal([]byte(finished.Result), &outcome))
	assert.Equal(t, "three packages", outcome.Output)
	assert.False(t, outcome.Committed)

	// 时间戳单调：created <= started <= completed
	require.NotNil(t, finished.StartedAt)
	require.NotNil(t, finished.CompletedAt)
	assert.True(t, !finished.StartedAt.Before(finished.CreatedAt))
	assert.True(t, !finished.CompletedAt.Before(*finished.StartedAt))
}

func TestProcessNextEditJob(t *testing.T) {
	f := newQueueFixture(t)
	ws := f.saveWorkspace(t, "ws-1")

	_, err := f.queue.SubmitJob(model.JobTypeEdit, model.JobParams{
		WorkspaceID: ws.ID,
		Instruction: "rename the config package",
		Push:        true,
	})
	require.NoError(t, err)

	f.git.On("EnsureFreshRemoteRef", mock.Anything, ws.Path, "main").
		Return(&gitcmd.RefSyncResult{Branch: "main", RemoteExists: true}, nil)
	f.git.On("CurrentBranch", mock.Anything, ws.Path).Return("main", nil)
	f.runner.On("Run", mock.Anything, mock.Anything).
		Return(&agent.RunResult{Output: "renamed"}, nil)
	f.git.On("CommitAll", mock.Anything, ws.Path, "rename the config package").Return(true, nil)
	f.git.On("CurrentCommit", mock.Anything, ws.Path).Return("deadbeef", nil)
	f.workspace.On("GetPermissions", mock.Anything, ws.ID).
		Return(&permission.Result{
			Provider: permission.ProviderGitLab,
			Permissions: &model.WorkspacePermissions{
				Provider:           "gitlab",
				CanPushToProtected: true,
			},
		}, nil)
	f.git.On("Push", mock.Anything, ws.Path, "main").Return(nil)
	f.workspace.On("RefreshPermissions", mock.Anything, ws.ID).Return(nil, nil)

	processed, err := f.queue.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	jobs, err := f.queue.ListJobs([]model.JobStatus{model.JobStatusCompleted}, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	var outcome service.JobOutcome
	require.NoError(t, json.Unmarshal([]byte(jobs[0].Result), &outcome))
	assert.True(t, outcome.Committed)
	assert.True(t, outcome.Pushed)
}

func TestCommitMessage(t *testing.T) {
	t.Run("短指令原样保留", func(t *testing.T) {
		assert.Equal(t, "rename the config package", service.CommitMessage("rename the config package"))
	})

	t.Run("超长ASCII指令截断到上限", func(t *testing.T) {
		long := strings.Repeat("a", 100)
		assert.Equal(t, strings.Repeat("a", 72), service.CommitMessage(long))
	})

	t.Run("多字节字符在rune边界截断", func(t *testing.T) {
		// 1字节前缀让72字节上限落在汉字中间
		instruction := "x" + strings.Repeat("重构配置包并更新所有引用", 5)
		message := service.CommitMessage(instruction)

		assert.True(t, utf8.ValidString(message))
		assert.LessOrEqual(t, len(message), 72)
		assert.Equal(t, instruction[:70], message)
	})

	t.Run("恰好等于上限不截断", func(t *testing.T) {
		exact := strings.Repeat("b", 72)
		assert.Equal(t, exact, service.CommitMessage(exact))
	})
}

func TestProcessNextFailureIsolated(t *testing.T) {
	f := newQueueFixture(t)
	ws := f.saveWorkspace(t, "ws-1")

	job, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{
		WorkspaceID: ws.ID,
		Instruction: "explain",
	})
	require.NoError(t, err)

	f.git.On("EnsureFreshRemoteRef", mock.Anything, ws.Path, "main").
		Return(nil, errs.New(errs.KindRemoteSync, "remote unreachable"))

	// 任务失败写入记录，ProcessNext本身不报错
	processed, err := f.queue.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	failed, err := f.queue.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "remote unreachable")
}

func TestSingleProcessingInvariant(t *testing.T) {
	f := newQueueFixture(t)
	ws := f.saveWorkspace(t, "ws-1")

	for i := 0; i < 4; i++ {
		_, err := f.queue.SubmitJob(model.JobTypeAsk, model.JobParams{
			WorkspaceID: ws.ID,
			Instruction: "explain",
		})
		require.NoError(t, err)
	}

	f.git.On("EnsureFreshRemoteRef", mock.Anything, ws.Path, "main").
		Return(&gitcmd.RefSyncResult{Branch: "main", RemoteExists: true}, nil)
	// 执行中检查处理状态，任何时刻最多一个processing任务
	f.runner.On("Run", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			count, cerr := f.queue.JobsRepository().CountByStatus(model.JobStatusProcessing)
			assert.NoError(t, cerr)
			assert.LessOrEqual(t, count, 1)
		}).
		Return(&agent.RunResult{Output: "ok"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				processed, perr := f.queue.ProcessNext(context.Background())
				assert.NoError(t, perr)
				if !processed {
					pending, herr := f.queue.HasPendingJobs()
					assert.NoError(t, herr)
					if !pending {
						return
					}
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()

	completed, err := f.queue.ListJobs([]model.JobStatus{model.JobStatusCompleted}, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 4)
	assert.False(t, f.queue.IsProcessing())
}

func TestListJobsLimitCap(t *testing.T) {
	f := newQueueFixture(t)
	f.saveWorkspace(t, "ws-1")

	jobs, err := f.queue.ListJobs(nil, service.MaxJobListLimit+100)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
