package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"workspace-orchestrator/internal/gitcmd"
)

type MockGitEngine struct {
	mock.Mock
}

func (m *MockGitEngine) Clone(ctx context.Context, repoURL, targetPath string, options gitcmd.CloneOptions) error {
	args := m.Called(ctx, repoURL, targetPath, options)
	return args.Error(0)
}

func (m *MockGitEngine) Status(ctx context.Context, repoPath string) (*gitcmd.StatusResult, error) {
	args := m.Called(ctx, repoPath)
	if args.Get(0) != nil {
		return args.Get(0).(*gitcmd.StatusResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGitEngine) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	args := m.Called(ctx, repoPath)
	return args.String(0), args.Error(1)
}

func (m *MockGitEngine) CurrentCommit(ctx context.Context, repoPath string) (string, error) {
	args := m.Called(ctx, repoPath)
	return args.String(0), args.Error(1)
}

func (m *MockGitEngine) ListBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error) {
	args := m.Called(ctx, repoPath, targetBranch)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGitEngine) AllRemoteBranches(ctx context.Context, repoPath, targetBranch string) ([]string, error) {
	args := m.Called(ctx, repoPath, targetBranch)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGitEngine) EnsureFreshRemoteRef(ctx context.Context, repoPath, branch string) (*gitcmd.RefSyncResult, error) {
	args := m.Called(ctx, repoPath, branch)
	if args.Get(0) != nil {
		return args.Get(0).(*gitcmd.RefSyncResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGitEngine) Checkout(ctx context.Context, repoPath, branch string, create bool) error {
	args := m.Called(ctx, repoPath, branch, create)
	return args.Error(0)
}

func (m *MockGitEngine) CommitAll(ctx context.Context, repoPath, message string) (bool, error) {
	args := m.Called(ctx, repoPath, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockGitEngine) Push(ctx context.Context, repoPath, branch string) error {
	args := m.Called(ctx, repoPath, branch)
	return args.Error(0)
}

func (m *MockGitEngine) SetConfig(ctx context.Context, repoPath string, options gitcmd.ConfigOptions) error {
	args := m.Called(ctx, repoPath, options)
	return args.Error(0)
}

func (m *MockGitEngine) GetConfig(ctx context.Context, repoPath string) (*gitcmd.ConfigOptions, error) {
	args := m.Called(ctx, repoPath)
	if args.Get(0) != nil {
		return args.Get(0).(*gitcmd.ConfigOptions), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGitEngine) UnsetConfig(ctx context.Context, repoPath string, keys []string) error {
	args := m.Called(ctx, repoPath, keys)
	return args.Error(0)
}
