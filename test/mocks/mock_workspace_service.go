package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"workspace-orchestrator/internal/gitcmd"
	"workspace-orchestrator/internal/model"
	"workspace-orchestrator/internal/permission"
	"workspace-orchestrator/internal/repository"
	"workspace-orchestrator/internal/service"
)

type MockWorkspaceService struct {
	mock.Mock
}

func (m *MockWorkspaceService) CloneWorkspace(ctx context.Context, request service.CloneRequest) (*model.Workspace, error) {
	args := m.Called(ctx, request)
	if args.Get(0) != nil {
		return args.Get(0).(*model.Workspace), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) GetWorkspace(id string) (*model.Workspace, error) {
	args := m.Called(id)
	if args.Get(0) != nil {
		return args.Get(0).(*model.Workspace), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) ListWorkspaces() ([]*model.Workspace, error) {
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).([]*model.Workspace), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) DeleteWorkspace(id string, removeFiles bool) error {
	args := m.Called(id, removeFiles)
	return args.Error(0)
}

func (m *MockWorkspaceService) ListBranches(ctx context.Context, id string) (*service.BranchListResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*service.BranchListResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) WorkspaceStatus(ctx context.Context, id string) (*gitcmd.StatusResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*gitcmd.StatusResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) GetGitConfig(ctx context.Context, id string) (*gitcmd.ConfigOptions, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*gitcmd.ConfigOptions), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) SetGitConfig(ctx context.Context, id string, options gitcmd.ConfigOptions) error {
	args := m.Called(ctx, id, options)
	return args.Error(0)
}

func (m *MockWorkspaceService) UnsetGitConfig(ctx context.Context, id string, keys []string) error {
	args := m.Called(ctx, id, keys)
	return args.Error(0)
}

func (m *MockWorkspaceService) RefreshPermissions(ctx context.Context, id string) (*permission.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*permission.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) GetPermissions(ctx context.Context, id string) (*permission.Result, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*permission.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) AnalyzeWorkspace(id string) (*model.DirectoryAnalysis, error) {
	args := m.Called(id)
	if args.Get(0) != nil {
		return args.Get(0).(*model.DirectoryAnalysis), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceService) RegistryStats() (*repository.RegistryStats, error) {
	args := m.Called()
	if args.Get(0) != nil {
		return args.Get(0).(*repository.RegistryStats), args.Error(1)
	}
	return nil, args.Error(1)
}
