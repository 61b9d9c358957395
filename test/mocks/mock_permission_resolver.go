package mocks

import (
	"github.com/stretchr/testify/mock"

	"workspace-orchestrator/internal/permission"
)

type MockPermissionResolver struct {
	mock.Mock
}

func (m *MockPermissionResolver) FetchPermissions(repoURL, branch string) *permission.Result {
	args := m.Called(repoURL, branch)
	return args.Get(0).(*permission.Result)
}
