package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"workspace-orchestrator/internal/agent"
)

type MockAgentRunner struct {
	mock.Mock
}

func (m *MockAgentRunner) Run(ctx context.Context, request agent.RunRequest) (*agent.RunResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) != nil {
		return args.Get(0).(*agent.RunResult), args.Error(1)
	}
	return nil, args.Error(1)
}
