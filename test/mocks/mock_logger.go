package mocks

import (
	"fmt"

	"github.com/stretchr/testify/mock"
)

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	fmt.Printf("[MOCK DEBUG] %s\n", fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...any) {
	fmt.Printf("[MOCK INFO] %s\n", fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warn(format string, args ...any) {
	fmt.Printf("[MOCK WARN] %s\n", fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...any) {
	fmt.Printf("[MOCK ERROR] %s\n", fmt.Sprintf(format, args...))
}

func (m *MockLogger) Fatal(format string, args ...any) {
	fmt.Printf("[MOCK FATAL] %s\n", fmt.Sprintf(format, args...))
}
