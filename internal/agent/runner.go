// runner.go - 外部AI编辑协作进程执行器
// 编辑指令交给外部命令行工具在工作区目录内执行，本进程只负责
// 启动、限时、收集输出，不理解编辑内容本身
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"workspace-orchestrator/internal/config"
	"workspace-orchestrator/internal/errs"
	"workspace-orchestrator/pkg/logger"
)

// RunRequest 一次协作进程调用
type RunRequest struct {
	WorkspacePath string
	Instruction   string
	Context       string
}

// RunResult 协作进程输出
type RunResult struct {
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// RunnerInterface 协作进程执行器接口
type RunnerInterface interface {
	Run(ctx context.Context, request RunRequest) (*RunResult, error)
}

// Runner 基于os/exec的实现
type Runner struct {
	command string
	args    []string
	timeout time.Duration
	logger  logger.Logger
}

// NewRunner 创建协作进程执行器
func NewRunner(workerConfig config.ConfigWorker, logger logger.Logger) *Runner {
	timeout := time.Duration(workerConfig.AgentTimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Runner{
		command: workerConfig.AgentCommand,
		args:    workerConfig.AgentArgs,
		timeout: timeout,
		logger:  logger,
	}
}

// Run 在工作区目录内执行协作进程
// 指令通过参数传入，标准输出作为结果返回，非零退出视为失败
func (r *Runner) Run(ctx context.Context, request RunRequest) (*RunResult, error) {
	if r.command == "" {
		return nil, errs.New(errs.KindMissingConfig, "no agent command configured, set worker.agentCommand in the config file")
	}
	if request.Instruction == "" {
		return nil, errs.NewMissingParamErr("instruction")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append([]string{}, r.args...)
	args = append(args, request.Instruction)
	if request.Context != "" {
		args = append(args, "--context", request.Context)
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	cmd.Dir = request.WorkspacePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("running agent %s in %s", r.command, request.WorkspacePath)
	startTime := time.Now()
	err := cmd.Run()
	duration := time.Since(startTime)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, errs.New(errs.KindInternal, "agent timed out after %v in %s", r.timeout, request.WorkspacePath)
	}
	if err != nil {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = err.Error()
		}
		return nil, errs.Wrap(errs.KindInternal, fmt.Errorf("%s", diag), "agent exited abnormally in %s", request.WorkspacePath)
	}

	r.logger.Info("agent finished in %s, took %v", request.WorkspacePath, duration)
	return &RunResult{
		Output:   strings.TrimSpace(stdout.String()),
		Duration: duration,
	}, nil
}
