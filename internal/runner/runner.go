package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"mac_health/internal/errs"

	"go.uber.org/zap"
)

// Result содержит захваченный вывод внешней утилиты
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success сообщает, завершилась ли утилита с кодом 0
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner запускает внешние утилиты ОС
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner запускает утилиты через os/exec
type ExecRunner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New создает ExecRunner; timeout <= 0 отключает ограничение времени
func New(timeout time.Duration, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{
		timeout: timeout,
		logger:  logger,
	}
}

// Run выполняет утилиту синхронно без stdin.
// Ненулевой код выхода не является ошибкой, решение принимает вызывающий.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	r.logger.Debug("Command finished",
		zap.String("command", name),
		zap.Strings("args", args),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))

	result := &Result{
		Stdout: strings.ToValidUTF8(stdout.String(), "�"),
		Stderr: strings.ToValidUTF8(stderr.String(), "�"),
	}

	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, errs.Wrap(errs.Cancelled, "run", ctxErr, fmt.Sprintf("%s did not finish", name))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return nil, errs.Wrap(errs.SpawnFailed, "run", err, fmt.Sprintf("Failed to run %s", name))
}
