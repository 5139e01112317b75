package procctl

import (
	"context"
	"errors"
	"math"
	"time"

	"mac_health/internal/errs"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// DefaultSettle пауза между SIGTERM и проверкой, жив ли процесс
const DefaultSettle = 500 * time.Millisecond

const (
	MessageNotFound         = "Process not found"
	MessagePermissionDenied = "Permission denied. Try granting Accessibility access."
	MessageTerminated       = "Process terminated"
	MessageForceKilled      = "Process force killed"
)

// Outcome результат попытки завершить процесс
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Signaler доставляет сигналы процессам
type Signaler interface {
	Signal(pid int, sig unix.Signal) error
}

// UnixSignaler отправляет сигналы через kill(2)
type UnixSignaler struct{}

// Signal отправляет сигнал; сигнал 0 только проверяет существование процесса
func (UnixSignaler) Signal(pid int, sig unix.Signal) error {
	return unix.Kill(pid, sig)
}

// Controller завершает процессы по схеме SIGTERM -> проверка -> SIGKILL
type Controller struct {
	signaler Signaler
	settle   time.Duration
	logger   *zap.Logger
}

// New создает контроллер; nil signaler означает UnixSignaler
func New(signaler Signaler, settle time.Duration, logger *zap.Logger) *Controller {
	if signaler == nil {
		signaler = UnixSignaler{}
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Controller{
		signaler: signaler,
		settle:   settle,
		logger:   logger,
	}
}

// Terminate завершает процесс pid.
// Отсутствие процесса и нехватка прав возвращаются как Outcome, а не как ошибка.
func (c *Controller) Terminate(ctx context.Context, pid uint32) (*Outcome, error) {
	// pid 0 и значения вне int32 kill(2) трактует как группу процессов
	if pid == 0 || pid > math.MaxInt32 {
		return &Outcome{Success: false, Message: MessageNotFound}, nil
	}
	target := int(pid)

	c.logger.Info("Terminating process", zap.Uint32("pid", pid))

	if err := c.signaler.Signal(target, unix.SIGTERM); err != nil {
		switch {
		case errors.Is(err, unix.ESRCH):
			c.logger.Debug("Process not found", zap.Uint32("pid", pid))
			return &Outcome{Success: false, Message: MessageNotFound}, nil
		case errors.Is(err, unix.EPERM):
			c.logger.Warn("Not permitted to signal process", zap.Uint32("pid", pid))
			return &Outcome{Success: false, Message: MessagePermissionDenied}, nil
		default:
			return nil, errs.Wrap(errs.Failed, "terminate", err, "Failed to terminate process")
		}
	}

	timer := time.NewTimer(c.settle)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Cancelled, "terminate", ctx.Err(), "Termination wait cancelled")
	}

	if err := c.signaler.Signal(target, 0); err != nil {
		c.logger.Info("Process terminated", zap.Uint32("pid", pid))
		return &Outcome{Success: true, Message: MessageTerminated}, nil
	}

	if err := c.signaler.Signal(target, unix.SIGKILL); err != nil {
		return nil, errs.Wrap(errs.Failed, "terminate", err, "Failed to kill process")
	}

	c.logger.Info("Process force killed", zap.Uint32("pid", pid))
	return &Outcome{Success: true, Message: MessageForceKilled}, nil
}
