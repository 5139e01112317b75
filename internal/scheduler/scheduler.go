package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mac_health/internal/collector"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule период пересчета статуса по умолчанию
const DefaultSchedule = "@every 3s"

// StatusEvent смена сводного статуса системы
type StatusEvent struct {
	ID       string                    `json:"id"`
	Status   collector.SystemStatus    `json:"status"`
	Previous collector.SystemStatus    `json:"previous,omitempty"`
	At       time.Time                 `json:"at"`
	Snapshot *collector.HealthSnapshot `json:"snapshot,omitempty"`
}

// Source источник снимков здоровья системы
type Source interface {
	Collect(ctx context.Context) (*collector.HealthSnapshot, error)
}

// Watcher периодически вычисляет статус и уведомляет подписчиков о его смене
type Watcher struct {
	source   Source
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu          sync.RWMutex
	last        *StatusEvent
	subscribers map[int]chan StatusEvent
	nextSubID   int

	ctx    context.Context
	cancel context.CancelFunc
}

// New создает наблюдатель статуса
func New(source Source, schedule string, timeout time.Duration, logger *zap.Logger) *Watcher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cronLogger := &zapCronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		source:      source,
		schedule:    schedule,
		timeout:     timeout,
		logger:      logger,
		cron:        cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		subscribers: make(map[int]chan StatusEvent),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start запускает наблюдатель; первый расчет выполняется сразу
func (w *Watcher) Start() error {
	w.logger.Info("Starting status watcher", zap.String("schedule", w.schedule))

	id, err := w.cron.AddFunc(w.schedule, w.tick)
	if err != nil {
		return fmt.Errorf("invalid status schedule %q: %w", w.schedule, err)
	}
	w.entryID = id

	w.tick()
	w.cron.Start()

	w.logger.Info("Status watcher started successfully")
	return nil
}

// Stop останавливает наблюдатель и закрывает каналы подписчиков
func (w *Watcher) Stop() {
	w.logger.Info("Stopping status watcher")
	w.cancel()

	stopCtx := w.cron.Stop()
	<-stopCtx.Done()

	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subscribers {
		close(ch)
		delete(w.subscribers, id)
	}
}

// Subscribe регистрирует подписчика. Медленный подписчик теряет события,
// а не блокирует наблюдатель. Возвращаемая функция отменяет подписку.
func (w *Watcher) Subscribe(buffer int) (<-chan StatusEvent, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan StatusEvent, buffer)

	w.mu.Lock()
	id := w.nextSubID
	w.nextSubID++
	w.subscribers[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subscribers[id]; ok {
				close(sub)
				delete(w.subscribers, id)
			}
		})
	}
}

// Current возвращает последнее событие, если статус уже вычислялся
func (w *Watcher) Current() (StatusEvent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return StatusEvent{}, false
	}
	return *w.last, true
}

// Evaluate собирает метрики и публикует событие, если статус изменился.
// При неизменном статусе возвращает nil.
func (w *Watcher) Evaluate(ctx context.Context) (*StatusEvent, error) {
	snapshot, err := w.source.Collect(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var previous collector.SystemStatus
	if w.last != nil {
		previous = w.last.Status
		if previous == snapshot.Status {
			w.last.Snapshot = snapshot
			return nil, nil
		}
	}

	event := StatusEvent{
		ID:       uuid.NewString(),
		Status:   snapshot.Status,
		Previous: previous,
		At:       snapshot.Timestamp,
		Snapshot: snapshot,
	}
	w.last = &event

	for id, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
			w.logger.Warn("Status subscriber is not keeping up, event dropped",
				zap.Int("subscriber", id),
				zap.String("event_id", event.ID))
		}
	}

	w.logger.Info("System status changed",
		zap.String("event_id", event.ID),
		zap.String("previous", string(previous)),
		zap.String("status", string(event.Status)))

	return &event, nil
}

// GetStats возвращает состояние наблюдателя
func (w *Watcher) GetStats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := map[string]interface{}{
		"schedule":    w.schedule,
		"running":     w.ctx.Err() == nil,
		"subscribers": len(w.subscribers),
	}
	if w.last != nil {
		stats["status"] = w.last.Status
		stats["changed_at"] = w.last.At
	}
	if entry := w.cron.Entry(w.entryID); entry.Valid() {
		stats["next_run"] = entry.Next
	}
	return stats
}

// tick один плановый расчет статуса
func (w *Watcher) tick() {
	if w.ctx.Err() != nil {
		return
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	if _, err := w.Evaluate(ctx); err != nil {
		w.logger.Error("Failed to evaluate system status", zap.Error(err))
		return
	}

	w.logger.Debug("System status evaluated", zap.Duration("duration", time.Since(start)))
}

// zapCronLogger адаптер cron.Logger поверх zap
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l *zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
