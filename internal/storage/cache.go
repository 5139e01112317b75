package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mac_health/internal/errs"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// CacheFileName имя файла записи кеша
	CacheFileName = "storage-categories.json"
	// DefaultFreshness возраст, после которого запись считается устаревшей
	DefaultFreshness = 5 * time.Minute

	recomputeKey = "storage-categories"
)

// Record запись кеша на диске
type Record struct {
	Categories Categories `json:"categories"`
	Timestamp  int64      `json:"timestamp"`
}

// DefaultPath возвращает <cache-dir>/<app-id>/storage-categories.json
func DefaultPath(appID string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache dir: %w", err)
	}
	return filepath.Join(dir, appID, CacheFileName), nil
}

// Cache кеш категорий хранилища по схеме stale-while-revalidate.
// Чтение никогда не ждет сканирования; фоновые пересчеты дедуплицируются.
type Cache struct {
	fs        afero.Fs
	path      string
	freshness time.Duration
	scanner   Scanner
	logger    *zap.Logger
	now       func() time.Time

	group  singleflight.Group
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Option настраивает Cache
type Option func(*Cache)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache создает кеш категорий
func NewCache(fs afero.Fs, path string, freshness time.Duration, scanner Scanner, logger *zap.Logger, opts ...Option) *Cache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fs:        fs,
		path:      path,
		freshness: freshness,
		scanner:   scanner,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает категории без ожидания сканирования:
// нет записи - пустой набор и фоновый расчет;
// свежая запись - она же;
// устаревшая запись - она же и фоновый пересчет.
func (c *Cache) Get(ctx context.Context) (*Categories, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := c.Read()
	if err != nil {
		c.logger.Debug("Storage cache miss", zap.String("path", c.path), zap.Error(err))
		c.revalidate()
		return Empty(), nil
	}

	age := c.age(record)
	if age < c.freshness {
		return &record.Categories, nil
	}

	c.logger.Debug("Storage cache is stale, revalidating",
		zap.Duration("age", age),
		zap.Duration("freshness", c.freshness))
	c.revalidate()
	return &record.Categories, nil
}

// Refresh пересчитывает категории синхронно, сохраняет и возвращает их.
// Если фоновый пересчет уже идет, вызов присоединяется к нему.
// Пересчет живет на контексте кеша: отмена ctx прекращает только ожидание.
func (c *Cache) Refresh(ctx context.Context) (*Categories, error) {
	results := make(chan singleflight.Result, 1)

	c.wg.Add(1)
	ch := c.group.DoChan(recomputeKey, func() (interface{}, error) {
		return c.recompute(c.ctx)
	})
	go func() {
		defer c.wg.Done()
		results <- <-ch
	}()

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Categories), nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.Cancelled, "refresh", ctx.Err(), "storage refresh cancelled")
	}
}

// Wait ждет завершения всех фоновых пересчетов
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close отменяет фоновые пересчеты и ждет их завершения
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Read читает запись кеша с диска
func (c *Cache) Read() (*Record, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode storage cache: %w", err)
	}
	if record.Categories.Categories == nil {
		record.Categories.Categories = []Category{}
	}
	return &record, nil
}

// Write сохраняет запись целиком через временный файл и rename,
// поэтому читатель никогда не видит частично записанную запись
func (c *Cache) Write(categories *Categories) (*Record, error) {
	record := &Record{
		Categories: *categories,
		Timestamp:  c.now().Unix(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode storage cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := afero.TempFile(c.fs, dir, ".storage-categories-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		c.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		c.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := c.fs.Rename(tmpName, c.path); err != nil {
		c.fs.Remove(tmpName)
		return nil, fmt.Errorf("failed to replace cache file: %w", err)
	}

	return record, nil
}

// revalidate запускает фоновый пересчет, если он еще не идет
func (c *Cache) revalidate() {
	c.wg.Add(1)
	ch := c.group.DoChan(recomputeKey, func() (interface{}, error) {
		return c.recompute(c.ctx)
	})

	go func() {
		defer c.wg.Done()

		res := <-ch
		if errs.IsKind(res.Err, errs.Cancelled) {
			c.logger.Debug("Background storage scan cancelled, keeping previous record")
			return
		}
		if res.Err != nil {
			c.logger.Warn("Background storage scan failed", zap.Error(res.Err))
			return
		}
		c.logger.Debug("Background storage scan finished", zap.Bool("shared", res.Shared))
	}()
}

// recompute сканирует категории и сохраняет запись
func (c *Cache) recompute(ctx context.Context) (*Categories, error) {
	start := time.Now()
	categories := c.scanner.Scan(ctx)

	// Прерванное сканирование дает нули, такую запись сохранять нельзя
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.Cancelled, "recompute", err, "storage scan cancelled")
	}

	if _, err := c.Write(categories); err != nil {
		return nil, err
	}

	c.logger.Info("Storage categories scanned",
		zap.Int("categories", len(categories.Categories)),
		zap.Uint64("total_bytes", categories.TotalCategorized),
		zap.Duration("duration", time.Since(start)))

	return categories, nil
}

// age возраст записи; метка из будущего дает 0
func (c *Cache) age(record *Record) time.Duration {
	age := c.now().Sub(time.Unix(record.Timestamp, 0))
	if age < 0 {
		return 0
	}
	return age
}
