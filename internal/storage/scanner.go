package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"mac_health/internal/parser"
	"mac_health/internal/runner"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Category размер одной категории хранилища
type Category struct {
	Name  string `json:"name"`
	Bytes uint64 `json:"bytes"`
	Color string `json:"color"`
}

// Categories упорядоченный набор категорий и их сумма
type Categories struct {
	Categories       []Category `json:"categories"`
	TotalCategorized uint64     `json:"total_categorized"`
}

// Empty возвращает пустой набор категорий
func Empty() *Categories {
	return &Categories{Categories: []Category{}}
}

// CategoryDir каталог, размер которого считается категорией
type CategoryDir struct {
	Name  string
	Path  string
	Color string
}

// DefaultCategoryDirs стандартные категории относительно домашнего каталога
func DefaultCategoryDirs(home string) []CategoryDir {
	return []CategoryDir{
		{Name: "Applications", Path: "/Applications", Color: "#3b82f6"},
		{Name: "Documents", Path: filepath.Join(home, "Documents"), Color: "#22c55e"},
		{Name: "Downloads", Path: filepath.Join(home, "Downloads"), Color: "#14b8a6"},
		{Name: "Pictures", Path: filepath.Join(home, "Pictures"), Color: "#f59e0b"},
		{Name: "Music", Path: filepath.Join(home, "Music"), Color: "#ec4899"},
		{Name: "Movies", Path: filepath.Join(home, "Movies"), Color: "#8b5cf6"},
		{Name: "Desktop", Path: filepath.Join(home, "Desktop"), Color: "#6366f1"},
	}
}

// Scanner считает размеры категорий
type Scanner interface {
	Scan(ctx context.Context) *Categories
}

// DuScanner считает размеры через `du -sk`, по одной задаче на каталог
type DuScanner struct {
	fs     afero.Fs
	runner runner.Runner
	dirs   []CategoryDir
	logger *zap.Logger
}

// NewDuScanner создает сканер категорий
func NewDuScanner(fs afero.Fs, r runner.Runner, dirs []CategoryDir, logger *zap.Logger) *DuScanner {
	return &DuScanner{
		fs:     fs,
		runner: r,
		dirs:   dirs,
		logger: logger,
	}
}

// Scan запускает сканирование всех каталогов параллельно и ждет их.
// Упавшая или запаниковавшая задача дает размер 0.
func (s *DuScanner) Scan(ctx context.Context) *Categories {
	categories := make([]Category, len(s.dirs))

	wg := conc.NewWaitGroup()
	for i, dir := range s.dirs {
		i, dir := i, dir
		categories[i] = Category{Name: dir.Name, Color: dir.Color}
		wg.Go(func() {
			var catcher panics.Catcher
			catcher.Try(func() {
				categories[i].Bytes = s.dirSize(ctx, dir.Path)
			})
			if recovered := catcher.Recovered(); recovered != nil {
				s.logger.Warn("Directory scan panicked",
					zap.String("category", dir.Name),
					zap.String("panic", fmt.Sprint(recovered.Value)))
				categories[i].Bytes = 0
			}
		})
	}
	wg.Wait()

	result := &Categories{Categories: categories}
	for _, c := range categories {
		result.TotalCategorized += c.Bytes
	}
	return result
}

// dirSize возвращает размер каталога в байтах; 0 если каталога нет или du не смог
func (s *DuScanner) dirSize(ctx context.Context, path string) uint64 {
	if exists, err := afero.DirExists(s.fs, path); err != nil || !exists {
		return 0
	}

	res, err := s.runner.Run(ctx, "du", "-sk", path)
	if err != nil {
		s.logger.Debug("du failed", zap.String("path", path), zap.Error(err))
		return 0
	}
	if !res.Success() {
		s.logger.Debug("du exited with error",
			zap.String("path", path),
			zap.Int("exit_code", res.ExitCode))
		return 0
	}
	return parser.ParseDuKilobytes(res.Stdout)
}
