package config

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce — пауза после последнего события перед перечитыванием.
const DefaultDebounce = 250 * time.Millisecond

const (
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// WatcherConfig — параметры Watcher.
type WatcherConfig struct {
	Path     string
	Debounce time.Duration

	// OnChange вызывается с новым содержимым файла. Неизменённый
	// (по хешу) или невалидный файл не передаётся.
	OnChange func(*FileConfig)

	Logger *slog.Logger
}

// Watcher следит за YAML-файлом настроек через fsnotify.
//
// Наблюдается каталог, а не файл: редакторы часто сохраняют через
// rename, и наблюдение за самим файлом теряется.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*FileConfig)
	logger   *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	lastHash [32]byte
}

// NewWatcher создаёт Watcher. initial — уже применённое содержимое (может быть nil).
func NewWatcher(cfg WatcherConfig, initial *FileConfig) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Watcher{
		path:     cfg.Path,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if initial != nil {
		w.lastHash = initial.Hash()
	}
	return w
}

// Watch блокируется до отмены ctx. Сломавшийся fsnotify-наблюдатель
// пересоздаётся с экспоненциальной задержкой.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	backoff := restartBackoffBase

	defer w.stopTimer()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := w.watchOnce(ctx, dir); err != nil {
			w.logger.Warn("config watcher stopped, restarting",
				"path", w.path,
				"backoff", backoff,
				"error", err,
			)
		}
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, restartBackoffMax)
	}
}

// watchOnce работает, пока жив один fsnotify.Watcher.
func (w *Watcher) watchOnce(ctx context.Context, dir string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return err
	}
	w.logger.Debug("config watcher started", "path", w.path)

	file := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return fsnotify.ErrClosed
			}
			if !strings.EqualFold(filepath.Base(ev.Name), file) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return fsnotify.ErrClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("config watch overflow, forcing reload", "path", w.path)
				w.schedule()
				continue
			}
			w.logger.Warn("config watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	fc, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := fc.Hash() == w.lastHash
	if !unchanged {
		w.lastHash = fc.Hash()
	}
	w.mu.Unlock()

	if unchanged {
		w.logger.Debug("config unchanged, skipping", "path", w.path)
		return
	}

	w.logger.Info("config file changed", "path", w.path)
	if w.onChange != nil {
		w.onChange(fc)
	}
}
