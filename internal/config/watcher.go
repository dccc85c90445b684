package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	appcfg "github.com/monomadic/cryptotrader-ticker/config"
)

// WatchConfig 配置文件监听参数
type WatchConfig struct {
	Enabled  bool          // 是否启用
	Debounce time.Duration // 最后一次写入后静默多久才重新加载
}

// DefaultWatchConfig 默认监听配置
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:  true,
		Debounce: 500 * time.Millisecond,
	}
}

// ChangeHandler 收到重新加载后的配置；加载失败时 err 非空。
type ChangeHandler func(next appcfg.AppConfig, err error)

// Watcher 监听配置文件变化。交易对在进程生命周期内固定，
// 变化只会被报告，由调用方决定如何提示。
type Watcher struct {
	config     WatchConfig
	configPath string
	watcher    *fsnotify.Watcher
	handler    ChangeHandler
	logger     *zap.Logger

	mu         sync.Mutex
	lastReload time.Time
}

// NewWatcher 创建监听器
func NewWatcher(configPath string, cfg WatchConfig, handler ChangeHandler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		config:     cfg,
		configPath: abs,
		watcher:    watcher,
		handler:    handler,
		logger:     logger,
	}, nil
}

// Run 阻塞监听直到 ctx 结束，退出时关闭 fsnotify。
// 监听的是所在目录：编辑器通常以 rename 方式保存文件。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if !w.config.Enabled {
		<-ctx.Done()
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	w.logger.Debug("watching config file", zap.String("path", w.configPath))

	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// 连续写入合并为一次重新加载
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.config.Debounce)
			settle = timer.C
		case <-settle:
			settle = nil
			w.handleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleChange() {
	w.mu.Lock()
	w.lastReload = time.Now()
	w.mu.Unlock()

	// 与启动时一致，密钥可以来自环境变量
	next, err := appcfg.LoadWithEnvOverrides(w.configPath)
	if w.handler != nil {
		w.handler(next, err)
	}
}

// LastReload 最后一次处理变化的时间
func (w *Watcher) LastReload() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}

// RestartRequired 判断新配置是否改变了跟踪范围。
func RestartRequired(prev, next appcfg.AppConfig, exchange string) bool {
	if prev.Source != next.Source || prev.Quote != next.Quote {
		return true
	}
	a, errA := prev.Instruments(exchange)
	b, errB := next.Instruments(exchange)
	if (errA == nil) != (errB == nil) {
		return true
	}
	return !reflect.DeepEqual(a, b)
}
