package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monomadic/cryptotrader-ticker/config"
	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/alert"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/logger"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/monitor"
	iconfig "github.com/monomadic/cryptotrader-ticker/internal/config"
	"github.com/monomadic/cryptotrader-ticker/internal/engine"
	"github.com/monomadic/cryptotrader-ticker/internal/instruments"
	"github.com/monomadic/cryptotrader-ticker/internal/render"
	"github.com/monomadic/cryptotrader-ticker/internal/seed"
)

// ExchangeBinance 目前唯一支持的交易所
const ExchangeBinance = "binance"

// Options 运行参数
type Options struct {
	Exchange string
	Stdout   io.Writer
	Stderr   io.Writer
	NoColor  bool
	// Logger 非空时替代 cfg.Log 构建的日志器
	Logger *zap.Logger
	// OnReady 在全部交易对 seed 成功、开始监听前调用
	OnReady func()
}

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg  *config.AppConfig
	opts Options

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 交易所网关
	restClient *gateway.BinanceRESTClient
	marketData *instrumentedMarket
	dialer     *gateway.StreamDialer

	// 核心服务
	source  instruments.Source
	engine  *engine.Engine
	watcher *iconfig.Watcher

	// HTTP服务器
	metricsServer    *http.Server
	metricsComponent *httpServerComponent

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例
func New(cfg config.AppConfig, opts Options) (*Container, error) {
	if opts.Exchange == "" {
		opts.Exchange = ExchangeBinance
	}
	if opts.Exchange != ExchangeBinance {
		return nil, fmt.Errorf("unsupported exchange %q", opts.Exchange)
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Container{
		cfg:       &cfg,
		opts:      opts,
		lifecycle: NewLifecycleManager(),
	}, nil
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildGateway(); err != nil {
		return fmt.Errorf("build gateway failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Debug("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	if c.opts.Logger != nil {
		c.logger = logger.Wrap(c.opts.Logger)
	} else {
		var err error
		c.logger, err = logger.New(c.cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger failed: %w", err)
		}
	}

	c.logger = c.logger.WithFields(map[string]interface{}{
		"exchange": c.opts.Exchange,
		"source":   c.cfg.Source,
	})
	c.monitor = monitor.New(monitor.DefaultConfig())

	var channels []alert.Channel
	for _, name := range c.cfg.Alert.Channels {
		switch name {
		case config.AlertChannelLog:
			channels = append(channels, alert.NewLogChannel(c.logger.Logger))
		case config.AlertChannelConsole:
			channels = append(channels, alert.NewConsoleChannel(c.opts.Stderr))
		default:
			return fmt.Errorf("unknown alert channel %q", name)
		}
	}
	c.alerts = alert.NewManager(channels, c.cfg.Alert.Throttle)
	return nil
}

func (c *Container) buildGateway() error {
	gw := c.cfg.Gateway
	c.restClient = &gateway.BinanceRESTClient{
		BaseURL:      gw.RestURL,
		APIKey:       gw.APIKey,
		Secret:       gw.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      gateway.NewTokenBucketLimiter(gw.RestRate, gw.RestBurst),
	}
	c.marketData = &instrumentedMarket{
		client:  c.restClient,
		logger:  c.logger,
		monitor: c.monitor,
	}
	c.dialer = gateway.NewStreamDialer(gw.WSEndpoint)
	return nil
}

func (c *Container) buildCoreServices() error {
	var account instruments.Account
	if c.cfg.Gateway.APIKey != "" && c.cfg.Gateway.APISecret != "" {
		account = c.marketData
	}
	src, err := instruments.NewSource(*c.cfg, c.opts.Exchange, account, c.marketData, c.logger.Logger)
	if err != nil {
		return err
	}
	c.source = src

	// 只有账户自己的成交能推出 entry price 与持仓，公开成交不行
	var history seed.HistoryFunc
	if c.cfg.Engine.SeedFromHistory {
		if account != nil {
			history = c.marketData.MyTrades
		} else {
			c.logger.Warn("seed_from_history needs api credentials, falling back to snapshot prices")
		}
	}
	seeder := seed.New(c.marketData, history, c.cfg.Engine.HistoryLimit, c.logger.Logger)

	overflow, err := engine.ParseOverflowPolicy(c.cfg.Engine.Overflow)
	if err != nil {
		return err
	}
	screen := render.NewScreen(c.opts.Stdout)
	if c.opts.NoColor {
		screen.Color = false
	}

	c.engine, err = engine.New(engine.Config{
		QueueSize:       c.cfg.Engine.QueueSize,
		Overflow:        overflow,
		ShutdownTimeout: c.cfg.Engine.ShutdownTimeout,
	}, engine.Components{
		Seeder:     seeder,
		Subscriber: c.dialer,
		Observer:   &streamObserver{logger: c.logger, monitor: c.monitor, alerts: c.alerts},
		Renderer:   screen,
		Recorder:   c.monitor,
		Logger:     c.logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("create engine failed: %w", err)
	}

	if c.cfg.Path != "" {
		c.watcher, err = iconfig.NewWatcher(c.cfg.Path, iconfig.DefaultWatchConfig(), c.onConfigChange, c.logger.Logger)
		if err != nil {
			// 监听失败不影响行情
			c.logger.Warn("config watcher disabled", zap.Error(err))
			c.watcher = nil
		}
	}
	return nil
}

func (c *Container) onConfigChange(next config.AppConfig, err error) {
	if err != nil {
		c.logger.Warn("config file changed but could not be loaded", zap.String("path", c.cfg.Path), zap.Error(err))
		return
	}
	if iconfig.RestartRequired(*c.cfg, next, c.opts.Exchange) {
		_ = c.alerts.Warn("config file changed: restart required to track the new instruments", map[string]interface{}{
			"path": c.cfg.Path,
		})
		return
	}
	c.logger.Info("config file changed", zap.String("path", c.cfg.Path))
}

func (c *Container) registerLifecycleComponents() {
	if c.monitor != nil && c.cfg.Metrics.Addr != "" {
		c.metricsComponent = &httpServerComponent{
			name:    "metrics_server",
			handler: c.httpHandler(),
			addr:    c.cfg.Metrics.Addr,
			logger:  c.logger,
			server:  &c.metricsServer,
		}
		c.lifecycle.Register(c.metricsComponent)
	}
}

// Run 启动组件、seed 交易对并阻塞直到 ctx 结束。
// seed 阶段的错误是致命的，直接返回。
func (c *Container) Run(ctx context.Context) error {
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	defer c.Stop()

	insts, err := c.source.Instruments(ctx)
	if err != nil {
		return fmt.Errorf("resolve instruments: %w", err)
	}
	if err := c.engine.Seed(ctx, insts); err != nil {
		return err
	}
	if c.opts.OnReady != nil {
		c.opts.OnReady()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.engine.Run(gctx)
	})
	if c.watcher != nil {
		g.Go(func() error {
			if err := c.watcher.Run(gctx); err != nil {
				c.logger.Warn("config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Stop 停止生命周期组件并刷新日志
func (c *Container) Stop() error {
	if err := c.lifecycle.StopAll(); err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
		return err
	}
	if c.logger != nil {
		c.logger.Close()
	}
	return nil
}

// HealthCheck 生命周期组件正常且引擎处于 LISTENING 时返回 nil。
func (c *Container) HealthCheck() error {
	if err := c.lifecycle.CheckHealth(); err != nil {
		return err
	}
	if c.engine == nil {
		return errors.New("engine not built")
	}
	if st := c.engine.State(); st != engine.StateListening {
		return fmt.Errorf("engine %s", st)
	}
	return nil
}

// httpHandler 指标服务的路由：/metrics 与 /healthz。
func (c *Container) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.monitor.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := c.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

// Engine 返回聚合引擎（测试与诊断用）
func (c *Container) Engine() *engine.Engine {
	return c.engine
}

// Monitor 返回指标收集器
func (c *Container) Monitor() *monitor.Monitor {
	return c.monitor
}

// MetricsAddr 指标服务实际监听地址，未启用时为空
func (c *Container) MetricsAddr() string {
	if c.metricsComponent == nil {
		return ""
	}
	return c.metricsComponent.Addr()
}
