package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/monomadic/cryptotrader-ticker/infrastructure/logger"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// 交易对来源
const (
	SourceConfig   = "config"
	SourceBalances = "balances"
	SourceBTC      = "btc"
)

// 队列溢出策略
const (
	OverflowBlock      = "block"
	OverflowDropOldest = "drop-oldest"
)

// ErrConfigNotFound 所有候选路径都不存在。
var ErrConfigNotFound = errors.New("config file not found")

// ConfigParseError wraps a decode or validation failure for a specific file.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Exchange map[string]map[string]Pair `yaml:"exchange"`
	Source   string                     `yaml:"source"`
	Quote    string                     `yaml:"quote"`
	Gateway  GatewayConfig              `yaml:"gateway"`
	Engine   EngineConfig               `yaml:"engine"`
	Log      logger.Config              `yaml:"log"`
	Metrics  MetricsConfig              `yaml:"metrics"`
	Alert    AlertConfig                `yaml:"alert"`

	// Path 实际加载的文件（不来自 YAML）。
	Path string `yaml:"-"`
}

type GatewayConfig struct {
	RestURL    string  `yaml:"rest_url"`
	WSEndpoint string  `yaml:"ws_endpoint"`
	APIKey     string  `yaml:"api_key"`
	APISecret  string  `yaml:"api_secret"`
	RestRate   float64 `yaml:"rest_rate"`
	RestBurst  int     `yaml:"rest_burst"`
}

type EngineConfig struct {
	QueueSize       int           `yaml:"queue_size"`
	Overflow        string        `yaml:"overflow"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SeedFromHistory bool          `yaml:"seed_from_history"`
	HistoryLimit    int           `yaml:"history_limit"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // 留空则关闭
}

// AlertConfig 告警通道：log（写入 zap）、console（彩色输出到 stderr）。
type AlertConfig struct {
	Channels []string      `yaml:"channels"`
	Throttle time.Duration `yaml:"throttle"` // 相同告警的最小间隔
}

// 告警通道
const (
	AlertChannelLog     = "log"
	AlertChannelConsole = "console"
)

// Pair 交易对配置，支持两种写法：
//
//	BTC: { base: USDT, entry_price: 20000 }
//	ETH_BTC: 0.061
type Pair struct {
	Base       string   `yaml:"base"`
	EntryPrice *float64 `yaml:"entry_price"`
}

// UnmarshalYAML 允许标量写法（直接给出入场价）。
func (p *Pair) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: pair entry price: %w", node.Line, err)
		}
		p.EntryPrice = &v
		return nil
	}
	type plain Pair
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = Pair(raw)
	return nil
}

// Instruments 把某个交易所下的 pair 展开为 Instrument，按 key 排序。
func (c AppConfig) Instruments(exchange string) ([]market.Instrument, error) {
	pairs, ok := c.Exchange[exchange]
	if !ok {
		return nil, fmt.Errorf("exchange %q not configured", exchange)
	}
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]market.Instrument, 0, len(names))
	for _, name := range names {
		p := pairs[name]
		symbol, base := name, p.Base
		if idx := strings.Index(name, "_"); idx >= 0 {
			symbol = name[:idx]
			if base == "" {
				base = name[idx+1:]
			}
		}
		if symbol == "" || base == "" {
			return nil, fmt.Errorf("pair %q: symbol and base are required", name)
		}
		out = append(out, market.NewInstrument(symbol, base, p.EntryPrice))
	}
	return out, nil
}

// SearchPaths 按优先级返回候选配置文件路径。
func SearchPaths() []string {
	paths := []string{"./ticker.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".ticker.yaml"),
			filepath.Join(home, ".crypto", "ticker.yaml"),
		)
	}
	return paths
}

// Discover returns explicit if set, otherwise the first existing regular file
// among candidates.
func Discover(explicit string, candidates []string) (string, error) {
	if explicit != "" {
		if !fileExists(explicit) {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}
	for _, p := range candidates {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: searched %s", ErrConfigNotFound, strings.Join(candidates, ", "))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads YAML config from path, applies defaults and validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, &ConfigParseError{Path: path, Err: err}
	}
	cfg.Path = path
	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, &ConfigParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		var perr *ConfigParseError
		// 密钥缺失可能由环境变量补齐，其他错误直接返回
		if !errors.As(err, &perr) || !errors.Is(perr.Err, errMissingCredentials) {
			return cfg, err
		}
	}
	if v := os.Getenv("TICKER_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("TICKER_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if err := Validate(cfg); err != nil {
		return cfg, &ConfigParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// ApplyDefaults fills zero values.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Source == "" {
		cfg.Source = SourceConfig
	}
	if cfg.Quote == "" {
		cfg.Quote = "USDT"
	}
	if cfg.Gateway.RestURL == "" {
		cfg.Gateway.RestURL = "https://api.binance.com"
	}
	if cfg.Gateway.WSEndpoint == "" {
		cfg.Gateway.WSEndpoint = "wss://stream.binance.com:9443"
	}
	if cfg.Gateway.RestRate <= 0 {
		cfg.Gateway.RestRate = 10
	}
	if cfg.Gateway.RestBurst <= 0 {
		cfg.Gateway.RestBurst = 20
	}
	if cfg.Engine.QueueSize <= 0 {
		cfg.Engine.QueueSize = 1024
	}
	if cfg.Engine.Overflow == "" {
		cfg.Engine.Overflow = OverflowBlock
	}
	if cfg.Engine.ShutdownTimeout <= 0 {
		cfg.Engine.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Engine.HistoryLimit <= 0 {
		cfg.Engine.HistoryLimit = 500
	}
	if cfg.Alert.Channels == nil {
		cfg.Alert.Channels = []string{AlertChannelLog}
	}
	if cfg.Alert.Throttle <= 0 {
		cfg.Alert.Throttle = time.Minute
	}
	def := logger.DefaultConfig()
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Format
	}
	if len(cfg.Log.Outputs) == 0 {
		cfg.Log.Outputs = def.Outputs
	}
}

var errMissingCredentials = errors.New("gateway.api_key/api_secret is required for this source (or env overrides)")

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	switch cfg.Source {
	case SourceConfig:
		total := 0
		for _, pairs := range cfg.Exchange {
			total += len(pairs)
		}
		if total == 0 {
			return errors.New("exchange pairs are required when source=config")
		}
	case SourceBalances, SourceBTC:
		if cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "" {
			return errMissingCredentials
		}
	default:
		return fmt.Errorf("unknown source %q", cfg.Source)
	}
	for ex, pairs := range cfg.Exchange {
		for name, p := range pairs {
			if p.EntryPrice != nil && *p.EntryPrice <= 0 {
				return fmt.Errorf("exchange %s pair %s entry_price must be > 0", ex, name)
			}
		}
	}
	switch cfg.Engine.Overflow {
	case OverflowBlock, OverflowDropOldest:
	default:
		return fmt.Errorf("engine.overflow must be %q or %q", OverflowBlock, OverflowDropOldest)
	}
	if cfg.Engine.QueueSize < 0 {
		return errors.New("engine.queue_size must be >= 0")
	}
	for _, ch := range cfg.Alert.Channels {
		if ch != AlertChannelLog && ch != AlertChannelConsole {
			return fmt.Errorf("alert.channels: unknown channel %q", ch)
		}
	}
	return nil
}
