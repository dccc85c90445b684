// Package engine 聚合循环：汇总所有 listener 的价格更新并驱动看板。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monomadic/cryptotrader-ticker/internal/listener"
	"github.com/monomadic/cryptotrader-ticker/internal/seed"
	"github.com/monomadic/cryptotrader-ticker/internal/store"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// State 引擎状态
type State int32

const (
	// StateStarting 正在 seed
	StateStarting State = iota
	// StateListening 正在接收更新
	StateListening
	// StateDraining 正在等待 listener 退出
	StateDraining
	// StateStopped 已停止
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateListening:
		return "LISTENING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrShutdownTimeout listener 未在 ShutdownTimeout 内退出。
	ErrShutdownTimeout = errors.New("listeners did not stop before shutdown timeout")
	// ErrNotSeeded Run 之前没有成功 Seed。
	ErrNotSeeded = errors.New("engine has no seeded instruments")
)

// Seeder 为单个交易对计算初始状态。
type Seeder interface {
	Seed(ctx context.Context, inst market.Instrument) (seed.Result, error)
}

// Renderer 每次成功更新后同步调用。
type Renderer interface {
	Draw(snapshot []store.Entry) error
}

// Recorder 指标上报。
type Recorder interface {
	RecordApplied(symbol string, price, percent float64)
	RecordDropped(reason string)
	UpdateEngineState(state int)
}

type nopRecorder struct{}

func (nopRecorder) RecordApplied(string, float64, float64) {}
func (nopRecorder) RecordDropped(string) {}
func (nopRecorder) UpdateEngineState(int) {}

// Config 引擎配置
type Config struct {
	QueueSize       int
	Overflow        OverflowPolicy
	ShutdownTimeout time.Duration
}

// Components 引擎依赖组件
type Components struct {
	Seeder     Seeder
	Subscriber listener.Subscriber
	Observer   listener.Observer
	Renderer   Renderer
	Recorder   Recorder
	Logger     *zap.Logger
}

// Engine owns the PriceStore. Only the goroutine running Seed and then Run
// touches it; listeners reach the engine through the Mux alone.
type Engine struct {
	config Config

	seeder   Seeder
	sub      listener.Subscriber
	observer listener.Observer
	renderer Renderer
	recorder Recorder
	logger   *zap.Logger

	store       *store.PriceStore
	mux         *Mux
	instruments []market.Instrument
	state       atomic.Int32
}

// New 创建引擎
func New(cfg Config, comp Components) (*Engine, error) {
	if comp.Seeder == nil {
		return nil, fmt.Errorf("seeder is required")
	}
	if comp.Subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if comp.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if comp.Observer == nil {
		comp.Observer = listener.NopObserver{}
	}
	if comp.Recorder == nil {
		comp.Recorder = nopRecorder{}
	}
	if comp.Logger == nil {
		comp.Logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	e := &Engine{
		config:   cfg,
		seeder:   comp.Seeder,
		sub:      comp.Subscriber,
		observer: comp.Observer,
		renderer: comp.Renderer,
		recorder: comp.Recorder,
		logger:   comp.Logger,
		store:    store.New(),
	}
	e.mux = NewMux(cfg.QueueSize, cfg.Overflow, func(dropped market.PriceUpdate) {
		e.recorder.RecordDropped("overflow")
		e.logger.Debug("queue overflow, superseded update dropped",
			zap.String("symbol", dropped.Symbol),
			zap.Float64("price", dropped.Price),
		)
	})
	e.setState(StateStarting)
	return e, nil
}

// State 当前状态，可并发读取。
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	e.recorder.UpdateEngineState(int(s))
	e.logger.Debug("engine state", zap.String("state", s.String()))
}

// Seed 为所有交易对写入初始状态。任一失败则整体失败，store 保持为空。
func (e *Engine) Seed(ctx context.Context, instruments []market.Instrument) error {
	if e.State() != StateStarting {
		return fmt.Errorf("seed in state %s", e.State())
	}
	if len(instruments) == 0 {
		return fmt.Errorf("%w: no instruments to track", seed.ErrSeedPriceUnavailable)
	}

	ps := store.New()
	for _, inst := range instruments {
		res, err := e.seeder.Seed(ctx, inst)
		if err != nil {
			return fmt.Errorf("seed %s: %w", inst.Key(), err)
		}
		if err := ps.Seed(inst.Key(), res.Entry, res.Current, res.Position); err != nil {
			if errors.Is(err, store.ErrInvalidEntryPrice) {
				return fmt.Errorf("seed %s: %w: %w", inst.Key(), seed.ErrSeedPriceUnavailable, err)
			}
			return fmt.Errorf("seed %s: %w", inst.Key(), err)
		}
		e.logger.Info("instrument seeded",
			zap.String("symbol", inst.Key()),
			zap.Float64("entry", res.Entry),
			zap.Float64("current", res.Current),
			zap.String("origin", string(res.Origin)),
		)
	}

	e.store = ps
	e.instruments = append([]market.Instrument(nil), instruments...)
	return nil
}

// Run 启动 listener 并处理更新，直到 ctx 结束。
// 正常停止返回 nil；listener 未按时退出返回 ErrShutdownTimeout。
func (e *Engine) Run(ctx context.Context) error {
	if e.State() != StateStarting {
		return fmt.Errorf("run in state %s", e.State())
	}
	if e.store.Len() == 0 {
		return ErrNotSeeded
	}

	listenCtx, cancelListeners := context.WithCancel(ctx)
	defer cancelListeners()

	var group errgroup.Group
	for _, inst := range e.instruments {
		l := listener.New(inst, e.sub, e.mux, e.observer, e.logger)
		group.Go(func() error {
			return l.Run(listenCtx)
		})
	}

	e.logger.Info("listening...", zap.Int("instruments", len(e.instruments)))
	e.setState(StateListening)

	for {
		u, err := e.mux.Next(ctx)
		if err != nil {
			break
		}
		e.apply(u)
	}

	e.setState(StateDraining)
	cancelListeners()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	timer := time.NewTimer(e.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Debug("listener exited with error", zap.Error(err))
		}
	case <-timer.C:
		e.logger.Warn("shutdown timeout waiting for listeners", zap.Duration("timeout", e.config.ShutdownTimeout))
		e.setState(StateStopped)
		return ErrShutdownTimeout
	}

	e.setState(StateStopped)
	e.logger.Info("engine stopped")
	return nil
}

func (e *Engine) apply(u market.PriceUpdate) {
	if err := e.store.ApplyUpdate(u.Symbol, u.Price); err != nil {
		var unknown *store.UnknownSymbolError
		if errors.As(err, &unknown) {
			e.recorder.RecordDropped("unknown_symbol")
		}
		e.logger.Warn("could not write update",
			zap.String("symbol", u.Symbol),
			zap.Float64("price", u.Price),
			zap.Error(err),
		)
		return
	}

	st, _ := e.store.Get(u.Symbol)
	pct, err := market.PercentChange(st.EntryPrice, st.CurrentPrice)
	if err == nil {
		e.recorder.RecordApplied(u.Symbol, u.Price, pct)
	}

	if err := e.renderer.Draw(e.store.Snapshot()); err != nil {
		e.logger.Warn("render failed", zap.Error(err))
	}
}

// Snapshot 返回当前快照。只能在 Run 返回之后或 Run 启动之前调用。
func (e *Engine) Snapshot() []store.Entry {
	return e.store.Snapshot()
}

// Overflows 队列丢弃计数。
func (e *Engine) Overflows() uint64 {
	return e.mux.Overflows()
}
