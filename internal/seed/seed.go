// Package seed 启动阶段为每个交易对确定 entry / current / position。
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// ErrSeedPriceUnavailable 无法得到有效的 entry 或当前价格。
var ErrSeedPriceUnavailable = errors.New("seed price unavailable")

// Origin entry price 的来源。
type Origin string

const (
	OriginConfig   Origin = "config"
	OriginHistory  Origin = "history"
	OriginSnapshot Origin = "snapshot"
)

// PriceSource 全市场价格快照。
type PriceSource interface {
	AllPrices(ctx context.Context) (gateway.Prices, error)
}

// HistoryFunc 拉取账户自己在某个交易对上的全部成交，pageSize 为翻页大小。
// 持仓由它推出，所以不能传入公开的市场成交。
type HistoryFunc func(ctx context.Context, symbol string, pageSize int) ([]market.TradeRecord, error)

// Result 单个交易对的初始状态。
type Result struct {
	Entry    float64
	Current  float64
	Position float64
	Origin   Origin
}

// Seeder 按 config → history → snapshot 的优先级确定 entry price。
// Seeder is used from the startup goroutine only.
type Seeder struct {
	prices  PriceSource
	history  HistoryFunc
	pageSize int
	logger  *zap.Logger

	snapshot gateway.Prices
}

// New history 为 nil 时不读取历史成交，Position 保持 0。
func New(prices PriceSource, history HistoryFunc, pageSize int, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Seeder{prices: prices, history: history, pageSize: pageSize, logger: logger}
}

// Seed 计算单个交易对的初始状态。
func (s *Seeder) Seed(ctx context.Context, inst market.Instrument) (Result, error) {
	if err := s.loadSnapshot(ctx); err != nil {
		return Result{}, err
	}
	current, ok := s.snapshot.PriceOf(inst.Symbol, inst.Quote)
	if !ok || current <= 0 {
		return Result{}, fmt.Errorf("%w: no snapshot price for %s", ErrSeedPriceUnavailable, inst.Key())
	}

	res := Result{Current: current}

	var summary map[market.Side]market.VWAPPoint
	if s.history != nil {
		s.logger.Info("attempting to fetch trades", zap.String("symbol", inst.Key()))
		trades, err := s.history(ctx, inst.Key(), s.pageSize)
		if err != nil {
			s.logger.Warn("trade history unavailable", zap.String("symbol", inst.Key()), zap.Error(err))
		} else {
			summary = market.Summarize(trades)
			res.Position = summary[market.Buy].Qty - summary[market.Sell].Qty
		}
	}

	switch {
	case inst.SeedEntryPrice != nil:
		if *inst.SeedEntryPrice <= 0 {
			return Result{}, fmt.Errorf("%w: configured entry price for %s is %v", ErrSeedPriceUnavailable, inst.Key(), *inst.SeedEntryPrice)
		}
		res.Entry, res.Origin = *inst.SeedEntryPrice, OriginConfig
	case summary[market.Buy].Price > 0:
		res.Entry, res.Origin = summary[market.Buy].Price, OriginHistory
	default:
		res.Entry, res.Origin = current, OriginSnapshot
	}

	s.logger.Debug("instrument seeded",
		zap.String("symbol", inst.Key()),
		zap.Float64("entry", res.Entry),
		zap.Float64("current", res.Current),
		zap.Float64("position", res.Position),
		zap.String("origin", string(res.Origin)),
	)
	return res, nil
}

func (s *Seeder) loadSnapshot(ctx context.Context) error {
	if s.snapshot != nil {
		return nil
	}
	if s.prices == nil {
		return fmt.Errorf("%w: no price source", ErrSeedPriceUnavailable)
	}
	p, err := s.prices.AllPrices(ctx)
	if err != nil {
		return fmt.Errorf("%w: price snapshot: %w", ErrSeedPriceUnavailable, err)
	}
	s.snapshot = p
	return nil
}
