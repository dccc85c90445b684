// Package instruments 决定启动时跟踪哪些交易对。
package instruments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/monomadic/cryptotrader-ticker/config"
	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// Source 返回要跟踪的交易对列表。
type Source interface {
	Instruments(ctx context.Context) ([]market.Instrument, error)
}

// Account 账户余额查询。
type Account interface {
	Account(ctx context.Context) ([]gateway.Balance, error)
}

// PriceSource 用于过滤交易所不存在的交易对。
type PriceSource interface {
	AllPrices(ctx context.Context) (gateway.Prices, error)
}

// ConfigSource 使用配置文件中的交易对。
type ConfigSource struct {
	Config   config.AppConfig
	Exchange string
}

func (s ConfigSource) Instruments(context.Context) ([]market.Instrument, error) {
	insts, err := s.Config.Instruments(s.Exchange)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, fmt.Errorf("no pairs configured for exchange %q", s.Exchange)
	}
	return insts, nil
}

// BalanceSource 为每个非零余额的资产生成 <asset><quote> 交易对，
// 交易所没有挂牌的组合会被跳过。
type BalanceSource struct {
	Account Account
	Prices  PriceSource
	Quote   string
	Logger  *zap.Logger
}

func (s BalanceSource) Instruments(ctx context.Context) ([]market.Instrument, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	quote := strings.ToUpper(s.Quote)
	if quote == "" {
		return nil, fmt.Errorf("balance source: quote is required")
	}

	balances, err := s.Account.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	var listed gateway.Prices
	if s.Prices != nil {
		if listed, err = s.Prices.AllPrices(ctx); err != nil {
			return nil, fmt.Errorf("fetch prices: %w", err)
		}
	}

	seen := make(map[string]bool)
	var out []market.Instrument
	for _, b := range balances {
		asset := strings.ToUpper(strings.TrimSpace(b.Asset))
		if asset == "" || asset == quote || b.Total() <= 0 || seen[asset] {
			continue
		}
		if listed != nil {
			if _, ok := listed.PriceOf(asset, quote); !ok {
				log.Debug("skipping unlisted pair", zap.String("asset", asset), zap.String("quote", quote))
				continue
			}
		}
		seen[asset] = true
		out = append(out, market.NewInstrument(asset, quote, nil))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no non-zero balances tradable against %s", quote)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// NewSource 按 cfg.Source 选择实现。balances/btc 需要 account 与 prices。
func NewSource(cfg config.AppConfig, exchange string, account Account, prices PriceSource, logger *zap.Logger) (Source, error) {
	switch cfg.Source {
	case "", config.SourceConfig:
		return ConfigSource{Config: cfg, Exchange: exchange}, nil
	case config.SourceBalances:
		if account == nil {
			return nil, fmt.Errorf("source %q requires an account client", cfg.Source)
		}
		return BalanceSource{Account: account, Prices: prices, Quote: cfg.Quote, Logger: logger}, nil
	case config.SourceBTC:
		if account == nil {
			return nil, fmt.Errorf("source %q requires an account client", cfg.Source)
		}
		return BalanceSource{Account: account, Prices: prices, Quote: "BTC", Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown instrument source %q", cfg.Source)
}
