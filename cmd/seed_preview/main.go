package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/monomadic/cryptotrader-ticker/config"
	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/internal/instruments"
	"github.com/monomadic/cryptotrader-ticker/internal/seed"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// 不连 websocket，只打印启动时每个交易对的 seed 结果。
func main() {
	cfgPath := flag.String("config", "", "配置文件路径")
	exchange := flag.String("exchange", "binance", "交易所")
	history := flag.Bool("history", false, "使用历史成交计算 entry price（覆盖配置）")
	flag.Parse()

	path, err := config.Discover(*cfgPath, config.SearchPaths())
	if err != nil {
		log.Fatalf("查找配置失败: %v", err)
	}
	cfg, err := config.LoadWithEnvOverrides(path)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.RestURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
		RecvWindowMs: 5000,
		Limiter:      gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst),
	}
	signed := cfg.Gateway.APIKey != "" && cfg.Gateway.APISecret != ""

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var account instruments.Account
	if signed {
		account = client
	}
	src, err := instruments.NewSource(cfg, *exchange, account, client, zap.NewNop())
	if err != nil {
		log.Fatalf("交易对来源: %v", err)
	}
	insts, err := src.Instruments(ctx)
	if err != nil {
		log.Fatalf("获取交易对失败: %v", err)
	}

	var hist seed.HistoryFunc
	if *history || cfg.Engine.SeedFromHistory {
		if !signed {
			log.Fatalf("历史成交需要 api_key/api_secret")
		}
		hist = client.MyTrades
	}
	seeder := seed.New(client, hist, cfg.Engine.HistoryLimit, zap.NewNop())

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tENTRY\tCURRENT\tCHANGE\tPOSITION\tORIGIN")
	failed := 0
	for _, inst := range insts {
		res, err := seeder.Seed(ctx, inst)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%v\n", inst.Key(), err)
			failed++
			continue
		}
		change := "n/a"
		if pct, err := market.PercentChange(res.Entry, res.Current); err == nil {
			change = fmt.Sprintf("%+.2f%%", pct)
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%s\t%g\t%s\n", inst.Key(), res.Entry, res.Current, change, res.Position, res.Origin)
	}
	tw.Flush()
	if failed > 0 {
		os.Exit(1)
	}
}
