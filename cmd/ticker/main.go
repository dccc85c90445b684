package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/monomadic/cryptotrader-ticker/config"
	"github.com/monomadic/cryptotrader-ticker/internal/container"
	"github.com/monomadic/cryptotrader-ticker/internal/engine"
)

func main() {
	cfgPath := flag.String("config", "", "配置文件路径（默认依次查找 ./ticker.yaml, ~/.ticker.yaml, ~/.crypto/ticker.yaml）")
	exchange := flag.String("exchange", container.ExchangeBinance, "交易所")
	source := flag.String("source", "", "交易对来源覆盖：config | balances | btc")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址覆盖，留空使用配置")
	noColor := flag.Bool("noColor", false, "输出纯文本，不清屏")
	flag.Parse()

	path, err := config.Discover(*cfgPath, config.SearchPaths())
	if err != nil {
		log.Fatalf("查找配置失败: %v", err)
	}
	cfg, err := config.LoadWithEnvOverrides(path)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *source != "" {
		cfg.Source = strings.ToLower(*source)
		if err := config.Validate(cfg); err != nil {
			log.Fatalf("配置无效: %v", err)
		}
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	c, err := container.New(cfg, container.Options{
		Exchange: strings.ToLower(*exchange),
		Stdout:   os.Stdout,
		NoColor:  *noColor,
		OnReady: func() {
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
		},
	})
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = c.Run(ctx)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrShutdownTimeout):
		log.Printf("退出: %v", err)
	default:
		stop()
		log.Fatalf("运行失败: %v", err)
	}
}
