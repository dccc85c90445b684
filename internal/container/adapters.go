package container

import (
	"context"
	"fmt"
	"time"

	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/alert"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/logger"
	"github.com/monomadic/cryptotrader-ticker/infrastructure/monitor"
	"github.com/monomadic/cryptotrader-ticker/internal/listener"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// instrumentedMarket 适配器：REST 调用统一记录请求数、错误与耗时。
type instrumentedMarket struct {
	client  *gateway.BinanceRESTClient
	logger  *logger.Logger
	monitor *monitor.Monitor
}

func (a *instrumentedMarket) observe(action string, start time.Time, err error, fields map[string]interface{}) {
	a.monitor.RecordRESTLatency(action, time.Since(start).Seconds())
	if err != nil {
		a.monitor.RecordRESTError(action)
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["action"] = action
		a.logger.LogError(err, fields)
	}
}

func (a *instrumentedMarket) AllPrices(ctx context.Context) (gateway.Prices, error) {
	start := time.Now()
	a.monitor.RecordRESTRequest("all_prices")
	p, err := a.client.AllPrices(ctx)
	a.observe("all_prices", start, err, nil)
	return p, err
}

func (a *instrumentedMarket) MyTrades(ctx context.Context, symbol string, pageSize int) ([]market.TradeRecord, error) {
	start := time.Now()
	a.monitor.RecordRESTRequest("my_trades")
	trades, err := a.client.MyTrades(ctx, symbol, pageSize)
	a.observe("my_trades", start, err, map[string]interface{}{"symbol": symbol})
	return trades, err
}

func (a *instrumentedMarket) Account(ctx context.Context) ([]gateway.Balance, error) {
	start := time.Now()
	a.monitor.RecordRESTRequest("account")
	balances, err := a.client.Account(ctx)
	a.observe("account", start, err, nil)
	return balances, err
}

// streamObserver 把 listener 事件转成日志、指标与告警。
// listener 不会重连，断线即该交易对停止更新，所以需要告警。
type streamObserver struct {
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager
}

func (o *streamObserver) OnAttached(symbol string) {
	o.monitor.RecordWSConnection(symbol)
	o.logger.LogListener("attached", symbol, nil)
}

func (o *streamObserver) OnMalformed(err *listener.MalformedMessageError) {
	o.monitor.RecordMalformed(err.Symbol)
}

func (o *streamObserver) OnDepth(symbol string, _ gateway.DepthEvent) {
	o.monitor.RecordDepth(symbol)
}

func (o *streamObserver) OnDisconnected(ev *listener.ListenerDisconnected) {
	o.monitor.RecordWSDisconnect(ev.Symbol)
	o.monitor.RecordListenerExit()
	o.logger.LogError(ev, map[string]interface{}{
		"action": "listen",
		"symbol": ev.Symbol,
	})
	_ = o.alerts.Warn(fmt.Sprintf("listener %s disconnected, price frozen until restart", ev.Symbol), map[string]interface{}{
		"symbol": ev.Symbol,
		"error":  ev.Err.Error(),
	})
}

func (o *streamObserver) OnStopped(symbol string) {
	o.monitor.RecordListenerExit()
	o.logger.LogListener("stopped", symbol, nil)
}
