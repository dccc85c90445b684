package listener

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/monomadic/cryptotrader-ticker/gateway"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// ErrListenerConnect 初次连接失败。
var ErrListenerConnect = errors.New("listener connect failed")

var errStreamClosed = errors.New("stream closed by remote")

// ListenerDisconnected is reported when a listener terminates because its
// subscription failed or dropped. It never stops other listeners.
type ListenerDisconnected struct {
	Symbol string
	Err    error
}

func (e *ListenerDisconnected) Error() string {
	return fmt.Sprintf("listener %s disconnected: %v", e.Symbol, e.Err)
}

func (e *ListenerDisconnected) Unwrap() error { return e.Err }

// MalformedMessageError 单条消息无法解析；只丢弃该消息。
type MalformedMessageError struct {
	Symbol string
	Raw    string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message on %s: %v", e.Symbol, e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// Subscriber 打开一个 stream 并阻塞读取。
type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func([]byte)) error
}

// Emitter 多生产者共享的发送端。
type Emitter interface {
	Emit(ctx context.Context, u market.PriceUpdate) error
}

// Observer 接收 listener 生命周期与异常事件。
type Observer interface {
	OnAttached(symbol string)
	OnMalformed(err *MalformedMessageError)
	OnDepth(symbol string, depth gateway.DepthEvent)
	OnDisconnected(ev *ListenerDisconnected)
	OnStopped(symbol string)
}

// NopObserver 丢弃所有事件。
type NopObserver struct{}

func (NopObserver) OnAttached(string) {}
func (NopObserver) OnMalformed(*MalformedMessageError) {}
func (NopObserver) OnDepth(string, gateway.DepthEvent) {}
func (NopObserver) OnDisconnected(*ListenerDisconnected) {}
func (NopObserver) OnStopped(string) {}

// Listener 一个交易对一个实例，持有该交易对的 aggTrade 订阅。
type Listener struct {
	inst market.Instrument
	sub  Subscriber
	out  Emitter
	obs  Observer
	log  *zap.Logger
}

func New(inst market.Instrument, sub Subscriber, out Emitter, obs Observer, log *zap.Logger) *Listener {
	if obs == nil {
		obs = NopObserver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		inst: inst,
		sub:  sub,
		out:  out,
		obs:  obs,
		log:  log.With(zap.String("symbol", inst.Key())),
	}
}

// Symbol 返回存储键。
func (l *Listener) Symbol() string {
	return l.inst.Key()
}

// Run 订阅并转发成交，直到断线或 ctx 结束。
// ctx 结束返回 nil；断线返回 *ListenerDisconnected（已上报 Observer）。
func (l *Listener) Run(ctx context.Context) error {
	stream := l.inst.Stream()
	l.log.Info("attaching websocket handler", zap.String("stream", stream))
	l.obs.OnAttached(l.Symbol())

	err := l.sub.Subscribe(ctx, stream, func(raw []byte) {
		l.handle(ctx, raw)
	})
	if ctx.Err() != nil {
		l.log.Debug("listener stopped")
		l.obs.OnStopped(l.Symbol())
		return nil
	}
	switch {
	case err == nil:
		err = errStreamClosed
	case errors.Is(err, gateway.ErrStreamDial):
		err = fmt.Errorf("%w: %w", ErrListenerConnect, err)
	}
	ev := &ListenerDisconnected{Symbol: l.Symbol(), Err: err}
	l.log.Warn("listener disconnected", zap.Error(err))
	l.obs.OnDisconnected(ev)
	return ev
}

func (l *Listener) handle(ctx context.Context, raw []byte) {
	ev, err := gateway.ParseStreamEvent(raw)
	if err != nil {
		l.malformed(raw, err)
		return
	}
	switch ev.Kind {
	case gateway.EventAggTrade:
		price, err := ev.AggTrade.PriceFloat()
		if err != nil {
			l.malformed(raw, err)
			return
		}
		symbol := strings.ToUpper(ev.AggTrade.Symbol)
		if symbol == "" {
			symbol = l.Symbol()
		}
		if err := l.out.Emit(ctx, market.PriceUpdate{Symbol: symbol, Price: price}); err != nil {
			l.log.Debug("emit aborted", zap.Error(err))
		}
	case gateway.EventDepth, gateway.EventPartialBook:
		l.obs.OnDepth(l.Symbol(), *ev.Depth)
	default:
		l.log.Debug("ignoring stream message", zap.ByteString("raw", raw))
	}
}

func (l *Listener) malformed(raw []byte, err error) {
	merr := &MalformedMessageError{Symbol: l.Symbol(), Raw: string(raw), Err: err}
	l.log.Warn("dropping malformed message", zap.Error(err))
	l.obs.OnMalformed(merr)
}
