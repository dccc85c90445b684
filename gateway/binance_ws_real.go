package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// BinanceSpotWSEndpoint 现货行情 WS 地址。
const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

// ErrStreamDial 建立 WS 连接失败。
var ErrStreamDial = errors.New("stream dial failed")

// StreamDialer 为单个 stream 建立 WS 连接并逐条回调原始消息。
type StreamDialer struct {
	Endpoint     string
	Dialer       *websocket.Dialer
	ReadTimeout  time.Duration // 超过该时间无任何帧视为断线
	PingInterval time.Duration // 客户端 ping 间隔，<=0 关闭
}

func NewStreamDialer(endpoint string) *StreamDialer {
	if endpoint == "" {
		endpoint = BinanceSpotWSEndpoint
	}
	return &StreamDialer{
		Endpoint:     endpoint,
		Dialer:       websocket.DefaultDialer,
		ReadTimeout:  60 * time.Second,
		PingInterval: 20 * time.Second,
	}
}

// StreamURL 返回 <endpoint>/ws/<stream>。
func (d *StreamDialer) StreamURL(stream string) string {
	return strings.TrimRight(d.Endpoint, "/") + "/ws/" + stream
}

// Subscribe 连接 stream 并阻塞读取，直到读错误或 ctx 结束。
// ctx 结束时返回 ctx.Err()；连接失败返回包装了 ErrStreamDial 的错误。
func (d *StreamDialer) Subscribe(ctx context.Context, stream string, handler func([]byte)) error {
	if stream == "" {
		return fmt.Errorf("stream required")
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	readTimeout := d.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}

	u := d.StreamURL(stream)
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w %s: %v", ErrStreamDial, u, err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接以打断阻塞中的 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	extend := func() { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)) }
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	if d.PingInterval > 0 {
		go d.pingLoop(conn, done)
	}

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", stream, err)
		}
		extend()
		if handler != nil {
			handler(message)
		}
	}
}

func (d *StreamDialer) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(d.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
