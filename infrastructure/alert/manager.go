package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Level 告警级别
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert 告警信息
type Alert struct {
	Level     Level
	Message   string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Throttler 相同 key 在 interval 内只放行一次。
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow 检查是否允许发送
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.lastSent[key] = now
	return true
}

// Manager 把告警分发到所有通道。
type Manager struct {
	channels []Channel
	throttle *Throttler
}

// NewManager 创建告警管理器；channels 为空时所有告警被丢弃。
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// Send 发送告警。限流的告警静默丢弃；只有全部通道失败才返回错误。
func (m *Manager) Send(a Alert) error {
	if m == nil || len(m.channels) == 0 {
		return nil
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	if !m.throttle.Allow(string(a.Level) + ":" + a.Message) {
		return nil
	}

	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch.Name(), err))
		}
	}
	if len(errs) == len(m.channels) {
		return errors.Join(errs...)
	}
	return nil
}

func (m *Manager) Info(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: LevelInfo, Message: message, Fields: fields})
}

func (m *Manager) Warn(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: LevelWarning, Message: message, Fields: fields})
}

func (m *Manager) Critical(message string, fields map[string]interface{}) error {
	return m.Send(Alert{Level: LevelCritical, Message: message, Fields: fields})
}

// Channels 通道名称
func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}
