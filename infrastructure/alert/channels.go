package alert

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

// LogChannel 写入结构化日志
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger.Named("alert")}
}

func (c *LogChannel) Send(a Alert) error {
	fields := make([]zap.Field, 0, len(a.Fields)+1)
	fields = append(fields, zap.Time("alert_ts", a.Timestamp))
	for _, k := range sortedKeys(a.Fields) {
		fields = append(fields, zap.Any(k, a.Fields[k]))
	}
	switch a.Level {
	case LevelCritical:
		c.logger.Error(a.Message, fields...)
	case LevelWarning:
		c.logger.Warn(a.Message, fields...)
	default:
		c.logger.Info(a.Message, fields...)
	}
	return nil
}

func (c *LogChannel) Name() string { return "log" }

// ConsoleChannel 彩色单行输出，通常指向 stderr，避免干扰看板。
type ConsoleChannel struct {
	w  io.Writer
	mu sync.Mutex
}

func NewConsoleChannel(w io.Writer) *ConsoleChannel {
	return &ConsoleChannel{w: w}
}

var levelColors = map[Level]*color.Color{
	LevelInfo:     color.New(color.FgGreen),
	LevelWarning:  color.New(color.FgYellow),
	LevelCritical: color.New(color.FgMagenta, color.Bold),
}

func (c *ConsoleChannel) Send(a Alert) error {
	tag := "[" + string(a.Level) + "]"
	if col, ok := levelColors[a.Level]; ok {
		tag = col.Sprint(tag)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s - %s", tag, a.Timestamp.Format("2006-01-02 15:04:05"), a.Message)
	if len(a.Fields) > 0 {
		b.WriteString(" |")
		for _, k := range sortedKeys(a.Fields) {
			fmt.Fprintf(&b, " %s=%v", k, a.Fields[k])
		}
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *ConsoleChannel) Name() string { return "console" }

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
