// Package render 把价格快照转换成单行看板。
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/monomadic/cryptotrader-ticker/internal/store"
	"github.com/monomadic/cryptotrader-ticker/market"
)

// Separator 各交易对之间的分隔符。
const Separator = " :: "

// clearScreen 光标归位并清屏。
const clearScreen = "\x1b[H\x1b[2J"

// neutralBand 小于该幅度的变化按中性显示。
const neutralBand = 0.01

// Tone 涨跌颜色。
type Tone int

const (
	Neutral Tone = iota
	Positive
	Negative
)

func (t Tone) String() string {
	switch t {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "neutral"
	}
}

// ToneOf 按百分比决定颜色。
func ToneOf(percent float64) Tone {
	switch {
	case percent > neutralBand:
		return Positive
	case percent < -neutralBand:
		return Negative
	default:
		return Neutral
	}
}

// Cell 单个交易对的显示数据。Valid 为 false 时 Percent 无意义。
type Cell struct {
	Symbol  string
	Percent float64
	Valid   bool
	Tone    Tone
}

// Line 一帧看板。
type Line []Cell

// Render 纯函数：快照 → Line，顺序与快照一致。
func Render(snapshot []store.Entry) Line {
	line := make(Line, 0, len(snapshot))
	for _, e := range snapshot {
		c := Cell{Symbol: e.Symbol}
		if pct, err := market.PercentChange(e.EntryPrice, e.CurrentPrice); err == nil {
			c.Percent, c.Valid, c.Tone = pct, true, ToneOf(pct)
		}
		line = append(line, c)
	}
	return line
}

func (c Cell) percentText() string {
	if !c.Valid {
		return "n/a"
	}
	text := fmt.Sprintf("%+.2f", c.Percent)
	// 四舍五入到 0 的小幅下跌不显示 -0.00
	if text == "-0.00" {
		text = "+0.00"
	}
	return text + "%"
}

// Plain 无颜色文本，例如 "BTCUSDT +5.00% :: ETHBTC -1.20%"。
func (l Line) Plain() string {
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = c.Symbol + " " + c.percentText()
	}
	return strings.Join(parts, Separator)
}

var (
	symbolColor   = newColor(color.FgYellow)
	positiveColor = newColor(color.FgGreen)
	negativeColor = newColor(color.FgRed)
)

func newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	c.EnableColor()
	return c
}

// Colored 带 ANSI 颜色：symbol 黄色，涨绿跌红。
func (l Line) Colored() string {
	parts := make([]string, len(l))
	for i, c := range l {
		pct := c.percentText()
		switch c.Tone {
		case Positive:
			pct = positiveColor.Sprint(pct)
		case Negative:
			pct = negativeColor.Sprint(pct)
		}
		parts[i] = symbolColor.Sprint(c.Symbol) + " " + pct
	}
	return strings.Join(parts, Separator)
}

// Screen 终端输出。
// Clear 控制每帧前是否清屏，Color 控制 ANSI 颜色，两者独立。
type Screen struct {
	w     io.Writer
	Clear bool
	Color bool
}

// NewScreen 输出是终端时清屏；颜色跟随 fatih/color 的检测结果（NO_COLOR 等）。
func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w, Clear: isTerminal(w), Color: !color.NoColor}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Draw 渲染并输出一帧。
func (s *Screen) Draw(snapshot []store.Entry) error {
	line := Render(snapshot)
	text := line.Plain()
	if s.Color {
		text = line.Colored()
	}
	if s.Clear {
		text = clearScreen + text
	}
	_, err := fmt.Fprintln(s.w, text)
	return err
}
