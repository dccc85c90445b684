package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/monomadic/cryptotrader-ticker/market"
)

// BinanceRESTClient 只读的现货 REST 客户端；HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	HTTPClient   *http.Client
	RecvWindowMs int64
	Limiter      RateLimiter
}

// Prices 最新成交价快照，key 为大写交易对。
type Prices map[string]float64

// PriceOf 查询 symbol+base 的价格。
func (p Prices) PriceOf(symbol, base string) (float64, bool) {
	v, ok := p[strings.ToUpper(symbol+base)]
	return v, ok
}

// Balance 账户资产余额。
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free,string"`
	Locked float64 `json:"locked,string"`
}

// Total free + locked.
func (b Balance) Total() float64 { return b.Free + b.Locked }

type tickerPrice struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,string"`
}

type myTradeResp struct {
	ID      int64   `json:"id"`
	Price   float64 `json:"price,string"`
	Qty     float64 `json:"qty,string"`
	Time    int64   `json:"time"`
	IsBuyer bool    `json:"isBuyer"`
}

type accountResp struct {
	Balances []Balance `json:"balances"`
}

// AllPrices 调用 /api/v3/ticker/price。
func (c *BinanceRESTClient) AllPrices(ctx context.Context) (Prices, error) {
	var rows []tickerPrice
	if err := c.get(ctx, "/api/v3/ticker/price", nil, false, &rows); err != nil {
		return nil, err
	}
	out := make(Prices, len(rows))
	for _, r := range rows {
		out[strings.ToUpper(r.Symbol)] = r.Price
	}
	return out, nil
}

// maxTradesPage /api/v3/myTrades 单页上限。
const maxTradesPage = 1000

// MyTrades 调用 /api/v3/myTrades（签名），返回账户在该交易对上的全部成交。
// 从 fromId=0 开始按 id 顺序翻页，pageSize 为每页条数，返回不足一页时结束。
func (c *BinanceRESTClient) MyTrades(ctx context.Context, symbol string, pageSize int) ([]market.TradeRecord, error) {
	if pageSize <= 0 || pageSize > maxTradesPage {
		pageSize = maxTradesPage
	}
	var (
		out    []market.TradeRecord
		fromID int64
	)
	for {
		params := map[string]string{
			"symbol": strings.ToUpper(symbol),
			"fromId": strconv.FormatInt(fromID, 10),
			"limit":  strconv.Itoa(pageSize),
		}
		var rows []myTradeResp
		if err := c.get(ctx, "/api/v3/myTrades", params, true, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			side := market.Sell
			if r.IsBuyer {
				side = market.Buy
			}
			out = append(out, market.TradeRecord{Price: r.Price, Qty: r.Qty, Side: side, Sequence: r.ID})
		}
		if len(rows) < pageSize {
			return out, nil
		}
		next := rows[len(rows)-1].ID + 1
		if next <= fromID {
			return nil, fmt.Errorf("myTrades %s: page did not advance past id %d", symbol, fromID)
		}
		fromID = next
	}
}

// Account 调用 /api/v3/account（签名），返回余额列表。
func (c *BinanceRESTClient) Account(ctx context.Context) ([]Balance, error) {
	var resp accountResp
	if err := c.get(ctx, "/api/v3/account", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Balances, nil
}

func (c *BinanceRESTClient) get(ctx context.Context, path string, params map[string]string, signed bool, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	endpoint := c.BaseURL + path
	if signed {
		if c.APIKey == "" || c.Secret == "" {
			return fmt.Errorf("%s requires api key and secret", path)
		}
		if params == nil {
			params = map[string]string{}
		}
		if c.RecvWindowMs > 0 {
			params["recvWindow"] = strconv.FormatInt(c.RecvWindowMs, 10)
		}
		query, sig := SignParams(params, c.Secret)
		endpoint += "?" + query + "&signature=" + url.QueryEscape(sig)
	} else if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
