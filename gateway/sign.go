package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// timeNowMillis 可在测试中替换。
var timeNowMillis = func() int64 { return time.Now().UnixMilli() }

// SignParams 追加 timestamp 并按 key 排序编码，返回 query 与 HMAC-SHA256 签名。
func SignParams(params map[string]string, secret string) (string, string) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	if values.Get("timestamp") == "" {
		values.Set("timestamp", strconv.FormatInt(timeNowMillis(), 10))
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	query := ""
	for i, k := range keys {
		if i > 0 {
			query += "&"
		}
		query += url.QueryEscape(k) + "=" + url.QueryEscape(values.Get(k))
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return query, hex.EncodeToString(mac.Sum(nil))
}
