package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
)

// DefaultEastmoneyKlineBaseURL 东方财富历史K线接口默认地址
const DefaultEastmoneyKlineBaseURL = "https://push2his.eastmoney.com"

// EastmoneyKlineAdapter 东方财富日线历史数据适配器（主日线源）
type EastmoneyKlineAdapter struct {
	baseURL     string
	client      *http.Client
	limiter     ratelimit.Limiter
	policy      retry.Policy
	waitTimeout time.Duration
}

// NewEastmoneyKlineAdapter 创建东方财富日线适配器
func NewEastmoneyKlineAdapter(baseURL string, limiter ratelimit.Limiter, policy retry.Policy) *EastmoneyKlineAdapter {
	if baseURL == "" {
		baseURL = DefaultEastmoneyKlineBaseURL
	}
	return &EastmoneyKlineAdapter{
		baseURL:     baseURL,
		client:      newHTTPClient(0),
		limiter:     limiter,
		policy:      policy,
		waitTimeout: 30 * time.Second,
	}
}

// Name 返回数据源标识
func (a *EastmoneyKlineAdapter) Name() string { return SourceEastmoney }

type eastmoneyKlineResponse struct {
	Data struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchDaily 抓取前复权日线数据
func (a *EastmoneyKlineAdapter) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	if err := model.ValidateStockCode(code); err != nil {
		return nil, retry.NewValidationError(err)
	}

	beg := "0"
	if !start.IsZero() {
		beg = start.Format("20060102")
	}
	until := "20500101"
	if !end.IsZero() {
		until = end.Format("20060102")
	}

	var bars []model.HistoricalBar
	err := retry.Do(ctx, a.policy, func() error {
		if err := acquire(ctx, a.limiter, a.waitTimeout); err != nil {
			return err
		}

		url := fmt.Sprintf("%s/api/qt/stock/kline/get?secid=%s&klt=101&fqt=1&beg=%s&end=%s"+
			"&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61",
			a.baseURL, secID(code), beg, until)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", browserUserAgent)

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return retry.NewRateLimitError(fmt.Errorf("东方财富K线接口返回429"))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("东方财富K线接口返回非200状态码: %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}

		var kr eastmoneyKlineResponse
		if err := json.Unmarshal(raw, &kr); err != nil {
			return retry.NewParsingError(fmt.Errorf("解析东方财富K线响应失败: %w", err), string(raw))
		}

		bars, err = parseEastmoneyKlines(code, kr.Data.Klines)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("东方财富抓取 %s 日线失败: %w", code, err)
	}
	return bars, nil
}

// parseEastmoneyKlines 解析逗号分隔的K线行
// 行格式: 日期,开盘,收盘,最高,最低,成交量,成交额,振幅,涨跌幅,涨跌额,换手率
func parseEastmoneyKlines(code string, klines []string) ([]model.HistoricalBar, error) {
	bars := make([]model.HistoricalBar, 0, len(klines))
	for _, line := range klines {
		parts := strings.Split(line, ",")
		if len(parts) < 11 {
			return nil, retry.NewParsingError(fmt.Errorf("K线行字段数不足: %d", len(parts)), line)
		}
		date, err := time.ParseInLocation("2006-01-02", parts[0], time.Local)
		if err != nil {
			return nil, retry.NewParsingError(fmt.Errorf("K线日期格式错误: %w", err), line)
		}
		bars = append(bars, model.HistoricalBar{
			Date:         date,
			StockCode:    code,
			Open:         parseFloat(parts[1], 0),
			Close:        parseFloat(parts[2], 0),
			High:         parseFloat(parts[3], 0),
			Low:          parseFloat(parts[4], 0),
			Volume:       parseInt(parts[5], 0),
			Turnover:     parseFloat(parts[6], 0),
			Amplitude:    parseFloat(parts[7], 0),
			ChangeRate:   parseFloat(parts[8], 0),
			ChangeAmount: parseFloat(parts[9], 0),
			TurnoverRate: parseFloat(parts[10], 0),
		})
	}
	return bars, nil
}
