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

// SourceTencent 腾讯数据源标识
const SourceTencent = "tencent"

// DefaultTencentKlineBaseURL 腾讯行情K线接口默认地址
const DefaultTencentKlineBaseURL = "https://web.ifzq.gtimg.cn"

// TencentKlineAdapter 腾讯日线历史数据适配器（备用日线源）
// 腾讯接口只返回日期和五个行情字段，振幅涨跌换手等缺失字段补零
type TencentKlineAdapter struct {
	baseURL     string
	client      *http.Client
	limiter     ratelimit.Limiter
	policy      retry.Policy
	waitTimeout time.Duration
}

// NewTencentKlineAdapter 创建腾讯日线适配器
func NewTencentKlineAdapter(baseURL string, limiter ratelimit.Limiter, policy retry.Policy) *TencentKlineAdapter {
	if baseURL == "" {
		baseURL = DefaultTencentKlineBaseURL
	}
	return &TencentKlineAdapter{
		baseURL:     baseURL,
		client:      newHTTPClient(0),
		limiter:     limiter,
		policy:      policy,
		waitTimeout: 30 * time.Second,
	}
}

// Name 返回数据源标识
func (a *TencentKlineAdapter) Name() string { return SourceTencent }

// tencentSymbol 腾讯接口的代码格式: 小写交易所前缀+六位代码，如sh600000
func tencentSymbol(code string) (string, error) {
	ex, err := model.ExchangeForCode(code)
	if err != nil {
		return "", err
	}
	return strings.ToLower(string(ex)) + code, nil
}

// FetchDaily 抓取前复权日线数据
func (a *TencentKlineAdapter) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	symbol, err := tencentSymbol(code)
	if err != nil {
		return nil, retry.NewValidationError(err)
	}

	var bars []model.HistoricalBar
	err = retry.Do(ctx, a.policy, func() error {
		if err := acquire(ctx, a.limiter, a.waitTimeout); err != nil {
			return err
		}

		// 腾讯接口按截止日期+条数取数，这里取足够覆盖全历史的条数后在本地过滤区间
		url := fmt.Sprintf("%s/appstock/app/fqkline/get?param=%s,day,,,%d,qfq",
			a.baseURL, symbol, 32000)

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
			return retry.NewRateLimitError(fmt.Errorf("腾讯K线接口返回429"))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("腾讯K线接口返回非200状态码: %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}

		days, err := extractTencentDays(raw, symbol)
		if err != nil {
			return err
		}
		bars, err = parseTencentDays(code, days, start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("腾讯抓取 %s 日线失败: %w", code, err)
	}
	return bars, nil
}

// extractTencentDays 从响应中取出symbol对应的日线数组
// 前复权数据在qfqday键下，个别品种只有day键
func extractTencentDays(raw []byte, symbol string) ([][]any, error) {
	var resp struct {
		Code int                       `json:"code"`
		Data map[string]map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, retry.NewParsingError(fmt.Errorf("解析腾讯K线响应失败: %w", err), string(raw))
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("腾讯K线接口返回业务错误: %d", resp.Code)
	}

	entry, ok := resp.Data[symbol]
	if !ok {
		return nil, nil
	}
	for _, key := range []string{"qfqday", "day"} {
		rawDays, ok := entry[key].([]any)
		if !ok {
			continue
		}
		days := make([][]any, 0, len(rawDays))
		for _, d := range rawDays {
			row, ok := d.([]any)
			if !ok {
				return nil, retry.NewParsingError(fmt.Errorf("腾讯K线行格式异常"), fmt.Sprintf("%v", d))
			}
			days = append(days, row)
		}
		return days, nil
	}
	return nil, nil
}

// parseTencentDays 解析日线数组并按区间过滤
// 行格式: [日期, 开盘, 收盘, 最高, 最低, 成交量]
func parseTencentDays(code string, days [][]any, start, end time.Time) ([]model.HistoricalBar, error) {
	bars := make([]model.HistoricalBar, 0, len(days))
	for _, row := range days {
		if len(row) < 6 {
			return nil, retry.NewParsingError(fmt.Errorf("腾讯K线行字段数不足: %d", len(row)), fmt.Sprintf("%v", row))
		}
		cell := func(i int) string {
			s, _ := normalizeValue(row[i])
			return s
		}
		date, err := time.ParseInLocation("2006-01-02", cell(0), time.Local)
		if err != nil {
			return nil, retry.NewParsingError(fmt.Errorf("腾讯K线日期格式错误: %w", err), cell(0))
		}
		if !start.IsZero() && date.Before(start) {
			continue
		}
		if !end.IsZero() && date.After(end) {
			continue
		}
		bars = append(bars, model.HistoricalBar{
			Date:      date,
			StockCode: code,
			Open:      parseFloat(cell(1), 0),
			Close:     parseFloat(cell(2), 0),
			High:      parseFloat(cell(3), 0),
			Low:       parseFloat(cell(4), 0),
			Volume:    parseInt(cell(5), 0),
		})
	}
	return bars, nil
}
