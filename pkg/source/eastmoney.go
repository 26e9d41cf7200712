package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
)

// SourceEastmoney 东方财富数据源标识
const SourceEastmoney = "eastmoney"

// DefaultEastmoneyBaseURL 东方财富行情接口默认地址
const DefaultEastmoneyBaseURL = "https://push2.eastmoney.com"

// 东方财富接口的字段编号到中文标签映射
// 输出保留中文标签，与上游展示字段一致
var eastmoneyFieldLabels = map[string]string{
	"f43":  "最新",
	"f44":  "最高",
	"f45":  "最低",
	"f46":  "今开",
	"f47":  "总手",
	"f48":  "金额",
	"f50":  "量比",
	"f57":  "股票代码",
	"f58":  "股票简称",
	"f60":  "昨收",
	"f84":  "总股本",
	"f85":  "流通股",
	"f116": "总市值",
	"f117": "流通市值",
	"f127": "行业",
	"f162": "市盈率-动态",
	"f167": "市净率",
	"f168": "换手",
	"f169": "涨跌",
	"f170": "涨幅",
	"f189": "上市时间",
}

// EastmoneyAdapter 东方财富个股信息适配器（主数据源）
// 行情与成交类字段以该源为准
type EastmoneyAdapter struct {
	baseURL     string
	client      *http.Client
	limiter     ratelimit.Limiter
	policy      retry.Policy
	waitTimeout time.Duration
}

// NewEastmoneyAdapter 创建东方财富适配器
func NewEastmoneyAdapter(baseURL string, limiter ratelimit.Limiter, policy retry.Policy) *EastmoneyAdapter {
	if baseURL == "" {
		baseURL = DefaultEastmoneyBaseURL
	}
	return &EastmoneyAdapter{
		baseURL:     baseURL,
		client:      newHTTPClient(0),
		limiter:     limiter,
		policy:      policy,
		waitTimeout: 30 * time.Second,
	}
}

// ID 返回数据源标识
func (a *EastmoneyAdapter) ID() string { return SourceEastmoney }

// secID 东方财富的市场编码: 上海为1，深圳/北京为0
func secID(code string) string {
	if code[0] == '6' {
		return "1." + code
	}
	return "0." + code
}

type eastmoneyResponse struct {
	Data map[string]any `json:"data"`
}

// FetchInfo 抓取个股信息
// 校验失败不发起请求；空数据与传输失败分别返回Empty/Failure
func (a *EastmoneyAdapter) FetchInfo(ctx context.Context, code string) model.FetchOutcome {
	if err := model.ValidateStockCode(code); err != nil {
		return model.Failure(retry.NewValidationError(err))
	}

	var fields map[string]string
	err := retry.Do(ctx, a.policy, func() error {
		if err := acquire(ctx, a.limiter, a.waitTimeout); err != nil {
			return err
		}

		url := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&invt=2&fltt=2&fields=%s",
			a.baseURL, secID(code), eastmoneyFieldList())

		raw, err := a.get(ctx, url)
		if err != nil {
			return err
		}

		var resp eastmoneyResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return retry.NewParsingError(fmt.Errorf("解析东方财富响应失败: %w", err), string(raw))
		}

		fields = flattenEastmoney(resp.Data)
		return nil
	})
	if err != nil {
		return model.Failure(fmt.Errorf("东方财富抓取 %s 失败: %w", code, err))
	}
	if len(fields) == 0 {
		return model.Empty()
	}
	return model.Success(fields)
}

// get 执行一次HTTP请求并读取响应体
func (a *EastmoneyAdapter) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.NewRateLimitError(fmt.Errorf("东方财富接口返回429"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("东方财富接口返回非200状态码: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// flattenEastmoney 把字段编号响应扁平化为中文标签映射
// 占位值在边界处丢弃，不带出适配器
func flattenEastmoney(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	fields := make(map[string]string, len(data))
	for id, label := range eastmoneyFieldLabels {
		raw, ok := data[id]
		if !ok {
			continue
		}
		if v, ok := normalizeValue(raw); ok {
			fields[label] = v
		}
	}
	return fields
}

// eastmoneyFieldList 返回请求的字段编号列表
func eastmoneyFieldList() string {
	list := ""
	for id := range eastmoneyFieldLabels {
		if list != "" {
			list += ","
		}
		list += id
	}
	return list
}
