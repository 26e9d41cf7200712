package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
)

// SourceXueqiu 雪球数据源标识
const SourceXueqiu = "xueqiu"

// DefaultXueqiuBaseURL 雪球公司信息接口默认地址
const DefaultXueqiuBaseURL = "https://stock.xueqiu.com"

// XueqiuAdapter 雪球公司基本信息适配器（次数据源）
// 估值与公司资料类字段以该源为准
// 雪球限流较激进，配合自适应限速器使用
type XueqiuAdapter struct {
	baseURL     string
	client      *http.Client
	limiter     *ratelimit.AdaptiveLimiter
	policy      retry.Policy
	waitTimeout time.Duration
}

// NewXueqiuAdapter 创建雪球适配器
func NewXueqiuAdapter(baseURL string, limiter *ratelimit.AdaptiveLimiter, policy retry.Policy) *XueqiuAdapter {
	if baseURL == "" {
		baseURL = DefaultXueqiuBaseURL
	}
	return &XueqiuAdapter{
		baseURL:     baseURL,
		client:      newHTTPClient(0),
		limiter:     limiter,
		policy:      policy,
		waitTimeout: 60 * time.Second,
	}
}

// ID 返回数据源标识
func (a *XueqiuAdapter) ID() string { return SourceXueqiu }

type xueqiuResponse struct {
	Data struct {
		Company map[string]any `json:"company"`
	} `json:"data"`
	ErrorCode int    `json:"error_code"`
	ErrorDesc string `json:"error_description"`
}

// FetchInfo 抓取公司基本信息
// 雪球接口要求带交易所前缀的symbol，如SH600000
func (a *XueqiuAdapter) FetchInfo(ctx context.Context, code string) model.FetchOutcome {
	symbol, err := model.PrefixedSymbol(code)
	if err != nil {
		return model.Failure(retry.NewValidationError(err))
	}

	var fields map[string]string
	err = retry.Do(ctx, a.policy, func() error {
		if err := acquire(ctx, a.limiter, a.waitTimeout); err != nil {
			return err
		}

		url := fmt.Sprintf("%s/v5/stock/f10/cn/company.json?symbol=%s", a.baseURL, symbol)
		raw, err := a.get(ctx, url)
		if err != nil {
			if retry.IsRateLimited(err) && a.limiter != nil {
				a.limiter.ReportThrottled(retryAfterHint(err))
			}
			return err
		}

		var resp xueqiuResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return retry.NewParsingError(fmt.Errorf("解析雪球响应失败: %w", err), string(raw))
		}
		if resp.ErrorCode != 0 {
			return fmt.Errorf("雪球接口返回业务错误 %d: %s", resp.ErrorCode, resp.ErrorDesc)
		}

		if a.limiter != nil {
			a.limiter.ReportSuccess()
		}
		fields = flattenXueqiu(resp.Data.Company)
		return nil
	})
	if err != nil {
		return model.Failure(fmt.Errorf("雪球抓取 %s 失败: %w", code, err))
	}
	if len(fields) == 0 {
		return model.Empty()
	}
	return model.Success(fields)
}

// rateLimitHTTPError 携带Retry-After提示的限流错误
type rateLimitHTTPError struct {
	retryAfter time.Duration
	inner      *retry.SourceError
}

func (e *rateLimitHTTPError) Error() string { return e.inner.Error() }
func (e *rateLimitHTTPError) Unwrap() error { return e.inner }

// retryAfterHint 从错误中提取服务端建议的等待时长，没有返回0
func retryAfterHint(err error) time.Duration {
	if e, ok := err.(*rateLimitHTTPError); ok {
		return e.retryAfter
	}
	return 0
}

// get 执行一次HTTP请求并读取响应体
func (a *XueqiuAdapter) get(ctx context.Context, url string) ([]byte, error) {
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
		var hint time.Duration
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
				hint = time.Duration(secs) * time.Second
			}
		}
		return nil, &rateLimitHTTPError{
			retryAfter: hint,
			inner:      retry.NewRateLimitError(fmt.Errorf("雪球接口返回429")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("雪球接口返回非200状态码: %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}

// flattenXueqiu 把公司信息扁平化为字符串映射
// 嵌套结构只展开一层，列表与占位值丢弃
func flattenXueqiu(company map[string]any) map[string]string {
	if len(company) == 0 {
		return nil
	}
	fields := make(map[string]string, len(company))
	for key, raw := range company {
		switch v := raw.(type) {
		case map[string]any:
			for sub, subRaw := range v {
				if s, ok := normalizeValue(subRaw); ok {
					fields[key+"."+sub] = s
				}
			}
		case []any:
			// 列表字段（高管名单等）不参与合并，跳过
		default:
			if s, ok := normalizeValue(raw); ok {
				fields[key] = s
			}
		}
	}
	return fields
}
