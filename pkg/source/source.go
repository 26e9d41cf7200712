// Package source 各外部行情数据源的适配器
//
// 适配器只负责抓取和扁平化，输出保留源原生字段名（含中文标签），
// 字段归一与多源合并由reconcile包完成，这样换数据源不用动合并逻辑。
package source

import (
	"context"
	"net/http"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
)

// InfoAdapter 个股信息数据源适配器
type InfoAdapter interface {
	// ID 数据源标识，用于限速key、合并优先级和source_status
	ID() string
	// FetchInfo 抓取个股信息，返回扁平字段映射或类型化失败
	// 空结果与传输失败严格区分
	FetchInfo(ctx context.Context, code string) model.FetchOutcome
}

// KlineAdapter 日线历史数据源适配器
type KlineAdapter interface {
	Name() string
	// FetchDaily 抓取[start, end]区间的日线数据，区间为零值时取全部历史
	FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error)
}

// defaultHTTPTimeout 单次出站请求超时
const defaultHTTPTimeout = 30 * time.Second

// maxResponseBytes 响应体读取上限，防止异常大响应拖垮进程
const maxResponseBytes = 8 << 20

// browserUserAgent 行情接口要求浏览器UA，否则部分源直接拒绝
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// newHTTPClient 数据源共用的HTTP客户端配置
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// acquire 在发起请求前获取限速许可，等待时长由waitTimeout约束
// 等不到许可按抓取失败处理，不影响整个运行
func acquire(ctx context.Context, l ratelimit.Limiter, waitTimeout time.Duration) error {
	if l == nil {
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	if err := l.Wait(wctx); err != nil {
		return &retry.SourceError{Kind: retry.KindTransient, Err: err}
	}
	return nil
}

// ChainKlineSource 依次尝试多个日线数据源
// 前一个失败或无数据时换下一个；全部无数据返回空切片，不算错误
type ChainKlineSource struct {
	adapters []KlineAdapter
}

// NewChainKlineSource 按优先级组合日线数据源
func NewChainKlineSource(adapters ...KlineAdapter) *ChainKlineSource {
	return &ChainKlineSource{adapters: adapters}
}

// Name 返回组合数据源标识
func (c *ChainKlineSource) Name() string { return "chain" }

// FetchDaily 依次尝试各数据源，返回第一个拿到数据的结果
func (c *ChainKlineSource) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	var lastErr error
	for _, a := range c.adapters {
		bars, err := a.FetchDaily(ctx, code, start, end)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	// 所有数据源都可达但都没有数据，按空结果处理
	return nil, nil
}
