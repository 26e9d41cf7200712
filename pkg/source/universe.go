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

// universePageSize 股票列表接口单页条数
const universePageSize = 100

// UniverseFetcher 全市场股票代码表抓取器
// 从东方财富列表接口分页拉取沪深京全部A股的代码和名称
type UniverseFetcher struct {
	baseURL     string
	client      *http.Client
	limiter     ratelimit.Limiter
	policy      retry.Policy
	waitTimeout time.Duration
}

// NewUniverseFetcher 创建代码表抓取器
func NewUniverseFetcher(baseURL string, limiter ratelimit.Limiter, policy retry.Policy) *UniverseFetcher {
	if baseURL == "" {
		baseURL = DefaultEastmoneyBaseURL
	}
	return &UniverseFetcher{
		baseURL:     baseURL,
		client:      newHTTPClient(0),
		limiter:     limiter,
		policy:      policy,
		waitTimeout: 30 * time.Second,
	}
}

type universeResponse struct {
	Data struct {
		Total int `json:"total"`
		Diff  []struct {
			Code string `json:"f12"`
			Name string `json:"f14"`
		} `json:"diff"`
	} `json:"data"`
}

// FetchAll 分页拉取全部A股代码表
// 列表接口偶发返回非法代码（退市占位等），逐条校验后丢弃
func (f *UniverseFetcher) FetchAll(ctx context.Context) ([]model.StockIdentity, error) {
	var stocks []model.StockIdentity
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		var resp universeResponse
		err := retry.Do(ctx, f.policy, func() error {
			if err := acquire(ctx, f.limiter, f.waitTimeout); err != nil {
				return err
			}
			return f.fetchPage(ctx, page, &resp)
		})
		if err != nil {
			return nil, fmt.Errorf("拉取股票列表第 %d 页失败: %w", page, err)
		}

		for _, row := range resp.Data.Diff {
			if model.ValidateStockCode(row.Code) != nil || seen[row.Code] {
				continue
			}
			seen[row.Code] = true
			stocks = append(stocks, model.StockIdentity{Code: row.Code, Name: row.Name})
		}

		if len(resp.Data.Diff) < universePageSize || len(stocks) >= resp.Data.Total {
			break
		}
	}
	return stocks, nil
}

// fetchPage 拉取一页列表数据
func (f *UniverseFetcher) fetchPage(ctx context.Context, page int, out *universeResponse) error {
	// fs参数圈定沪深京A股板块，fields只要代码和名称
	url := fmt.Sprintf("%s/api/qt/clist/get?pn=%d&pz=%d&po=1&np=1&fltt=2&invt=2"+
		"&fs=m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23,m:0+t:81+s:2048&fields=f12,f14",
		f.baseURL, page, universePageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return retry.NewRateLimitError(fmt.Errorf("股票列表接口返回429"))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("股票列表接口返回非200状态码: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}
	*out = universeResponse{}
	if err := json.Unmarshal(raw, out); err != nil {
		return retry.NewParsingError(fmt.Errorf("解析股票列表响应失败: %w", err), string(raw))
	}
	return nil
}
