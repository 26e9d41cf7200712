package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/ratelimit"
	"AShareSync/pkg/retry"
)

// instantPolicy 测试用零等待重试策略
func instantPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Microsecond,
		Multiplier:     1,
	}
}

func TestSecID(t *testing.T) {
	cases := map[string]string{
		"600000": "1.600000",
		"000001": "0.000001",
		"300750": "0.300750",
		"830799": "0.830799",
	}
	for code, want := range cases {
		if got := secID(code); got != want {
			t.Errorf("secID(%s) = %s, 期望 %s", code, got, want)
		}
	}
}

func TestTencentSymbol(t *testing.T) {
	cases := map[string]string{
		"600000": "sh600000",
		"000001": "sz000001",
		"830799": "bj830799",
	}
	for code, want := range cases {
		got, err := tencentSymbol(code)
		if err != nil {
			t.Errorf("tencentSymbol(%s): %v", code, err)
			continue
		}
		if got != want {
			t.Errorf("tencentSymbol(%s) = %s, 期望 %s", code, got, want)
		}
	}
}

func TestEastmoneyFetchInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("secid"); got != "1.600000" {
			t.Errorf("secid = %s, 期望 1.600000", got)
		}
		fmt.Fprint(w, `{"data":{"f43":10.52,"f57":"600000","f58":"浦发银行","f47":1234567,"f170":1.25,"f127":"-"}}`)
	}))
	defer srv.Close()

	a := NewEastmoneyAdapter(srv.URL, nil, instantPolicy(0))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeSuccess {
		t.Fatalf("状态 = %v, 期望成功: %v", out.Status, out.Err)
	}
	if got := out.Fields["最新"]; got != "10.52" {
		t.Errorf("最新 = %q, 期望 10.52", got)
	}
	if got := out.Fields["股票简称"]; got != "浦发银行" {
		t.Errorf("股票简称 = %q, 期望 浦发银行", got)
	}
	if got := out.Fields["总手"]; got != "1234567" {
		t.Errorf("总手 = %q, 期望 1234567", got)
	}
	// 占位值在边界处丢弃
	if _, ok := out.Fields["行业"]; ok {
		t.Errorf("占位值字段不应出现: %v", out.Fields)
	}
}

func TestEastmoneyFetchInfoEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	}))
	defer srv.Close()

	a := NewEastmoneyAdapter(srv.URL, nil, instantPolicy(0))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeEmpty {
		t.Fatalf("状态 = %v, 期望空结果", out.Status)
	}
	if out.Err != nil {
		t.Errorf("空结果不应携带错误: %v", out.Err)
	}
}

func TestEastmoneyFetchInfoInvalidCode(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	a := NewEastmoneyAdapter(srv.URL, nil, instantPolicy(3))
	out := a.FetchInfo(context.Background(), "60000")

	if out.Status != model.OutcomeFailure {
		t.Fatalf("状态 = %v, 期望失败", out.Status)
	}
	if hits.Load() != 0 {
		t.Errorf("非法代码不应发起请求, 实际 %d 次", hits.Load())
	}
}

func TestEastmoneyFetchInfoServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewEastmoneyAdapter(srv.URL, nil, instantPolicy(2))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeFailure {
		t.Fatalf("状态 = %v, 期望失败", out.Status)
	}
	if out.Err == nil {
		t.Fatal("失败结果应携带错误")
	}
	// 非200状态码不在瞬时错误之列，只请求一次
	if hits.Load() != 1 {
		t.Errorf("请求次数 = %d, 期望 1", hits.Load())
	}
}

func TestXueqiuFetchInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "SH600000" {
			t.Errorf("symbol = %s, 期望 SH600000", got)
		}
		fmt.Fprint(w, `{"data":{"company":{"org_name_cn":"上海浦东发展银行股份有限公司","org_id":"T000012","pb_ratio":0.45,"staff_num":63582,"executives":[{"name":"张三"}]}},"error_code":0}`)
	}))
	defer srv.Close()

	lim := ratelimit.NewAdaptive(0)
	a := NewXueqiuAdapter(srv.URL, lim, instantPolicy(0))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeSuccess {
		t.Fatalf("状态 = %v, 期望成功: %v", out.Status, out.Err)
	}
	if got := out.Fields["org_name_cn"]; got != "上海浦东发展银行股份有限公司" {
		t.Errorf("org_name_cn = %q", got)
	}
	if got := out.Fields["pb_ratio"]; got != "0.45" {
		t.Errorf("pb_ratio = %q, 期望 0.45", got)
	}
	// 列表字段不参与合并
	if _, ok := out.Fields["executives"]; ok {
		t.Errorf("列表字段不应出现: %v", out.Fields)
	}
}

func TestXueqiuThrottleFeedback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	lim := ratelimit.NewAdaptive(time.Millisecond)
	a := NewXueqiuAdapter(srv.URL, lim, instantPolicy(0))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeFailure {
		t.Fatalf("状态 = %v, 期望失败", out.Status)
	}
	if !retry.IsRateLimited(out.Err) {
		t.Errorf("错误应识别为限流: %v", out.Err)
	}
	// 限流反馈应把间隔抬到服务端建议值之上
	if lim.Interval() < 6*time.Second {
		t.Errorf("限流后的间隔 = %v, 期望不低于6s", lim.Interval())
	}
}

func TestXueqiuSuccessDecay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"company":{"org_id":"T000012"}},"error_code":0}`)
	}))
	defer srv.Close()

	lim := ratelimit.NewAdaptive(time.Millisecond)
	lim.ReportThrottled(0)
	raised := lim.Interval()

	a := NewXueqiuAdapter(srv.URL, lim, instantPolicy(0))
	if out := a.FetchInfo(context.Background(), "600000"); out.Status != model.OutcomeSuccess {
		t.Fatalf("状态 = %v: %v", out.Status, out.Err)
	}
	// 成功后间隔逐步回落
	if lim.Interval() >= raised {
		t.Errorf("成功后的间隔 = %v, 应低于 %v", lim.Interval(), raised)
	}
}

func TestXueqiuBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{},"error_code":400016,"error_description":"参数错误"}`)
	}))
	defer srv.Close()

	a := NewXueqiuAdapter(srv.URL, nil, instantPolicy(0))
	out := a.FetchInfo(context.Background(), "600000")

	if out.Status != model.OutcomeFailure {
		t.Fatalf("状态 = %v, 期望失败", out.Status)
	}
}

func TestEastmoneyKlineFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("beg"); got != "20240102" {
			t.Errorf("beg = %s, 期望 20240102", got)
		}
		fmt.Fprint(w, `{"data":{"code":"600000","klines":[
			"2024-01-02,7.01,7.12,7.15,6.98,352016,248915320.00,2.43,1.57,0.11,0.12",
			"2024-01-03,7.12,7.08,7.20,7.05,298733,211502275.00,2.11,-0.56,-0.04,0.10"
		]}}`)
	}))
	defer srv.Close()

	a := NewEastmoneyKlineAdapter(srv.URL, nil, instantPolicy(0))
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)
	bars, err := a.FetchDaily(context.Background(), "600000", start, time.Time{})
	if err != nil {
		t.Fatalf("抓取失败: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("条数 = %d, 期望 2", len(bars))
	}
	first := bars[0]
	if first.StockCode != "600000" {
		t.Errorf("股票代码 = %s", first.StockCode)
	}
	if first.Date.Format("2006-01-02") != "2024-01-02" {
		t.Errorf("日期 = %v", first.Date)
	}
	if first.Close != 7.12 || first.Volume != 352016 {
		t.Errorf("收盘/成交量 = %v/%v", first.Close, first.Volume)
	}
	if first.ChangeRate != 1.57 {
		t.Errorf("涨跌幅 = %v, 期望 1.57", first.ChangeRate)
	}
}

func TestEastmoneyKlineMalformedLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"klines":["2024-01-02,7.01,7.12"]}}`)
	}))
	defer srv.Close()

	a := NewEastmoneyKlineAdapter(srv.URL, nil, instantPolicy(3))
	_, err := a.FetchDaily(context.Background(), "600000", time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("字段数不足应报错")
	}
}

func TestTencentKlineFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"sz000001":{"qfqday":[
			["2024-01-02","9.41","9.52","9.60","9.38","851234"],
			["2024-01-03","9.52","9.47","9.58","9.40","623400"],
			["2024-01-04","9.47","9.55","9.61","9.44","712800"]
		]}}}`)
	}))
	defer srv.Close()

	a := NewTencentKlineAdapter(srv.URL, nil, instantPolicy(0))
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.Local)
	bars, err := a.FetchDaily(context.Background(), "000001", start, end)
	if err != nil {
		t.Fatalf("抓取失败: %v", err)
	}

	// 区间外的数据在本地过滤
	if len(bars) != 1 {
		t.Fatalf("条数 = %d, 期望 1", len(bars))
	}
	b := bars[0]
	if b.Close != 9.47 || b.Volume != 623400 {
		t.Errorf("收盘/成交量 = %v/%v", b.Close, b.Volume)
	}
	// 腾讯不提供的字段补零
	if b.Amplitude != 0 || b.TurnoverRate != 0 {
		t.Errorf("缺失字段应为零值: %+v", b)
	}
}

func TestTencentKlineNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{}}`)
	}))
	defer srv.Close()

	a := NewTencentKlineAdapter(srv.URL, nil, instantPolicy(0))
	bars, err := a.FetchDaily(context.Background(), "000001", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("无数据不应报错: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("条数 = %d, 期望 0", len(bars))
	}
}

// failKline 总是失败的日线源
type failKline struct{}

func (failKline) Name() string { return "fail" }
func (failKline) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	return nil, fmt.Errorf("数据源不可用")
}

// fixedKline 返回固定数据的日线源
type fixedKline struct{ bars []model.HistoricalBar }

func (fixedKline) Name() string { return "fixed" }
func (f fixedKline) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	return f.bars, nil
}

func TestChainKlineFallback(t *testing.T) {
	want := []model.HistoricalBar{{StockCode: "600000"}}
	chain := NewChainKlineSource(failKline{}, fixedKline{bars: want})

	bars, err := chain.FetchDaily(context.Background(), "600000", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("备用源可用时不应报错: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("条数 = %d, 期望 1", len(bars))
	}
}

func TestChainKlineAllFail(t *testing.T) {
	chain := NewChainKlineSource(failKline{}, failKline{})
	if _, err := chain.FetchDaily(context.Background(), "600000", time.Time{}, time.Time{}); err == nil {
		t.Fatal("全部失败应返回错误")
	}
}

func TestChainKlineAllEmpty(t *testing.T) {
	chain := NewChainKlineSource(fixedKline{}, fixedKline{})
	bars, err := chain.FetchDaily(context.Background(), "600000", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("全部无数据不算错误: %v", err)
	}
	if bars != nil {
		t.Errorf("期望空结果, 实际 %v", bars)
	}
}

func TestUniverseFetchAllPaged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pn")
		switch page {
		case "1":
			fmt.Fprint(w, `{"data":{"total":102,"diff":[`+universeRows(0, 100)+`]}}`)
		case "2":
			fmt.Fprint(w, `{"data":{"total":102,"diff":[{"f12":"600000","f14":"浦发银行"},{"f12":"BAD","f14":"退市占位"}]}}`)
		default:
			t.Errorf("不该请求第 %s 页", page)
		}
	}))
	defer srv.Close()

	f := NewUniverseFetcher(srv.URL, nil, instantPolicy(0))
	stocks, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("拉取失败: %v", err)
	}

	// 非法代码丢弃后剩101条
	if len(stocks) != 101 {
		t.Fatalf("条数 = %d, 期望 101", len(stocks))
	}
	last := stocks[len(stocks)-1]
	if last.Code != "600000" || last.Name != "浦发银行" {
		t.Errorf("末条 = %+v", last)
	}
}

// universeRows 生成n条测试用列表行
func universeRows(offset, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if out != "" {
			out += ","
		}
		out += fmt.Sprintf(`{"f12":"%06d","f14":"测试%d"}`, offset+i+1, offset+i+1)
	}
	return out
}

func TestNormalizeValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"浦发银行", "浦发银行", true},
		{"  10.52  ", "10.52", true},
		{float64(1234567), "1234567", true},
		{10.52, "10.52", true},
		{nil, "", false},
		{"-", "", false},
		{"N/A", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := normalizeValue(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("normalizeValue(%v) = (%q, %v), 期望 (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
