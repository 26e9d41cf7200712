package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/planner"
)

// fakeStorage 幂等写库的内存实现，按 日期+代码 主键覆盖
type fakeStorage struct {
	mu      sync.Mutex
	rows    map[string]model.HistoricalBar
	latest  map[string]time.Time
	upserts int
	failAll bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		rows:   make(map[string]model.HistoricalBar),
		latest: make(map[string]time.Time),
	}
}

func (f *fakeStorage) UpsertHistoricalBars(bars []model.HistoricalBar) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.failAll {
		return 0, fmt.Errorf("数据库不可用")
	}
	for _, b := range bars {
		f.rows[b.StockCode+"|"+b.Date.Format("2006-01-02")] = b
	}
	return int64(len(bars)), nil
}

func (f *fakeStorage) LatestDates() (map[string]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]time.Time, len(f.latest))
	for k, v := range f.latest {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStorage) AllKnownCodes() ([]string, error) {
	return nil, nil
}

// fakeKlines 返回固定条数日线的测试源
type fakeKlines struct {
	mu       sync.Mutex
	barsPer  int
	failFor  map[string]bool
	fetched  []string
	maxInUse int
	inUse    int
}

func (f *fakeKlines) Name() string { return "fake" }

func (f *fakeKlines) FetchDaily(ctx context.Context, code string, start, end time.Time) ([]model.HistoricalBar, error) {
	f.mu.Lock()
	f.inUse++
	if f.inUse > f.maxInUse {
		f.maxInUse = f.inUse
	}
	f.fetched = append(f.fetched, code)
	fail := f.failFor[code]
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.inUse--
	f.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("抓取失败")
	}
	bars := make([]model.HistoricalBar, f.barsPer)
	for i := range bars {
		bars[i] = model.HistoricalBar{
			StockCode: code,
			Date:      time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.Local),
			Close:     10,
		}
	}
	return bars, nil
}

func testEngine(storage Storage, klines *fakeKlines) *SyncEngine {
	clock := func() time.Time { return time.Date(2024, 1, 10, 18, 0, 0, 0, time.Local) }
	return NewSyncEngine(storage, klines, planner.NewWithClock(clock))
}

func codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%06d", 600000+i)
	}
	return out
}

func TestRunBatchFlushCounts(t *testing.T) {
	storage := newFakeStorage()
	klines := &fakeKlines{barsPer: 3}
	e := testEngine(storage, klines)

	// 5只股票、批大小2: 落库应为2-2-1共3次
	summary, err := e.Run(context.Background(), codes(5), Options{Concurrency: 1, BatchSize: 2})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if storage.upserts != 3 {
		t.Errorf("落库次数 = %d, 期望 3", storage.upserts)
	}
	if summary.FlushCount != 3 {
		t.Errorf("汇总落库次数 = %d, 期望 3", summary.FlushCount)
	}
	if summary.RowsStored != 15 {
		t.Errorf("写入行数 = %d, 期望 15", summary.RowsStored)
	}
	if summary.FullSynced != 5 {
		t.Errorf("全量 = %d, 期望 5", summary.FullSynced)
	}
}

func TestRunIdempotent(t *testing.T) {
	storage := newFakeStorage()
	klines := &fakeKlines{barsPer: 4}
	e := testEngine(storage, klines)

	// 同一批数据重复运行，行数不增长
	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background(), codes(3), Options{ForceFullSync: true, BatchSize: 10}); err != nil {
			t.Fatalf("第%d次运行失败: %v", i+1, err)
		}
	}
	if len(storage.rows) != 12 {
		t.Errorf("库内行数 = %d, 重复运行应覆盖而非累加, 期望 12", len(storage.rows))
	}
}

func TestRunFailureContainment(t *testing.T) {
	storage := newFakeStorage()
	klines := &fakeKlines{barsPer: 2, failFor: map[string]bool{"600001": true}}
	e := testEngine(storage, klines)

	summary, err := e.Run(context.Background(), codes(3), Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("单只失败不应中断运行: %v", err)
	}

	if summary.Failed != 1 {
		t.Errorf("失败数 = %d, 期望 1", summary.Failed)
	}
	if _, ok := summary.FailedCodes["600001"]; !ok {
		t.Errorf("失败清单 = %v, 应包含600001", summary.FailedCodes)
	}
	// 其余股票照常落库
	if summary.RowsStored != 4 {
		t.Errorf("写入行数 = %d, 期望 4", summary.RowsStored)
	}
}

func TestRunStorageFailureSurfaces(t *testing.T) {
	storage := newFakeStorage()
	storage.failAll = true
	klines := &fakeKlines{barsPer: 2}
	e := testEngine(storage, klines)

	summary, err := e.Run(context.Background(), codes(4), Options{BatchSize: 2})
	if err == nil {
		t.Fatal("落库失败应作为运行级错误返回")
	}
	if summary == nil {
		t.Fatal("带错返回时仍应给出汇总")
	}
	// 第一批失败后继续尝试后续批次
	if storage.upserts != 2 {
		t.Errorf("落库尝试次数 = %d, 期望 2", storage.upserts)
	}
}

func TestRunSkipsUpToDate(t *testing.T) {
	storage := newFakeStorage()
	// 600000已覆盖到目标日(2024-01-10周三), 600001落后
	storage.latest["600000"] = time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	storage.latest["600001"] = time.Date(2024, 1, 8, 0, 0, 0, 0, time.Local)
	klines := &fakeKlines{barsPer: 1}
	e := testEngine(storage, klines)

	summary, err := e.Run(context.Background(), []string{"600000", "600001", "600002"}, Options{BatchSize: 10})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}

	if summary.UpToDate != 1 || summary.LatestOnly != 1 || summary.FullSynced != 1 {
		t.Errorf("分类计数 = 最新%d/增量%d/全量%d, 期望 1/1/1",
			summary.UpToDate, summary.LatestOnly, summary.FullSynced)
	}
	// 已是最新的股票不产生抓取
	for _, c := range klines.fetched {
		if c == "600000" {
			t.Error("已是最新的股票不应抓取")
		}
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	storage := newFakeStorage()
	klines := &fakeKlines{barsPer: 1}
	e := testEngine(storage, klines)

	if _, err := e.Run(context.Background(), codes(20), Options{Concurrency: 3, BatchSize: 100}); err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if klines.maxInUse > 3 {
		t.Errorf("并发峰值 = %d, 超过上限 3", klines.maxInUse)
	}
	// 每只股票恰好抓取一次
	if len(klines.fetched) != 20 {
		t.Errorf("抓取次数 = %d, 期望 20", len(klines.fetched))
	}
}

func TestRunLimit(t *testing.T) {
	storage := newFakeStorage()
	klines := &fakeKlines{barsPer: 1}
	e := testEngine(storage, klines)

	summary, err := e.Run(context.Background(), codes(10), Options{Limit: 3, BatchSize: 10})
	if err != nil {
		t.Fatalf("运行失败: %v", err)
	}
	if len(klines.fetched) != 3 {
		t.Errorf("抓取次数 = %d, Limit应截断队列, 期望 3", len(klines.fetched))
	}
	if summary.FullSynced != 3 {
		t.Errorf("全量 = %d, 期望 3", summary.FullSynced)
	}
}
