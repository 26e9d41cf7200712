// Package engine 同步引擎
//
// 一次运行经过 规划->抓取->批量落库->汇总 四个阶段，运行之间不保留任何状态，
// 崩溃后直接重跑即可，幂等写库保证不会产生重复数据。
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"AShareSync/pkg/model"
	"AShareSync/pkg/planner"
	"AShareSync/pkg/source"
)

// Storage 同步引擎依赖的存储能力
type Storage interface {
	// UpsertHistoricalBars 幂等写入日线数据，重复主键覆盖，返回写入行数
	UpsertHistoricalBars(bars []model.HistoricalBar) (int64, error)
	// LatestDates 返回每只股票已入库数据的最新日期
	LatestDates() (map[string]time.Time, error)
	// AllKnownCodes 返回代码表中的全部股票代码
	AllKnownCodes() ([]string, error)
}

// Options 单次同步运行的参数
type Options struct {
	// Concurrency 抓取并发数，默认10
	Concurrency int
	// BatchSize 每批落库的股票数，默认100
	BatchSize int
	// ForceFullSync 跳过新鲜度判断，全部股票按全量回填处理
	ForceFullSync bool
	// Limit 只处理工作队列前N只股票，0为不限
	Limit int
}

const (
	defaultConcurrency = 10
	defaultBatchSize   = 100
)

// SyncEngine 日线数据同步引擎
type SyncEngine struct {
	storage Storage
	klines  source.KlineAdapter
	planner *planner.FreshnessPlanner
}

// NewSyncEngine 创建同步引擎
func NewSyncEngine(storage Storage, klines source.KlineAdapter, p *planner.FreshnessPlanner) *SyncEngine {
	return &SyncEngine{storage: storage, klines: klines, planner: p}
}

// fetchResult 单只股票的抓取产出，进入批量累积器
type fetchResult struct {
	code   string
	action model.SyncAction
	bars   []model.HistoricalBar
}

// Run 执行一次同步
//
// 每只股票恰好产生一个抓取任务；抓取失败只标记该股票失败，不中断运行。
// 落库失败记录整批股票代码后带错继续，运行结束时作为运行级错误返回。
func (e *SyncEngine) Run(ctx context.Context, universe []string, opts Options) (*model.SyncSummary, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	summary := model.NewSyncSummary()
	log.Printf("同步开始 run_id=%s 股票数=%d 并发=%d 批大小=%d",
		summary.RunID, len(universe), opts.Concurrency, opts.BatchSize)

	// 规划阶段
	plan, err := e.plan(universe, opts.ForceFullSync)
	if err != nil {
		return nil, fmt.Errorf("同步规划失败: %w", err)
	}
	summary.Planned = plan.Total()
	summary.UpToDate = len(plan.UpToDate)
	for _, code := range plan.UpToDate {
		summary.Results = append(summary.Results, model.CodeResult{Code: code, Action: model.ActionUpToDate})
	}

	queue := plan.WorkQueue()
	if opts.Limit > 0 && len(queue) > opts.Limit {
		queue = queue[:opts.Limit]
	}
	log.Printf("规划完成 全量回填=%d 增量补齐=%d 已是最新=%d 本次处理=%d",
		len(plan.NeedsFullBackfill), len(plan.NeedsLatestOnly), len(plan.UpToDate), len(queue))

	backfill := make(map[string]bool, len(plan.NeedsFullBackfill))
	for _, code := range plan.NeedsFullBackfill {
		backfill[code] = true
	}

	// 抓取阶段: 有界工作池 + 互斥保护的批量累积器
	acc := newAccumulator(e.storage, opts.BatchSize)
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, opts.Concurrency)
		mu  sync.Mutex
	)

	for _, code := range queue {
		select {
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			defer func() { <-sem }()

			action := model.ActionLatestOnly
			var start time.Time
			if backfill[code] {
				action = model.ActionFullBackfill
			} else {
				start = plan.FetchStart[code]
			}

			bars, err := e.klines.FetchDaily(ctx, code, start, time.Time{})
			if err != nil {
				log.Printf("抓取 %s 日线失败: %v", code, err)
				mu.Lock()
				summary.FailedCodes[code] = err.Error()
				summary.Results = append(summary.Results, model.CodeResult{
					Code: code, Action: action, Err: err.Error(),
				})
				mu.Unlock()
				return
			}

			mu.Lock()
			switch action {
			case model.ActionFullBackfill:
				summary.FullSynced++
			case model.ActionLatestOnly:
				summary.LatestOnly++
			}
			summary.Results = append(summary.Results, model.CodeResult{
				Code: code, Action: action, RowsStored: int64(len(bars)),
			})
			mu.Unlock()

			acc.add(fetchResult{code: code, action: action, bars: bars})
		}(code)
	}
	wg.Wait()

	// 扫尾: 不足一批的剩余数据落库
	acc.finish()

	summary.Failed = len(summary.FailedCodes)
	summary.RowsStored = acc.rowsStored()
	summary.FlushCount = acc.flushes()
	summary.FinishedAt = time.Now()

	log.Printf("同步结束 run_id=%s 全量=%d 增量=%d 跳过=%d 失败=%d 写入行数=%d 耗时=%s",
		summary.RunID, summary.FullSynced, summary.LatestOnly, summary.UpToDate,
		summary.Failed, summary.RowsStored, summary.Duration().Round(time.Millisecond))

	if err := acc.err(); err != nil {
		return summary, fmt.Errorf("部分批次落库失败: %w", err)
	}
	return summary, nil
}

// plan 计算本次同步范围
func (e *SyncEngine) plan(universe []string, force bool) (model.SyncPlan, error) {
	if force {
		return e.planner.FullBackfillPlan(universe), nil
	}
	latest, err := e.storage.LatestDates()
	if err != nil {
		return model.SyncPlan{}, fmt.Errorf("查询最新日期失败: %w", err)
	}
	return e.planner.Plan(universe, latest), nil
}

// accumulator 批量落库累积器
// 攒满batchSize只股票后合并成一次写库调用，摊薄单次调用开销
type accumulator struct {
	storage   Storage
	batchSize int

	mu       sync.Mutex
	pending  []fetchResult
	rows     int64
	count    int
	flushErr error
}

func newAccumulator(storage Storage, batchSize int) *accumulator {
	return &accumulator{storage: storage, batchSize: batchSize}
}

// add 追加一只股票的抓取结果，攒满一批时同步落库
func (a *accumulator) add(r fetchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, r)
	if len(a.pending) >= a.batchSize {
		a.flushLocked()
	}
}

// finish 把不足一批的剩余数据落库
func (a *accumulator) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) > 0 {
		a.flushLocked()
	}
}

// flushLocked 执行一次批量写库，调用方需持锁
// 失败时记录整批股票代码，下次运行可以只补这些
func (a *accumulator) flushLocked() {
	batch := a.pending
	a.pending = nil

	var bars []model.HistoricalBar
	codes := make([]string, 0, len(batch))
	for _, r := range batch {
		bars = append(bars, r.bars...)
		codes = append(codes, r.code)
	}
	if len(bars) == 0 {
		return
	}

	a.count++
	n, err := a.storage.UpsertHistoricalBars(bars)
	if err != nil {
		log.Printf("批量落库失败 股票=[%s]: %v", strings.Join(codes, ","), err)
		a.flushErr = err
		return
	}
	a.rows += n
}

func (a *accumulator) rowsStored() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rows
}

func (a *accumulator) flushes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *accumulator) err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushErr
}
