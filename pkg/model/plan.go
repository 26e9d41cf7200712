package model

import (
	"time"
)

// SyncAction 单只股票在一次同步中被归入的动作
type SyncAction string

const (
	ActionFullBackfill SyncAction = "full_backfill"
	ActionLatestOnly   SyncAction = "latest_only"
	ActionUpToDate     SyncAction = "up_to_date"
)

// SyncPlan 一次同步的三路划分，每次运行重新计算，不做持久化
// 三个集合互不相交，并集等于universe
type SyncPlan struct {
	// NeedsFullBackfill 完全没有历史数据的股票
	NeedsFullBackfill []string
	// NeedsLatestOnly 有历史但缺最新交易日数据的股票
	NeedsLatestOnly []string
	// UpToDate 已经覆盖到最近交易日的股票
	UpToDate []string
	// FetchStart 增量同步股票的抓取起始日期（最新存量日期+1天）
	FetchStart map[string]time.Time
	// TargetDate 本次计划对照的最近交易日
	TargetDate time.Time
}

// WorkQueue 返回需要抓取的股票，全量补齐的排在前面
func (p *SyncPlan) WorkQueue() []string {
	queue := make([]string, 0, len(p.NeedsFullBackfill)+len(p.NeedsLatestOnly))
	queue = append(queue, p.NeedsFullBackfill...)
	queue = append(queue, p.NeedsLatestOnly...)
	return queue
}

// Total 返回universe总数
func (p *SyncPlan) Total() int {
	return len(p.NeedsFullBackfill) + len(p.NeedsLatestOnly) + len(p.UpToDate)
}
