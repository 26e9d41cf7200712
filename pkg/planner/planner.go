// Package planner 同步范围规划
//
// 每次运行根据库中已有数据的最新日期，把股票代码划分为三类：
// 从未入库的全量回填、有缺口的增量补齐、已是最新的跳过。
// 规划不落盘，崩溃后重跑只多付一次元数据查询。
package planner

import (
	"time"

	"AShareSync/pkg/model"
)

// FreshnessPlanner 按库内数据新鲜度划分同步范围
type FreshnessPlanner struct {
	// now 可注入的时钟，测试用
	now func() time.Time
}

// New 创建规划器
func New() *FreshnessPlanner {
	return &FreshnessPlanner{now: time.Now}
}

// NewWithClock 创建使用指定时钟的规划器
func NewWithClock(now func() time.Time) *FreshnessPlanner {
	return &FreshnessPlanner{now: now}
}

// TargetDate 返回应当对齐到的最近交易日
// 周六周日回退到上一个周五；节假日不识别，空抓一次代价可接受
func (p *FreshnessPlanner) TargetDate(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch day.Weekday() {
	case time.Saturday:
		return day.AddDate(0, 0, -1)
	case time.Sunday:
		return day.AddDate(0, 0, -2)
	default:
		return day
	}
}

// Plan 把代码全集划分为三个互斥分区
//
// 没有任何历史的代码进全量回填；最新日期落后目标日的进增量补齐，
// 并记录 最新日期+1天 作为抓取起点；已到或超过目标日的跳过。
// 最新日期晚于目标日（时钟漂移、未来脏数据）按已是最新处理，不算错误。
func (p *FreshnessPlanner) Plan(universe []string, latest map[string]time.Time) model.SyncPlan {
	plan := model.SyncPlan{
		FetchStart: make(map[string]time.Time),
		TargetDate: p.TargetDate(p.now()),
	}

	for _, code := range universe {
		last, ok := latest[code]
		if !ok || last.IsZero() {
			plan.NeedsFullBackfill = append(plan.NeedsFullBackfill, code)
			continue
		}
		if !last.Before(plan.TargetDate) {
			plan.UpToDate = append(plan.UpToDate, code)
			continue
		}
		plan.NeedsLatestOnly = append(plan.NeedsLatestOnly, code)
		plan.FetchStart[code] = last.AddDate(0, 0, 1)
	}
	return plan
}

// FullBackfillPlan 把全部代码视为需要全量回填
// 强制全量同步时跳过新鲜度判断
func (p *FreshnessPlanner) FullBackfillPlan(universe []string) model.SyncPlan {
	return model.SyncPlan{
		NeedsFullBackfill: append([]string(nil), universe...),
		FetchStart:        make(map[string]time.Time),
		TargetDate:        p.TargetDate(p.now()),
	}
}
