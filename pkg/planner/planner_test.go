package planner

import (
	"testing"
	"time"

	"AShareSync/pkg/model"
)

// fixedClock 固定在2024-01-10（周三）
func fixedClock() time.Time {
	return time.Date(2024, 1, 10, 15, 30, 0, 0, time.Local)
}

func TestTargetDateWeekday(t *testing.T) {
	p := New()
	got := p.TargetDate(time.Date(2024, 1, 10, 9, 15, 0, 0, time.Local))
	want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("TargetDate = %v, 期望 %v", got, want)
	}
}

func TestTargetDateWeekendRollback(t *testing.T) {
	p := New()
	friday := time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local)

	for _, d := range []time.Time{
		time.Date(2024, 1, 6, 10, 0, 0, 0, time.Local), // 周六
		time.Date(2024, 1, 7, 10, 0, 0, 0, time.Local), // 周日
	} {
		if got := p.TargetDate(d); !got.Equal(friday) {
			t.Errorf("TargetDate(%v) = %v, 期望回退到周五 %v", d.Weekday(), got, friday)
		}
	}
}

func TestPlanPartition(t *testing.T) {
	p := NewWithClock(fixedClock)
	universe := []string{"600000", "000001", "300750", "600519"}
	latest := map[string]time.Time{
		"000001": time.Date(2024, 1, 8, 0, 0, 0, 0, time.Local),  // 落后
		"300750": time.Date(2024, 1, 10, 0, 0, 0, 0, time.Local), // 已是最新
		"600519": time.Date(2024, 1, 12, 0, 0, 0, 0, time.Local), // 未来脏数据
	}

	plan := p.Plan(universe, latest)

	if len(plan.NeedsFullBackfill) != 1 || plan.NeedsFullBackfill[0] != "600000" {
		t.Errorf("全量回填 = %v", plan.NeedsFullBackfill)
	}
	if len(plan.NeedsLatestOnly) != 1 || plan.NeedsLatestOnly[0] != "000001" {
		t.Errorf("增量补齐 = %v", plan.NeedsLatestOnly)
	}
	// 未来日期按已是最新处理
	if len(plan.UpToDate) != 2 {
		t.Errorf("跳过 = %v", plan.UpToDate)
	}

	// 三个分区互斥且覆盖全集
	seen := make(map[string]int)
	for _, c := range plan.NeedsFullBackfill {
		seen[c]++
	}
	for _, c := range plan.NeedsLatestOnly {
		seen[c]++
	}
	for _, c := range plan.UpToDate {
		seen[c]++
	}
	if len(seen) != len(universe) {
		t.Errorf("分区覆盖 %d 个代码, 期望 %d", len(seen), len(universe))
	}
	for code, n := range seen {
		if n != 1 {
			t.Errorf("代码 %s 出现在 %d 个分区", code, n)
		}
	}
}

func TestPlanFetchStart(t *testing.T) {
	p := NewWithClock(fixedClock)
	latest := map[string]time.Time{
		"000001": time.Date(2024, 1, 8, 0, 0, 0, 0, time.Local),
	}

	plan := p.Plan([]string{"000001"}, latest)

	want := time.Date(2024, 1, 9, 0, 0, 0, 0, time.Local)
	if got := plan.FetchStart["000001"]; !got.Equal(want) {
		t.Errorf("抓取起点 = %v, 期望最新日期+1天 %v", got, want)
	}
}

func TestPlanWeekendScenario(t *testing.T) {
	// 周六运行，最新日期停在周五的代码应跳过
	saturday := func() time.Time { return time.Date(2024, 1, 6, 11, 0, 0, 0, time.Local) }
	p := NewWithClock(saturday)

	latest := map[string]time.Time{
		"600000": time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local), // 周五
		"000001": time.Date(2024, 1, 4, 0, 0, 0, 0, time.Local), // 周四
	}
	plan := p.Plan([]string{"600000", "000001"}, latest)

	if len(plan.UpToDate) != 1 || plan.UpToDate[0] != "600000" {
		t.Errorf("跳过 = %v, 周五收盘数据在周末算最新", plan.UpToDate)
	}
	if len(plan.NeedsLatestOnly) != 1 || plan.NeedsLatestOnly[0] != "000001" {
		t.Errorf("增量补齐 = %v", plan.NeedsLatestOnly)
	}
}

func TestWorkQueueBackfillFirst(t *testing.T) {
	plan := model.SyncPlan{
		NeedsFullBackfill: []string{"600000"},
		NeedsLatestOnly:   []string{"000001", "300750"},
	}
	q := plan.WorkQueue()
	if len(q) != 3 || q[0] != "600000" {
		t.Errorf("队列 = %v, 全量回填应排在最前", q)
	}
}

func TestFullBackfillPlan(t *testing.T) {
	p := NewWithClock(fixedClock)
	plan := p.FullBackfillPlan([]string{"600000", "000001"})

	if len(plan.NeedsFullBackfill) != 2 {
		t.Errorf("全量回填 = %v", plan.NeedsFullBackfill)
	}
	if len(plan.NeedsLatestOnly) != 0 || len(plan.UpToDate) != 0 {
		t.Errorf("强制全量时其他分区应为空: %+v", plan)
	}
}

func TestPlanEmptyUniverse(t *testing.T) {
	p := NewWithClock(fixedClock)
	plan := p.Plan(nil, nil)
	if plan.Total() != 0 {
		t.Errorf("空集的计划应为空: %+v", plan)
	}
}
