// Package reconcile 多源字段合并
//
// 不同数据源对不同字段族的权威程度不同：行情与成交类字段以东方财富为准，
// 估值与公司资料类字段以雪球为准。优先级规则把这份领域知识显式写进表里，
// 而不是靠"最后写入的源赢"这种偶然行为。
package reconcile

import (
	"fmt"
	"time"

	"AShareSync/pkg/model"
)

// Rule 单个字段的取值优先级，按源标识从高到低排列
type Rule struct {
	Field   string
	Sources []string
}

// Reconciler 按优先级表合并多个数据源的抓取结果
// 无规则的字段按源注册顺序取第一个有值的
type Reconciler struct {
	sourceOrder []string
	rules       map[string][]string
}

// New 创建合并器
// 规则引用了未注册的源标识时直接报错，配置问题在启动期暴露
func New(sourceOrder []string, rules []Rule) (*Reconciler, error) {
	if len(sourceOrder) == 0 {
		return nil, fmt.Errorf("至少需要注册一个数据源")
	}
	known := make(map[string]bool, len(sourceOrder))
	for _, s := range sourceOrder {
		if known[s] {
			return nil, fmt.Errorf("数据源 %s 重复注册", s)
		}
		known[s] = true
	}

	table := make(map[string][]string, len(rules))
	for _, r := range rules {
		if r.Field == "" {
			return nil, fmt.Errorf("优先级规则缺少字段名")
		}
		if _, dup := table[r.Field]; dup {
			return nil, fmt.Errorf("字段 %s 的优先级规则重复", r.Field)
		}
		if len(r.Sources) == 0 {
			return nil, fmt.Errorf("字段 %s 的优先级规则为空", r.Field)
		}
		for _, s := range r.Sources {
			if !known[s] {
				return nil, fmt.Errorf("字段 %s 引用了未注册的数据源 %s", r.Field, s)
			}
		}
		table[r.Field] = r.Sources
	}
	return &Reconciler{sourceOrder: sourceOrder, rules: table}, nil
}

// Merge 合并各源的抓取结果为一条个股信息快照
//
// 有规则的字段按规则顺序取第一个成功且有值的源；
// 无规则的字段按源注册顺序取，保证合并结果与map遍历顺序无关。
// 全部源失败或为空时返回只含标识字段的快照并带错误标记，不返回error。
func (r *Reconciler) Merge(code string, results map[string]model.FetchOutcome) model.MergedStockInfo {
	info := model.MergedStockInfo{
		StockCode:    code,
		Data:         make(map[string]string),
		SourceStatus: make(map[string]bool, len(r.sourceOrder)),
		FetchedAt:    time.Now(),
	}

	anyData := false
	for _, src := range r.sourceOrder {
		out, ok := results[src]
		info.SourceStatus[src] = ok && out.Status == model.OutcomeSuccess
		if info.SourceStatus[src] && len(out.Fields) > 0 {
			anyData = true
		}
	}

	if !anyData {
		info.Error = "所有数据源抓取失败或无数据"
		return info
	}

	// 先按注册顺序铺底，后注册的源不覆盖先注册的
	for _, src := range r.sourceOrder {
		if !info.SourceStatus[src] {
			continue
		}
		for field, value := range results[src].Fields {
			if _, exists := info.Data[field]; !exists {
				info.Data[field] = value
			}
		}
	}

	// 再按规则纠正有优先级声明的字段
	for field, sources := range r.rules {
		for _, src := range sources {
			if !info.SourceStatus[src] {
				continue
			}
			if v, ok := results[src].Fields[field]; ok {
				info.Data[field] = v
				break
			}
		}
	}

	return info
}

// DefaultRules A股信息合并的默认优先级
// 行情与成交类字段东方财富优先，估值类字段雪球优先
func DefaultRules(primary, secondary string) []Rule {
	return []Rule{
		{Field: "最新", Sources: []string{primary, secondary}},
		{Field: "今开", Sources: []string{primary, secondary}},
		{Field: "最高", Sources: []string{primary, secondary}},
		{Field: "最低", Sources: []string{primary, secondary}},
		{Field: "总手", Sources: []string{primary, secondary}},
		{Field: "金额", Sources: []string{primary, secondary}},
		{Field: "涨幅", Sources: []string{primary, secondary}},
		{Field: "pb_ratio", Sources: []string{secondary, primary}},
		{Field: "pe_ratio", Sources: []string{secondary, primary}},
		{Field: "org_name_cn", Sources: []string{secondary, primary}},
	}
}
