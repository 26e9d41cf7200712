package model

import (
	"time"
)

// OutcomeStatus 单个数据源一次抓取的结果状态
type OutcomeStatus int

const (
	// OutcomeSuccess 数据源返回了可用数据
	OutcomeSuccess OutcomeStatus = iota
	// OutcomeEmpty 数据源可达但无数据，不算错误
	OutcomeEmpty
	// OutcomeFailure 抓取失败（网络、解析等）
	OutcomeFailure
)

// String 返回状态的可读名称
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailure:
		return "failed"
	}
	return "unknown"
}

// FetchOutcome 单个数据源一次抓取的完整结果
// 要么携带完整字段，要么为空/失败，不存在部分成功
type FetchOutcome struct {
	Status OutcomeStatus
	// Fields 源原生字段名到值的扁平映射（含中文字段名），
	// 字段改名由reconcile统一处理，适配器不做
	Fields map[string]string
	// Err 仅在Status为OutcomeFailure时有值
	Err error
}

// Success 构造成功结果
func Success(fields map[string]string) FetchOutcome {
	return FetchOutcome{Status: OutcomeSuccess, Fields: fields}
}

// Empty 构造空结果
func Empty() FetchOutcome {
	return FetchOutcome{Status: OutcomeEmpty}
}

// Failure 构造失败结果
func Failure(err error) FetchOutcome {
	return FetchOutcome{Status: OutcomeFailure, Err: err}
}

// MergedStockInfo 多源合并后的个股信息快照
// 每次抓取整体重建，不做部分更新
type MergedStockInfo struct {
	StockCode string `json:"stock_code"`
	// Data 归并后的扁平字段
	Data map[string]string `json:"data"`
	// SourceStatus 各数据源本次是否成功
	SourceStatus map[string]bool `json:"source_status"`
	// Error 所有数据源都失败时的错误标记
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// HasData 判断除身份字段外是否存在有效字段
func (m *MergedStockInfo) HasData() bool {
	return len(m.Data) > 0
}
