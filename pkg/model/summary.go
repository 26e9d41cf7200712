package model

import (
	"time"

	"github.com/google/uuid"
)

// CodeResult 单只股票的同步结果
type CodeResult struct {
	Code       string     `json:"code"`
	Action     SyncAction `json:"action"`
	RowsStored int64      `json:"rows_stored"`
	Err        string     `json:"error,omitempty"`
}

// SyncSummary 一次同步运行的汇总结果
type SyncSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Planned    int `json:"planned"`
	FullSynced int `json:"full_synced"`
	LatestOnly int `json:"latest_only"`
	UpToDate   int `json:"up_to_date"`
	Failed     int `json:"failed"`

	RowsStored int64 `json:"rows_stored"`
	// FlushCount 批量写库的次数
	FlushCount int `json:"flush_count"`

	// FailedCodes 失败股票及原因，供下次运行重点补抓
	FailedCodes map[string]string `json:"failed_codes,omitempty"`

	// Results 每只股票的明细
	Results []CodeResult `json:"results,omitempty"`
}

// NewSyncSummary 创建带运行ID的空汇总
func NewSyncSummary() *SyncSummary {
	return &SyncSummary{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now(),
		FailedCodes: make(map[string]string),
	}
}

// Duration 返回运行耗时
func (s *SyncSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
