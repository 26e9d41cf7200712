package database

import (
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"AShareSync/pkg/model"
)

// UpsertHistoricalBars 幂等写入日线数据
// 主键(date, stock_code)冲突时整行覆盖，重跑同一区间不产生重复数据
func (d *DB) UpsertHistoricalBars(bars []model.HistoricalBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	now := time.Now()
	for i := range bars {
		if bars[i].CreatedAt.IsZero() {
			bars[i].CreatedAt = now
		}
		bars[i].UpdatedAt = now
	}

	tx := d.db.Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(bars, upsertBatchSize)
	if tx.Error != nil {
		return 0, fmt.Errorf("写入日线数据失败: %w", tx.Error)
	}
	return int64(len(bars)), nil
}

// LatestDates 返回每只股票已入库日线的最新日期
// 聚合结果的日期列按字符串扫描后解析，兼容SQLite的文本日期
func (d *DB) LatestDates() (map[string]time.Time, error) {
	var rows []struct {
		StockCode string
		Latest    string
	}
	err := d.db.Model(&model.HistoricalBar{}).
		Select("stock_code, MAX(date) AS latest").
		Group("stock_code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询最新日期失败: %w", err)
	}

	latest := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		t, err := parseDBDate(r.Latest)
		if err != nil {
			return nil, fmt.Errorf("解析 %s 的最新日期 %q 失败: %w", r.StockCode, r.Latest, err)
		}
		latest[r.StockCode] = t
	}
	return latest, nil
}

// dbDateLayouts 不同驱动返回的日期文本格式
var dbDateLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDBDate(s string) (time.Time, error) {
	for _, layout := range dbDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的日期格式")
}

// AllKnownCodes 返回已有日线数据的全部股票代码
func (d *DB) AllKnownCodes() ([]string, error) {
	var codes []string
	err := d.db.Model(&model.HistoricalBar{}).
		Distinct("stock_code").
		Order("stock_code").
		Pluck("stock_code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("查询股票代码失败: %w", err)
	}
	return codes, nil
}

// HistoryRange 查询一只股票指定区间的日线数据，按日期升序
// limit为0时不限条数
func (d *DB) HistoryRange(code string, start, end time.Time, limit int) ([]model.HistoricalBar, error) {
	q := d.db.Where("stock_code = ?", code)
	if !start.IsZero() {
		q = q.Where("date >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("date <= ?", end)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var bars []model.HistoricalBar
	if err := q.Order("date").Find(&bars).Error; err != nil {
		return nil, fmt.Errorf("查询 %s 日线失败: %w", code, err)
	}
	return bars, nil
}
