package database

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"AShareSync/pkg/model"
)

// SaveUniverse 覆盖式写入股票代码表
// 同一代码的名称以最新抓取为准（改名、ST标记变化）
func (d *DB) SaveUniverse(stocks []model.StockIdentity) error {
	if len(stocks) == 0 {
		return nil
	}
	err := d.db.Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(stocks, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("写入股票代码表失败: %w", err)
	}
	return nil
}

// Universe 返回代码表中的全部股票
func (d *DB) Universe() ([]model.StockIdentity, error) {
	var stocks []model.StockIdentity
	if err := d.db.Order("code").Find(&stocks).Error; err != nil {
		return nil, fmt.Errorf("查询股票代码表失败: %w", err)
	}
	return stocks, nil
}

// SaveStockInfo 保存个股信息快照，同一代码整行覆盖
func (d *DB) SaveStockInfo(info model.MergedStockInfo) error {
	data, err := json.Marshal(info.Data)
	if err != nil {
		return fmt.Errorf("序列化信息快照失败: %w", err)
	}
	status, err := json.Marshal(info.SourceStatus)
	if err != nil {
		return fmt.Errorf("序列化源状态失败: %w", err)
	}

	rec := model.StockInfoRecord{
		StockCode:    info.StockCode,
		Data:         string(data),
		SourceStatus: string(status),
		FetchedAt:    info.FetchedAt,
	}
	err = d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("保存 %s 信息快照失败: %w", info.StockCode, err)
	}
	return nil
}

// GetStockInfo 读取个股信息快照，没有记录时返回(nil, nil)
func (d *DB) GetStockInfo(code string) (*model.MergedStockInfo, error) {
	var rec model.StockInfoRecord
	err := d.db.First(&rec, "stock_code = ?", code).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询 %s 信息快照失败: %w", code, err)
	}

	info := model.MergedStockInfo{StockCode: rec.StockCode, FetchedAt: rec.FetchedAt}
	if err := json.Unmarshal([]byte(rec.Data), &info.Data); err != nil {
		return nil, fmt.Errorf("解析 %s 信息快照失败: %w", code, err)
	}
	if err := json.Unmarshal([]byte(rec.SourceStatus), &info.SourceStatus); err != nil {
		return nil, fmt.Errorf("解析 %s 源状态失败: %w", code, err)
	}
	return &info, nil
}
