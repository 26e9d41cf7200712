package model

import (
	"time"
)

// HistoricalBar 单只股票单个交易日的日线数据
// 复合主键 (date, stock_code) 全局唯一，重复写入时整行替换
type HistoricalBar struct {
	Date         time.Time `gorm:"primaryKey;column:date;type:date" json:"date"`
	StockCode    string    `gorm:"primaryKey;column:stock_code;type:char(6)" json:"stock_code"`
	Open         float64   `gorm:"column:open_price;type:decimal(12,2)" json:"open"`
	Close        float64   `gorm:"column:close_price;type:decimal(12,2)" json:"close"`
	High         float64   `gorm:"column:high_price;type:decimal(12,2)" json:"high"`
	Low          float64   `gorm:"column:low_price;type:decimal(12,2)" json:"low"`
	Volume       int64     `gorm:"column:volume" json:"volume"`
	Turnover     float64   `gorm:"column:turnover;type:decimal(18,2)" json:"turnover"`
	Amplitude    float64   `gorm:"column:amplitude;type:decimal(8,2)" json:"amplitude"`
	ChangeRate   float64   `gorm:"column:price_change_rate;type:decimal(8,2)" json:"change_rate"`
	ChangeAmount float64   `gorm:"column:price_change;type:decimal(12,2)" json:"change_amount"`
	TurnoverRate float64   `gorm:"column:turnover_rate;type:decimal(8,2)" json:"turnover_rate"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"-"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"-"`
}

// TableName 指定表名
func (HistoricalBar) TableName() string {
	return "stock_historical_data"
}
