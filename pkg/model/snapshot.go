package model

import "time"

// StockInfoRecord 个股信息快照的存储形态
// 合并字段与源状态序列化为JSON存储，每次抓取整行覆盖
type StockInfoRecord struct {
	StockCode    string    `gorm:"primaryKey;column:stock_code;type:char(6)" json:"stock_code"`
	Data         string    `gorm:"column:data;type:text" json:"data"`
	SourceStatus string    `gorm:"column:source_status;type:text" json:"source_status"`
	FetchedAt    time.Time `gorm:"column:fetched_at" json:"fetched_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"-"`
}

// TableName 指定表名
func (StockInfoRecord) TableName() string {
	return "stock_info"
}
