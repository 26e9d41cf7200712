package model

import (
	"fmt"
	"regexp"
)

// Exchange 交易所标识
type Exchange string

const (
	ExchangeShanghai Exchange = "SH"
	ExchangeShenzhen Exchange = "SZ"
	ExchangeBeijing  Exchange = "BJ"
)

// 6位数字股票代码
var stockCodePattern = regexp.MustCompile(`^\d{6}$`)

// StockIdentity 股票身份信息，universe中以code为唯一主键
type StockIdentity struct {
	Code string `gorm:"primaryKey;column:code;type:char(6)" json:"code"`
	Name string `gorm:"column:name" json:"name"`
}

// TableName 指定表名
func (StockIdentity) TableName() string {
	return "stock_name_code"
}

// ValidateStockCode 校验股票代码格式，必须为6位数字
func ValidateStockCode(code string) error {
	if !stockCodePattern.MatchString(code) {
		return fmt.Errorf("无效的股票代码格式: %q (必须为6位数字)", code)
	}
	return nil
}

// ExchangeForCode 根据首位数字判断交易所:
// '6'为上海, '0'/'3'为深圳, '8'/'9'为北京
func ExchangeForCode(code string) (Exchange, error) {
	if err := ValidateStockCode(code); err != nil {
		return "", err
	}
	switch code[0] {
	case '6':
		return ExchangeShanghai, nil
	case '0', '3':
		return ExchangeShenzhen, nil
	case '8', '9':
		return ExchangeBeijing, nil
	}
	return "", fmt.Errorf("无法识别股票代码 %s 所属交易所", code)
}

// PrefixedSymbol 返回带交易所前缀的代码，如 SH600000
func PrefixedSymbol(code string) (string, error) {
	ex, err := ExchangeForCode(code)
	if err != nil {
		return "", err
	}
	return string(ex) + code, nil
}
