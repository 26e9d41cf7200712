package model

import "testing"

func TestValidateStockCode(t *testing.T) {
	for _, code := range []string{"600000", "000001", "300750", "830799"} {
		if err := ValidateStockCode(code); err != nil {
			t.Errorf("ValidateStockCode(%s): %v", code, err)
		}
	}
	for _, code := range []string{"", "60000", "6000000", "60000a", "SH600000", "60 000"} {
		if err := ValidateStockCode(code); err == nil {
			t.Errorf("ValidateStockCode(%s) 应报错", code)
		}
	}
}

func TestExchangeForCode(t *testing.T) {
	cases := map[string]Exchange{
		"600000": ExchangeShanghai,
		"000001": ExchangeShenzhen,
		"300750": ExchangeShenzhen,
		"830799": ExchangeBeijing,
		"920001": ExchangeBeijing,
	}
	for code, want := range cases {
		got, err := ExchangeForCode(code)
		if err != nil {
			t.Errorf("ExchangeForCode(%s): %v", code, err)
			continue
		}
		if got != want {
			t.Errorf("ExchangeForCode(%s) = %s, 期望 %s", code, got, want)
		}
	}

	// 6位数字但首位无法归属交易所
	if _, err := ExchangeForCode("123456"); err == nil {
		t.Error("无法归属交易所的代码应报错")
	}
}

func TestPrefixedSymbol(t *testing.T) {
	got, err := PrefixedSymbol("600000")
	if err != nil || got != "SH600000" {
		t.Errorf("PrefixedSymbol = %s, %v", got, err)
	}
}
