package source

import (
	"encoding/json"
	"strconv"
	"strings"
)

// 上游常见的"无数据"占位标记
var sentinelValues = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"n/a":  true,
	"null": true,
	"none": true,
	"nan":  true,
}

// normalizeValue 把上游原始值规整为规范字符串
// 占位标记视为缺失(ok=false)，不把含糊的值带出适配器边界
func normalizeValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		if sentinelValues[strings.ToLower(s)] {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// parseFloat 解析可能带占位标记的数值字符串，缺失时返回回退值
func parseFloat(s string, fallback float64) float64 {
	s = strings.TrimSpace(s)
	if sentinelValues[strings.ToLower(s)] {
		return fallback
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseInt 解析可能带占位标记的整数字符串，"1.0"这类写法先过float再取整
func parseInt(s string, fallback int64) int64 {
	s = strings.TrimSpace(s)
	if sentinelValues[strings.ToLower(s)] {
		return fallback
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return int64(f)
}
