// Package retry 针对不可靠外部数据源的重试与退避策略
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// ErrorKind 失败类别，决定是否重试以及用哪种等待节奏
type ErrorKind int

const (
	// KindTransient 网络/连接/超时类瞬时错误，按指数退避重试
	KindTransient ErrorKind = iota
	// KindRateLimited 上游限流，按更长的等待节奏重试
	KindRateLimited
	// KindParsing 响应结构不符合预期，不重试
	KindParsing
	// KindValidation 入参校验错误，不重试
	KindValidation
)

// SourceError 数据源错误，携带失败类别
type SourceError struct {
	Kind ErrorKind
	// Snippet 解析失败时保留的原始片段，便于排查上游结构变化
	Snippet string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("%v (原始片段: %.120s)", e.Err, e.Snippet)
	}
	return e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewParsingError 构造解析错误，snippet保留上游原始内容片段
func NewParsingError(err error, snippet string) *SourceError {
	return &SourceError{Kind: KindParsing, Snippet: snippet, Err: err}
}

// NewValidationError 构造校验错误
func NewValidationError(err error) *SourceError {
	return &SourceError{Kind: KindValidation, Err: err}
}

// NewRateLimitError 构造限流错误
func NewRateLimitError(err error) *SourceError {
	return &SourceError{Kind: KindRateLimited, Err: err}
}

// 限流错误在报文中的常见提示
var rateLimitHints = []string{"rate limit", "too many requests", "429", "throttle"}

// IsRateLimited 判断是否为上游限流错误
// HTTP 429以及报文中携带限流提示语的错误都算
func IsRateLimited(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind == KindRateLimited
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rateLimitHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsTransient 判断是否为可重试的瞬时错误
// 网络不可达、连接被拒、超时、TLS握手失败属于瞬时错误；
// 校验错误与解析错误永不重试
func IsTransient(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind == KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"connection", "timeout", "tls", "ssl", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// Policy 重试策略
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter 是否在退避时长上叠加±20%随机抖动
	Jitter bool
	// CalmDown 每次退避额外附加的固定冷却时间
	CalmDown time.Duration
}

// DefaultPolicy 默认策略: 5次重试，初始1s，倍率2，上限60s
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2,
		Jitter:         true,
		CalmDown:       500 * time.Millisecond,
	}
}

// Backoff 计算第attempt次(从0起)失败后的等待时长
func (p Policy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.Multiplier
	}
	if max := float64(p.MaxBackoff); backoff > max {
		backoff = max
	}
	if p.Jitter {
		backoff += backoff * 0.2 * (rand.Float64()*2 - 1)
		if backoff < 0 {
			backoff = 0
		}
	}
	return time.Duration(backoff) + p.CalmDown
}

// RateLimitBackoff 限流错误的等待时长: 60s*(attempt+1)，不受MaxBackoff约束
// 上游限流需要的恢复时间与普通瞬时错误不在一个量级
func RateLimitBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 60 * time.Second
}

// Do 以策略p重复执行fn，仅对瞬时/限流错误重试
// 重试耗尽后返回最后一次的错误；ctx取消时立即返回
func Do(ctx context.Context, p Policy, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var wait time.Duration
		switch {
		case IsRateLimited(lastErr):
			wait = RateLimitBackoff(attempt)
		case IsTransient(lastErr):
			wait = p.Backoff(attempt)
		default:
			// 校验/解析错误重试也不会变好
			return lastErr
		}

		if attempt == p.MaxRetries {
			break
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return lastErr
}
