// Package ratelimit 对外部API的出站请求做限速
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 限速器接口，Wait阻塞直到允许发起下一次请求
// 限速器本身不返回限速错误，只负责延迟；超时由调用方通过ctx控制
type Limiter interface {
	Wait(ctx context.Context) error
}

// clock 可注入的时间源，测试用
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FixedIntervalLimiter 固定间隔限速器
// 保证相邻两次放行之间至少间隔interval
type FixedIntervalLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	last     time.Time
	clk      clock
}

// NewFixedInterval 创建固定间隔限速器，interval<=0时使用500ms默认值
func NewFixedInterval(interval time.Duration) *FixedIntervalLimiter {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &FixedIntervalLimiter{interval: interval, clk: realClock{}}
}

// Wait 阻塞到距上次放行至少interval之后
func (l *FixedIntervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clk.Now()
	wait := l.interval - now.Sub(l.last)
	if wait < 0 {
		wait = 0
	}
	// 先占住放行时刻再睡，避免并发调用者挤进同一个间隔
	l.last = now.Add(wait)
	l.mu.Unlock()

	return l.clk.Sleep(ctx, wait)
}

// Reset 清空放行记录
func (l *FixedIntervalLimiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}

// AdaptiveLimiter 自适应限速器
// 被上游限流时拉长间隔，连续成功时逐步恢复到基准间隔
type AdaptiveLimiter struct {
	base     time.Duration
	maxInter time.Duration

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clk      clock
}

// NewAdaptive 创建自适应限速器，base<=0时使用500ms默认值
func NewAdaptive(base time.Duration) *AdaptiveLimiter {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &AdaptiveLimiter{
		base:     base,
		maxInter: 30 * time.Second,
		interval: base,
		clk:      realClock{},
	}
}

// Wait 阻塞到距上次放行至少当前间隔之后
func (l *AdaptiveLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clk.Now()
	wait := l.interval - now.Sub(l.last)
	if wait < 0 {
		wait = 0
	}
	l.last = now.Add(wait)
	l.mu.Unlock()

	return l.clk.Sleep(ctx, wait)
}

// ReportThrottled 上报被上游限流
// 有retryAfter提示时取 max(retryAfter, 当前间隔)+1s，否则间隔翻倍，上限30s
func (l *AdaptiveLimiter) ReportThrottled(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if retryAfter > 0 {
		next := retryAfter
		if l.interval > next {
			next = l.interval
		}
		l.interval = next + time.Second
	} else {
		l.interval *= 2
	}
	if l.interval > l.maxInter {
		l.interval = l.maxInter
	}
}

// ReportSuccess 上报请求成功，间隔衰减10%，不低于基准值
func (l *AdaptiveLimiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = time.Duration(float64(l.interval) * 0.9)
	if l.interval < l.base {
		l.interval = l.base
	}
}

// Interval 返回当前间隔
func (l *AdaptiveLimiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// Registry 按逻辑API名称管理限速器，同一key共享同一个限速器
type Registry struct {
	mu       sync.Mutex
	limiters map[string]Limiter
	factory  func() Limiter
}

// NewRegistry 创建限速器注册表，factory用于按需创建新key的限速器
func NewRegistry(factory func() Limiter) *Registry {
	return &Registry{
		limiters: make(map[string]Limiter),
		factory:  factory,
	}
}

// Get 返回key对应的限速器，不存在时创建
func (r *Registry) Get(key string) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = r.factory()
		r.limiters[key] = l
	}
	return l
}
