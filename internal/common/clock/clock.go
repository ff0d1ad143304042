// Package clock 提供可注入的时钟，业务中所有"当前时间"都从这里获取
package clock

import (
	"sync"
	"time"
)

// Clock 时钟
type Clock interface {
	Now() time.Time
}

// Real 系统时钟
type Real struct{}

// Now 返回当前 UTC 时间
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fixed 可手动推进的时钟，用于测试
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 创建固定时钟
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now 返回当前设定时间
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set 设置时间
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance 向前推进
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Date 截断为 UTC 零点的日期
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today 时钟当前日期
func Today(c Clock) time.Time {
	return Date(c.Now())
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// DaysBetween 两个日期相差的天数，to 早于 from 时为负数
func DaysBetween(from, to time.Time) int {
	return int(Date(to).Sub(Date(from)).Hours() / 24)
}
