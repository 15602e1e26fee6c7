package domain

import "time"

// Day 将时间截断为日历日（UTC 零点）
// 引擎内所有日期都按租户时区传入的日历日处理，不做时区换算
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate 构造日历日（UTC 零点）
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateWindow 含两端的日期区间
// Start/End 为零值表示该侧无界（列表端点调用方总是两侧都传）
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// NewDateWindow 构造日期区间（两端都截断为日历日）
func NewDateWindow(start, end time.Time) DateWindow {
	w := DateWindow{}
	if !start.IsZero() {
		w.Start = Day(start)
	}
	if !end.IsZero() {
		w.End = Day(end)
	}
	return w
}

// Contains 判断日历日 d 是否落在区间内（含端点）
func (w DateWindow) Contains(d time.Time) bool {
	d = Day(d)
	if !w.Start.IsZero() && d.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && d.After(w.End) {
		return false
	}
	return true
}

// Intersect 计算两个区间的交集
func (w DateWindow) Intersect(o DateWindow) DateWindow {
	out := w
	if !o.Start.IsZero() && (out.Start.IsZero() || o.Start.After(out.Start)) {
		out.Start = o.Start
	}
	if !o.End.IsZero() && (out.End.IsZero() || o.End.Before(out.End)) {
		out.End = o.End
	}
	return out
}

// IsEmpty 两侧有界且 Start > End 时区间为空
func (w DateWindow) IsEmpty() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.After(w.End)
}

// Days 枚举区间内的所有日历日（要求两侧有界）
func (w DateWindow) Days() []time.Time {
	if w.Start.IsZero() || w.End.IsZero() || w.IsEmpty() {
		return nil
	}
	var days []time.Time
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
