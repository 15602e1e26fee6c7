package insights

import (
	"sort"
	"time"

	"worksafe-insights/internal/domain"
)

// DailyScore 某实体某日历日的生效分数（latest-per-day 归约结果）
type DailyScore struct {
	EntityID string
	Date     time.Time
	Value    float64
}

type entityDay struct {
	entityID string
	day      int64
}

// LatestPerDay 对每个 (entity, day) 只保留 calculated_at 最大的分数行（C2）
// 平局按 value 大者、再按 entity_id 大者决；平局规则仅保证确定性，不对外暴露
// 窗口外的行丢弃；没有行的 (entity, day) 不产出
func LatestPerDay(rows []domain.RiskScore, window domain.DateWindow) []DailyScore {
	best := make(map[entityDay]domain.RiskScore)
	for _, row := range rows {
		day := domain.Day(row.Date)
		if !window.Contains(day) {
			continue
		}
		key := entityDay{entityID: row.EntityID, day: day.Unix()}
		cur, ok := best[key]
		if !ok || laterScore(row, cur) {
			row.Date = day
			best[key] = row
		}
	}

	out := make([]DailyScore, 0, len(best))
	for _, row := range best {
		out = append(out, DailyScore{EntityID: row.EntityID, Date: row.Date, Value: row.Value})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// laterScore 判断 a 是否优先于 b（更新的 calculated_at，平局取更大 value、更大 entity_id）
func laterScore(a, b domain.RiskScore) bool {
	if !a.CalculatedAt.Equal(b.CalculatedAt) {
		return a.CalculatedAt.After(b.CalculatedAt)
	}
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.EntityID > b.EntityID
}

// RankScore 按租户阈值把分数分桶
// 阈值未配置（th == nil）必须返回 UNKNOWN 并原样传递，不得替换默认值
func RankScore(value float64, th *domain.RiskThresholds) domain.RiskLevel {
	if th == nil {
		return domain.RiskLevelUnknown
	}
	switch {
	case value < th.Low:
		return domain.RiskLevelLow
	case value < th.Medium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelHigh
	}
}
