package domain

import "time"

// RiskLevel 风险等级（由数值分数经租户阈值分桶得到）
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "LOW"
	RiskLevelMedium  RiskLevel = "MEDIUM"
	RiskLevelHigh    RiskLevel = "HIGH"
	RiskLevelUnknown RiskLevel = "UNKNOWN" // 租户未配置阈值时必须原样传递，不得替换默认值
)

// Order 风险等级排序值（LOW < MEDIUM < HIGH；UNKNOWN 排最后）
func (l RiskLevel) Order() int {
	switch l {
	case RiskLevelLow:
		return 0
	case RiskLevelMedium:
		return 1
	case RiskLevelHigh:
		return 2
	default:
		return 3
	}
}

// RiskMetric 风险指标类别（对应三张分数日志表）
type RiskMetric string

const (
	MetricTotalProjectRisk         RiskMetric = "total_project_risk"
	MetricTotalProjectLocationRisk RiskMetric = "total_project_location_risk"
	MetricTaskSpecificRisk         RiskMetric = "task_specific_risk"
)

// RiskScore 风险分数日志行（append-only，引擎只读）
// 同一 (entity_id, date) 可能有多行，生效的是 calculated_at 最大的一行
type RiskScore struct {
	EntityID     string    `db:"entity_id"`
	Date         time.Time `db:"date"` // 日历日
	Value        float64   `db:"value"`
	CalculatedAt time.Time `db:"calculated_at"`
}

// RiskThresholds 租户级分桶阈值
// value < Low → LOW；Low <= value < Medium → MEDIUM；value >= Medium → HIGH
type RiskThresholds struct {
	TenantID string     `db:"tenant_id"`
	Metric   RiskMetric `db:"metric"`
	Low      float64    `db:"low"`
	Medium   float64    `db:"medium"`
}
