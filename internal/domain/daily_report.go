package domain

import (
	"encoding/json"
	"time"
)

// DailyReport 日报领域模型（对应 daily_reports 表）
// Sections 是 JSONB 文档，包含 job_hazard_analysis 子树
type DailyReport struct {
	ReportID   string          `db:"report_id"`
	TenantID   string          `db:"tenant_id"`
	ProjectID  string          `db:"project_id"` // 冗余自 location
	LocationID string          `db:"location_id"`
	Date       time.Time       `db:"date"` // 日历日
	Status     string          `db:"status"`
	Sections   *ReportSections `db:"sections"` // nil 表示空文档
}

// ParseSections 解析 JSONB sections 文档
// 未知键静默忽略（前向兼容）；空文档返回 nil
func ParseSections(raw []byte) (*ReportSections, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s ReportSections
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReportSections 日报 sections 文档
type ReportSections struct {
	JobHazardAnalysis *JobHazardAnalysis `json:"job_hazard_analysis,omitempty"`
}

// JobHazardAnalysis JHA 子树：任务分析 + 现场条件分析
// 缺失的子树合法，不产生任何 occurrence
type JobHazardAnalysis struct {
	Tasks          []TaskAnalysis          `json:"tasks,omitempty"`
	SiteConditions []SiteConditionAnalysis `json:"site_conditions,omitempty"`
}

// TaskAnalysis 任务分析节点（id 为 task 实例 id）
type TaskAnalysis struct {
	ID      string           `json:"id"`
	Hazards []HazardAnalysis `json:"hazards,omitempty"`
}

// SiteConditionAnalysis 现场条件分析节点（id 为 site_condition 实例 id）
type SiteConditionAnalysis struct {
	ID           string           `json:"id"`
	IsApplicable *bool            `json:"isApplicable,omitempty"`
	Hazards      []HazardAnalysis `json:"hazards,omitempty"`
}

// HazardAnalysis 危害分析节点（id 为 hazard 实例 id）
// IsApplicable 用指针区分"缺失"与 false：非空节点缺失该字段按畸形文档拒绝
type HazardAnalysis struct {
	ID           string            `json:"id"`
	IsApplicable *bool             `json:"isApplicable,omitempty"`
	Controls     []ControlAnalysis `json:"controls,omitempty"`
}

// ControlAnalysis 管控措施分析节点（id 为 control 实例 id）
type ControlAnalysis struct {
	ID                   string `json:"id"`
	Implemented          *bool  `json:"implemented,omitempty"`
	NotImplementedReason string `json:"not_implemented_reason,omitempty"`
	FurtherExplanation   string `json:"further_explanation,omitempty"`
}
