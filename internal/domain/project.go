package domain

import "time"

// 项目状态
const (
	ProjectStatusPending   = "pending"
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
)

// Project 项目（work package）领域模型（对应 projects 表）
type Project struct {
	ProjectID    string     `db:"project_id"`    // UUID, PRIMARY KEY
	TenantID     string     `db:"tenant_id"`     // UUID, NOT NULL
	Name         string     `db:"name"`          // VARCHAR(255), NOT NULL
	StartDate    time.Time  `db:"start_date"`    // DATE, NOT NULL
	EndDate      time.Time  `db:"end_date"`      // DATE, NOT NULL
	Status       string     `db:"status"`        // VARCHAR(50), NOT NULL (pending/active/completed)
	RegionID     string     `db:"region_id"`     // UUID, nullable
	DivisionID   string     `db:"division_id"`   // UUID, nullable
	ContractorID string     `db:"contractor_id"` // UUID, nullable
	ArchivedAt   *time.Time `db:"archived_at"`   // TIMESTAMPTZ, nullable（已归档项目不参与洞察）
}

// Window 项目自身的有效日期区间
func (p Project) Window() DateWindow {
	return NewDateWindow(p.StartDate, p.EndDate)
}

// Archived 是否已归档
func (p Project) Archived() bool {
	return p.ArchivedAt != nil
}
