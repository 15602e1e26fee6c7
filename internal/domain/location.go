package domain

import "time"

// Location 项目地点领域模型（对应 project_locations 表）
// 风险时间线挂在地点上；地点的有效区间继承所属项目
type Location struct {
	LocationID   string     `db:"location_id"`   // UUID, PRIMARY KEY
	TenantID     string     `db:"tenant_id"`     // UUID, NOT NULL
	ProjectID    string     `db:"project_id"`    // UUID, NOT NULL
	Name         string     `db:"name"`          // VARCHAR(255), NOT NULL
	Latitude     float64    `db:"latitude"`      // NUMERIC, NOT NULL
	Longitude    float64    `db:"longitude"`     // NUMERIC, NOT NULL
	SupervisorID string     `db:"supervisor_id"` // UUID, nullable
	ArchivedAt   *time.Time `db:"archived_at"`   // TIMESTAMPTZ, nullable
}

// Archived 是否已归档
func (l Location) Archived() bool {
	return l.ArchivedAt != nil
}
