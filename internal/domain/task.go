package domain

import "time"

// Activity 活动（对应 activities 表），限定其下任务的"存活"区间
type Activity struct {
	ActivityID string    `db:"activity_id"` // UUID, PRIMARY KEY
	LocationID string    `db:"location_id"` // UUID, NOT NULL
	StartDate  time.Time `db:"start_date"`  // DATE, NOT NULL
	EndDate    time.Time `db:"end_date"`    // DATE, NOT NULL
	Status     string    `db:"status"`      // VARCHAR(50), NOT NULL
}

// Window 活动自身的有效日期区间
func (a Activity) Window() DateWindow {
	return NewDateWindow(a.StartDate, a.EndDate)
}

// Task 任务领域模型（对应 tasks 表）
// 任务的存活区间是 任务 ∩ 活动 ∩ 项目 三个区间的交集
type Task struct {
	TaskID        string     `db:"task_id"`         // UUID, PRIMARY KEY
	TenantID      string     `db:"tenant_id"`       // UUID, NOT NULL
	ActivityID    string     `db:"activity_id"`     // UUID, NOT NULL
	LocationID    string     `db:"location_id"`     // UUID, NOT NULL
	ProjectID     string     `db:"project_id"`      // UUID, NOT NULL（冗余自 location，查询用）
	LibraryTaskID string     `db:"library_task_id"` // UUID, NOT NULL
	StartDate     time.Time  `db:"start_date"`      // DATE, NOT NULL
	EndDate       time.Time  `db:"end_date"`        // DATE, NOT NULL
	Status        string     `db:"status"`          // VARCHAR(50), NOT NULL
	ArchivedAt    *time.Time `db:"archived_at"`     // TIMESTAMPTZ, nullable
}

// Window 任务自身的日期区间（不含活动/项目区间，交集在上层计算）
func (t Task) Window() DateWindow {
	return NewDateWindow(t.StartDate, t.EndDate)
}

// Archived 是否已归档
func (t Task) Archived() bool {
	return t.ArchivedAt != nil
}

// SiteCondition 现场条件实例（对应 site_conditions 表）
type SiteCondition struct {
	SiteConditionID        string     `db:"site_condition_id"`         // UUID, PRIMARY KEY
	TenantID               string     `db:"tenant_id"`                 // UUID, NOT NULL
	LocationID             string     `db:"location_id"`               // UUID, NOT NULL
	LibrarySiteConditionID string     `db:"library_site_condition_id"` // UUID, NOT NULL
	ArchivedAt             *time.Time `db:"archived_at"`               // TIMESTAMPTZ, nullable
}
