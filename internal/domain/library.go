package domain

// LibraryTask 任务库条目（对应 library_tasks 表）
type LibraryTask struct {
	ID        string `db:"id"`         // UUID, PRIMARY KEY
	Name      string `db:"name"`       // VARCHAR(255), NOT NULL
	Category  string `db:"category"`   // VARCHAR(255), NOT NULL（任务类型分组用）
	HespScore int    `db:"hesp_score"` // INTEGER, NOT NULL
}

// LibrarySiteCondition 现场条件库条目
type LibrarySiteCondition struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// LibraryHazard 危害库条目
type LibraryHazard struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// LibraryControl 管控措施库条目
type LibraryControl struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}

// LibraryKind 库条目类别（批量取名称时区分表）
type LibraryKind string

const (
	LibraryKindTask          LibraryKind = "task"
	LibraryKindSiteCondition LibraryKind = "site_condition"
	LibraryKindHazard        LibraryKind = "hazard"
	LibraryKindControl       LibraryKind = "control"
)
