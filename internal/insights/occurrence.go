package insights

import "time"

// ParentKind 危害所挂的父实体类别
type ParentKind string

const (
	ParentTask          ParentKind = "TASK"
	ParentSiteCondition ParentKind = "SITE_CONDITION"
)

// Occurrence 日报分析树展开后的原子元组（C3 的输出）
// walker 不去重：每个实例都产出一条；去重在聚合层按分组键做
type Occurrence struct {
	Day              time.Time
	ProjectID        string
	LocationID       string
	ParentKind       ParentKind
	ParentInstanceID string

	LibraryTaskID          string // ParentKind == TASK 时有值
	LibrarySiteConditionID string // ParentKind == SITE_CONDITION 时有值
	LibraryHazardID        string

	HazardApplicable bool

	// 以下仅 control 流有值
	LibraryControlID     string
	ControlInstanceID    string
	ControlImplemented   *bool
	NotImplementedReason string
}
