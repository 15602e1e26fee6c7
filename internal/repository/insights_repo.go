package repository

import (
	"context"
	"time"

	"worksafe-insights/internal/domain"
)

// ProjectFilter 项目查询过滤条件
// 空切片/空串视为不过滤；归档项目总是被排除
type ProjectFilter struct {
	ProjectIDs    []string
	Statuses      []string
	RegionIDs     []string
	DivisionIDs   []string
	ContractorIDs []string
}

// TaskRow 任务行 + 聚合所需的反规范化字段
// 任务存活区间 = 任务 ∩ 活动 ∩ 项目
type TaskRow struct {
	domain.Task
	LibraryTaskName     string
	LibraryTaskCategory string
	LocationName        string
	ProjectName         string
	ActivityStart       time.Time
	ActivityEnd         time.Time
	ProjectStart        time.Time
	ProjectEnd          time.Time
}

// LiveWindow 任务 ∩ 活动 ∩ 项目 三区间交集
func (r TaskRow) LiveWindow() domain.DateWindow {
	w := r.Task.Window()
	w = w.Intersect(domain.NewDateWindow(r.ActivityStart, r.ActivityEnd))
	w = w.Intersect(domain.NewDateWindow(r.ProjectStart, r.ProjectEnd))
	return w
}

// TaskInstance 任务实例 → 库条目解析结果
type TaskInstance struct {
	TaskID        string
	LibraryTaskID string
	Archived      bool
}

// SiteConditionInstance 现场条件实例解析结果
type SiteConditionInstance struct {
	SiteConditionID        string
	LibrarySiteConditionID string
	Archived               bool
}

// HazardInstance 危害实例解析结果
type HazardInstance struct {
	HazardID        string
	LibraryHazardID string
	Archived        bool
}

// ControlInstance 管控措施实例解析结果
type ControlInstance struct {
	ControlID        string
	LibraryControlID string
	HazardInstanceID string
	Archived         bool
}

// InstanceResolution 一次查询所需的全部实例解析映射
// 由仓库批量解析（替代 dataloader），walker 在内存中纯遍历
type InstanceResolution struct {
	Tasks          map[string]TaskInstance
	SiteConditions map[string]SiteConditionInstance
	Hazards        map[string]HazardInstance
	Controls       map[string]ControlInstance
}

// InsightsRepository 洞察引擎数据访问接口
// 所有方法显式接受 tenantID；仓库保证租户隔离与归档过滤（除 GetLocationsByIDs）
type InsightsRepository interface {
	// FindProjects 查询通过过滤条件的未归档项目
	FindProjects(ctx context.Context, tenantID string, f ProjectFilter) ([]domain.Project, error)

	// FindLocations 查询未归档地点；projectIDs/locationIDs 为空表示不限制
	FindLocations(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]domain.Location, error)

	// GetLocationsByIDs 按 id 精确取地点（包含已归档，供显式过滤校验用）
	GetLocationsByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Location, error)

	// FindTasks 查询范围内的未归档任务（带反规范化字段）
	FindTasks(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]TaskRow, error)

	// LoadRiskScores 读取指定指标在窗口内的分数日志行
	LoadRiskScores(ctx context.Context, tenantID string, metric domain.RiskMetric, entityIDs []string, window domain.DateWindow) ([]domain.RiskScore, error)

	// LoadDailyReports 读取范围内的日报（含解析后的 sections）
	LoadDailyReports(ctx context.Context, tenantID string, projectIDs, locationIDs []string, window domain.DateWindow) ([]domain.DailyReport, error)

	// 批量解析分析树中的实例 id → 库条目 id（缺失的 id 不在返回映射中）
	ResolveTaskInstances(ctx context.Context, tenantID string, ids []string) (map[string]TaskInstance, error)
	ResolveSiteConditionInstances(ctx context.Context, tenantID string, ids []string) (map[string]SiteConditionInstance, error)
	ResolveHazardInstances(ctx context.Context, tenantID string, ids []string) (map[string]HazardInstance, error)
	ResolveControlInstances(ctx context.Context, tenantID string, ids []string) (map[string]ControlInstance, error)

	// GetThresholds 读取租户阈值；未配置返回 (nil, nil)
	GetThresholds(ctx context.Context, tenantID string, metric domain.RiskMetric) (*domain.RiskThresholds, error)

	// GetLibraryNames 批量取库条目显示名称
	GetLibraryNames(ctx context.Context, kind domain.LibraryKind, ids []string) (map[string]string, error)

	// GetLibraryTasks 批量取任务库条目（任务类型分组需要 category）
	GetLibraryTasks(ctx context.Context, ids []string) (map[string]domain.LibraryTask, error)
}
