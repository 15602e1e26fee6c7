package insights

import (
	"context"
	"fmt"
	"sort"
	"time"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/repository"

	"go.uber.org/zap"
)

// ScopeMode 查询范围模式
type ScopeMode string

const (
	ScopePortfolio ScopeMode = "PORTFOLIO"
	ScopeProject   ScopeMode = "PROJECT"
)

// ScopeFilter 过滤条件输入（C1 的入参）
// 除 TenantID/Mode 外均可选；缺失的过滤条件等于不过滤
type ScopeFilter struct {
	TenantID  string
	Mode      ScopeMode
	ProjectID string // PROJECT 模式必填

	StartDate time.Time // 零值表示该侧无界
	EndDate   time.Time

	ProjectIDs    []string
	LocationIDs   []string
	Statuses      []string
	RegionIDs     []string
	DivisionIDs   []string
	ContractorIDs []string
}

// Scope 归一化后的查询范围
// Projects/Locations 已物化：只含通过全部谓词、租户隔离与归档过滤的实体
type Scope struct {
	TenantID  string
	Window    domain.DateWindow
	Projects  map[string]domain.Project
	Locations map[string]domain.Location
}

// ProjectIDs 范围内项目 id（有序）
func (s *Scope) ProjectIDs() []string {
	ids := make([]string, 0, len(s.Projects))
	for id := range s.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LocationIDs 范围内地点 id（有序）
func (s *Scope) LocationIDs() []string {
	ids := make([]string, 0, len(s.Locations))
	for id := range s.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsEmpty 过滤后没有任何实体（SCOPE_EMPTY：返回空结果而非错误）
func (s *Scope) IsEmpty() bool {
	return len(s.Projects) == 0
}

// ScopeResolver 过滤条件归一化（C1）
type ScopeResolver struct {
	repo   repository.InsightsRepository
	logger *zap.Logger
}

// NewScopeResolver 创建 ScopeResolver
func NewScopeResolver(repo repository.InsightsRepository, logger *zap.Logger) *ScopeResolver {
	return &ScopeResolver{repo: repo, logger: logger}
}

// Resolve 将过滤条件归一化为物化的 Scope
//
// 规则（与调用方契约一致）：
//   - 跨租户 id 静默丢弃（租户隔离不变量）
//   - 显式 location_ids 里出现已归档 id → ErrInvalidFilter
//   - 显式 location_ids 与 PROJECT 模式的 project_id 冲突 → ErrInvalidFilter
//   - 隐式（经项目成员关系）出现的归档实体静默过滤
func (r *ScopeResolver) Resolve(ctx context.Context, f ScopeFilter) (*Scope, error) {
	if f.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	pf := repository.ProjectFilter{
		ProjectIDs:    f.ProjectIDs,
		Statuses:      f.Statuses,
		RegionIDs:     f.RegionIDs,
		DivisionIDs:   f.DivisionIDs,
		ContractorIDs: f.ContractorIDs,
	}
	switch f.Mode {
	case ScopeProject:
		if f.ProjectID == "" {
			return nil, invalidFilterf("project_id is required for PROJECT scope")
		}
		// PROJECT 模式下范围收敛到单个项目
		pf.ProjectIDs = []string{f.ProjectID}
	case ScopePortfolio, "":
		// 组合过滤，不收敛
	default:
		return nil, invalidFilterf("unknown scope mode %q", f.Mode)
	}

	projects, err := r.repo.FindProjects(ctx, f.TenantID, pf)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve projects: %w", err)
	}

	scope := &Scope{
		TenantID:  f.TenantID,
		Window:    domain.NewDateWindow(f.StartDate, f.EndDate),
		Projects:  make(map[string]domain.Project, len(projects)),
		Locations: map[string]domain.Location{},
	}
	for _, p := range projects {
		scope.Projects[p.ProjectID] = p
	}
	if len(scope.Projects) == 0 {
		return scope, nil
	}

	if len(f.LocationIDs) > 0 {
		// 显式地点 id：跨租户的静默丢弃，已归档的按调用方错误拒绝
		explicit, err := r.repo.GetLocationsByIDs(ctx, f.TenantID, f.LocationIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve explicit locations: %w", err)
		}
		for _, l := range explicit {
			if l.Archived() {
				return nil, invalidFilterf("location %s is archived", l.LocationID)
			}
			if f.Mode == ScopeProject && l.ProjectID != f.ProjectID {
				return nil, invalidFilterf("location %s does not belong to project %s", l.LocationID, f.ProjectID)
			}
			if _, ok := scope.Projects[l.ProjectID]; !ok {
				// 所属项目没有通过过滤（或已归档）：隐式排除
				continue
			}
			scope.Locations[l.LocationID] = l
		}
		return scope, nil
	}

	locations, err := r.repo.FindLocations(ctx, f.TenantID, scope.ProjectIDs(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve locations: %w", err)
	}
	for _, l := range locations {
		scope.Locations[l.LocationID] = l
	}
	return scope, nil
}
