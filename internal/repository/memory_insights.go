package repository

import (
	"context"
	"sort"
	"sync"

	"worksafe-insights/internal/domain"
)

// MemoryInsightsRepository 内存版洞察 Repository（联测/单测用，语义与 Postgres 版一致）
type MemoryInsightsRepository struct {
	mu sync.RWMutex

	Projects       map[string]domain.Project
	Locations      map[string]domain.Location
	Activities     map[string]domain.Activity
	Tasks          map[string]domain.Task
	SiteConditions map[string]domain.SiteCondition
	LibraryTasks   map[string]domain.LibraryTask
	LibrarySCs     map[string]domain.LibrarySiteCondition
	LibraryHazards map[string]domain.LibraryHazard
	LibraryCtrls   map[string]domain.LibraryControl
	HazardInsts    map[string]HazardInstance
	ControlInsts   map[string]ControlInstance
	Reports        []domain.DailyReport
	Scores         map[domain.RiskMetric][]domain.RiskScore
	Thresholds     map[string]map[domain.RiskMetric]domain.RiskThresholds // tenant → metric → 阈值
}

// NewMemoryInsightsRepository 创建内存 Repository
func NewMemoryInsightsRepository() *MemoryInsightsRepository {
	return &MemoryInsightsRepository{
		Projects:       map[string]domain.Project{},
		Locations:      map[string]domain.Location{},
		Activities:     map[string]domain.Activity{},
		Tasks:          map[string]domain.Task{},
		SiteConditions: map[string]domain.SiteCondition{},
		LibraryTasks:   map[string]domain.LibraryTask{},
		LibrarySCs:     map[string]domain.LibrarySiteCondition{},
		LibraryHazards: map[string]domain.LibraryHazard{},
		LibraryCtrls:   map[string]domain.LibraryControl{},
		HazardInsts:    map[string]HazardInstance{},
		ControlInsts:   map[string]ControlInstance{},
		Scores:         map[domain.RiskMetric][]domain.RiskScore{},
		Thresholds:     map[string]map[domain.RiskMetric]domain.RiskThresholds{},
	}
}

// 确保实现了接口
var _ InsightsRepository = (*MemoryInsightsRepository)(nil)

// AddProject 写入项目
func (r *MemoryInsightsRepository) AddProject(p domain.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Projects[p.ProjectID] = p
}

// AddLocation 写入地点
func (r *MemoryInsightsRepository) AddLocation(l domain.Location) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Locations[l.LocationID] = l
}

// AddActivity 写入活动
func (r *MemoryInsightsRepository) AddActivity(a domain.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Activities[a.ActivityID] = a
}

// AddTask 写入任务
func (r *MemoryInsightsRepository) AddTask(t domain.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tasks[t.TaskID] = t
}

// AddSiteCondition 写入现场条件实例
func (r *MemoryInsightsRepository) AddSiteCondition(sc domain.SiteCondition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SiteConditions[sc.SiteConditionID] = sc
}

// AddReport 写入日报
func (r *MemoryInsightsRepository) AddReport(rep domain.DailyReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep.Date = domain.Day(rep.Date)
	r.Reports = append(r.Reports, rep)
}

// AddScore 写入分数日志行
func (r *MemoryInsightsRepository) AddScore(metric domain.RiskMetric, s domain.RiskScore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Date = domain.Day(s.Date)
	r.Scores[metric] = append(r.Scores[metric], s)
}

// SetThresholds 写入租户阈值
func (r *MemoryInsightsRepository) SetThresholds(th domain.RiskThresholds) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Thresholds[th.TenantID] == nil {
		r.Thresholds[th.TenantID] = map[domain.RiskMetric]domain.RiskThresholds{}
	}
	r.Thresholds[th.TenantID][th.Metric] = th
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// FindProjects 查询通过过滤条件的未归档项目
func (r *MemoryInsightsRepository) FindProjects(ctx context.Context, tenantID string, f ProjectFilter) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Project
	for _, p := range r.Projects {
		if p.TenantID != tenantID || p.Archived() {
			continue
		}
		if len(f.ProjectIDs) > 0 && !contains(f.ProjectIDs, p.ProjectID) {
			continue
		}
		if len(f.Statuses) > 0 && !contains(f.Statuses, p.Status) {
			continue
		}
		if len(f.RegionIDs) > 0 && !contains(f.RegionIDs, p.RegionID) {
			continue
		}
		if len(f.DivisionIDs) > 0 && !contains(f.DivisionIDs, p.DivisionID) {
			continue
		}
		if len(f.ContractorIDs) > 0 && !contains(f.ContractorIDs, p.ContractorID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out, nil
}

func (r *MemoryInsightsRepository) projectArchived(projectID string) bool {
	p, ok := r.Projects[projectID]
	return !ok || p.Archived()
}

// FindLocations 查询未归档地点
func (r *MemoryInsightsRepository) FindLocations(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Location
	for _, l := range r.Locations {
		if l.TenantID != tenantID || l.Archived() || r.projectArchived(l.ProjectID) {
			continue
		}
		if len(projectIDs) > 0 && !contains(projectIDs, l.ProjectID) {
			continue
		}
		if len(locationIDs) > 0 && !contains(locationIDs, l.LocationID) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}

// GetLocationsByIDs 按 id 取地点（含已归档）
func (r *MemoryInsightsRepository) GetLocationsByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Location
	for _, id := range ids {
		l, ok := r.Locations[id]
		if !ok || l.TenantID != tenantID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// FindTasks 查询范围内的未归档任务
func (r *MemoryInsightsRepository) FindTasks(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]TaskRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []TaskRow
	for _, t := range r.Tasks {
		if t.TenantID != tenantID || t.Archived() {
			continue
		}
		loc, ok := r.Locations[t.LocationID]
		if !ok || loc.Archived() {
			continue
		}
		proj, ok := r.Projects[loc.ProjectID]
		if !ok || proj.Archived() {
			continue
		}
		if len(projectIDs) > 0 && !contains(projectIDs, loc.ProjectID) {
			continue
		}
		if len(locationIDs) > 0 && !contains(locationIDs, t.LocationID) {
			continue
		}
		act := r.Activities[t.ActivityID]
		lt := r.LibraryTasks[t.LibraryTaskID]

		row := TaskRow{Task: t}
		row.ProjectID = proj.ProjectID
		row.LibraryTaskName = lt.Name
		row.LibraryTaskCategory = lt.Category
		row.LocationName = loc.Name
		row.ProjectName = proj.Name
		row.ActivityStart = act.StartDate
		row.ActivityEnd = act.EndDate
		row.ProjectStart = proj.StartDate
		row.ProjectEnd = proj.EndDate
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LibraryTaskName != out[j].LibraryTaskName {
			return out[i].LibraryTaskName < out[j].LibraryTaskName
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

// LoadRiskScores 读取分数日志行
func (r *MemoryInsightsRepository) LoadRiskScores(ctx context.Context, tenantID string, metric domain.RiskMetric, entityIDs []string, window domain.DateWindow) ([]domain.RiskScore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RiskScore
	for _, s := range r.Scores[metric] {
		if len(entityIDs) > 0 && !contains(entityIDs, s.EntityID) {
			continue
		}
		if !window.Contains(s.Date) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CalculatedAt.Before(out[j].CalculatedAt)
	})
	return out, nil
}

// LoadDailyReports 读取范围内的日报
func (r *MemoryInsightsRepository) LoadDailyReports(ctx context.Context, tenantID string, projectIDs, locationIDs []string, window domain.DateWindow) ([]domain.DailyReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.DailyReport
	for _, rep := range r.Reports {
		if rep.TenantID != tenantID {
			continue
		}
		loc, ok := r.Locations[rep.LocationID]
		if !ok || loc.Archived() || r.projectArchived(loc.ProjectID) {
			continue
		}
		if len(projectIDs) > 0 && !contains(projectIDs, loc.ProjectID) {
			continue
		}
		if len(locationIDs) > 0 && !contains(locationIDs, rep.LocationID) {
			continue
		}
		if !window.Contains(rep.Date) {
			continue
		}
		rep.ProjectID = loc.ProjectID
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ReportID < out[j].ReportID
	})
	return out, nil
}

// ResolveTaskInstances 批量解析任务实例
func (r *MemoryInsightsRepository) ResolveTaskInstances(ctx context.Context, tenantID string, ids []string) (map[string]TaskInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]TaskInstance, len(ids))
	for _, id := range ids {
		t, ok := r.Tasks[id]
		if !ok || t.TenantID != tenantID {
			continue
		}
		out[id] = TaskInstance{TaskID: id, LibraryTaskID: t.LibraryTaskID, Archived: t.Archived()}
	}
	return out, nil
}

// ResolveSiteConditionInstances 批量解析现场条件实例
func (r *MemoryInsightsRepository) ResolveSiteConditionInstances(ctx context.Context, tenantID string, ids []string) (map[string]SiteConditionInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]SiteConditionInstance, len(ids))
	for _, id := range ids {
		sc, ok := r.SiteConditions[id]
		if !ok || sc.TenantID != tenantID {
			continue
		}
		out[id] = SiteConditionInstance{
			SiteConditionID:        id,
			LibrarySiteConditionID: sc.LibrarySiteConditionID,
			Archived:               sc.ArchivedAt != nil,
		}
	}
	return out, nil
}

// ResolveHazardInstances 批量解析危害实例
func (r *MemoryInsightsRepository) ResolveHazardInstances(ctx context.Context, tenantID string, ids []string) (map[string]HazardInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]HazardInstance, len(ids))
	for _, id := range ids {
		if inst, ok := r.HazardInsts[id]; ok {
			out[id] = inst
		}
	}
	return out, nil
}

// ResolveControlInstances 批量解析管控措施实例
func (r *MemoryInsightsRepository) ResolveControlInstances(ctx context.Context, tenantID string, ids []string) (map[string]ControlInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ControlInstance, len(ids))
	for _, id := range ids {
		if inst, ok := r.ControlInsts[id]; ok {
			out[id] = inst
		}
	}
	return out, nil
}

// GetThresholds 读取租户阈值；未配置返回 (nil, nil)
func (r *MemoryInsightsRepository) GetThresholds(ctx context.Context, tenantID string, metric domain.RiskMetric) (*domain.RiskThresholds, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byMetric, ok := r.Thresholds[tenantID]
	if !ok {
		return nil, nil
	}
	th, ok := byMetric[metric]
	if !ok {
		return nil, nil
	}
	return &th, nil
}

// GetLibraryNames 批量取库条目显示名称
func (r *MemoryInsightsRepository) GetLibraryNames(ctx context.Context, kind domain.LibraryKind, ids []string) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		switch kind {
		case domain.LibraryKindTask:
			if lt, ok := r.LibraryTasks[id]; ok {
				out[id] = lt.Name
			}
		case domain.LibraryKindSiteCondition:
			if lsc, ok := r.LibrarySCs[id]; ok {
				out[id] = lsc.Name
			}
		case domain.LibraryKindHazard:
			if lh, ok := r.LibraryHazards[id]; ok {
				out[id] = lh.Name
			}
		case domain.LibraryKindControl:
			if lc, ok := r.LibraryCtrls[id]; ok {
				out[id] = lc.Name
			}
		}
	}
	return out, nil
}

// GetLibraryTasks 批量取任务库条目
func (r *MemoryInsightsRepository) GetLibraryTasks(ctx context.Context, ids []string) (map[string]domain.LibraryTask, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.LibraryTask, len(ids))
	for _, id := range ids {
		if lt, ok := r.LibraryTasks[id]; ok {
			out[id] = lt
		}
	}
	return out, nil
}
