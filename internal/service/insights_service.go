package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"worksafe-insights/internal/config"
	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/insights"
	"worksafe-insights/internal/repository"
	"worksafe-insights/internal/store"

	"go.uber.org/zap"
)

// RiskLevelCount 风险等级直方图行（仅产出 count >= 1 的 (date, bucket)，补零由调用方负责）
type RiskLevelCount struct {
	Date      time.Time        `json:"date"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	Count     int              `json:"count"`
}

// DateRiskLevel 某日历日的风险等级
type DateRiskLevel struct {
	Date      time.Time        `json:"date"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
}

// EntityRiskByDate 按实体的风险时间线
type EntityRiskByDate struct {
	EntityID string          `json:"entity_id"`
	Name     string          `json:"name"`
	Entries  []DateRiskLevel `json:"entries"`
}

// TaskRiskByDate 任务风险时间线行（平铺，一任务一日一行）
type TaskRiskByDate struct {
	TaskID       string           `json:"task_id"`
	TaskName     string           `json:"task_name"`
	LocationName string           `json:"location_name"`
	ProjectName  string           `json:"project_name"`
	Category     string           `json:"category"`
	Date         time.Time        `json:"date"`
	RiskLevel    domain.RiskLevel `json:"risk_level"`
}

// OrderField 任务列表可选排序字段
type OrderField string

const (
	OrderByProjectName         OrderField = "PROJECT_NAME"
	OrderByProjectLocationName OrderField = "PROJECT_LOCATION_NAME"
	OrderByCategory            OrderField = "CATEGORY"
)

// OrderDirection 排序方向
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// OrderBy 排序条件
type OrderBy struct {
	Field     OrderField
	Direction OrderDirection
}

// InsightsService 洞察查询门面（C6）
// 传输层（GraphQL/REST）只消费这个接口；Mode 为 PORTFOLIO 的过滤条件对应
// portfolio.* 端点，PROJECT 的对应 project.* 端点
type InsightsService interface {
	// ProjectRiskOverTime 项目风险直方图
	ProjectRiskOverTime(ctx context.Context, f insights.ScopeFilter) ([]RiskLevelCount, error)

	// ProjectRiskByDate 按项目的风险时间线
	ProjectRiskByDate(ctx context.Context, f insights.ScopeFilter) ([]EntityRiskByDate, error)

	// LocationRiskOverTime 地点风险直方图（PROJECT 范围）
	LocationRiskOverTime(ctx context.Context, f insights.ScopeFilter) ([]RiskLevelCount, error)

	// LocationRiskByDate 按地点的风险时间线（PROJECT 范围）
	LocationRiskByDate(ctx context.Context, f insights.ScopeFilter) ([]EntityRiskByDate, error)

	// TaskRiskByDate 按任务的风险时间线
	TaskRiskByDate(ctx context.Context, f insights.ScopeFilter, orderBy []OrderBy) ([]TaskRiskByDate, error)

	// ApplicableHazards 适用危害计数（按库危害分组；libraryHazardID 可为空）
	ApplicableHazards(ctx context.Context, f insights.ScopeFilter, libraryHazardID string) ([]insights.GroupCount, error)

	// ApplicableHazardsBy 目标危害按维度分组的计数（Top-10）
	ApplicableHazardsBy(ctx context.Context, f insights.ScopeFilter, libraryHazardID string, dim insights.GroupDim) ([]insights.GroupCount, error)

	// NotImplementedControls 未落实管控占比（按库管控分组）
	NotImplementedControls(ctx context.Context, f insights.ScopeFilter) ([]insights.GroupPercent, error)

	// NotImplementedControlsBy 目标管控按维度分组的占比（Top-10）
	NotImplementedControlsBy(ctx context.Context, f insights.ScopeFilter, libraryControlID string, dim insights.GroupDim) ([]insights.GroupPercent, error)

	// ReasonsControlsNotImplemented 未落实原因计数（libraryControlID 可为空）
	ReasonsControlsNotImplemented(ctx context.Context, f insights.ScopeFilter, libraryControlID string) ([]insights.ReasonCount, error)
}

// insightsService 实现
type insightsService struct {
	repo       repository.InsightsRepository
	scopes     *insights.ScopeResolver
	thresholds *insights.ThresholdProvider
	names      *insights.LibraryNameCache
	collator   *insights.Collator
	logger     *zap.Logger
}

// NewInsightsService 创建 InsightsService 实例
func NewInsightsService(repo repository.InsightsRepository, kv store.KVStore, cfg *config.Config, logger *zap.Logger) InsightsService {
	return &insightsService{
		repo:       repo,
		scopes:     insights.NewScopeResolver(repo, logger),
		thresholds: insights.NewThresholdProvider(repo, kv, cfg.Insights.ThresholdCacheTTL, logger),
		names:      insights.NewLibraryNameCache(repo, kv, cfg.Insights.LibraryNameCacheTTL, logger),
		collator:   insights.NewCollator(),
		logger:     logger,
	}
}

// riskEntityKind 风险时间线的实体类别
type riskEntityKind int

const (
	riskByProject riskEntityKind = iota
	riskByLocation
	riskByTask
)

// riskEntity 参与风险归约的实体（Window 已与父区间求交）
type riskEntity struct {
	ID     string
	Name   string
	Window domain.DateWindow
}

type entitySeries struct {
	Entity  riskEntity
	Entries []DateRiskLevel
}

// riskSeries 风险时间线核心：取分数 → latest-per-day → 阈值分桶 → 区间相交过滤
func (s *insightsService) riskSeries(ctx context.Context, scope *insights.Scope, kind riskEntityKind) ([]entitySeries, error) {
	var (
		metric   domain.RiskMetric
		entities []riskEntity
	)
	switch kind {
	case riskByProject:
		metric = domain.MetricTotalProjectRisk
		for _, p := range scope.Projects {
			entities = append(entities, riskEntity{ID: p.ProjectID, Name: p.Name, Window: p.Window()})
		}
	case riskByLocation:
		metric = domain.MetricTotalProjectLocationRisk
		for _, l := range scope.Locations {
			// 地点继承所属项目的有效区间
			p, ok := scope.Projects[l.ProjectID]
			if !ok {
				continue
			}
			entities = append(entities, riskEntity{ID: l.LocationID, Name: l.Name, Window: p.Window()})
		}
	case riskByTask:
		metric = domain.MetricTaskSpecificRisk
		if len(scope.Locations) == 0 {
			return nil, nil
		}
		tasks, err := s.repo.FindTasks(ctx, scope.TenantID, scope.ProjectIDs(), scope.LocationIDs())
		if err != nil {
			return nil, fmt.Errorf("failed to load tasks: %w", err)
		}
		for _, t := range tasks {
			entities = append(entities, riskEntity{ID: t.TaskID, Name: t.LibraryTaskName, Window: t.LiveWindow()})
		}
	}
	if len(entities) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(entities))
	byID := make(map[string]riskEntity, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}
	sort.Strings(ids)

	scores, err := s.repo.LoadRiskScores(ctx, scope.TenantID, metric, ids, scope.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk scores: %w", err)
	}
	daily := insights.LatestPerDay(scores, scope.Window)

	memo := insights.NewThresholdMemo(s.thresholds, scope.TenantID)
	th, err := memo.Get(ctx, metric)
	if err != nil {
		return nil, err
	}

	grouped := map[string][]DateRiskLevel{}
	for _, d := range daily {
		entity, ok := byID[d.EntityID]
		if !ok {
			continue
		}
		// 关键规则：日期必须同时落在查询窗口与实体自身（及父实体）的有效区间里，
		// 窗口外存在分数行也静默丢弃
		if !entity.Window.Contains(d.Date) {
			continue
		}
		grouped[d.EntityID] = append(grouped[d.EntityID], DateRiskLevel{
			Date:      d.Date,
			RiskLevel: insights.RankScore(d.Value, th),
		})
	}

	out := make([]entitySeries, 0, len(grouped))
	for id, entries := range grouped {
		out = append(out, entitySeries{Entity: byID[id], Entries: entries})
	}
	sort.Slice(out, func(i, j int) bool {
		if r := s.collator.Compare(out[i].Entity.Name, out[j].Entity.Name); r != 0 {
			return r < 0
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	return out, nil
}

// histogram 把实体时间线折叠为 (date, bucket) 直方图；只产出 count >= 1 的行
func histogram(series []entitySeries) []RiskLevelCount {
	type bucketKey struct {
		day   int64
		level domain.RiskLevel
	}
	counts := map[bucketKey]int{}
	for _, es := range series {
		for _, e := range es.Entries {
			counts[bucketKey{day: e.Date.Unix(), level: e.RiskLevel}]++
		}
	}
	out := make([]RiskLevelCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, RiskLevelCount{Date: time.Unix(k.day, 0).UTC(), RiskLevel: k.level, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].RiskLevel.Order() < out[j].RiskLevel.Order()
	})
	return out
}

func toEntityRiskByDate(series []entitySeries) []EntityRiskByDate {
	out := make([]EntityRiskByDate, 0, len(series))
	for _, es := range series {
		out = append(out, EntityRiskByDate{EntityID: es.Entity.ID, Name: es.Entity.Name, Entries: es.Entries})
	}
	return out
}

// ProjectRiskOverTime 项目风险直方图
func (s *insightsService) ProjectRiskOverTime(ctx context.Context, f insights.ScopeFilter) ([]RiskLevelCount, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	series, err := s.riskSeries(ctx, scope, riskByProject)
	if err != nil {
		return nil, err
	}
	return histogram(series), nil
}

// ProjectRiskByDate 按项目的风险时间线
func (s *insightsService) ProjectRiskByDate(ctx context.Context, f insights.ScopeFilter) ([]EntityRiskByDate, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	series, err := s.riskSeries(ctx, scope, riskByProject)
	if err != nil {
		return nil, err
	}
	return toEntityRiskByDate(series), nil
}

// LocationRiskOverTime 地点风险直方图（PROJECT 范围）
func (s *insightsService) LocationRiskOverTime(ctx context.Context, f insights.ScopeFilter) ([]RiskLevelCount, error) {
	series, err := s.locationSeries(ctx, f)
	if err != nil {
		return nil, err
	}
	return histogram(series), nil
}

// LocationRiskByDate 按地点的风险时间线（PROJECT 范围）
func (s *insightsService) LocationRiskByDate(ctx context.Context, f insights.ScopeFilter) ([]EntityRiskByDate, error) {
	series, err := s.locationSeries(ctx, f)
	if err != nil {
		return nil, err
	}
	return toEntityRiskByDate(series), nil
}

func (s *insightsService) locationSeries(ctx context.Context, f insights.ScopeFilter) ([]entitySeries, error) {
	if f.Mode != insights.ScopeProject {
		return nil, fmt.Errorf("%w: location risk requires PROJECT scope", insights.ErrInvalidFilter)
	}
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	return s.riskSeries(ctx, scope, riskByLocation)
}

// TaskRiskByDate 按任务的风险时间线
func (s *insightsService) TaskRiskByDate(ctx context.Context, f insights.ScopeFilter, orderBy []OrderBy) ([]TaskRiskByDate, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() || len(scope.Locations) == 0 {
		return nil, nil
	}

	tasks, err := s.repo.FindTasks(ctx, scope.TenantID, scope.ProjectIDs(), scope.LocationIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	byID := make(map[string]repository.TaskRow, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.TaskID] = t
		ids = append(ids, t.TaskID)
	}
	sort.Strings(ids)

	scores, err := s.repo.LoadRiskScores(ctx, scope.TenantID, domain.MetricTaskSpecificRisk, ids, scope.Window)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk scores: %w", err)
	}
	daily := insights.LatestPerDay(scores, scope.Window)

	memo := insights.NewThresholdMemo(s.thresholds, scope.TenantID)
	th, err := memo.Get(ctx, domain.MetricTaskSpecificRisk)
	if err != nil {
		return nil, err
	}

	var out []TaskRiskByDate
	for _, d := range daily {
		t, ok := byID[d.EntityID]
		if !ok {
			continue
		}
		if !t.LiveWindow().Contains(d.Date) {
			continue
		}
		out = append(out, TaskRiskByDate{
			TaskID:       t.TaskID,
			TaskName:     t.LibraryTaskName,
			LocationName: t.LocationName,
			ProjectName:  t.ProjectName,
			Category:     t.LibraryTaskCategory,
			Date:         d.Date,
			RiskLevel:    insights.RankScore(d.Value, th),
		})
	}
	s.sortTaskRows(out, orderBy)
	return out, nil
}

// sortTaskRows 任务行排序：先按调用方 order_by 字段（大小写/重音不敏感），
// 再按 (任务名, 日期, id) 保证全序
func (s *insightsService) sortTaskRows(rows []TaskRiskByDate, orderBy []OrderBy) {
	fieldOf := func(r TaskRiskByDate, f OrderField) string {
		switch f {
		case OrderByProjectName:
			return r.ProjectName
		case OrderByProjectLocationName:
			return r.LocationName
		case OrderByCategory:
			return r.Category
		default:
			return ""
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ob := range orderBy {
			r := s.collator.Compare(fieldOf(rows[i], ob.Field), fieldOf(rows[j], ob.Field))
			if r == 0 {
				continue
			}
			if ob.Direction == OrderDesc {
				return r > 0
			}
			return r < 0
		}
		if r := s.collator.Compare(rows[i].TaskName, rows[j].TaskName); r != 0 {
			return r < 0
		}
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].TaskID < rows[j].TaskID
	})
}

// occurrenceStream 日报 → 批量实例解析 → walker 展开
func (s *insightsService) occurrenceStream(ctx context.Context, scope *insights.Scope, controls bool) ([]insights.Occurrence, *repository.InstanceResolution, error) {
	if len(scope.Locations) == 0 {
		return nil, nil, nil
	}
	reports, err := s.repo.LoadDailyReports(ctx, scope.TenantID, scope.ProjectIDs(), scope.LocationIDs(), scope.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load daily reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, nil, nil
	}

	taskIDs, scIDs, hazardIDs, controlIDs := insights.CollectInstanceIDs(reports)
	res := &repository.InstanceResolution{}
	if res.Tasks, err = s.repo.ResolveTaskInstances(ctx, scope.TenantID, taskIDs); err != nil {
		return nil, nil, fmt.Errorf("failed to resolve task instances: %w", err)
	}
	if res.SiteConditions, err = s.repo.ResolveSiteConditionInstances(ctx, scope.TenantID, scIDs); err != nil {
		return nil, nil, fmt.Errorf("failed to resolve site condition instances: %w", err)
	}
	if res.Hazards, err = s.repo.ResolveHazardInstances(ctx, scope.TenantID, hazardIDs); err != nil {
		return nil, nil, fmt.Errorf("failed to resolve hazard instances: %w", err)
	}
	if controls {
		if res.Controls, err = s.repo.ResolveControlInstances(ctx, scope.TenantID, controlIDs); err != nil {
			return nil, nil, fmt.Errorf("failed to resolve control instances: %w", err)
		}
	}

	walker := insights.NewWalker(res, s.logger)
	var occ []insights.Occurrence
	if controls {
		occ, err = walker.ControlOccurrences(reports)
	} else {
		occ, err = walker.HazardOccurrences(reports)
	}
	if err != nil {
		return nil, nil, err
	}
	return occ, res, nil
}

// groupEnv 任务类型分组所需的 library_task → category 映射
func (s *insightsService) groupEnv(ctx context.Context, res *repository.InstanceResolution) (*insights.GroupEnv, error) {
	if res == nil {
		return &insights.GroupEnv{TaskCategories: map[string]string{}}, nil
	}
	idSet := map[string]struct{}{}
	for _, inst := range res.Tasks {
		if inst.LibraryTaskID != "" {
			idSet[inst.LibraryTaskID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tasks, err := s.repo.GetLibraryTasks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load library tasks: %w", err)
	}
	categories := make(map[string]string, len(tasks))
	for id, lt := range tasks {
		categories[id] = lt.Category
	}
	return &insights.GroupEnv{TaskCategories: categories}, nil
}

// groupNames 解析分组值的显示名称
func (s *insightsService) groupNames(ctx context.Context, scope *insights.Scope, dim insights.GroupDim, ids []string) (map[string]string, error) {
	switch dim {
	case insights.GroupByLocation:
		names := make(map[string]string, len(ids))
		for _, id := range ids {
			if l, ok := scope.Locations[id]; ok {
				names[id] = l.Name
			}
		}
		return names, nil
	case insights.GroupByProject:
		names := make(map[string]string, len(ids))
		for _, id := range ids {
			if p, ok := scope.Projects[id]; ok {
				names[id] = p.Name
			}
		}
		return names, nil
	case insights.GroupByLibraryTaskCategory:
		// 类别本身就是显示值
		names := make(map[string]string, len(ids))
		for _, id := range ids {
			names[id] = id
		}
		return names, nil
	case insights.GroupByLibraryTask:
		return s.names.GetNames(ctx, domain.LibraryKindTask, ids)
	case insights.GroupByLibrarySiteCondition:
		return s.names.GetNames(ctx, domain.LibraryKindSiteCondition, ids)
	case insights.GroupByLibraryHazard:
		return s.names.GetNames(ctx, domain.LibraryKindHazard, ids)
	case insights.GroupByLibraryControl:
		return s.names.GetNames(ctx, domain.LibraryKindControl, ids)
	default:
		return nil, fmt.Errorf("unknown group dimension: %s", dim)
	}
}

func keysOfCounts(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func keysOfRatios(m map[string]insights.Ratio) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ApplicableHazards 适用危害计数（按库危害分组）
func (s *insightsService) ApplicableHazards(ctx context.Context, f insights.ScopeFilter, libraryHazardID string) ([]insights.GroupCount, error) {
	return s.ApplicableHazardsBy(ctx, f, libraryHazardID, insights.GroupByLibraryHazard)
}

// ApplicableHazardsBy 目标危害按维度分组的计数
func (s *insightsService) ApplicableHazardsBy(ctx context.Context, f insights.ScopeFilter, libraryHazardID string, dim insights.GroupDim) ([]insights.GroupCount, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	occ, res, err := s.occurrenceStream(ctx, scope, false)
	if err != nil {
		return nil, err
	}
	var env *insights.GroupEnv
	if dim == insights.GroupByLibraryTaskCategory {
		if env, err = s.groupEnv(ctx, res); err != nil {
			return nil, err
		}
	}

	counts := insights.CountApplicableHazards(occ, libraryHazardID, dim, env)
	names, err := s.groupNames(ctx, scope, dim, keysOfCounts(counts))
	if err != nil {
		return nil, err
	}
	return insights.TopCounts(counts, names, s.collator, insights.TopN), nil
}

// NotImplementedControls 未落实管控占比（按库管控分组）
func (s *insightsService) NotImplementedControls(ctx context.Context, f insights.ScopeFilter) ([]insights.GroupPercent, error) {
	return s.NotImplementedControlsBy(ctx, f, "", insights.GroupByLibraryControl)
}

// NotImplementedControlsBy 目标管控按维度分组的占比
func (s *insightsService) NotImplementedControlsBy(ctx context.Context, f insights.ScopeFilter, libraryControlID string, dim insights.GroupDim) ([]insights.GroupPercent, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	occ, res, err := s.occurrenceStream(ctx, scope, true)
	if err != nil {
		return nil, err
	}
	var env *insights.GroupEnv
	if dim == insights.GroupByLibraryTaskCategory {
		if env, err = s.groupEnv(ctx, res); err != nil {
			return nil, err
		}
	}

	ratios := insights.NotImplementedPercent(occ, libraryControlID, dim, env)
	names, err := s.groupNames(ctx, scope, dim, keysOfRatios(ratios))
	if err != nil {
		return nil, err
	}
	return insights.TopPercents(ratios, names, s.collator, insights.TopN), nil
}

// ReasonsControlsNotImplemented 未落实原因计数
func (s *insightsService) ReasonsControlsNotImplemented(ctx context.Context, f insights.ScopeFilter, libraryControlID string) ([]insights.ReasonCount, error) {
	scope, err := s.scopes.Resolve(ctx, f)
	if err != nil {
		return nil, err
	}
	if scope.IsEmpty() {
		return nil, nil
	}
	occ, _, err := s.occurrenceStream(ctx, scope, true)
	if err != nil {
		return nil, err
	}
	return insights.ReasonCounts(occ, libraryControlID, s.collator), nil
}
