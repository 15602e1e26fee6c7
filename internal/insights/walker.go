package insights

import (
	"sort"
	"strings"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/repository"

	"go.uber.org/zap"
)

// Walker 日报分析树遍历器（C3）
// 实例 id → 库条目 id 的解析映射由仓库批量预取，遍历本身在内存中完成、无 I/O
type Walker struct {
	res    *repository.InstanceResolution
	logger *zap.Logger
}

// NewWalker 创建 Walker
func NewWalker(res *repository.InstanceResolution, logger *zap.Logger) *Walker {
	return &Walker{res: res, logger: logger}
}

// CollectInstanceIDs 收集一批日报分析树中出现的全部实例 id（供批量解析）
func CollectInstanceIDs(reports []domain.DailyReport) (taskIDs, scIDs, hazardIDs, controlIDs []string) {
	taskSet := map[string]struct{}{}
	scSet := map[string]struct{}{}
	hazardSet := map[string]struct{}{}
	controlSet := map[string]struct{}{}

	collectHazards := func(hazards []domain.HazardAnalysis) {
		for _, h := range hazards {
			if h.ID != "" {
				hazardSet[h.ID] = struct{}{}
			}
			for _, c := range h.Controls {
				if c.ID != "" {
					controlSet[c.ID] = struct{}{}
				}
			}
		}
	}
	for _, rep := range reports {
		jha := jhaOf(rep)
		if jha == nil {
			continue
		}
		for _, ta := range jha.Tasks {
			if ta.ID != "" {
				taskSet[ta.ID] = struct{}{}
			}
			collectHazards(ta.Hazards)
		}
		for _, sca := range jha.SiteConditions {
			if sca.ID != "" {
				scSet[sca.ID] = struct{}{}
			}
			collectHazards(sca.Hazards)
		}
	}
	return setToSlice(taskSet), setToSlice(scSet), setToSlice(hazardSet), setToSlice(controlSet)
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func jhaOf(rep domain.DailyReport) *domain.JobHazardAnalysis {
	if rep.Sections == nil {
		return nil
	}
	return rep.Sections.JobHazardAnalysis
}

// parentRef 危害父节点（TASK 或 SITE_CONDITION 二选一）
type parentRef struct {
	kind       ParentKind
	instanceID string
	libTaskID  string
	libSCID    string
}

// HazardOccurrences 产出 hazard 流
// 每个可解析的危害节点产出一条；父实例或危害实例已归档/不可解析时整棵子树跳过并记日志
func (w *Walker) HazardOccurrences(reports []domain.DailyReport) ([]Occurrence, error) {
	return w.walk(reports, false)
}

// ControlOccurrences 产出 control 流（每个管控措施节点一条）
func (w *Walker) ControlOccurrences(reports []domain.DailyReport) ([]Occurrence, error) {
	return w.walk(reports, true)
}

func (w *Walker) walk(reports []domain.DailyReport, controls bool) ([]Occurrence, error) {
	// 按 (日期, 报告 id) 遍历，保证"同日多报告取后者"的去重语义可复现
	sorted := make([]domain.DailyReport, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ReportID < sorted[j].ReportID
	})

	var out []Occurrence
	for _, rep := range sorted {
		jha := jhaOf(rep)
		if jha == nil {
			continue
		}
		for _, ta := range jha.Tasks {
			parent, ok := w.resolveTaskParent(rep, ta.ID)
			if !ok {
				continue
			}
			occ, err := w.walkHazards(rep, parent, ta.Hazards, controls)
			if err != nil {
				return nil, err
			}
			out = append(out, occ...)
		}
		for _, sca := range jha.SiteConditions {
			parent, ok := w.resolveSiteConditionParent(rep, sca.ID)
			if !ok {
				continue
			}
			occ, err := w.walkHazards(rep, parent, sca.Hazards, controls)
			if err != nil {
				return nil, err
			}
			out = append(out, occ...)
		}
	}
	return out, nil
}

func (w *Walker) resolveTaskParent(rep domain.DailyReport, instanceID string) (parentRef, bool) {
	if instanceID == "" {
		return parentRef{}, false
	}
	inst, ok := w.res.Tasks[instanceID]
	if !ok || inst.Archived {
		w.logger.Debug("skipping unresolvable task analysis subtree",
			zap.String("report_id", rep.ReportID),
			zap.String("task_instance_id", instanceID),
		)
		return parentRef{}, false
	}
	return parentRef{kind: ParentTask, instanceID: instanceID, libTaskID: inst.LibraryTaskID}, true
}

func (w *Walker) resolveSiteConditionParent(rep domain.DailyReport, instanceID string) (parentRef, bool) {
	if instanceID == "" {
		return parentRef{}, false
	}
	inst, ok := w.res.SiteConditions[instanceID]
	if !ok || inst.Archived {
		w.logger.Debug("skipping unresolvable site condition analysis subtree",
			zap.String("report_id", rep.ReportID),
			zap.String("site_condition_instance_id", instanceID),
		)
		return parentRef{}, false
	}
	return parentRef{kind: ParentSiteCondition, instanceID: instanceID, libSCID: inst.LibrarySiteConditionID}, true
}

func (w *Walker) walkHazards(rep domain.DailyReport, parent parentRef, hazards []domain.HazardAnalysis, controls bool) ([]Occurrence, error) {
	var out []Occurrence
	for _, h := range hazards {
		if h.ID == "" {
			continue
		}
		inst, ok := w.res.Hazards[h.ID]
		if !ok || inst.Archived {
			// 危害实例已归档/已删除：按 DEPENDENT_MISSING 跳过，查询继续
			w.logger.Debug("skipping unresolvable hazard instance",
				zap.String("report_id", rep.ReportID),
				zap.String("hazard_instance_id", h.ID),
			)
			continue
		}
		if h.IsApplicable == nil {
			return nil, malformedf("report %s: hazard %s is missing isApplicable", rep.ReportID, h.ID)
		}

		base := Occurrence{
			Day:                    rep.Date,
			ProjectID:              rep.ProjectID,
			LocationID:             rep.LocationID,
			ParentKind:             parent.kind,
			ParentInstanceID:       parent.instanceID,
			LibraryTaskID:          parent.libTaskID,
			LibrarySiteConditionID: parent.libSCID,
			LibraryHazardID:        inst.LibraryHazardID,
			HazardApplicable:       *h.IsApplicable,
		}

		if !controls {
			out = append(out, base)
			continue
		}
		for _, c := range h.Controls {
			if c.ID == "" {
				continue
			}
			cinst, ok := w.res.Controls[c.ID]
			if !ok || cinst.Archived {
				w.logger.Debug("skipping unresolvable control instance",
					zap.String("report_id", rep.ReportID),
					zap.String("control_instance_id", c.ID),
				)
				continue
			}
			if c.Implemented == nil {
				return nil, malformedf("report %s: control %s is missing implemented", rep.ReportID, c.ID)
			}
			occ := base
			occ.LibraryControlID = cinst.LibraryControlID
			occ.ControlInstanceID = c.ID
			occ.ControlImplemented = c.Implemented
			occ.NotImplementedReason = strings.TrimSpace(c.NotImplementedReason)
			out = append(out, occ)
		}
	}
	return out, nil
}
