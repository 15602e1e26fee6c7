package insights

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TopN 分组结果的固定截断长度
const TopN = 10

// GroupDim 聚合分组维度（封闭集合）
type GroupDim string

const (
	GroupByLibraryHazard        GroupDim = "library_hazard"
	GroupByLibraryControl       GroupDim = "library_control"
	GroupByLibraryTask          GroupDim = "library_task"
	GroupByLibraryTaskCategory  GroupDim = "library_task_category"
	GroupByLibrarySiteCondition GroupDim = "library_site_condition"
	GroupByLocation             GroupDim = "location"
	GroupByProject              GroupDim = "project"
)

// GroupEnv 分组辅助数据（目前只有任务类型分组需要 library_task → category 映射）
type GroupEnv struct {
	TaskCategories map[string]string
}

// GroupValue 分组值（id + 显示名称）
type GroupValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupCount 分组计数结果行
type GroupCount struct {
	Group GroupValue `json:"group"`
	Count int        `json:"count"`
}

// GroupPercent 分组占比结果行
type GroupPercent struct {
	Group       GroupValue `json:"group"`
	Percent     float64    `json:"percent"`
	Denominator int        `json:"denominator"`
}

// ReasonCount 未落实原因计数行
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Ratio 未落实占比的分子/分母
type Ratio struct {
	Numerator   int
	Denominator int
}

// groupKey 从 occurrence 提取分组值；该维度下无值（如 SC 子树取任务分组）返回 false
func groupKey(o Occurrence, dim GroupDim, env *GroupEnv) (string, bool) {
	switch dim {
	case GroupByLibraryHazard:
		return o.LibraryHazardID, o.LibraryHazardID != ""
	case GroupByLibraryControl:
		return o.LibraryControlID, o.LibraryControlID != ""
	case GroupByLibraryTask:
		return o.LibraryTaskID, o.ParentKind == ParentTask && o.LibraryTaskID != ""
	case GroupByLibraryTaskCategory:
		if env == nil || o.ParentKind != ParentTask {
			return "", false
		}
		cat, ok := env.TaskCategories[o.LibraryTaskID]
		return cat, ok && cat != ""
	case GroupByLibrarySiteCondition:
		return o.LibrarySiteConditionID, o.ParentKind == ParentSiteCondition && o.LibrarySiteConditionID != ""
	case GroupByLocation:
		return o.LocationID, o.LocationID != ""
	case GroupByProject:
		return o.ProjectID, o.ProjectID != ""
	default:
		return "", false
	}
}

func dayKey(d time.Time) int64 {
	return d.Unix()
}

// CountApplicableHazards 适用危害计数（§4.4.1）
// 去重键 (day, group, library_hazard, parent_instance)：同一库危害在同一父实体
// 同一天出现多次只计一次；跨天累加。targetLibraryHazardID 为空表示不限定目标危害
func CountApplicableHazards(occ []Occurrence, targetLibraryHazardID string, dim GroupDim, env *GroupEnv) map[string]int {
	seen := map[string]struct{}{}
	counts := map[string]int{}
	for _, o := range occ {
		if !o.HazardApplicable {
			continue
		}
		if targetLibraryHazardID != "" && o.LibraryHazardID != targetLibraryHazardID {
			continue
		}
		g, ok := groupKey(o, dim, env)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%s|%s|%s", dayKey(o.Day), g, o.LibraryHazardID, o.ParentInstanceID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		counts[g]++
	}
	return counts
}

type percentCell struct {
	anyNotImplemented bool
}

// NotImplementedPercent 未落实管控占比（§4.4.2）
// 去重单元 (day, group, parent_instance, library_hazard)；同一单元内只要出现一次
// implemented=false 即计入分子，重复上报的 true 行不会洗掉 false
func NotImplementedPercent(occ []Occurrence, targetLibraryControlID string, dim GroupDim, env *GroupEnv) map[string]Ratio {
	cells := map[string]*percentCell{}
	cellGroup := map[string]string{}
	for _, o := range occ {
		if o.LibraryControlID == "" || o.ControlImplemented == nil {
			continue
		}
		if targetLibraryControlID != "" && o.LibraryControlID != targetLibraryControlID {
			continue
		}
		g, ok := groupKey(o, dim, env)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%s|%s|%s|%s", dayKey(o.Day), g, o.LibraryControlID, o.ParentInstanceID, o.LibraryHazardID)
		cell, exists := cells[key]
		if !exists {
			cell = &percentCell{}
			cells[key] = cell
			cellGroup[key] = g
		}
		if !*o.ControlImplemented {
			cell.anyNotImplemented = true
		}
	}

	ratios := map[string]Ratio{}
	for key, cell := range cells {
		g := cellGroup[key]
		r := ratios[g]
		r.Denominator++
		if cell.anyNotImplemented {
			r.Numerator++
		}
		ratios[g] = r
	}
	return ratios
}

// ReasonCounts 未落实原因计数（§4.4.3）
// 去重键 (day, control_instance)：同一天同一管控实例至多贡献一个原因，后到的覆盖先到的
// （occurrence 流按 (日期, 报告 id) 有序，"最新报告胜出"由此保证）。空原因排除
func ReasonCounts(occ []Occurrence, targetLibraryControlID string, col *Collator) []ReasonCount {
	type cellKey struct {
		day      int64
		instance string
	}
	reasons := map[cellKey]string{}
	for _, o := range occ {
		if o.ControlImplemented == nil || *o.ControlImplemented {
			continue
		}
		if targetLibraryControlID != "" && o.LibraryControlID != targetLibraryControlID {
			continue
		}
		if o.NotImplementedReason == "" || o.ControlInstanceID == "" {
			continue
		}
		reasons[cellKey{day: dayKey(o.Day), instance: o.ControlInstanceID}] = o.NotImplementedReason
	}

	counts := map[string]int{}
	for _, reason := range reasons {
		counts[reason]++
	}
	out := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return col.Less(out[i].Reason, out[j].Reason)
	})
	return out
}

// Round2 四舍五入到两位小数（0.83 表示 5/6）
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// TopCounts 计数结果定型：去零、按 (count 降序, 名称一级强度升序, id 升序) 排序、截断 Top-10
func TopCounts(counts map[string]int, names map[string]string, col *Collator, limit int) []GroupCount {
	out := make([]GroupCount, 0, len(counts))
	for id, n := range counts {
		if n <= 0 {
			continue
		}
		out = append(out, GroupCount{Group: GroupValue{ID: id, Name: names[id]}, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if r := col.Compare(out[i].Group.Name, out[j].Group.Name); r != 0 {
			return r < 0
		}
		return out[i].Group.ID < out[j].Group.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopPercents 占比结果定型：分母或分子为零的组丢弃，
// 按 (percent 降序, 分母降序, 名称升序, id 升序) 排序、截断 Top-10
func TopPercents(ratios map[string]Ratio, names map[string]string, col *Collator, limit int) []GroupPercent {
	out := make([]GroupPercent, 0, len(ratios))
	for id, r := range ratios {
		if r.Denominator == 0 || r.Numerator == 0 {
			continue
		}
		out = append(out, GroupPercent{
			Group:       GroupValue{ID: id, Name: names[id]},
			Percent:     Round2(float64(r.Numerator) / float64(r.Denominator)),
			Denominator: r.Denominator,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percent != out[j].Percent {
			return out[i].Percent > out[j].Percent
		}
		if out[i].Denominator != out[j].Denominator {
			return out[i].Denominator > out[j].Denominator
		}
		if r := col.Compare(out[i].Group.Name, out[j].Group.Name); r != 0 {
			return r < 0
		}
		return out[i].Group.ID < out[j].Group.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
