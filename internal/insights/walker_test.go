package insights_test

import (
	"testing"
	"time"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/insights"
	"worksafe-insights/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func boolp(v bool) *bool { return &v }

// testResolution 一套固定的实例解析映射
// task-1 → lib-task-1，sc-1 → lib-sc-1，haz-1/2 → lib-haz-1/2，ctl-1/2 → lib-ctl-1/2
func testResolution() *repository.InstanceResolution {
	return &repository.InstanceResolution{
		Tasks: map[string]repository.TaskInstance{
			"task-1": {TaskID: "task-1", LibraryTaskID: "lib-task-1"},
			"task-2": {TaskID: "task-2", LibraryTaskID: "lib-task-2", Archived: true},
		},
		SiteConditions: map[string]repository.SiteConditionInstance{
			"sc-1": {SiteConditionID: "sc-1", LibrarySiteConditionID: "lib-sc-1"},
		},
		Hazards: map[string]repository.HazardInstance{
			"haz-1": {HazardID: "haz-1", LibraryHazardID: "lib-haz-1"},
			"haz-2": {HazardID: "haz-2", LibraryHazardID: "lib-haz-2"},
		},
		Controls: map[string]repository.ControlInstance{
			"ctl-1": {ControlID: "ctl-1", LibraryControlID: "lib-ctl-1"},
			"ctl-2": {ControlID: "ctl-2", LibraryControlID: "lib-ctl-2"},
		},
	}
}

func report(id string, d time.Time, jha *domain.JobHazardAnalysis) domain.DailyReport {
	return domain.DailyReport{
		ReportID:   id,
		TenantID:   "t1",
		ProjectID:  "proj-1",
		LocationID: "loc-1",
		Date:       d,
		Status:     "complete",
		Sections:   &domain.ReportSections{JobHazardAnalysis: jha},
	}
}

func TestWalker_HazardStream(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true)},
				{ID: "haz-2", IsApplicable: boolp(false)},
			}},
		},
		SiteConditions: []domain.SiteConditionAnalysis{
			{ID: "sc-1", IsApplicable: boolp(true), Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true)},
			}},
		},
	})

	occ, err := w.HazardOccurrences([]domain.DailyReport{rep})
	require.NoError(t, err)
	require.Len(t, occ, 3)

	require.Equal(t, insights.ParentTask, occ[0].ParentKind)
	require.Equal(t, "task-1", occ[0].ParentInstanceID)
	require.Equal(t, "lib-task-1", occ[0].LibraryTaskID)
	require.Equal(t, "lib-haz-1", occ[0].LibraryHazardID)
	require.True(t, occ[0].HazardApplicable)

	require.False(t, occ[1].HazardApplicable)

	require.Equal(t, insights.ParentSiteCondition, occ[2].ParentKind)
	require.Equal(t, "lib-sc-1", occ[2].LibrarySiteConditionID)
	require.Empty(t, occ[2].LibraryTaskID)
}

func TestWalker_SkipsArchivedParentSubtree(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	// task-2 已归档：整棵子树跳过
	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-2", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true)},
			}},
		},
	})
	occ, err := w.HazardOccurrences([]domain.DailyReport{rep})
	require.NoError(t, err)
	require.Empty(t, occ)
}

func TestWalker_SkipsUnresolvableHazard(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-unknown", IsApplicable: boolp(true)},
				{ID: "haz-1", IsApplicable: boolp(true)},
			}},
		},
	})
	occ, err := w.HazardOccurrences([]domain.DailyReport{rep})
	require.NoError(t, err)
	require.Len(t, occ, 1)
	require.Equal(t, "lib-haz-1", occ[0].LibraryHazardID)
}

func TestWalker_MissingIsApplicableIsRejected(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1"}, // isApplicable 缺失
			}},
		},
	})
	_, err := w.HazardOccurrences([]domain.DailyReport{rep})
	require.ErrorIs(t, err, insights.ErrMalformedAnalysis)
}

func TestWalker_ControlStream(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true), Controls: []domain.ControlAnalysis{
					{ID: "ctl-1", Implemented: boolp(false), NotImplementedReason: "  no materials  "},
					{ID: "ctl-2", Implemented: boolp(true)},
				}},
			}},
		},
	})
	occ, err := w.ControlOccurrences([]domain.DailyReport{rep})
	require.NoError(t, err)
	require.Len(t, occ, 2)

	require.Equal(t, "lib-ctl-1", occ[0].LibraryControlID)
	require.Equal(t, "ctl-1", occ[0].ControlInstanceID)
	require.NotNil(t, occ[0].ControlImplemented)
	require.False(t, *occ[0].ControlImplemented)
	// 原因文本去除首尾空白
	require.Equal(t, "no materials", occ[0].NotImplementedReason)

	require.True(t, *occ[1].ControlImplemented)
}

func TestWalker_MissingImplementedIsRejected(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true), Controls: []domain.ControlAnalysis{
					{ID: "ctl-1"},
				}},
			}},
		},
	})
	_, err := w.ControlOccurrences([]domain.DailyReport{rep})
	require.ErrorIs(t, err, insights.ErrMalformedAnalysis)
}

func TestWalker_EmptySectionsProduceNothing(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	reports := []domain.DailyReport{
		{ReportID: "r1", Date: day(1)},                                     // sections 为空
		{ReportID: "r2", Date: day(1), Sections: &domain.ReportSections{}}, // 无 JHA
		report("r3", day(1), &domain.JobHazardAnalysis{}),                  // JHA 无子树
	}
	occ, err := w.HazardOccurrences(reports)
	require.NoError(t, err)
	require.Empty(t, occ)
}

func TestWalker_OrdersReportsByDateThenID(t *testing.T) {
	w := insights.NewWalker(testResolution(), zap.NewNop())

	jha := &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{{ID: "haz-1", IsApplicable: boolp(true)}}},
		},
	}
	reports := []domain.DailyReport{
		report("r2", day(2), jha),
		report("r1", day(1), jha),
	}
	occ, err := w.HazardOccurrences(reports)
	require.NoError(t, err)
	require.Len(t, occ, 2)
	require.True(t, occ[0].Day.Equal(day(1)))
	require.True(t, occ[1].Day.Equal(day(2)))
}

func TestCollectInstanceIDs(t *testing.T) {
	rep := report("r1", day(1), &domain.JobHazardAnalysis{
		Tasks: []domain.TaskAnalysis{
			{ID: "task-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true), Controls: []domain.ControlAnalysis{
					{ID: "ctl-1", Implemented: boolp(true)},
				}},
			}},
		},
		SiteConditions: []domain.SiteConditionAnalysis{
			{ID: "sc-1", Hazards: []domain.HazardAnalysis{
				{ID: "haz-1", IsApplicable: boolp(true)},
				{ID: "haz-2", IsApplicable: boolp(true)},
			}},
		},
	})
	taskIDs, scIDs, hazardIDs, controlIDs := insights.CollectInstanceIDs([]domain.DailyReport{rep})
	require.Equal(t, []string{"task-1"}, taskIDs)
	require.Equal(t, []string{"sc-1"}, scIDs)
	require.Equal(t, []string{"haz-1", "haz-2"}, hazardIDs)
	require.Equal(t, []string{"ctl-1"}, controlIDs)
}
