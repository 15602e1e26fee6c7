package repository

import (
	"context"
	"testing"
	"time"

	"worksafe-insights/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockRepo(t *testing.T) (*PostgresInsightsRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresInsightsRepository(db, zap.NewNop()), mock
}

func TestFindProjects_NoFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{
		"project_id", "tenant_id", "name", "start_date", "end_date",
		"status", "region_id", "division_id", "contractor_id",
	}).AddRow(
		"proj-1", "t1", "Alpha",
		time.Date(2024, 8, 1, 10, 30, 0, 0, time.UTC), // 时间部分应被截断
		time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
		"active", "region-1", "", "",
	)
	mock.ExpectQuery("FROM projects").
		WithArgs("t1").
		WillReturnRows(rows)

	got, err := repo.FindProjects(context.Background(), "t1", ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "proj-1", got[0].ProjectID)
	require.True(t, got[0].StartDate.Equal(domain.NewDate(2024, 8, 1)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindProjects_DynamicWhere(t *testing.T) {
	repo, mock := newMockRepo(t)

	// 过滤条件按固定顺序追加：project_id → status → region
	mock.ExpectQuery(`project_id = ANY\(\$2::uuid\[\]\).*status = ANY\(\$3\).*region_id = ANY\(\$4::uuid\[\]\)`).
		WithArgs("t1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "tenant_id", "name", "start_date", "end_date",
			"status", "region_id", "division_id", "contractor_id",
		}))

	got, err := repo.FindProjects(context.Background(), "t1", ProjectFilter{
		ProjectIDs: []string{"proj-1"},
		Statuses:   []string{"active"},
		RegionIDs:  []string{"region-1"},
	})
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindProjects_RequiresTenant(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.FindProjects(context.Background(), "", ProjectFilter{})
	require.Error(t, err)
}

func TestGetLocationsByIDs_IncludesArchived(t *testing.T) {
	repo, mock := newMockRepo(t)

	archived := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"location_id", "tenant_id", "project_id", "name",
		"latitude", "longitude", "supervisor_id", "archived_at",
	}).
		AddRow("loc-1", "t1", "proj-1", "North", 1.0, 2.0, "", nil).
		AddRow("loc-2", "t1", "proj-1", "Old", 1.0, 2.0, "", archived)
	mock.ExpectQuery("FROM project_locations").
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.GetLocationsByIDs(context.Background(), "t1", []string{"loc-1", "loc-2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.False(t, got[0].Archived())
	require.True(t, got[1].Archived())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocationsByIDs_EmptySkipsQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	got, err := repo.GetLocationsByIDs(context.Background(), "t1", nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRiskScores_TablePerMetric(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"entity_id", "date", "value", "calculated_at"}).
		AddRow("loc-1", domain.NewDate(2024, 8, 1), 120.5, time.Date(2024, 8, 1, 6, 0, 0, 0, time.UTC))
	mock.ExpectQuery(`FROM total_project_location_risk_scores.*location_id = ANY\(\$2::uuid\[\]\).*date >= \$3.*date <= \$4`).
		WithArgs("t1", sqlmock.AnyArg(), domain.NewDate(2024, 8, 1), domain.NewDate(2024, 8, 31)).
		WillReturnRows(rows)

	window := domain.NewDateWindow(domain.NewDate(2024, 8, 1), domain.NewDate(2024, 8, 31))
	got, err := repo.LoadRiskScores(context.Background(), "t1", domain.MetricTotalProjectLocationRisk, []string{"loc-1"}, window)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 120.5, got[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRiskScores_UnknownMetric(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.LoadRiskScores(context.Background(), "t1", "nope", nil, domain.DateWindow{})
	require.Error(t, err)
}

func TestLoadDailyReports_ParsesSections(t *testing.T) {
	repo, mock := newMockRepo(t)

	sections := []byte(`{"job_hazard_analysis":{"tasks":[{"id":"task-1","hazards":[{"id":"haz-1","isApplicable":true}]}]}}`)
	rows := sqlmock.NewRows([]string{
		"report_id", "tenant_id", "project_id", "location_id", "date", "status", "sections",
	}).
		AddRow("r1", "t1", "proj-1", "loc-1", domain.NewDate(2024, 8, 1), "complete", sections).
		AddRow("r2", "t1", "proj-1", "loc-1", domain.NewDate(2024, 8, 2), "complete", []byte(`{broken`))
	mock.ExpectQuery("FROM daily_reports").
		WithArgs("t1").
		WillReturnRows(rows)

	got, err := repo.LoadDailyReports(context.Background(), "t1", nil, nil, domain.DateWindow{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Sections)
	require.Len(t, got[0].Sections.JobHazardAnalysis.Tasks, 1)
	// 损坏的 sections 按空文档继续，不让整批失败
	require.Nil(t, got[1].Sections)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveHazardInstances(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"hazard_id", "library_hazard_id", "archived"}).
		AddRow("haz-1", "lib-haz-1", false).
		AddRow("haz-2", "lib-haz-2", true)
	mock.ExpectQuery("FROM hazards").
		WithArgs("t1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.ResolveHazardInstances(context.Background(), "t1", []string{"haz-1", "haz-2", "haz-gone"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "lib-haz-1", got["haz-1"].LibraryHazardID)
	require.True(t, got["haz-2"].Archived)
	// 不存在的 id 不出现在映射里
	_, ok := got["haz-gone"]
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveHazardInstances_EmptySkipsQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	got, err := repo.ResolveHazardInstances(context.Background(), "t1", nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetThresholds_UnsetReturnsNil(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM risk_thresholds").
		WithArgs("t1", "total_project_risk").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "metric", "low", "medium"}))

	th, err := repo.GetThresholds(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.Nil(t, th)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetThresholds_Found(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"tenant_id", "metric", "low", "medium"}).
		AddRow("t1", "total_project_risk", 100.0, 250.0)
	mock.ExpectQuery("FROM risk_thresholds").
		WithArgs("t1", "total_project_risk").
		WillReturnRows(rows)

	th, err := repo.GetThresholds(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.NotNil(t, th)
	require.Equal(t, 100.0, th.Low)
	require.Equal(t, 250.0, th.Medium)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLibraryNames_TablePerKind(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow("lib-ctl-1", "Hard barricade")
	mock.ExpectQuery("FROM library_controls").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := repo.GetLibraryNames(context.Background(), domain.LibraryKindControl, []string{"lib-ctl-1"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"lib-ctl-1": "Hard barricade"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLibraryNames_UnknownKind(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.GetLibraryNames(context.Background(), "nope", []string{"x"})
	require.Error(t, err)
}

func TestTaskRowLiveWindow(t *testing.T) {
	row := TaskRow{
		Task: domain.Task{
			StartDate: domain.NewDate(2024, 8, 5),
			EndDate:   domain.NewDate(2024, 8, 25),
		},
		ActivityStart: domain.NewDate(2024, 8, 1),
		ActivityEnd:   domain.NewDate(2024, 8, 20),
		ProjectStart:  domain.NewDate(2024, 8, 10),
		ProjectEnd:    domain.NewDate(2024, 8, 31),
	}
	w := row.LiveWindow()
	require.True(t, w.Start.Equal(domain.NewDate(2024, 8, 10)))
	require.True(t, w.End.Equal(domain.NewDate(2024, 8, 20)))
}
