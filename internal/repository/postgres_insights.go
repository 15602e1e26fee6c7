package repository

import (
	"context"
	"database/sql"
	"fmt"

	"worksafe-insights/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresInsightsRepository 洞察引擎 Repository 实现
type PostgresInsightsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresInsightsRepository 创建洞察引擎 Repository
func NewPostgresInsightsRepository(db *sql.DB, logger *zap.Logger) *PostgresInsightsRepository {
	return &PostgresInsightsRepository{db: db, logger: logger}
}

// 确保实现了接口
var _ InsightsRepository = (*PostgresInsightsRepository)(nil)

// FindProjects 查询通过过滤条件的未归档项目
func (r *PostgresInsightsRepository) FindProjects(ctx context.Context, tenantID string, f ProjectFilter) ([]domain.Project, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}

	query := `
		SELECT
			project_id::text,
			tenant_id::text,
			name,
			start_date,
			end_date,
			status,
			COALESCE(region_id::text, '') as region_id,
			COALESCE(division_id::text, '') as division_id,
			COALESCE(contractor_id::text, '') as contractor_id
		FROM projects
		WHERE tenant_id = $1::uuid
		  AND archived_at IS NULL
	`
	args := []interface{}{tenantID}
	argN := 2

	if len(f.ProjectIDs) > 0 {
		query += fmt.Sprintf(" AND project_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(f.ProjectIDs))
		argN++
	}
	if len(f.Statuses) > 0 {
		query += fmt.Sprintf(" AND status = ANY($%d)", argN)
		args = append(args, pq.Array(f.Statuses))
		argN++
	}
	if len(f.RegionIDs) > 0 {
		query += fmt.Sprintf(" AND region_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(f.RegionIDs))
		argN++
	}
	if len(f.DivisionIDs) > 0 {
		query += fmt.Sprintf(" AND division_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(f.DivisionIDs))
		argN++
	}
	if len(f.ContractorIDs) > 0 {
		query += fmt.Sprintf(" AND contractor_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(f.ContractorIDs))
		argN++
	}
	query += " ORDER BY name, project_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(
			&p.ProjectID,
			&p.TenantID,
			&p.Name,
			&p.StartDate,
			&p.EndDate,
			&p.Status,
			&p.RegionID,
			&p.DivisionID,
			&p.ContractorID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.StartDate = domain.Day(p.StartDate)
		p.EndDate = domain.Day(p.EndDate)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// FindLocations 查询未归档地点
func (r *PostgresInsightsRepository) FindLocations(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]domain.Location, error) {
	query := `
		SELECT
			l.location_id::text,
			l.tenant_id::text,
			l.project_id::text,
			l.name,
			l.latitude,
			l.longitude,
			COALESCE(l.supervisor_id::text, '') as supervisor_id
		FROM project_locations l
		JOIN projects p ON l.project_id = p.project_id
		WHERE l.tenant_id = $1::uuid
		  AND l.archived_at IS NULL
		  AND p.archived_at IS NULL
	`
	args := []interface{}{tenantID}
	argN := 2

	if len(projectIDs) > 0 {
		query += fmt.Sprintf(" AND l.project_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(projectIDs))
		argN++
	}
	if len(locationIDs) > 0 {
		query += fmt.Sprintf(" AND l.location_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(locationIDs))
		argN++
	}
	query += " ORDER BY l.name, l.location_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	return scanLocations(rows)
}

// GetLocationsByIDs 按 id 精确取地点（包含已归档，显式过滤校验用）
func (r *PostgresInsightsRepository) GetLocationsByIDs(ctx context.Context, tenantID string, ids []string) ([]domain.Location, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT
			location_id::text,
			tenant_id::text,
			project_id::text,
			name,
			latitude,
			longitude,
			COALESCE(supervisor_id::text, '') as supervisor_id,
			archived_at
		FROM project_locations
		WHERE tenant_id = $1::uuid
		  AND location_id = ANY($2::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query locations by ids: %w", err)
	}
	defer rows.Close()

	var locations []domain.Location
	for rows.Next() {
		var l domain.Location
		var archivedAt sql.NullTime
		if err := rows.Scan(
			&l.LocationID,
			&l.TenantID,
			&l.ProjectID,
			&l.Name,
			&l.Latitude,
			&l.Longitude,
			&l.SupervisorID,
			&archivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		if archivedAt.Valid {
			t := archivedAt.Time
			l.ArchivedAt = &t
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

func scanLocations(rows *sql.Rows) ([]domain.Location, error) {
	var locations []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(
			&l.LocationID,
			&l.TenantID,
			&l.ProjectID,
			&l.Name,
			&l.Latitude,
			&l.Longitude,
			&l.SupervisorID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locations: %w", err)
	}
	return locations, nil
}

// FindTasks 查询范围内的未归档任务（带反规范化字段）
func (r *PostgresInsightsRepository) FindTasks(ctx context.Context, tenantID string, projectIDs, locationIDs []string) ([]TaskRow, error) {
	query := `
		SELECT
			t.task_id::text,
			t.tenant_id::text,
			t.activity_id::text,
			t.location_id::text,
			l.project_id::text,
			t.library_task_id::text,
			t.start_date,
			t.end_date,
			t.status,
			lt.name as library_task_name,
			lt.category as library_task_category,
			l.name as location_name,
			p.name as project_name,
			a.start_date as activity_start,
			a.end_date as activity_end,
			p.start_date as project_start,
			p.end_date as project_end
		FROM tasks t
		JOIN activities a ON t.activity_id = a.activity_id
		JOIN project_locations l ON t.location_id = l.location_id
		JOIN projects p ON l.project_id = p.project_id
		JOIN library_tasks lt ON t.library_task_id = lt.id
		WHERE t.tenant_id = $1::uuid
		  AND t.archived_at IS NULL
		  AND l.archived_at IS NULL
		  AND p.archived_at IS NULL
	`
	args := []interface{}{tenantID}
	argN := 2

	if len(projectIDs) > 0 {
		query += fmt.Sprintf(" AND l.project_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(projectIDs))
		argN++
	}
	if len(locationIDs) > 0 {
		query += fmt.Sprintf(" AND t.location_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(locationIDs))
		argN++
	}
	query += " ORDER BY lt.name, t.task_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(
			&t.TaskID,
			&t.TenantID,
			&t.ActivityID,
			&t.LocationID,
			&t.ProjectID,
			&t.LibraryTaskID,
			&t.StartDate,
			&t.EndDate,
			&t.Status,
			&t.LibraryTaskName,
			&t.LibraryTaskCategory,
			&t.LocationName,
			&t.ProjectName,
			&t.ActivityStart,
			&t.ActivityEnd,
			&t.ProjectStart,
			&t.ProjectEnd,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.StartDate = domain.Day(t.StartDate)
		t.EndDate = domain.Day(t.EndDate)
		t.ActivityStart = domain.Day(t.ActivityStart)
		t.ActivityEnd = domain.Day(t.ActivityEnd)
		t.ProjectStart = domain.Day(t.ProjectStart)
		t.ProjectEnd = domain.Day(t.ProjectEnd)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// scoreTable 指标 → 分数日志表与实体列
func scoreTable(metric domain.RiskMetric) (string, string, error) {
	switch metric {
	case domain.MetricTotalProjectRisk:
		return "total_project_risk_scores", "project_id", nil
	case domain.MetricTotalProjectLocationRisk:
		return "total_project_location_risk_scores", "location_id", nil
	case domain.MetricTaskSpecificRisk:
		return "task_specific_risk_scores", "task_id", nil
	default:
		return "", "", fmt.Errorf("unknown risk metric: %s", metric)
	}
}

// LoadRiskScores 读取指定指标在窗口内的分数日志行
func (r *PostgresInsightsRepository) LoadRiskScores(ctx context.Context, tenantID string, metric domain.RiskMetric, entityIDs []string, window domain.DateWindow) ([]domain.RiskScore, error) {
	table, entityCol, err := scoreTable(metric)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			%s::text as entity_id,
			date,
			value,
			calculated_at
		FROM %s
		WHERE tenant_id = $1::uuid
	`, entityCol, table)
	args := []interface{}{tenantID}
	argN := 2

	if len(entityIDs) > 0 {
		query += fmt.Sprintf(" AND %s = ANY($%d::uuid[])", entityCol, argN)
		args = append(args, pq.Array(entityIDs))
		argN++
	}
	if !window.Start.IsZero() {
		query += fmt.Sprintf(" AND date >= $%d", argN)
		args = append(args, window.Start)
		argN++
	}
	if !window.End.IsZero() {
		query += fmt.Sprintf(" AND date <= $%d", argN)
		args = append(args, window.End)
		argN++
	}
	query += " ORDER BY entity_id, date, calculated_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.RiskScore
	for rows.Next() {
		var s domain.RiskScore
		if err := rows.Scan(&s.EntityID, &s.Date, &s.Value, &s.CalculatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		s.Date = domain.Day(s.Date)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate risk scores: %w", err)
	}
	return scores, nil
}

// LoadDailyReports 读取范围内的日报
// sections JSONB 解析失败按数据漂移处理：记日志后按空文档继续
func (r *PostgresInsightsRepository) LoadDailyReports(ctx context.Context, tenantID string, projectIDs, locationIDs []string, window domain.DateWindow) ([]domain.DailyReport, error) {
	query := `
		SELECT
			dr.report_id::text,
			dr.tenant_id::text,
			l.project_id::text,
			dr.location_id::text,
			dr.date,
			dr.status,
			dr.sections
		FROM daily_reports dr
		JOIN project_locations l ON dr.location_id = l.location_id
		JOIN projects p ON l.project_id = p.project_id
		WHERE dr.tenant_id = $1::uuid
		  AND l.archived_at IS NULL
		  AND p.archived_at IS NULL
	`
	args := []interface{}{tenantID}
	argN := 2

	if len(projectIDs) > 0 {
		query += fmt.Sprintf(" AND l.project_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(projectIDs))
		argN++
	}
	if len(locationIDs) > 0 {
		query += fmt.Sprintf(" AND dr.location_id = ANY($%d::uuid[])", argN)
		args = append(args, pq.Array(locationIDs))
		argN++
	}
	if !window.Start.IsZero() {
		query += fmt.Sprintf(" AND dr.date >= $%d", argN)
		args = append(args, window.Start)
		argN++
	}
	if !window.End.IsZero() {
		query += fmt.Sprintf(" AND dr.date <= $%d", argN)
		args = append(args, window.End)
		argN++
	}
	query += " ORDER BY dr.date, dr.report_id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.DailyReport
	for rows.Next() {
		var rep domain.DailyReport
		var sections []byte
		if err := rows.Scan(
			&rep.ReportID,
			&rep.TenantID,
			&rep.ProjectID,
			&rep.LocationID,
			&rep.Date,
			&rep.Status,
			&sections,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily report: %w", err)
		}
		rep.Date = domain.Day(rep.Date)
		parsed, err := domain.ParseSections(sections)
		if err != nil {
			r.logger.Warn("unparsable daily report sections, treating as empty",
				zap.String("report_id", rep.ReportID),
				zap.Error(err),
			)
		} else {
			rep.Sections = parsed
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily reports: %w", err)
	}
	return reports, nil
}

// ResolveTaskInstances 批量解析任务实例
func (r *PostgresInsightsRepository) ResolveTaskInstances(ctx context.Context, tenantID string, ids []string) (map[string]TaskInstance, error) {
	if len(ids) == 0 {
		return map[string]TaskInstance{}, nil
	}

	query := `
		SELECT
			task_id::text,
			library_task_id::text,
			(archived_at IS NOT NULL) as archived
		FROM tasks
		WHERE tenant_id = $1::uuid
		  AND task_id = ANY($2::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task instances: %w", err)
	}
	defer rows.Close()

	result := make(map[string]TaskInstance, len(ids))
	for rows.Next() {
		var inst TaskInstance
		if err := rows.Scan(&inst.TaskID, &inst.LibraryTaskID, &inst.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan task instance: %w", err)
		}
		result[inst.TaskID] = inst
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task instances: %w", err)
	}
	return result, nil
}

// ResolveSiteConditionInstances 批量解析现场条件实例
func (r *PostgresInsightsRepository) ResolveSiteConditionInstances(ctx context.Context, tenantID string, ids []string) (map[string]SiteConditionInstance, error) {
	if len(ids) == 0 {
		return map[string]SiteConditionInstance{}, nil
	}

	query := `
		SELECT
			site_condition_id::text,
			library_site_condition_id::text,
			(archived_at IS NOT NULL) as archived
		FROM site_conditions
		WHERE tenant_id = $1::uuid
		  AND site_condition_id = ANY($2::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve site condition instances: %w", err)
	}
	defer rows.Close()

	result := make(map[string]SiteConditionInstance, len(ids))
	for rows.Next() {
		var inst SiteConditionInstance
		if err := rows.Scan(&inst.SiteConditionID, &inst.LibrarySiteConditionID, &inst.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan site condition instance: %w", err)
		}
		result[inst.SiteConditionID] = inst
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate site condition instances: %w", err)
	}
	return result, nil
}

// ResolveHazardInstances 批量解析危害实例
func (r *PostgresInsightsRepository) ResolveHazardInstances(ctx context.Context, tenantID string, ids []string) (map[string]HazardInstance, error) {
	if len(ids) == 0 {
		return map[string]HazardInstance{}, nil
	}

	query := `
		SELECT
			hazard_id::text,
			library_hazard_id::text,
			(archived_at IS NOT NULL) as archived
		FROM hazards
		WHERE tenant_id = $1::uuid
		  AND hazard_id = ANY($2::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hazard instances: %w", err)
	}
	defer rows.Close()

	result := make(map[string]HazardInstance, len(ids))
	for rows.Next() {
		var inst HazardInstance
		if err := rows.Scan(&inst.HazardID, &inst.LibraryHazardID, &inst.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan hazard instance: %w", err)
		}
		result[inst.HazardID] = inst
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hazard instances: %w", err)
	}
	return result, nil
}

// ResolveControlInstances 批量解析管控措施实例
func (r *PostgresInsightsRepository) ResolveControlInstances(ctx context.Context, tenantID string, ids []string) (map[string]ControlInstance, error) {
	if len(ids) == 0 {
		return map[string]ControlInstance{}, nil
	}

	query := `
		SELECT
			control_id::text,
			library_control_id::text,
			COALESCE(hazard_id::text, '') as hazard_id,
			(archived_at IS NOT NULL) as archived
		FROM controls
		WHERE tenant_id = $1::uuid
		  AND control_id = ANY($2::uuid[])
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve control instances: %w", err)
	}
	defer rows.Close()

	result := make(map[string]ControlInstance, len(ids))
	for rows.Next() {
		var inst ControlInstance
		if err := rows.Scan(&inst.ControlID, &inst.LibraryControlID, &inst.HazardInstanceID, &inst.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan control instance: %w", err)
		}
		result[inst.ControlID] = inst
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate control instances: %w", err)
	}
	return result, nil
}

// GetThresholds 读取租户阈值；未配置返回 (nil, nil)
func (r *PostgresInsightsRepository) GetThresholds(ctx context.Context, tenantID string, metric domain.RiskMetric) (*domain.RiskThresholds, error) {
	query := `
		SELECT tenant_id::text, metric, low, medium
		FROM risk_thresholds
		WHERE tenant_id = $1::uuid
		  AND metric = $2
	`
	var th domain.RiskThresholds
	err := r.db.QueryRowContext(ctx, query, tenantID, string(metric)).Scan(
		&th.TenantID,
		&th.Metric,
		&th.Low,
		&th.Medium,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 阈值未配置
		}
		return nil, fmt.Errorf("failed to get risk thresholds: %w", err)
	}
	return &th, nil
}

// libraryTable 库条目类别 → 表名
func libraryTable(kind domain.LibraryKind) (string, error) {
	switch kind {
	case domain.LibraryKindTask:
		return "library_tasks", nil
	case domain.LibraryKindSiteCondition:
		return "library_site_conditions", nil
	case domain.LibraryKindHazard:
		return "library_hazards", nil
	case domain.LibraryKindControl:
		return "library_controls", nil
	default:
		return "", fmt.Errorf("unknown library kind: %s", kind)
	}
}

// GetLibraryNames 批量取库条目显示名称
func (r *PostgresInsightsRepository) GetLibraryNames(ctx context.Context, kind domain.LibraryKind, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	table, err := libraryTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id::text, name FROM %s WHERE id = ANY($1::uuid[])`, table)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query library names: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan library name: %w", err)
		}
		result[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library names: %w", err)
	}
	return result, nil
}

// GetLibraryTasks 批量取任务库条目
func (r *PostgresInsightsRepository) GetLibraryTasks(ctx context.Context, ids []string) (map[string]domain.LibraryTask, error) {
	if len(ids) == 0 {
		return map[string]domain.LibraryTask{}, nil
	}

	query := `SELECT id::text, name, category, hesp_score FROM library_tasks WHERE id = ANY($1::uuid[])`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query library tasks: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.LibraryTask, len(ids))
	for rows.Next() {
		var lt domain.LibraryTask
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Category, &lt.HespScore); err != nil {
			return nil, fmt.Errorf("failed to scan library task: %w", err)
		}
		result[lt.ID] = lt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate library tasks: %w", err)
	}
	return result, nil
}
