package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"worksafe-insights/internal/config"
	"worksafe-insights/internal/database"
	"worksafe-insights/internal/insights"
	"worksafe-insights/internal/logger"
	"worksafe-insights/internal/repository"
	"worksafe-insights/internal/service"
	"worksafe-insights/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 针对线上库跑一轮洞察查询，人工核对结果用
//
//	go run ./cmd/insights-check -tenant <uuid> -start 2024-08-01 -end 2024-08-31
//	go run ./cmd/insights-check -tenant <uuid> -project <uuid> -start 2024-08-01 -end 2024-08-31
func main() {
	tenantID := flag.String("tenant", "", "tenant uuid (required)")
	projectID := flag.String("project", "", "project uuid (optional, switches to PROJECT scope)")
	start := flag.String("start", "", "window start (YYYY-MM-DD)")
	end := flag.String("end", "", "window end (YYYY-MM-DD)")
	flag.Parse()

	if *tenantID == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "usage: insights-check -tenant <uuid> [-project <uuid>] -start YYYY-MM-DD -end YYYY-MM-DD")
		os.Exit(2)
	}
	if _, err := uuid.Parse(*tenantID); err != nil {
		fmt.Fprintf(os.Stderr, "bad -tenant: %v\n", err)
		os.Exit(2)
	}
	if *projectID != "" {
		if _, err := uuid.Parse(*projectID); err != nil {
			fmt.Fprintf(os.Stderr, "bad -project: %v\n", err)
			os.Exit(2)
		}
	}
	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -start: %v\n", err)
		os.Exit(2)
	}
	endDate, err := time.Parse("2006-01-02", *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad -end: %v\n", err)
		os.Exit(2)
	}

	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, "console", "insights-check")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKVStore(redisClient)

	repo := repository.NewPostgresInsightsRepository(db, log)
	svc := service.NewInsightsService(repo, kv, cfg, log)

	f := insights.ScopeFilter{
		TenantID:  *tenantID,
		Mode:      insights.ScopePortfolio,
		StartDate: startDate,
		EndDate:   endDate,
	}
	if *projectID != "" {
		f.Mode = insights.ScopeProject
		f.ProjectID = *projectID
	}

	ctx := context.Background()

	riskOverTime, err := svc.ProjectRiskOverTime(ctx, f)
	if err != nil {
		log.Fatal("project risk over time failed", zap.Error(err))
	}
	printSection("project_risk_over_time", riskOverTime)

	hazards, err := svc.ApplicableHazards(ctx, f, "")
	if err != nil {
		log.Fatal("applicable hazards failed", zap.Error(err))
	}
	printSection("applicable_hazards", hazards)

	controls, err := svc.NotImplementedControls(ctx, f)
	if err != nil {
		log.Fatal("not implemented controls failed", zap.Error(err))
	}
	printSection("not_implemented_controls", controls)

	reasons, err := svc.ReasonsControlsNotImplemented(ctx, f, "")
	if err != nil {
		log.Fatal("reasons failed", zap.Error(err))
	}
	printSection("reasons_controls_not_implemented", reasons)
}

func printSection(name string, v interface{}) {
	fmt.Printf("=== %s ===\n", name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("  (marshal error: %v)\n", err)
		return
	}
	fmt.Println(string(data))
}
