package insights_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/insights"
	"worksafe-insights/internal/repository"
	"worksafe-insights/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeKV 内存版 KVStore，记录读写次数
type fakeKV struct {
	data map[string]string
	gets int
	sets int

	getErr error
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.gets++
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

var _ store.KVStore = (*fakeKV)(nil)

func testThresholds(tenantID string) domain.RiskThresholds {
	return domain.RiskThresholds{
		TenantID: tenantID,
		Metric:   domain.MetricTotalProjectRisk,
		Low:      100,
		Medium:   250,
	}
}

func TestThresholdProvider_MissBackfillsCache(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.SetThresholds(testThresholds("t1"))
	kv := newFakeKV()
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())

	th, err := p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.NotNil(t, th)
	require.Equal(t, float64(100), th.Low)
	require.Equal(t, 1, kv.sets)

	// 第二次命中缓存，不再写
	th, err = p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.NotNil(t, th)
	require.Equal(t, float64(250), th.Medium)
	require.Equal(t, 1, kv.sets)
}

func TestThresholdProvider_UnsetReturnsNilAndSkipsCache(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	kv := newFakeKV()
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())

	th, err := p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.Nil(t, th)
	require.Zero(t, kv.sets)
}

func TestThresholdProvider_CacheFailureFallsBackToDB(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.SetThresholds(testThresholds("t1"))
	kv := newFakeKV()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())

	th, err := p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.NotNil(t, th)
}

func TestThresholdProvider_CorruptCacheEntryFallsBackToDB(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.SetThresholds(testThresholds("t1"))
	kv := newFakeKV()
	kv.data["insights:thresholds:t1:total_project_risk"] = "{not json"
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())

	th, err := p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.NotNil(t, th)
	require.Equal(t, float64(100), th.Low)
}

func TestThresholdProvider_TenantsIsolated(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.SetThresholds(testThresholds("t1"))
	th2 := testThresholds("t2")
	th2.Low = 50
	th2.Medium = 80
	repo.SetThresholds(th2)
	kv := newFakeKV()
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())

	got1, err := p.Get(context.Background(), "t1", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	got2, err := p.Get(context.Background(), "t2", domain.MetricTotalProjectRisk)
	require.NoError(t, err)
	require.Equal(t, float64(100), got1.Low)
	require.Equal(t, float64(50), got2.Low)

	// 缓存 key 按租户隔离
	var cached domain.RiskThresholds
	require.NoError(t, json.Unmarshal([]byte(kv.data["insights:thresholds:t2:total_project_risk"]), &cached))
	require.Equal(t, float64(80), cached.Medium)
}

func TestThresholdMemo_LoadsOncePerMetric(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.SetThresholds(testThresholds("t1"))
	kv := newFakeKV()
	p := insights.NewThresholdProvider(repo, kv, time.Minute, zap.NewNop())
	memo := insights.NewThresholdMemo(p, "t1")

	for i := 0; i < 3; i++ {
		th, err := memo.Get(context.Background(), domain.MetricTotalProjectRisk)
		require.NoError(t, err)
		require.NotNil(t, th)
	}
	require.Equal(t, 1, kv.gets)

	// 未配置的指标同样只回源一次
	for i := 0; i < 3; i++ {
		th, err := memo.Get(context.Background(), domain.MetricTaskSpecificRisk)
		require.NoError(t, err)
		require.Nil(t, th)
	}
	require.Equal(t, 2, kv.gets)
}

func TestLibraryNameCache_PartialMissBackfills(t *testing.T) {
	repo := repository.NewMemoryInsightsRepository()
	repo.LibraryHazards["haz-1"] = domain.LibraryHazard{ID: "haz-1", Name: "Fall from height"}
	repo.LibraryHazards["haz-2"] = domain.LibraryHazard{ID: "haz-2", Name: "Struck by object"}
	kv := newFakeKV()
	kv.data["insights:libname:hazard:haz-1"] = "Fall from height"
	c := insights.NewLibraryNameCache(repo, kv, time.Minute, zap.NewNop())

	names, err := c.GetNames(context.Background(), domain.LibraryKindHazard, []string{"haz-1", "haz-2", "haz-gone"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"haz-1": "Fall from height",
		"haz-2": "Struck by object",
	}, names)
	// 只回填回源命中的 haz-2；不存在的 id 不缓存
	require.Equal(t, 1, kv.sets)
	require.Equal(t, "Struck by object", kv.data["insights:libname:hazard:haz-2"])
}
