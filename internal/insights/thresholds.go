package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/repository"
	"worksafe-insights/internal/store"

	"go.uber.org/zap"
)

// ThresholdProvider 租户阈值提供者（C5）
// Redis 读穿缓存；缓存写失败只记日志，不影响查询
type ThresholdProvider struct {
	repo   repository.InsightsRepository
	kv     store.KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewThresholdProvider 创建阈值提供者
func NewThresholdProvider(repo repository.InsightsRepository, kv store.KVStore, ttl time.Duration, logger *zap.Logger) *ThresholdProvider {
	return &ThresholdProvider{repo: repo, kv: kv, ttl: ttl, logger: logger}
}

func thresholdCacheKey(tenantID string, metric domain.RiskMetric) string {
	return fmt.Sprintf("insights:thresholds:%s:%s", tenantID, metric)
}

// Get 读取租户某指标的阈值；未配置返回 (nil, nil)，调用方据此产出 UNKNOWN
func (p *ThresholdProvider) Get(ctx context.Context, tenantID string, metric domain.RiskMetric) (*domain.RiskThresholds, error) {
	key := thresholdCacheKey(tenantID, metric)

	if p.kv != nil {
		if cached, err := p.kv.Get(ctx, key); err == nil {
			var th domain.RiskThresholds
			if err := json.Unmarshal([]byte(cached), &th); err == nil {
				return &th, nil
			}
			// 缓存内容损坏：回源
			p.logger.Warn("corrupt threshold cache entry, falling back to db",
				zap.String("key", key))
		} else if err != store.ErrCacheMiss {
			p.logger.Warn("threshold cache read failed, falling back to db",
				zap.String("key", key), zap.Error(err))
		}
	}

	th, err := p.repo.GetThresholds(ctx, tenantID, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}
	if th == nil {
		// 未配置不缓存：配置上线后下一次查询即可生效
		return nil, nil
	}

	if p.kv != nil {
		if data, err := json.Marshal(th); err == nil {
			if err := p.kv.Set(ctx, key, string(data), p.ttl); err != nil {
				p.logger.Warn("threshold cache write failed",
					zap.String("key", key), zap.Error(err))
			}
		}
	}
	return th, nil
}

// ThresholdMemo 单次查询生命周期内的阈值备忘（避免同一请求里重复取）
// 绑定单个租户；不做并发保护，一次查询在单个协程内消费
type ThresholdMemo struct {
	provider *ThresholdProvider
	tenantID string
	cached   map[domain.RiskMetric]*domain.RiskThresholds
	loaded   map[domain.RiskMetric]bool
}

// NewThresholdMemo 创建请求级阈值备忘
func NewThresholdMemo(p *ThresholdProvider, tenantID string) *ThresholdMemo {
	return &ThresholdMemo{
		provider: p,
		tenantID: tenantID,
		cached:   map[domain.RiskMetric]*domain.RiskThresholds{},
		loaded:   map[domain.RiskMetric]bool{},
	}
}

// Get 取阈值；同一指标只回源一次
func (m *ThresholdMemo) Get(ctx context.Context, metric domain.RiskMetric) (*domain.RiskThresholds, error) {
	if m.loaded[metric] {
		return m.cached[metric], nil
	}
	th, err := m.provider.Get(ctx, m.tenantID, metric)
	if err != nil {
		return nil, err
	}
	m.cached[metric] = th
	m.loaded[metric] = true
	return th, nil
}
