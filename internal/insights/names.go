package insights

import (
	"context"
	"fmt"
	"time"

	"worksafe-insights/internal/domain"
	"worksafe-insights/internal/repository"
	"worksafe-insights/internal/store"

	"go.uber.org/zap"
)

// LibraryNameCache 库条目显示名称的读穿缓存
// 库条目跨租户共享，key 不含租户；写入只来自数据加载侧，读侧可安全并发
type LibraryNameCache struct {
	repo   repository.InsightsRepository
	kv     store.KVStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewLibraryNameCache 创建名称缓存
func NewLibraryNameCache(repo repository.InsightsRepository, kv store.KVStore, ttl time.Duration, logger *zap.Logger) *LibraryNameCache {
	return &LibraryNameCache{repo: repo, kv: kv, ttl: ttl, logger: logger}
}

func libraryNameKey(kind domain.LibraryKind, id string) string {
	return fmt.Sprintf("insights:libname:%s:%s", kind, id)
}

// GetNames 批量取显示名称；缓存未命中的 id 一次回源并回填
func (c *LibraryNameCache) GetNames(ctx context.Context, kind domain.LibraryKind, ids []string) (map[string]string, error) {
	result := make(map[string]string, len(ids))
	var missing []string

	if c.kv != nil {
		for _, id := range ids {
			name, err := c.kv.Get(ctx, libraryNameKey(kind, id))
			if err == nil {
				result[id] = name
				continue
			}
			if err != store.ErrCacheMiss {
				c.logger.Warn("library name cache read failed",
					zap.String("kind", string(kind)), zap.Error(err))
			}
			missing = append(missing, id)
		}
	} else {
		missing = ids
	}
	if len(missing) == 0 {
		return result, nil
	}

	loaded, err := c.repo.GetLibraryNames(ctx, kind, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to load library names: %w", err)
	}
	for id, name := range loaded {
		result[id] = name
		if c.kv != nil {
			if err := c.kv.Set(ctx, libraryNameKey(kind, id), name, c.ttl); err != nil {
				c.logger.Warn("library name cache write failed",
					zap.String("kind", string(kind)), zap.Error(err))
			}
		}
	}
	return result, nil
}
