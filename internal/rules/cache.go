package rules

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/nao1215/notifyhub/pkg/model"
	"go.uber.org/zap"
)

// Source はルールの一覧を提供する。
type Source interface {
	List(ctx context.Context) (map[string]model.Rule, error)
}

// Cache はSourceのスナップショットをTTLの間保持する。
// ロールアップ1回ごとに不変のスナップショットを渡すために使用する。
type Cache struct {
	src    Source
	ttl    time.Duration
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	snapshot map[string]model.Rule
	loadedAt time.Time
	loaded   bool
}

// NewCache はCacheを生成する。clkがnilの場合は実時間を使う。
func NewCache(src Source, ttl time.Duration, clk clock.Clock, logger *zap.Logger) *Cache {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Cache{src: src, ttl: ttl, clock: clk, logger: logger}
}

// Snapshot はルールのスナップショットを返す。TTLを過ぎていれば再読み込みする。
// 再読み込みに失敗した場合、以前のスナップショットがあればそれを返す。
func (c *Cache) Snapshot(ctx context.Context) (map[string]model.Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.loaded && now.Sub(c.loadedAt) < c.ttl {
		return maps.Clone(c.snapshot), nil
	}

	fresh, err := c.src.List(ctx)
	if err != nil {
		if c.loaded {
			c.logger.Warn("ルールの再読み込みに失敗したため以前のスナップショットを使用します", zap.Error(err))
			return maps.Clone(c.snapshot), nil
		}
		return nil, err
	}
	c.snapshot = fresh
	c.loadedAt = now
	c.loaded = true
	return maps.Clone(fresh), nil
}

// Invalidate は次回のSnapshotで再読み込みさせる。
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
