package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig はRedis接続の設定。
type RedisConfig struct {
	// Addr はRedisのアドレス（例: "localhost:6379"）。
	Addr string
	// Password はRedisのパスワード。
	Password string
	// DB は使用するDB番号。
	DB int
	// PoolSize は接続プールのサイズ。0の場合はgo-redisの既定値。
	PoolSize int
}

// RedisStore はキーごとのハッシュに兄弟を保持するStore実装。
// ハッシュのフィールドがバージョン、値がエンコード済みのレプリカとなる。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient は接続確認済みのRedisクライアントを生成する。
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(ErrUnavailable, "ping redis %s: %v", c.Addr, err)
	}
	return rdb, nil
}

// NewRedisStore はRedisStoreを生成する。prefixは全キーの先頭に付与される。
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Fetch はHGETALLでキーの兄弟を取得する。
func (s *RedisStore) Fetch(ctx context.Context, key string) ([]Sibling, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "hgetall %s: %v", key, err)
	}
	siblings := make([]Sibling, 0, len(fields))
	for v, value := range fields {
		siblings = append(siblings, Sibling{Version: v, Value: []byte(value)})
	}
	sortSiblings(siblings)
	return siblings, nil
}

// Put は新しい兄弟の追加と置き換えた兄弟の削除をMULTI/EXECで実行する。
func (s *RedisStore) Put(ctx context.Context, key string, supersedes []string, value []byte) error {
	k := s.prefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, uuid.NewString(), value)
		if len(supersedes) > 0 {
			pipe.HDel(ctx, k, supersedes...)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "put %s: %v", key, err)
	}
	return nil
}
