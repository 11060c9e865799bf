package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
)

// setupRedisStore はminiredisに接続したRedisStoreを返す。
func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Redisクライアントの生成に失敗: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test:"), mr
}

// testStores は契約テストを実行するStore実装を返す。
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	rs, _ := setupRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("存在しないキーは兄弟なしを返すこと", func(t *testing.T) {
		t.Parallel()

		for name, s := range testStores(t) {
			siblings, err := s.Fetch(ctx, "missing")
			if err != nil {
				t.Fatalf("%s: Fetchでエラーが発生: %v", name, err)
			}
			if len(siblings) != 0 {
				t.Errorf("%s: 兄弟の数 = %d, want 0", name, len(siblings))
			}
		}
	})

	t.Run("互いを観測していない書き込みは兄弟として残ること", func(t *testing.T) {
		t.Parallel()

		for name, s := range testStores(t) {
			if err := s.Put(ctx, "k", nil, []byte("a")); err != nil {
				t.Fatalf("%s: Putでエラーが発生: %v", name, err)
			}
			if err := s.Put(ctx, "k", nil, []byte("b")); err != nil {
				t.Fatalf("%s: Putでエラーが発生: %v", name, err)
			}
			siblings, _ := s.Fetch(ctx, "k")
			if len(siblings) != 2 {
				t.Errorf("%s: 兄弟の数 = %d, want 2", name, len(siblings))
			}
		}
	})

	t.Run("観測した兄弟は書き込みで置き換えられること", func(t *testing.T) {
		t.Parallel()

		for name, s := range testStores(t) {
			_ = s.Put(ctx, "k", nil, []byte("a"))
			_ = s.Put(ctx, "k", nil, []byte("b"))
			siblings, _ := s.Fetch(ctx, "k")

			if err := s.Put(ctx, "k", Versions(siblings), []byte("ab")); err != nil {
				t.Fatalf("%s: Putでエラーが発生: %v", name, err)
			}
			got, _ := s.Fetch(ctx, "k")
			if len(got) != 1 || string(got[0].Value) != "ab" {
				t.Errorf("%s: 兄弟 = %+v, want [ab]", name, got)
			}
		}
	})
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	t.Run("Redisが停止しているとErrUnavailableを返すこと", func(t *testing.T) {
		t.Parallel()

		s, mr := setupRedisStore(t)
		mr.Close()

		if _, err := s.Fetch(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Fetch err = %v, want ErrUnavailable", err)
		}
		if err := s.Put(context.Background(), "k", nil, []byte("v")); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Put err = %v, want ErrUnavailable", err)
		}
	})

	t.Run("接続できないアドレスではクライアントを生成できないこと", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		client, err := NewRedisClient(context.Background(), RedisConfig{Addr: addr})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("err = %v, want ErrUnavailable", err)
		}
		if client != nil {
			t.Error("エラー時にクライアントが返った")
		}
	})
}
