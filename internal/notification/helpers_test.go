package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock/testclock"
	"github.com/nao1215/notifyhub/internal/rules"
	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/ids"
	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/nao1215/notifyhub/pkg/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// syncSubmitter は受け付けたイベントをその場で反映するテスト用Submitter。
type syncSubmitter struct {
	applier *Applier

	mu        sync.Mutex
	submitted []*event.Event
	err       error
}

func (s *syncSubmitter) Submit(ctx context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, e)
	return s.applier.Apply(ctx, e)
}

// types は受け付けたイベントの種別を順に返す。
func (s *syncSubmitter) types() []event.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Type, 0, len(s.submitted))
	for _, e := range s.submitted {
		out = append(out, e.EventType)
	}
	return out
}

// failingStore は常に失敗するストア。
type failingStore struct{}

func (failingStore) Fetch(context.Context, string) ([]store.Sibling, error) {
	return nil, errors.Wrap(store.ErrUnavailable, "connection refused")
}

func (failingStore) Put(context.Context, string, []string, []byte) error {
	return errors.Wrap(store.ErrUnavailable, "connection refused")
}

// testEnv はテスト用のサービス一式。
type testEnv struct {
	store     *store.MemoryStore
	repo      *Repository
	submitter *syncSubmitter
	clock     *testclock.Clock
	ruleStore *rules.SQLiteStore
	svc       *Service
}

// testEpoch はテストで使う基準時刻。
var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestEnv はメモリストアとインメモリSQLiteでサービスを構築する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemoryStore()
	repo := NewRepository(mem)
	sub := &syncSubmitter{applier: NewApplier(repo, zap.NewNop())}
	clk := testclock.NewClock(testEpoch)

	gen, err := ids.NewSnowflake(1, clk)
	if err != nil {
		t.Fatalf("ID生成器の作成に失敗: %v", err)
	}
	ruleStore, err := rules.OpenSQLite(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("ルールストアの作成に失敗: %v", err)
	}
	t.Cleanup(func() { ruleStore.Close() })

	svc := NewService(ServiceDeps{
		Repository: repo,
		Submitter:  sub,
		IDs:        gen,
		Clock:      clk,
		Rules:      rules.NewCache(ruleStore, time.Minute, clk, zap.NewNop()),
		RuleStore:  ruleStore,
		Logger:     zap.NewNop(),
	})
	return &testEnv{store: mem, repo: repo, submitter: sub, clock: clk, ruleStore: ruleStore, svc: svc}
}

// router はJWTの代わりにX-Usernameヘッダーでユーザーを設定するルーターを返す。
func (e *testEnv) router() *gin.Engine {
	s := &Server{router: gin.New(), svc: e.svc, logger: zap.NewNop()}
	s.setupRoutes(func(c *gin.Context) {
		if u := c.GetHeader("X-Username"); u != "" {
			middleware.SetUsername(c, u)
		}
		c.Next()
	})
	return s.router
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path, username string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if username != "" {
		req.Header.Set("X-Username", username)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	// IDは53bitを超えるためfloat64を経由させない
	dec := json.NewDecoder(bytes.NewReader(w.Body.Bytes()))
	dec.UseNumber()
	var result map[string]any
	if err := dec.Decode(&result); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return result
}

// asInt64 はUseNumberでデコードした値をint64に変換する。
func asInt64(t *testing.T, v any) int64 {
	t.Helper()
	n, ok := v.(json.Number)
	if !ok {
		t.Fatalf("数値ではない: %v", v)
	}
	i, err := n.Int64()
	if err != nil {
		t.Fatalf("int64に変換できない: %v", err)
	}
	return i
}
