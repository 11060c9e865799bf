package notification

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/notifyhub/pkg/middleware"
	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/nao1215/notifyhub/pkg/rollup"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string
	// JWTSecret はトークン検証に使うシークレット。
	JWTSecret string
	// CORSOrigins はクロスオリジンを許可するオリジン。
	CORSOrigins []string
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// httpServer はリッスン中のHTTPサーバー。
	httpServer *http.Server
	// svc は通知の操作を担うサービス。
	svc *Service
	// logger はリクエスト処理のログ出力先。
	logger *zap.Logger
}

// NewServer は新しい通知サーバーを生成し、ルーティングを設定する。
func NewServer(cfg ServerConfig, svc *Service, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:    svc,
		logger: logger,
	}
	s.setupRoutes(middleware.JWTAuth(cfg.JWTSecret))
	return s
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからHTTPサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes はAPIルーティングを設定する。authは/api/v1配下に適用する認証ミドルウェア。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得（ロールアップ、未読フラグ付き）
			notifications.GET("", s.handleList())
			// 通知を1件削除
			notifications.DELETE("/:id", s.handleDeleteOne())
			// 通知をまとめて削除（指定なしは全件）
			notifications.DELETE("", s.handleDeleteMany())
		}

		cursors := api.Group("/cursors")
		{
			cursors.GET("/:name", s.handleGetCursor())
			cursors.PUT("/:name", s.handlePutCursor())
		}

		rules := api.Group("/rules")
		{
			rules.GET("", s.handleListRules())
			rules.GET("/:category", s.handleGetRule())
			rules.PUT("/:category", s.handlePutRule())
			rules.DELETE("/:category", s.handleDeleteRule())
		}

		// 通知送信（内部API - 他サービスから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/send", s.handleSend())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notifyhub"})
	})
}

// writeError はエラーを対応するステータスコードのJSONレスポンスに変換する。
func (s *Server) writeError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidNotification),
		errors.Is(err, model.ErrInvalidRule),
		errors.Is(err, rollup.ErrUnordered):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

// requireUser は認証済みユーザー名を返す。取得できない場合は401を書き込む。
func requireUser(c *gin.Context) (string, bool) {
	username := middleware.GetUsername(c)
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーが取得できません"})
		return "", false
	}
	return username, true
}

// listQuery は通知一覧取得のクエリパラメータ。
type listQuery struct {
	// Rollup はロールアップするかどうか。省略時はtrue。
	Rollup *bool `form:"rollup"`
	// Limit は返す件数の上限。
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// handleList は認証済みユーザーの通知一覧を返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requireUser(c)
		if !ok {
			return
		}
		var q listQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "クエリが不正です: " + err.Error()})
			return
		}
		opts := ListOptions{Rollup: true, Limit: q.Limit}
		if q.Rollup != nil {
			opts.Rollup = *q.Rollup
		}

		items, err := s.svc.List(c.Request.Context(), username, opts)
		if err != nil {
			s.writeError(c, err, "通知一覧の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": items})
	}
}

// handleDeleteOne は指定された通知を削除するハンドラ。
func (s *Server) handleDeleteOne() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requireUser(c)
		if !ok {
			return
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}
		deleted, err := s.svc.Delete(c.Request.Context(), username, []int64{id})
		if err != nil {
			s.writeError(c, err, "通知の削除に失敗しました")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"deleted": deleted})
	}
}

// handleDeleteMany はidsクエリで指定された通知を削除するハンドラ。
// idsを省略した場合は表示中の全通知を削除する。
func (s *Server) handleDeleteMany() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requireUser(c)
		if !ok {
			return
		}
		ids, err := parseIDs(c.Query("ids"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが不正です"})
			return
		}
		deleted, err := s.svc.Delete(c.Request.Context(), username, ids)
		if err != nil {
			s.writeError(c, err, "通知の削除に失敗しました")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"deleted": deleted})
	}
}

// parseIDs はカンマ区切りのIDを解析する。空文字列は空のスライスになる。
func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Errorf("invalid id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}

// cursorResponse はカーソルのJSONレスポンス構造。
type cursorResponse struct {
	// Name はカーソル名。
	Name string `json:"name"`
	// Value はカーソルが指す通知ID。
	Value int64 `json:"value"`
}

// handleGetCursor はカーソルを返すハンドラ。
func (s *Server) handleGetCursor() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requireUser(c)
		if !ok {
			return
		}
		cur, err := s.svc.Cursor(c.Request.Context(), username, c.Param("name"))
		if err != nil {
			s.writeError(c, err, "カーソルの取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, cursorResponse{Name: cur.Key, Value: cur.Value})
	}
}

// putCursorRequest はカーソル更新リクエストのJSON構造。
type putCursorRequest struct {
	// Value はカーソルが指す通知ID。
	Value *int64 `json:"value" binding:"required,min=0"`
}

// handlePutCursor はカーソルを書き込むハンドラ。
func (s *Server) handlePutCursor() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := requireUser(c)
		if !ok {
			return
		}
		var req putCursorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}
		name := c.Param("name")
		if err := s.svc.SetCursor(c.Request.Context(), username, name, *req.Value); err != nil {
			s.writeError(c, err, "カーソルの更新に失敗しました")
			return
		}
		c.JSON(http.StatusAccepted, cursorResponse{Name: name, Value: *req.Value})
	}
}

// ruleBody はルールのJSON構造。時間幅はミリ秒で表す。
type ruleBody struct {
	// Category は通知カテゴリ。レスポンスのみで使用する。
	Category string `json:"category,omitempty"`
	// MaxSize は1グループの最大件数。
	MaxSize int `json:"max_size,omitempty" binding:"min=0"`
	// MaxDurationMS はシード通知から遡る時間幅（ミリ秒）。
	MaxDurationMS int64 `json:"max_duration_ms,omitempty" binding:"min=0"`
	// MatchOn は照合するプロパティ名。
	MatchOn string `json:"match_on,omitempty" binding:"max=128"`
}

func (b ruleBody) rule() model.Rule {
	return model.Rule{
		MaxSize:     b.MaxSize,
		MaxDuration: time.Duration(b.MaxDurationMS) * time.Millisecond,
		MatchOn:     b.MatchOn,
	}
}

func toRuleBody(category string, r model.Rule) ruleBody {
	return ruleBody{
		Category:      category,
		MaxSize:       r.MaxSize,
		MaxDurationMS: r.MaxDuration.Milliseconds(),
		MatchOn:       r.MatchOn,
	}
}

// handleListRules は全カテゴリのルールをカテゴリ順に返すハンドラ。
func (s *Server) handleListRules() gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := s.svc.Rules(c.Request.Context())
		if err != nil {
			s.writeError(c, err, "ルール一覧の取得に失敗しました")
			return
		}
		out := make([]ruleBody, 0, len(all))
		for category, r := range all {
			out = append(out, toRuleBody(category, r))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
		c.JSON(http.StatusOK, gin.H{"rules": out})
	}
}

// handleGetRule はカテゴリのルールを返すハンドラ。
func (s *Server) handleGetRule() gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Param("category")
		r, err := s.svc.Rule(c.Request.Context(), category)
		if err != nil {
			s.writeError(c, err, "ルールの取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, toRuleBody(category, r))
	}
}

// handlePutRule はカテゴリのルールを作成または置き換えるハンドラ。
func (s *Server) handlePutRule() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ruleBody
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}
		category := c.Param("category")
		if err := s.svc.PutRule(c.Request.Context(), category, req.rule()); err != nil {
			s.writeError(c, err, "ルールの保存に失敗しました")
			return
		}
		c.JSON(http.StatusOK, toRuleBody(category, req.rule()))
	}
}

// handleDeleteRule はカテゴリのルールを削除するハンドラ。
func (s *Server) handleDeleteRule() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.svc.DeleteRule(c.Request.Context(), c.Param("category")); err != nil {
			s.writeError(c, err, "ルールの削除に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ルールを削除しました"})
	}
}

// sendRequest は通知送信リクエストのJSON構造。
type sendRequest struct {
	// Username は通知先のユーザー名。
	Username string `json:"username" binding:"required,max=255"`
	// Category は通知の種類。
	Category string `json:"category" binding:"required,max=128"`
	// Message は通知メッセージ。
	Message string `json:"message" binding:"required,max=4096"`
	// Properties はグルーピングに使う任意のプロパティ。
	Properties map[string]string `json:"properties"`
}

// handleSend は通知を採番し、宛先ユーザーのリストへの追加を受け付けるハンドラ。
// 反映は非同期のため202を返す。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
			return
		}

		n, err := s.svc.Add(c.Request.Context(), req.Username, model.Notification{
			Category:   req.Category,
			Message:    req.Message,
			Properties: req.Properties,
		})
		if err != nil {
			s.writeError(c, err, "通知の送信に失敗しました")
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"id":      n.ID,
			"message": "通知を受け付けました",
		})
	}
}
