package httpclient

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/notifyhub/pkg/model"
)

// ListedNotification は一覧APIが返す通知。
type ListedNotification struct {
	model.Notification
	// Unseen はnotificationsカーソルより新しい通知かどうか。
	Unseen bool `json:"unseen"`
}

// ListResponse は通知一覧APIのレスポンス。
type ListResponse struct {
	Notifications []ListedNotification `json:"notifications"`
}

// SendRequest は内部送信APIのリクエスト。
type SendRequest struct {
	Username   string            `json:"username"`
	Category   string            `json:"category"`
	Message    string            `json:"message"`
	Properties map[string]string `json:"properties,omitempty"`
}

// SendResponse は内部送信APIのレスポンス。
type SendResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// Cursor はカーソルAPIの値。
type Cursor struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Rule はルールAPIの値。時間幅はミリ秒で表す。
type Rule struct {
	Category      string `json:"category,omitempty"`
	MaxSize       int    `json:"max_size,omitempty"`
	MaxDurationMS int64  `json:"max_duration_ms,omitempty"`
	MatchOn       string `json:"match_on,omitempty"`
}

// ToModel はmodel.Ruleに変換する。
func (r Rule) ToModel() model.Rule {
	return model.Rule{
		MaxSize:     r.MaxSize,
		MaxDuration: time.Duration(r.MaxDurationMS) * time.Millisecond,
		MatchOn:     r.MatchOn,
	}
}

// RuleFromModel はmodel.RuleからAPIの値を作る。
func RuleFromModel(category string, r model.Rule) Rule {
	return Rule{
		Category:      category,
		MaxSize:       r.MaxSize,
		MaxDurationMS: r.MaxDuration.Milliseconds(),
		MatchOn:       r.MatchOn,
	}
}

// ListNotifications は認証ユーザーの通知一覧を取得する。limitが0以下なら無制限。
func (c *Client) ListNotifications(ctx context.Context, rollup bool, limit int) ([]ListedNotification, error) {
	q := url.Values{}
	q.Set("rollup", strconv.FormatBool(rollup))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp ListResponse
	if err := c.GetJSON(ctx, "/api/v1/notifications?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// DeleteNotifications は通知を削除する。idsが空の場合は表示中の全通知を削除する。
func (c *Client) DeleteNotifications(ctx context.Context, ids ...int64) error {
	if len(ids) == 1 {
		return c.DeleteJSON(ctx, "/api/v1/notifications/"+strconv.FormatInt(ids[0], 10), nil)
	}
	path := "/api/v1/notifications"
	if len(ids) > 0 {
		parts := make([]string, 0, len(ids))
		for _, id := range ids {
			parts = append(parts, strconv.FormatInt(id, 10))
		}
		path += "?ids=" + strings.Join(parts, ",")
	}
	return c.DeleteJSON(ctx, path, nil)
}

// Send は内部送信APIで通知を追加し、採番されたIDを返す。
func (c *Client) Send(ctx context.Context, req SendRequest) (int64, error) {
	var resp SendResponse
	if err := c.PostJSON(ctx, "/api/v1/internal/send", req, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// GetCursor はカーソルを取得する。
func (c *Client) GetCursor(ctx context.Context, name string) (Cursor, error) {
	var cur Cursor
	err := c.GetJSON(ctx, "/api/v1/cursors/"+url.PathEscape(name), &cur)
	return cur, err
}

// SetCursor はカーソルを書き込む。
func (c *Client) SetCursor(ctx context.Context, name string, value int64) error {
	return c.PutJSON(ctx, "/api/v1/cursors/"+url.PathEscape(name), Cursor{Value: value}, nil)
}

// ListRules は全カテゴリのルールを取得する。
func (c *Client) ListRules(ctx context.Context) ([]Rule, error) {
	var resp struct {
		Rules []Rule `json:"rules"`
	}
	if err := c.GetJSON(ctx, "/api/v1/rules", &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

// GetRule はカテゴリのルールを取得する。
func (c *Client) GetRule(ctx context.Context, category string) (Rule, error) {
	var r Rule
	err := c.GetJSON(ctx, "/api/v1/rules/"+url.PathEscape(category), &r)
	return r, err
}

// PutRule はカテゴリのルールを作成または置き換える。
func (c *Client) PutRule(ctx context.Context, r Rule) error {
	return c.PutJSON(ctx, "/api/v1/rules/"+url.PathEscape(r.Category), r, nil)
}

// DeleteRule はカテゴリのルールを削除する。
func (c *Client) DeleteRule(ctx context.Context, category string) error {
	return c.DeleteJSON(ctx, "/api/v1/rules/"+url.PathEscape(category), nil)
}
