package model

import (
	"cmp"
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidNotification は必須フィールドが欠けた通知を表す。
var ErrInvalidNotification = errors.New("invalid notification")

// Notification はユーザーに届くアクティビティ通知を表す。
// ロールアップされた代表通知の場合のみChildrenを持つ。
type Notification struct {
	// ID はサーバーが採番する識別子。0は未採番を表す。
	ID int64 `json:"id,omitempty"`
	// Category は通知の種類。ロールアップルールの選択に使用する。
	Category string `json:"category"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// CreatedAt は通知の作成日時（UTC）。ゼロ値は未保存を表す。
	CreatedAt time.Time `json:"created_at"`
	// Properties はグルーピングキーの照合に使う任意の文字列マップ。
	Properties map[string]string `json:"properties,omitempty"`
	// Children はロールアップでまとめられた通知（新しい順）。
	Children []Notification `json:"notifications,omitempty"`
}

// Validate は入力契約を検証する。
func (n Notification) Validate() error {
	if n.Category == "" {
		return errors.Wrap(ErrInvalidNotification, "category is empty")
	}
	if n.Message == "" {
		return errors.Wrap(ErrInvalidNotification, "message is empty")
	}
	return nil
}

// Property はプロパティ値と、そのキーが存在するかを返す。
func (n Notification) Property(key string) (string, bool) {
	if n.Properties == nil {
		return "", false
	}
	v, ok := n.Properties[key]
	return v, ok
}

// WithChildren はChildrenを差し替えたコピーを返す。元の通知は変更しない。
func (n Notification) WithChildren(children []Notification) Notification {
	out := n
	out.Properties = maps.Clone(n.Properties)
	if len(children) == 0 {
		out.Children = nil
		return out
	}
	out.Children = slices.Clone(children)
	return out
}

// Equal は全スカラーフィールド・プロパティ・子通知が等しいかを返す。
func Equal(a, b Notification) bool {
	if a.ID != b.ID || a.Category != b.Category || a.Message != b.Message {
		return false
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if len(a.Properties) != len(b.Properties) || !maps.Equal(a.Properties, b.Properties) {
		return false
	}
	return slices.EqualFunc(a.Children, b.Children, Equal)
}

// Compare は通知の自然順序（ID降順）で比較する。
// 同一IDの場合は残りのフィールドで決定的に順序付けし、全順序を保つ。
func Compare(a, b Notification) int {
	if c := cmp.Compare(b.ID, a.ID); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Category, b.Category); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Message, b.Message); c != 0 {
		return c
	}
	if Equal(a, b) {
		return 0
	}
	return cmp.Compare(canonical(a), canonical(b))
}

// canonical はプロパティと子通知を含む比較用の文字列を返す。
// encoding/jsonはマップのキーをソートして出力する。
func canonical(n Notification) string {
	b, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	return string(b)
}

// IsNewestFirst はnsが自然順序（ID非増加）に並んでいるかを返す。
func IsNewestFirst(ns []Notification) bool {
	for i := 1; i < len(ns); i++ {
		if ns[i].ID > ns[i-1].ID {
			return false
		}
	}
	return true
}
