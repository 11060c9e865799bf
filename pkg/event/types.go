package event

import (
	"encoding/json"
	"time"

	"github.com/nao1215/notifyhub/pkg/model"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationAdded は通知が追加されたことを表す。
	TypeNotificationAdded Type = "NotificationAdded"
	// TypeNotificationsDeleted は通知が削除されたことを表す。
	TypeNotificationsDeleted Type = "NotificationsDeleted"
	// TypeCursorMoved はカーソルが更新されたことを表す。
	TypeCursorMoved Type = "CursorMoved"
	// TypeListRepaired は読み込み時にマージした通知リストを書き戻すことを表す。
	TypeListRepaired Type = "ListRepaired"
)

// Event はストアへの書き込みを表す不変のレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Username は対象ユーザー名。
	Username string `json:"username"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// NotificationAddedData はNotificationAddedイベントのデータ。
type NotificationAddedData struct {
	// Notification は採番済みの通知。
	Notification model.Notification `json:"notification"`
}

// NotificationsDeletedData はNotificationsDeletedイベントのデータ。
type NotificationsDeletedData struct {
	// IDs は削除する通知ID。
	IDs []int64 `json:"ids"`
}

// CursorMovedData はCursorMovedイベントのデータ。
type CursorMovedData struct {
	// Name はカーソル名。
	Name string `json:"name"`
	// Value は新しいカーソル値。
	Value int64 `json:"value"`
}

// ListRepairedData はListRepairedイベントのデータ。
type ListRepairedData struct {
	// Versions はマージ時に観測した兄弟のバージョン。
	Versions []string `json:"versions"`
}
