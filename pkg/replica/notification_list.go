package replica

import (
	"encoding/json"
	"slices"

	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/pkg/errors"
)

// MaxNotifications は1ユーザーが保持できる通知の上限。
// 超過した場合はIDの小さい（古い）通知から取り除く。
const MaxNotifications = 1000

// NotificationList はユーザーごとの通知リストのレプリカ。
// 上限付きの順序付き通知集合と、削除待ちIDの集合を持つ。
type NotificationList struct {
	// notifications は新しい順に並んだ通知集合。
	notifications *model.Set
	// deleted はまだ集合から取り除かれていない削除待ちID。
	deleted map[int64]struct{}
}

// NewNotificationList は空のレプリカを生成する。
func NewNotificationList(ns ...model.Notification) *NotificationList {
	l := &NotificationList{
		notifications: &model.Set{},
		deleted:       make(map[int64]struct{}),
	}
	l.AddAll(ns)
	return l
}

// Clone はレプリカのコピーを返す。nilの場合は空のレプリカを返す。
func (l *NotificationList) Clone() *NotificationList {
	if l == nil {
		return NewNotificationList()
	}
	out := &NotificationList{
		notifications: l.notifications.Clone(),
		deleted:       make(map[int64]struct{}, len(l.deleted)),
	}
	for id := range l.deleted {
		out.deleted[id] = struct{}{}
	}
	return out
}

// Add は通知を追加する。集合が変化した場合にtrueを返す。
// 上限を超えた場合は最も古い通知を取り除く。
func (l *NotificationList) Add(n model.Notification) bool {
	if !l.notifications.Insert(n) {
		return false
	}
	l.notifications.TrimTo(MaxNotifications)
	return true
}

// AddAll は複数の通知を追加する。
func (l *NotificationList) AddAll(ns []model.Notification) bool {
	changed := false
	for _, n := range ns {
		if l.notifications.Insert(n) {
			changed = true
		}
	}
	l.notifications.TrimTo(MaxNotifications)
	return changed
}

// MarkDeleted はIDを削除待ちにする。通知集合からの除去はPurgeで行う。
func (l *NotificationList) MarkDeleted(id int64) bool {
	if _, ok := l.deleted[id]; ok {
		return false
	}
	l.deleted[id] = struct{}{}
	return true
}

// MarkAllDeleted は複数のIDを削除待ちにする。
func (l *NotificationList) MarkAllDeleted(ids []int64) bool {
	changed := false
	for _, id := range ids {
		if l.MarkDeleted(id) {
			changed = true
		}
	}
	return changed
}

// Merge はotherの通知と削除待ちIDを取り込む。otherは変更しない。
func (l *NotificationList) Merge(other *NotificationList) {
	if other == nil {
		return
	}
	l.AddAll(other.notifications.Items())
	for id := range other.deleted {
		l.deleted[id] = struct{}{}
	}
}

// Purge は削除待ちIDに該当する通知を取り除き、削除待ち集合を空にする。
func (l *NotificationList) Purge() {
	if len(l.deleted) == 0 {
		return
	}
	l.notifications.RemoveFunc(func(n model.Notification) bool {
		_, ok := l.deleted[n.ID]
		return ok
	})
	clear(l.deleted)
}

// Notifications は通知を新しい順に返す。
func (l *NotificationList) Notifications() []model.Notification {
	return l.notifications.Items()
}

// DeletedIDs は削除待ちIDを昇順で返す。
func (l *NotificationList) DeletedIDs() []int64 {
	ids := make([]int64, 0, len(l.deleted))
	for id := range l.deleted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len は保持している通知の件数を返す。
func (l *NotificationList) Len() int { return l.notifications.Len() }

// notificationListJSON は保存用のJSON表現。
type notificationListJSON struct {
	Notifications []model.Notification `json:"notifications"`
	DeletedIDs    []int64              `json:"deleted_ids,omitempty"`
}

// MarshalJSON はレプリカをストア保存用のJSONに変換する。
func (l *NotificationList) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationListJSON{
		Notifications: l.Notifications(),
		DeletedIDs:    l.DeletedIDs(),
	})
}

// UnmarshalJSON はJSONからレプリカを復元する。
// 並び順・重複・上限は読み込み時に正規化する。
func (l *NotificationList) UnmarshalJSON(data []byte) error {
	var raw notificationListJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode notification list")
	}
	*l = *NewNotificationList(raw.Notifications...)
	l.MarkAllDeleted(raw.DeletedIDs)
	return nil
}
