package notification

import (
	"context"
	"encoding/json"

	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/nao1215/notifyhub/pkg/replica"
	"github.com/nao1215/notifyhub/pkg/store"
	"github.com/pkg/errors"
)

// CursorNotifications は通知一覧の既読位置を表すカーソル名。
const CursorNotifications = "notifications"

func listKey(username string) string {
	return "notifications:" + username
}

func cursorKey(username, name string) string {
	return "cursors:" + username + ":" + name
}

// Repository はストアの兄弟を型付きの値として読み書きする。
type Repository struct {
	store store.Store
}

// NewRepository は新しいRepositoryを生成する。
func NewRepository(s store.Store) *Repository {
	return &Repository{store: s}
}

// FetchList はユーザーの通知リストの兄弟を取得してマージする。
// 値が存在しない場合はnilのリストを返す。versionsは観測した兄弟のバージョン。
func (r *Repository) FetchList(ctx context.Context, username string) (list *replica.NotificationList, versions []string, err error) {
	siblings, err := r.store.Fetch(ctx, listKey(username))
	if err != nil {
		return nil, nil, err
	}
	decoded := make([]*replica.NotificationList, 0, len(siblings))
	for _, s := range siblings {
		l := replica.NewNotificationList()
		if err := json.Unmarshal(s.Value, l); err != nil {
			return nil, nil, errors.Wrapf(err, "decode notification list sibling %s", s.Version)
		}
		decoded = append(decoded, l)
	}
	resolved, ok := replica.Resolve(decoded)
	if !ok {
		return nil, store.Versions(siblings), nil
	}
	return resolved, store.Versions(siblings), nil
}

// PutList はversionsの兄弟を置き換えて通知リストを保存する。
func (r *Repository) PutList(ctx context.Context, username string, versions []string, list *replica.NotificationList) error {
	b, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "encode notification list")
	}
	return r.store.Put(ctx, listKey(username), versions, b)
}

// FetchCursor はカーソルの兄弟を取得し、最大値に解決する。
func (r *Repository) FetchCursor(ctx context.Context, username, name string) (cursor model.Cursor, found bool, versions []string, err error) {
	siblings, err := r.store.Fetch(ctx, cursorKey(username, name))
	if err != nil {
		return model.Cursor{}, false, nil, err
	}
	decoded := make([]model.Cursor, 0, len(siblings))
	for _, s := range siblings {
		var c model.Cursor
		if err := json.Unmarshal(s.Value, &c); err != nil {
			return model.Cursor{}, false, nil, errors.Wrapf(err, "decode cursor sibling %s", s.Version)
		}
		decoded = append(decoded, c)
	}
	cursor, found = replica.ResolveCursors(decoded)
	return cursor, found, store.Versions(siblings), nil
}

// PutCursor はversionsの兄弟を置き換えてカーソルを保存する。
func (r *Repository) PutCursor(ctx context.Context, username string, versions []string, cursor model.Cursor) error {
	b, err := json.Marshal(cursor)
	if err != nil {
		return errors.Wrap(err, "encode cursor")
	}
	return r.store.Put(ctx, cursorKey(username, cursor.Key), versions, b)
}
