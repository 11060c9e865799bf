package notification

import (
	"context"

	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/replica"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Applier は書き込みイベントをストアへ反映する。
// 反映は常に fetch → resolve → 更新 → 観測した兄弟を置き換えて put の順で行う。
type Applier struct {
	repo   *Repository
	logger *zap.Logger
}

// NewApplier は新しいApplierを生成する。
func NewApplier(repo *Repository, logger *zap.Logger) *Applier {
	return &Applier{repo: repo, logger: logger}
}

// Apply はイベントを1件反映する。
func (a *Applier) Apply(ctx context.Context, e *event.Event) error {
	switch e.EventType {
	case event.TypeNotificationAdded:
		d, err := event.DecodeData[event.NotificationAddedData](e)
		if err != nil {
			return err
		}
		return a.updateList(ctx, e.Username, func(l *replica.NotificationList) *replica.NotificationList {
			return replica.Addition(l, d.Notification)
		})

	case event.TypeNotificationsDeleted:
		d, err := event.DecodeData[event.NotificationsDeletedData](e)
		if err != nil {
			return err
		}
		return a.updateList(ctx, e.Username, func(l *replica.NotificationList) *replica.NotificationList {
			return replica.Deletion(l, d.IDs)
		})

	case event.TypeListRepaired:
		return a.updateList(ctx, e.Username, func(l *replica.NotificationList) *replica.NotificationList {
			return l.Clone()
		})

	case event.TypeCursorMoved:
		d, err := event.DecodeData[event.CursorMovedData](e)
		if err != nil {
			return err
		}
		_, _, versions, err := a.repo.FetchCursor(ctx, e.Username, d.Name)
		if err != nil {
			return errors.Wrapf(err, "fetch cursor %s", d.Name)
		}
		return a.repo.PutCursor(ctx, e.Username, versions, replica.CursorUpdate(d.Name, d.Value))
	}
	return errors.Wrapf(event.ErrUnknownType, "%q", e.EventType)
}

// updateList は通知リストを読み込み、updateで作った値で観測済みの兄弟を置き換える。
func (a *Applier) updateList(ctx context.Context, username string, update func(*replica.NotificationList) *replica.NotificationList) error {
	list, versions, err := a.repo.FetchList(ctx, username)
	if err != nil {
		return errors.Wrap(err, "fetch notification list")
	}
	if err := a.repo.PutList(ctx, username, versions, update(list)); err != nil {
		return errors.Wrap(err, "put notification list")
	}
	a.logger.Debug("通知リストを更新しました",
		zap.String("username", username), zap.Int("superseded", len(versions)))
	return nil
}
