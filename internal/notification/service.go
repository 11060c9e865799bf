package notification

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/nao1215/notifyhub/internal/rules"
	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/ids"
	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/nao1215/notifyhub/pkg/rollup"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RuleSnapshotter はロールアップ1回分のルールのスナップショットを返す。
type RuleSnapshotter interface {
	Snapshot(ctx context.Context) (map[string]model.Rule, error)
	Invalidate()
}

// RuleStore はロールアップルールの永続化先。
type RuleStore interface {
	rules.Source
	Get(ctx context.Context, category string) (model.Rule, error)
	Put(ctx context.Context, category string, r model.Rule) error
	Delete(ctx context.Context, category string) error
}

// Item は一覧で返す通知。Unseenはnotificationsカーソルより新しいかどうか。
type Item struct {
	model.Notification
	Unseen bool `json:"unseen"`
}

// ListOptions は一覧取得の条件。
type ListOptions struct {
	// Rollup はルールに従って関連する通知をまとめるかどうか。
	Rollup bool
	// Limit は返す件数の上限。0以下は無制限。
	Limit int
}

// Service は通知リストとカーソル、ルールの操作をまとめる。
type Service struct {
	repo      *Repository
	submitter Submitter
	ids       ids.Generator
	clock     clock.Clock
	rules     RuleSnapshotter
	ruleStore RuleStore
	logger    *zap.Logger
}

// ServiceDeps はServiceの協調先。
type ServiceDeps struct {
	Repository *Repository
	Submitter  Submitter
	IDs        ids.Generator
	Clock      clock.Clock
	Rules      RuleSnapshotter
	RuleStore  RuleStore
	Logger     *zap.Logger
}

// NewService は新しいServiceを生成する。
func NewService(d ServiceDeps) *Service {
	if d.Clock == nil {
		d.Clock = clock.WallClock
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		repo:      d.Repository,
		submitter: d.Submitter,
		ids:       d.IDs,
		clock:     d.Clock,
		rules:     d.Rules,
		ruleStore: d.RuleStore,
		logger:    d.Logger,
	}
}

// List はユーザーの通知一覧を返す。
//
// 兄弟をマージした結果を新しい順に並べ、必要ならロールアップし、
// カーソルより新しいものにUnseenを付ける。複数の兄弟を観測した場合は
// マージ結果の書き戻しを、未読があった場合はカーソルの前進を投げる。
func (s *Service) List(ctx context.Context, username string, opts ListOptions) ([]Item, error) {
	list, versions, err := s.repo.FetchList(ctx, username)
	if err != nil {
		return nil, unavailable(err, "fetch notification list")
	}
	if list == nil {
		return []Item{}, nil
	}
	if len(versions) > 1 {
		s.submit(ctx, username, event.TypeListRepaired, event.ListRepairedData{Versions: versions})
	}

	cursor, hasCursor, _, err := s.repo.FetchCursor(ctx, username, CursorNotifications)
	if err != nil {
		return nil, unavailable(err, "fetch cursor")
	}

	ns := list.Notifications()
	if len(ns) == 0 {
		return []Item{}, nil
	}
	newest := ns[0].ID

	if opts.Rollup {
		snapshot, err := s.rules.Snapshot(ctx)
		if err != nil {
			return nil, unavailable(err, "load rollup rules")
		}
		ns, err = rollup.NewEngine(snapshot).Rollup(ns)
		if err != nil {
			return nil, err
		}
	}
	if opts.Limit > 0 && len(ns) > opts.Limit {
		ns = ns[:opts.Limit]
	}

	items := make([]Item, 0, len(ns))
	for _, n := range ns {
		items = append(items, Item{
			Notification: n,
			Unseen:       !hasCursor || n.ID > cursor.Value,
		})
	}

	if !hasCursor || newest > cursor.Value {
		s.submit(ctx, username, event.TypeCursorMoved, event.CursorMovedData{
			Name:  CursorNotifications,
			Value: newest,
		})
	}
	return items, nil
}

// submit は読み込み経路の付随的な書き込みを投げる。失敗してもログに残すだけ。
func (s *Service) submit(ctx context.Context, username string, t event.Type, data any) {
	if err := s.send(ctx, username, t, data); err != nil {
		s.logger.Warn("付随する書き込みの投入に失敗しました",
			zap.String("username", username),
			zap.String("event_type", string(t)),
			zap.Error(err))
	}
}

func (s *Service) send(ctx context.Context, username string, t event.Type, data any) error {
	e, err := event.New(username, t, data)
	if err != nil {
		return err
	}
	if err := s.submitter.Submit(ctx, e); err != nil {
		return unavailable(err, "submit "+string(t))
	}
	return nil
}

// Add は通知を採番してユーザーのリストへの追加を投げ、採番済みの通知を返す。
func (s *Service) Add(ctx context.Context, username string, n model.Notification) (model.Notification, error) {
	if err := n.Validate(); err != nil {
		return model.Notification{}, err
	}
	id, err := s.ids.Next()
	if err != nil {
		return model.Notification{}, unavailable(err, "generate id")
	}
	n.ID = id
	n.CreatedAt = s.clock.Now().UTC().Truncate(time.Millisecond)
	n.Children = nil

	if err := s.send(ctx, username, event.TypeNotificationAdded, event.NotificationAddedData{Notification: n}); err != nil {
		return model.Notification{}, err
	}
	return n, nil
}

// Delete は通知の削除を投げ、対象になったIDを返す。
// targetsが空の場合は現在表示されている全通知が対象になる。
func (s *Service) Delete(ctx context.Context, username string, targets []int64) ([]int64, error) {
	if len(targets) == 0 {
		list, _, err := s.repo.FetchList(ctx, username)
		if err != nil {
			return nil, unavailable(err, "fetch notification list")
		}
		if list == nil {
			return []int64{}, nil
		}
		for _, n := range list.Notifications() {
			targets = append(targets, n.ID)
		}
		if len(targets) == 0 {
			return []int64{}, nil
		}
	}
	if err := s.send(ctx, username, event.TypeNotificationsDeleted, event.NotificationsDeletedData{IDs: targets}); err != nil {
		return nil, err
	}
	return targets, nil
}

// Cursor はカーソルを返す。存在しない場合はErrNotFound。
func (s *Service) Cursor(ctx context.Context, username, name string) (model.Cursor, error) {
	c, found, _, err := s.repo.FetchCursor(ctx, username, name)
	if err != nil {
		return model.Cursor{}, unavailable(err, "fetch cursor")
	}
	if !found {
		return model.Cursor{}, errors.Wrapf(ErrNotFound, "cursor %q", name)
	}
	return c, nil
}

// SetCursor はカーソルの書き込みを投げる。後からの書き込みが値に関わらず優先される。
func (s *Service) SetCursor(ctx context.Context, username, name string, value int64) error {
	return s.send(ctx, username, event.TypeCursorMoved, event.CursorMovedData{Name: name, Value: value})
}

// Rules は全カテゴリのルールを返す。
func (s *Service) Rules(ctx context.Context) (map[string]model.Rule, error) {
	all, err := s.ruleStore.List(ctx)
	if err != nil {
		return nil, unavailable(err, "list rules")
	}
	return all, nil
}

// Rule はカテゴリのルールを返す。
func (s *Service) Rule(ctx context.Context, category string) (model.Rule, error) {
	r, err := s.ruleStore.Get(ctx, category)
	if errors.Is(err, rules.ErrRuleNotFound) {
		return model.Rule{}, errors.Wrapf(ErrNotFound, "rule %q", category)
	}
	if err != nil {
		return model.Rule{}, unavailable(err, "get rule")
	}
	return r, nil
}

// PutRule はカテゴリのルールを保存し、スナップショットを無効化する。
func (s *Service) PutRule(ctx context.Context, category string, r model.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.ruleStore.Put(ctx, category, r); err != nil {
		return unavailable(err, "put rule")
	}
	s.rules.Invalidate()
	return nil
}

// DeleteRule はカテゴリのルールを削除し、スナップショットを無効化する。
func (s *Service) DeleteRule(ctx context.Context, category string) error {
	err := s.ruleStore.Delete(ctx, category)
	if errors.Is(err, rules.ErrRuleNotFound) {
		return errors.Wrapf(ErrNotFound, "rule %q", category)
	}
	if err != nil {
		return unavailable(err, "delete rule")
	}
	s.rules.Invalidate()
	return nil
}
