package notification

import (
	"context"
	"sync"
	"testing"

	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/nao1215/notifyhub/pkg/store"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func mustEvent(t *testing.T, username string, typ event.Type, data any) *event.Event {
	t.Helper()
	e, err := event.New(username, typ, data)
	if err != nil {
		t.Fatalf("イベントの生成に失敗: %v", err)
	}
	return e
}

func TestApplier(t *testing.T) {
	t.Parallel()

	t.Run("追加と削除が順に反映されること", func(t *testing.T) {
		t.Parallel()
		repo := NewRepository(store.NewMemoryStore())
		a := NewApplier(repo, zap.NewNop())
		ctx := context.Background()

		for _, id := range []int64{1, 2, 3} {
			e := mustEvent(t, "alice", event.TypeNotificationAdded, event.NotificationAddedData{Notification: testNotification(id, "like")})
			if err := a.Apply(ctx, e); err != nil {
				t.Fatalf("Apply: %v", err)
			}
		}
		if err := a.Apply(ctx, mustEvent(t, "alice", event.TypeNotificationsDeleted, event.NotificationsDeletedData{IDs: []int64{2}})); err != nil {
			t.Fatalf("Apply: %v", err)
		}

		list, versions, err := repo.FetchList(ctx, "alice")
		if err != nil {
			t.Fatalf("FetchList: %v", err)
		}
		if len(versions) != 1 {
			t.Errorf("兄弟数 = %d, want 1", len(versions))
		}
		got := list.Notifications()
		if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
			t.Errorf("通知 = %+v", got)
		}
	})

	t.Run("カーソルの書き込みは既存の兄弟をすべて置き換えること", func(t *testing.T) {
		t.Parallel()
		mem := store.NewMemoryStore()
		repo := NewRepository(mem)
		a := NewApplier(repo, zap.NewNop())
		ctx := context.Background()

		for _, v := range []int64{7, 9} {
			if err := repo.PutCursor(ctx, "alice", nil, model.Cursor{Key: "notifications", Value: v}); err != nil {
				t.Fatalf("PutCursor: %v", err)
			}
		}
		e := mustEvent(t, "alice", event.TypeCursorMoved, event.CursorMovedData{Name: "notifications", Value: 4})
		if err := a.Apply(ctx, e); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		c, found, versions, err := repo.FetchCursor(ctx, "alice", "notifications")
		if err != nil || !found {
			t.Fatalf("FetchCursor: found=%v err=%v", found, err)
		}
		if c.Value != 4 || len(versions) != 1 {
			t.Errorf("cursor = %+v, versions = %v", c, versions)
		}
	})

	t.Run("未知の種別はErrUnknownType", func(t *testing.T) {
		t.Parallel()
		a := NewApplier(NewRepository(store.NewMemoryStore()), zap.NewNop())

		err := a.Apply(context.Background(), &event.Event{Username: "alice", EventType: "Bogus"})
		if !errors.Is(err, event.ErrUnknownType) {
			t.Errorf("ErrUnknownTypeが返されるべき: %v", err)
		}
	})

	t.Run("壊れた兄弟はエラーになること", func(t *testing.T) {
		t.Parallel()
		mem := store.NewMemoryStore()
		if err := mem.Put(context.Background(), listKey("alice"), nil, []byte("{broken")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		a := NewApplier(NewRepository(mem), zap.NewNop())

		e := mustEvent(t, "alice", event.TypeNotificationAdded, event.NotificationAddedData{Notification: testNotification(1, "like")})
		if err := a.Apply(context.Background(), e); err == nil {
			t.Error("エラーが返されるべき")
		}
	})
}

func TestLocalSubmitter(t *testing.T) {
	t.Parallel()

	t.Run("Closeまでに投入したイベントがすべて反映されること", func(t *testing.T) {
		t.Parallel()
		repo := NewRepository(store.NewMemoryStore())
		s := NewLocalSubmitter(NewApplier(repo, zap.NewNop()), 16, zap.NewNop())

		for _, id := range []int64{1, 2, 3} {
			e := mustEvent(t, "alice", event.TypeNotificationAdded, event.NotificationAddedData{Notification: testNotification(id, "like")})
			if err := s.Submit(context.Background(), e); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
		s.Close()

		list, _, err := repo.FetchList(context.Background(), "alice")
		if err != nil {
			t.Fatalf("FetchList: %v", err)
		}
		if list.Len() != 3 {
			t.Errorf("件数 = %d, want 3", list.Len())
		}
	})

	t.Run("Close後の投入はErrSubmitterClosed", func(t *testing.T) {
		t.Parallel()
		s := NewLocalSubmitter(NewApplier(NewRepository(store.NewMemoryStore()), zap.NewNop()), 1, zap.NewNop())
		s.Close()
		s.Close()

		err := s.Submit(context.Background(), mustEvent(t, "alice", event.TypeListRepaired, event.ListRepairedData{}))
		if !errors.Is(err, ErrSubmitterClosed) {
			t.Errorf("ErrSubmitterClosedが返されるべき: %v", err)
		}
	})

	t.Run("キューが満杯なら待たずにErrQueueFull", func(t *testing.T) {
		t.Parallel()
		blocking := &blockingStore{release: make(chan struct{}), entered: make(chan struct{}, 1)}
		s := NewLocalSubmitter(NewApplier(NewRepository(blocking), zap.NewNop()), 1, zap.NewNop())
		t.Cleanup(func() {
			close(blocking.release)
			s.Close()
		})
		ev := func() *event.Event {
			return mustEvent(t, "alice", event.TypeListRepaired, event.ListRepairedData{})
		}

		// 1件目をワーカーが処理中にし、2件目でキューを埋める
		if err := s.Submit(context.Background(), ev()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		<-blocking.entered
		if err := s.Submit(context.Background(), ev()); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if err := s.Submit(context.Background(), ev()); !errors.Is(err, ErrQueueFull) {
			t.Errorf("ErrQueueFullが返されるべき: %v", err)
		}
	})
}

// blockingStore はreleaseが閉じられるまでFetchを止めるストア。
type blockingStore struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Fetch(context.Context, string) ([]store.Sibling, error) {
	b.once.Do(func() { b.entered <- struct{}{} })
	<-b.release
	return nil, nil
}

func (b *blockingStore) Put(context.Context, string, []string, []byte) error {
	return nil
}

// recordingPublisher はpublishされたメッセージを記録する。
type recordingPublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATS(t *testing.T) {
	t.Parallel()

	t.Run("publishしたメッセージをConsumerが反映できること", func(t *testing.T) {
		t.Parallel()
		pub := &recordingPublisher{}
		sub := NewNATSSubmitter(pub, "notifyhub.writes")

		e := mustEvent(t, "alice", event.TypeNotificationAdded, event.NotificationAddedData{Notification: testNotification(1, "like")})
		if err := sub.Submit(context.Background(), e); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if pub.subject != "notifyhub.writes" {
			t.Errorf("subject = %q", pub.subject)
		}

		repo := NewRepository(store.NewMemoryStore())
		c := NewConsumer(nil, "notifyhub.writes", "notifyhub", NewApplier(repo, zap.NewNop()), zap.NewNop())
		c.handle(&nats.Msg{Subject: pub.subject, Data: pub.data})

		list, _, err := repo.FetchList(context.Background(), "alice")
		if err != nil {
			t.Fatalf("FetchList: %v", err)
		}
		if list == nil || list.Len() != 1 {
			t.Errorf("反映されていない: %+v", list)
		}
	})

	t.Run("publishの失敗はエラーになること", func(t *testing.T) {
		t.Parallel()
		sub := NewNATSSubmitter(&recordingPublisher{err: nats.ErrConnectionClosed}, "s")

		err := sub.Submit(context.Background(), mustEvent(t, "alice", event.TypeListRepaired, event.ListRepairedData{}))
		if !errors.Is(err, nats.ErrConnectionClosed) {
			t.Errorf("publishのエラーが返されるべき: %v", err)
		}
	})

	t.Run("不正なメッセージは破棄されること", func(t *testing.T) {
		t.Parallel()
		c := NewConsumer(nil, "s", "q", NewApplier(NewRepository(failingStore{}), zap.NewNop()), zap.NewNop())
		c.handle(&nats.Msg{Subject: "s", Data: []byte("not json")})
		if err := c.Stop(); err != nil {
			t.Errorf("未開始のStopはnilであるべき: %v", err)
		}
	})
}
