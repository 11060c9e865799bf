package notification

import (
	"context"
	"sync"
	"time"

	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrQueueFull はローカルの書き込みキューが満杯であることを表す。
var ErrQueueFull = errors.New("write queue is full")

// ErrSubmitterClosed は停止済みのSubmitterへの投入を表す。
var ErrSubmitterClosed = errors.New("submitter is closed")

// applyTimeout はイベント1件の反映に使うタイムアウト。
const applyTimeout = 10 * time.Second

// Submitter は書き込みイベントを非同期に受け付ける。
// Submitが返すのは受付の成否だけで、反映の完了は待たない。
type Submitter interface {
	Submit(ctx context.Context, e *event.Event) error
}

// LocalSubmitter はプロセス内のキューとワーカーでイベントを反映する。
type LocalSubmitter struct {
	applier *Applier
	logger  *zap.Logger
	queue   chan *event.Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewLocalSubmitter はsize件までバッファするLocalSubmitterを生成し、ワーカーを起動する。
func NewLocalSubmitter(applier *Applier, size int, logger *zap.Logger) *LocalSubmitter {
	if size <= 0 {
		size = 1
	}
	s := &LocalSubmitter{
		applier: applier,
		logger:  logger,
		queue:   make(chan *event.Event, size),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit はイベントをキューに積む。キューが満杯の場合は待たずにErrQueueFullを返す。
func (s *LocalSubmitter) Submit(_ context.Context, e *event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSubmitterClosed
	}
	select {
	case s.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close は新規受付を止め、キューに残ったイベントを反映し終えるまで待つ。
func (s *LocalSubmitter) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *LocalSubmitter) run() {
	defer close(s.done)
	for e := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		if err := s.applier.Apply(ctx, e); err != nil {
			s.logger.Error("書き込みイベントの反映に失敗しました",
				zap.String("event_id", e.ID),
				zap.String("event_type", string(e.EventType)),
				zap.String("username", e.Username),
				zap.Error(err))
		}
		cancel()
	}
}
