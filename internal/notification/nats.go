package notification

import (
	"context"

	"github.com/nao1215/notifyhub/pkg/event"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Publisher はNATSへのpublishを抽象化する。*nats.Connが満たす。
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSubmitter は書き込みイベントをNATSのsubjectへpublishする。
// 反映はConsumerを動かしているノードが行う。
type NATSSubmitter struct {
	pub     Publisher
	subject string
}

// NewNATSSubmitter は新しいNATSSubmitterを生成する。
func NewNATSSubmitter(pub Publisher, subject string) *NATSSubmitter {
	return &NATSSubmitter{pub: pub, subject: subject}
}

// Submit はイベントをpublishする。
func (s *NATSSubmitter) Submit(_ context.Context, e *event.Event) error {
	b, err := event.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.subject, b); err != nil {
		return errors.Wrapf(err, "publish to %s", s.subject)
	}
	return nil
}

// Consumer はNATSのsubjectを購読し、受信したイベントをApplierで反映する。
// 同じqueueグループのConsumer間では1件のイベントは1ノードだけが処理する。
type Consumer struct {
	conn    *nats.Conn
	subject string
	queue   string
	applier *Applier
	logger  *zap.Logger
	sub     *nats.Subscription
}

// NewConsumer は新しいConsumerを生成する。
func NewConsumer(conn *nats.Conn, subject, queue string, applier *Applier, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		subject: subject,
		queue:   queue,
		applier: applier,
		logger:  logger,
	}
}

// Start は購読を開始する。
func (c *Consumer) Start() error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, c.handle)
	if err != nil {
		return errors.Wrapf(err, "subscribe %s", c.subject)
	}
	c.sub = sub
	c.logger.Info("書き込みイベントの購読を開始しました",
		zap.String("subject", c.subject), zap.String("queue", c.queue))
	return nil
}

// Stop は処理中のメッセージを捌き切ってから購読を止める。
func (c *Consumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}

func (c *Consumer) handle(msg *nats.Msg) {
	e, err := event.Unmarshal(msg.Data)
	if err != nil {
		c.logger.Warn("不正な書き込みイベントを破棄しました",
			zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	if err := c.applier.Apply(ctx, e); err != nil {
		c.logger.Error("書き込みイベントの反映に失敗しました",
			zap.String("event_id", e.ID),
			zap.String("event_type", string(e.EventType)),
			zap.Error(err))
	}
}
