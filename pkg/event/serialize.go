package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnknownType は未知のイベント種別を表す。
var ErrUnknownType = errors.New("unknown event type")

// New は新しいイベントを生成する。
// dataにはイベント固有のデータ構造体を渡す。JSON形式にシリアライズされる。
func New(username string, eventType Type, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event data")
	}

	return &Event{
		ID:        uuid.New().String(),
		Username:  username,
		EventType: eventType,
		Data:      jsonData,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeData はイベントのDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, errors.Wrapf(err, "decode %s data", e.EventType)
	}
	return &data, nil
}

// Marshal はイベントをメッセージングで送信するバイト列に変換する。
func Marshal(e *Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event")
	}
	return b, nil
}

// Unmarshal は受信したバイト列からイベントを復元する。
// ユーザー名が空、または種別が未知の場合はエラーを返す。
func Unmarshal(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(err, "unmarshal event")
	}
	if e.Username == "" {
		return nil, errors.New("event has no username")
	}
	switch e.EventType {
	case TypeNotificationAdded, TypeNotificationsDeleted, TypeCursorMoved, TypeListRepaired:
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", e.EventType)
	}
	return &e, nil
}
