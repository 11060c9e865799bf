package notification

import (
	"github.com/pkg/errors"
)

// ErrStoreUnavailable はストア、ID採番、書き込みキューなど協調先の失敗を表す。
// 呼び出し側には503として返し、内部ではリトライしない。
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrNotFound は名前で指定したリソースが存在しないことを表す。
var ErrNotFound = errors.New("not found")

// unavailable は協調先のエラーをErrStoreUnavailableとして包む。
func unavailable(err error, op string) error {
	return errors.Wrapf(ErrStoreUnavailable, "%s: %v", op, err)
}
