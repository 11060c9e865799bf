package replica

import "github.com/nao1215/notifyhub/pkg/model"

// ResolveCursors は兄弟カーソルのうち値が最大のものを返す。
// 兄弟が存在しない場合は(model.Cursor{}, false)を返す。
func ResolveCursors(siblings []model.Cursor) (model.Cursor, bool) {
	if len(siblings) == 0 {
		return model.Cursor{}, false
	}
	best := siblings[0]
	for _, c := range siblings[1:] {
		if c.Value > best.Value {
			best = c
		}
	}
	return best, true
}

// CursorUpdate はカーソル書き込み時に保存するレプリカを返す。
// 後からの書き込みは値の大小に関わらず既存の値を置き換える。
func CursorUpdate(key string, value int64) model.Cursor {
	return model.Cursor{Key: key, Value: value}
}
