package replica

import "github.com/nao1215/notifyhub/pkg/model"

// Resolve は兄弟レプリカを1つの正規レプリカにマージする。
// 兄弟が存在しない場合は(nil, false)を返す。
//
// 先頭の兄弟のコピーを起点に残りの兄弟の通知と削除待ちIDを和集合として
// 取り込み、最後に削除待ちIDに該当する通知を取り除く。入力は変更しない。
func Resolve(siblings []*NotificationList) (*NotificationList, bool) {
	var acc *NotificationList
	for _, s := range siblings {
		if s == nil {
			continue
		}
		if acc == nil {
			acc = s.Clone()
			continue
		}
		acc.Merge(s)
	}
	if acc == nil {
		return nil, false
	}
	acc.Purge()
	return acc, true
}

// Addition はoriginal（nilなら空）のコピーに通知を追加したレプリカを返す。
func Addition(original *NotificationList, n model.Notification) *NotificationList {
	out := original.Clone()
	out.Add(n)
	return out
}

// AdditionAll はoriginalのコピーに複数の通知を追加したレプリカを返す。
func AdditionAll(original *NotificationList, ns []model.Notification) *NotificationList {
	out := original.Clone()
	out.AddAll(ns)
	return out
}

// Deletion はoriginalのコピーのIDを削除待ちにしたレプリカを返す。
// 通知集合からの除去は次のResolveで行われる。
func Deletion(original *NotificationList, ids []int64) *NotificationList {
	out := original.Clone()
	out.MarkAllDeleted(ids)
	return out
}
