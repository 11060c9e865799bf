// Package replica はレプリケーションされたKVSに保存する通知リストと
// カーソルのレプリカ、および兄弟レプリカ（siblings）のマージ処理を提供する。
//
// マージは兄弟の並び順に依存せず（可換・結合的）、同じ入力に対して
// 何度実行しても同じ結果になる（冪等）。削除は追加より常に優先される。
package replica
