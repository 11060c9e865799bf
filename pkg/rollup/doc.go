// Package rollup はカテゴリごとのルールに従って関連する通知を1つの
// 代表通知にまとめる（ロールアップする）処理を提供する。
//
// 入力は自然順序（ID降順）に並んでいる必要がある。時間幅の判定は
// シード通知より古い候補のみを受け付けるため、順序の入れ替わった入力では
// 正しくグルーピングできない。
package rollup
