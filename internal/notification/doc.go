// Package notification は通知サービスの内部実装を提供する。
//
// ユーザーごとの通知リストとカーソルは兄弟を返し得るKVSに保存され、
// 読み込みのたびに兄弟をマージしてから、カテゴリごとのルールで
// ロールアップして返す。書き込みはSubmitterへ投げっぱなしで渡し、
// Applierが fetch → resolve → 更新 → put の順でストアへ反映する。
package notification
