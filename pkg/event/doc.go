// Package event は通知ストアへの書き込みコマンドを表すイベントを提供する。
//
// 書き込みは非同期に投入され（fire-and-forget）、ローカルのワーカーまたは
// NATS経由のコンシューマーがストアへ適用する。
package event
