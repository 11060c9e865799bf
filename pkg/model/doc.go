// Package model は通知・ロールアップルール・カーソルのドメイン型を提供する。
//
// 通知の自然順序はID降順（新しいものが先頭）であり、レプリカのマージと
// ロールアップの両方がこの順序に依存する。
package model
