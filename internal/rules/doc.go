// Package rules はカテゴリごとのロールアップルールの永続化と、
// 一定時間ごとに再読み込みされるスナップショットを提供する。
package rules
