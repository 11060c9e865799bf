// Package store はレプリケーションされたKVSへの読み書き契約と、その実装を提供する。
//
// 1つのキーは複数の兄弟（sibling）を持ち得る。書き込みは読み込んだ兄弟を
// 置き換える新しい兄弟を追加し、互いを観測していない並行した書き込みは
// 兄弟として残る。兄弟のマージは呼び出し側の責務。
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnavailable はストアに到達できない、または操作が失敗したことを表す。
var ErrUnavailable = errors.New("store unavailable")

// Sibling はキーに保存された1つの版。
type Sibling struct {
	// Version は兄弟を識別するバージョン。
	Version string
	// Value はエンコード済みの値。
	Value []byte
}

// Store は兄弟を返し得るKVSの契約。
type Store interface {
	// Fetch はキーの兄弟をすべて返す。キーが存在しない場合は空のスライスを返す。
	Fetch(ctx context.Context, key string) ([]Sibling, error)
	// Put はsupersedesの兄弟を置き換えてvalueを保存する。
	Put(ctx context.Context, key string, supersedes []string, value []byte) error
}

// Versions は兄弟のバージョン一覧を返す。
func Versions(siblings []Sibling) []string {
	out := make([]string, 0, len(siblings))
	for _, s := range siblings {
		out = append(out, s.Version)
	}
	return out
}

// sortSiblings は兄弟をバージョン順に並べる。
func sortSiblings(siblings []Sibling) {
	slices.SortFunc(siblings, func(a, b Sibling) int {
		return strings.Compare(a.Version, b.Version)
	})
}
