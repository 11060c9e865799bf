package model

import "slices"

// Set は自然順序（ID降順）に並んだ重複なしの通知集合。
// ゼロ値は空集合として使用できる。
type Set struct {
	items []Notification
}

// NewSet はnsを要素に持つ集合を生成する。
func NewSet(ns ...Notification) *Set {
	s := &Set{}
	for _, n := range ns {
		s.Insert(n)
	}
	return s
}

// Insert はnを順序を保って挿入する。集合が変化した場合にtrueを返す。
func (s *Set) Insert(n Notification) bool {
	i, found := slices.BinarySearchFunc(s.items, n, Compare)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, n)
	return true
}

// RemoveFunc はfがtrueを返す要素をすべて取り除き、取り除いた件数を返す。
func (s *Set) RemoveFunc(f func(Notification) bool) int {
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, f)
	return before - len(s.items)
}

// TrimTo は先頭からmax件を残し、末尾（最も古い要素）から取り除く。
func (s *Set) TrimTo(max int) int {
	if max < 0 || len(s.items) <= max {
		return 0
	}
	evicted := len(s.items) - max
	clear(s.items[max:])
	s.items = s.items[:max]
	return evicted
}

// Len は要素数を返す。
func (s *Set) Len() int { return len(s.items) }

// Items は要素のコピーを新しい順に返す。
func (s *Set) Items() []Notification {
	return slices.Clone(s.items)
}

// Clone は集合の浅いコピーを返す。
func (s *Set) Clone() *Set {
	return &Set{items: slices.Clone(s.items)}
}
