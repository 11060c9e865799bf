package rollup

import (
	"slices"

	"github.com/nao1215/notifyhub/pkg/model"
	"github.com/pkg/errors"
)

// ErrUnordered は入力が自然順序（ID降順）に並んでいないことを表す。
var ErrUnordered = errors.New("notifications are not ordered newest first")

// Engine はルールのスナップショットを使って通知列をロールアップする。
// 1つのEngineは1つの通知列を先頭から順に処理し、並行に使用してはならない。
type Engine struct {
	// rules はカテゴリからルールへの不変のスナップショット。
	rules map[string]model.Rule
}

// NewEngine はルールのスナップショットからEngineを生成する。
func NewEngine(rules map[string]model.Rule) *Engine {
	return &Engine{rules: rules}
}

// Rollup は新しい順に並んだ通知列を1パスでロールアップし、
// 代表通知と未マッチの通知を新しい順に返す。
func (e *Engine) Rollup(ns []model.Notification) ([]model.Notification, error) {
	if len(e.rules) == 0 {
		return slices.Clone(ns), nil
	}
	if !model.IsNewestFirst(ns) {
		return nil, ErrUnordered
	}

	results := &model.Set{}
	// live はシードの新しい順に並ぶ。シードは入力順に生成されるため追記で順序が保たれる。
	var live []*Matcher

	for _, n := range ns {
		rule, ok := e.rules[n.Category]
		if !ok || !rule.IsValid() {
			results.Insert(n)
			continue
		}

		accepted := false
		for i, m := range live {
			if !m.Add(n) {
				continue
			}
			accepted = true
			if m.IsFull() {
				results.Insert(m.Representative())
				live = slices.Delete(live, i, i+1)
			}
			break
		}
		if !accepted {
			live = append(live, NewMatcher(rule, n))
		}
	}

	for _, m := range live {
		results.Insert(m.Representative())
	}
	return results.Items(), nil
}
