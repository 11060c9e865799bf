package rollup

import "github.com/nao1215/notifyhub/pkg/model"

// Matcher は1つのルールと1つのシード通知に紐づくグループの蓄積器。
// 1回のロールアップの間だけ生存する。
type Matcher struct {
	// rule は適用するロールアップルール。
	rule model.Rule
	// seed はグループの起点となる最も新しい通知。
	seed model.Notification
	// matched はシードにまとめられた通知（新しい順）。
	matched *model.Set
	// windowMillis はMaxDurationをミリ秒に換算した値。
	windowMillis int64
	// matchValue はシードが持つグルーピングキーの値。
	matchValue string
	// hasMatchValue はシードがグルーピングキーを持っていたか。
	hasMatchValue bool
}

// NewMatcher はruleとseedからMatcherを生成する。
func NewMatcher(rule model.Rule, seed model.Notification) *Matcher {
	m := &Matcher{
		rule:         rule,
		seed:         seed,
		matched:      &model.Set{},
		windowMillis: rule.MaxDuration.Milliseconds(),
	}
	if rule.HasMatchOn() {
		m.matchValue, m.hasMatchValue = seed.Property(rule.MatchOn)
	}
	return m
}

// Seed はシード通知を返す。
func (m *Matcher) Seed() model.Notification { return m.seed }

// Len はまとめられた通知の件数を返す。
func (m *Matcher) Len() int { return m.matched.Len() }

// Add は全ての条件を満たす場合に候補をグループへ追加する。
// グループが変化した場合にtrueを返す。
func (m *Matcher) Add(candidate model.Notification) bool {
	if !m.sizeOK() || !m.durationOK(candidate) || !m.matchOK(candidate) {
		return false
	}
	if candidate.Category != m.seed.Category || model.Equal(candidate, m.seed) {
		return false
	}
	return m.matched.Insert(candidate)
}

// IsFull はMaxSizeに達し、これ以上候補を受け付けないかを返す。
func (m *Matcher) IsFull() bool {
	return m.rule.HasMaxSize() && !m.sizeOK()
}

// Representative はグループを代表する通知を返す。
// 何もまとめられていない場合はシードをそのまま返す。
func (m *Matcher) Representative() model.Notification {
	if m.matched.Len() == 0 {
		return m.seed
	}
	return m.seed.WithChildren(m.matched.Items())
}

func (m *Matcher) sizeOK() bool {
	if !m.rule.HasMaxSize() {
		return true
	}
	return m.matched.Len() < m.rule.MaxSize
}

// durationOK はシードから遡って時間幅に収まるかを判定する。
// シードより新しい候補は受け付けない。
func (m *Matcher) durationOK(candidate model.Notification) bool {
	if !m.rule.HasMaxDuration() {
		return true
	}
	delta := m.seed.CreatedAt.Sub(candidate.CreatedAt).Milliseconds()
	return delta >= 0 && delta <= m.windowMillis
}

// matchOK はグルーピングキーの値が一致するかを判定する。
// シードがキーを持たない場合は常に拒否する。
func (m *Matcher) matchOK(candidate model.Notification) bool {
	if !m.rule.HasMatchOn() {
		return true
	}
	if !m.hasMatchValue {
		return false
	}
	v, ok := candidate.Property(m.rule.MatchOn)
	return ok && v == m.matchValue
}
