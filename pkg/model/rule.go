package model

import (
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidRule はロールアップルールの値が不正であることを表す。
var ErrInvalidRule = errors.New("invalid rule")

// Rule はカテゴリ単位のロールアップ設定。ゼロ値のフィールドは未設定を表す。
type Rule struct {
	// MaxSize は1グループにまとめる子通知の最大数。
	MaxSize int `json:"max_size,omitempty"`
	// MaxDuration はシード通知から遡ってまとめる最大の時間幅。
	MaxDuration time.Duration `json:"max_duration,omitempty"`
	// MatchOn はグルーピングキーとして照合するプロパティ名。
	MatchOn string `json:"match_on,omitempty"`
}

// HasMaxSize はMaxSizeが設定されているかを返す。
func (r Rule) HasMaxSize() bool { return r.MaxSize > 0 }

// HasMaxDuration はMaxDurationが設定されているかを返す。
func (r Rule) HasMaxDuration() bool { return r.MaxDuration > 0 }

// HasMatchOn はMatchOnが設定されているかを返す。
func (r Rule) HasMatchOn() bool { return r.MatchOn != "" }

// IsValid は少なくとも1つの条件が設定されているかを返す。
func (r Rule) IsValid() bool {
	return r.HasMaxSize() || r.HasMaxDuration() || r.HasMatchOn()
}

// Validate はAPI境界で受け取ったルールを検証する。
func (r Rule) Validate() error {
	if r.MaxSize < 0 {
		return errors.Wrapf(ErrInvalidRule, "max_size must be positive: %d", r.MaxSize)
	}
	if r.MaxDuration < 0 {
		return errors.Wrapf(ErrInvalidRule, "max_duration must be positive: %s", r.MaxDuration)
	}
	if !r.IsValid() {
		return errors.Wrap(ErrInvalidRule, "at least one of max_size, max_duration, match_on is required")
	}
	return nil
}
