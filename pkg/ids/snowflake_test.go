package ids

import (
	"testing"
	"time"

	"github.com/juju/clock"
	"github.com/juju/clock/testclock"
	"github.com/pkg/errors"
)

// rewindClock は任意の時刻に巻き戻せるテスト用の時計。
type rewindClock struct {
	clock.Clock
	now time.Time
}

func (c *rewindClock) Now() time.Time { return c.now }

func TestSnowflake_Next(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("連続して採番したIDは単調増加する", func(t *testing.T) {
		t.Parallel()

		clk := testclock.NewClock(start)
		g, err := NewSnowflake(1, clk)
		if err != nil {
			t.Fatalf("NewSnowflakeでエラーが発生: %v", err)
		}

		var prev int64
		for i := 0; i < 5000; i++ {
			if i%1000 == 0 {
				clk.Advance(time.Millisecond)
			}
			id, err := g.Next()
			if err != nil {
				t.Fatalf("Nextでエラーが発生: %v", err)
			}
			if id <= prev {
				t.Fatalf("ID = %d, 前回 = %d: 単調増加していない", id, prev)
			}
			prev = id
		}
	})

	t.Run("時刻が巻き戻るとエラーを返す", func(t *testing.T) {
		t.Parallel()

		clk := &rewindClock{Clock: testclock.NewClock(start), now: start}
		g, _ := NewSnowflake(1, clk)
		if _, err := g.Next(); err != nil {
			t.Fatalf("Nextでエラーが発生: %v", err)
		}

		clk.now = start.Add(-time.Second)
		if _, err := g.Next(); !errors.Is(err, ErrClockMovedBackwards) {
			t.Errorf("err = %v, want ErrClockMovedBackwards", err)
		}
	})

	t.Run("IDから採番時刻を取り出せる", func(t *testing.T) {
		t.Parallel()

		g, _ := NewSnowflake(7, testclock.NewClock(start))
		id, _ := g.Next()
		if got := Time(id); !got.Equal(start) {
			t.Errorf("Time = %v, want %v", got, start)
		}
	})

	t.Run("シーケンスを使い切っても重複しない", func(t *testing.T) {
		t.Parallel()

		g, _ := NewSnowflake(1, testclock.NewClock(start))
		seen := make(map[int64]struct{})
		for i := 0; i < 3*(sequenceMask+1); i++ {
			id, err := g.Next()
			if err != nil {
				t.Fatalf("Nextでエラーが発生: %v", err)
			}
			if _, ok := seen[id]; ok {
				t.Fatalf("ID %d が重複した", id)
			}
			seen[id] = struct{}{}
		}
	})

	t.Run("範囲外のノードIDはエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := NewSnowflake(1024, nil); !errors.Is(err, ErrInvalidNodeID) {
			t.Errorf("err = %v, want ErrInvalidNodeID", err)
		}
	})
}
