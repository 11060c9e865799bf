// Package ids は時刻順に並ぶ64bitの一意なIDを採番する。
//
// IDは上位から41bitのミリ秒タイムスタンプ（2020-01-01 UTC起点）、
// 10bitのノードID、12bitのシーケンス番号で構成される。
package ids

import (
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/pkg/errors"
)

const (
	nodeBits     = 10
	sequenceBits = 12
	maxNodeID    = 1<<nodeBits - 1
	sequenceMask = 1<<sequenceBits - 1
	timeMask     = 1<<41 - 1
)

// Epoch はタイムスタンプの起点。
var Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	// ErrClockMovedBackwards は前回の採番より時刻が巻き戻ったことを表す。
	ErrClockMovedBackwards = errors.New("clock moved backwards")
	// ErrInvalidNodeID はノードIDが範囲外であることを表す。
	ErrInvalidNodeID = errors.New("node id must be between 0 and 1023")
)

// Generator はIDの採番元。
type Generator interface {
	Next() (int64, error)
}

// Snowflake は時刻ベースのID生成器。複数のゴルーチンから安全に使用できる。
type Snowflake struct {
	mu     sync.Mutex
	clock  clock.Clock
	nodeID int64
	seq    int64
	// lastClock は前回観測した時刻（エポックからのミリ秒）。
	lastClock int64
	// lastMsec は前回のIDに埋め込んだミリ秒。シーケンス枯渇時はlastClockより進む。
	lastMsec int64
}

// NewSnowflake はnodeIDのID生成器を生成する。
func NewSnowflake(nodeID int64, clk clock.Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, errors.Wrapf(ErrInvalidNodeID, "node id %d", nodeID)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Snowflake{clock: clk, nodeID: nodeID}, nil
}

// Next は新しいIDを返す。時刻が巻き戻った場合は待たずにエラーを返す。
func (g *Snowflake) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now().Sub(Epoch).Milliseconds()
	if now < g.lastClock {
		return 0, errors.Wrapf(ErrClockMovedBackwards, "refusing to generate id for %dms", g.lastClock-now)
	}
	g.lastClock = now

	msec := max(now, g.lastMsec)
	if msec == g.lastMsec {
		g.seq = (g.seq + 1) & sequenceMask
		if g.seq == 0 {
			// 同一ミリ秒内のシーケンスを使い切ったため次のミリ秒を借りる
			msec++
		}
	} else {
		g.seq = 0
	}
	g.lastMsec = msec

	return (msec&timeMask)<<(nodeBits+sequenceBits) | g.nodeID<<sequenceBits | g.seq, nil
}

// Time はIDに埋め込まれた採番時刻を返す。
func Time(id int64) time.Time {
	msec := id >> (nodeBits + sequenceBits)
	return Epoch.Add(time.Duration(msec) * time.Millisecond).UTC()
}
