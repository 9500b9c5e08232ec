// Package clock supplies the ledger's notion of time: a strictly increasing
// tick counter provided by the host environment, and the fixed-width period
// windows derived from it. The ledger never reads wall time directly.
package clock

import (
	"sync"
	"time"

	"nestegg/internal/core"
)

// DefaultTicksPerMonth is one tick per second for a 30-day month.
const DefaultTicksPerMonth uint64 = 30 * 24 * 60 * 60

// EpochYear anchors the year derivation: tick zero falls in January of this year.
const EpochYear = 2024

// Source supplies the current tick. Implementations must be monotonically
// non-decreasing between calls.
type Source interface {
	Now() uint64
}

// Schedule derives budgeting periods from ticks using fixed-width windows:
// one month is TicksPerMonth ticks, a year is twelve months from the epoch.
type Schedule struct {
	TicksPerMonth uint64
}

func NewSchedule(ticksPerMonth uint64) Schedule {
	if ticksPerMonth == 0 {
		ticksPerMonth = DefaultTicksPerMonth
	}
	return Schedule{TicksPerMonth: ticksPerMonth}
}

// PeriodAt returns the period containing the given tick.
func (s Schedule) PeriodAt(tick uint64) core.Period {
	months := tick / s.TicksPerMonth
	return core.Period{
		Month: int(months%12) + 1,
		Year:  EpochYear + int(months/12),
	}
}

// DeadlineAfter returns the tick at which a deadline of the given number of
// whole months from now elapses.
func (s Schedule) DeadlineAfter(now uint64, months int) uint64 {
	return now + uint64(months)*s.TicksPerMonth
}

// WallSource derives ticks from wall time elapsed since a fixed genesis
// instant, one tick per interval. The host's clock is assumed monotonic
// enough for budgeting windows.
type WallSource struct {
	genesis  time.Time
	interval time.Duration
}

func NewWallSource(genesis time.Time, interval time.Duration) *WallSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &WallSource{genesis: genesis, interval: interval}
}

func (w *WallSource) Now() uint64 {
	elapsed := time.Since(w.genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / w.interval)
}

// ManualSource is a hand-advanced tick source for tests and replay harnesses.
type ManualSource struct {
	mu   sync.Mutex
	tick uint64
}

func NewManualSource(start uint64) *ManualSource {
	return &ManualSource{tick: start}
}

func (m *ManualSource) Now() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// Advance moves the tick forward by delta.
func (m *ManualSource) Advance(delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick += delta
}

// Set jumps directly to the given tick. Panics on attempts to move backwards,
// since ticks are strictly increasing by contract.
func (m *ManualSource) Set(tick uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tick < m.tick {
		panic("clock: manual source moved backwards")
	}
	m.tick = tick
}
