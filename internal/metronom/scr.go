package metronom

import (
	"sync"
	"time"

	"github.com/zsiec/xine-engine/internal/media"
)

// Speed fixed-point constants: a speed value is a multiple of 1/4 of
// normal playback rate, matching spec.md §4.2's SPEED_PAUSE/SPEED_NORMAL.
const (
	SpeedPause  = 0
	SpeedNormal = 4
)

// SCRProvider is a system clock reference: a clock source the metronom
// can read, adjust, and drive at a given speed. Exactly one registered
// provider is selected as master, by highest GetPriority(); all others
// are periodically nudged toward the master by the sync loop (see
// Metronom.syncLoop).
type SCRProvider interface {
	GetPriority() int
	SetSpeed(speed int) int
	Adjust(vpts int64)
	Start(startVPTS int64)
	GetCurrent() int64
}

// unixSCRPriority is the default priority of the always-present wall
// clock source: low enough that any transport-stream-embedded SCR
// (registered by the demuxer, an external collaborator) wins master
// election, matching original_source's unixscr_get_priority.
const unixSCRPriority = 5

// UnixSCR is a wall-clock SCR provider: it tracks a pivot (wall time,
// VPTS) pair and a speed factor, extrapolating GetCurrent() from elapsed
// wall-clock time since the last pivot. Grounded on
// original_source/src/xine-engine/metronom.c's unixscr_* functions.
type UnixSCR struct {
	mu          sync.Mutex
	pivotTime   time.Time
	pivotPTS    int64
	speedFactor float64 // ticks per second of wall-clock time
}

// NewUnixSCR creates a UnixSCR at SpeedPause.
func NewUnixSCR() *UnixSCR {
	s := &UnixSCR{pivotTime: time.Now()}
	s.SetSpeed(SpeedPause)
	return s
}

func (s *UnixSCR) GetPriority() int { return unixSCRPriority }

// setPivot re-anchors the pivot to now, folding in elapsed time at the
// current speed factor. Callers must hold s.mu.
func (s *UnixSCR) setPivot() {
	now := time.Now()
	elapsed := now.Sub(s.pivotTime).Seconds()
	s.pivotPTS += int64(elapsed * s.speedFactor)
	s.pivotTime = now
}

func (s *UnixSCR) SetSpeed(speed int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPivot()
	s.speedFactor = float64(speed) * float64(media.TicksPerSecond) / float64(SpeedNormal)
	return speed
}

func (s *UnixSCR) Adjust(vpts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pivotTime = time.Now()
	s.pivotPTS = vpts
}

func (s *UnixSCR) Start(startVPTS int64) {
	s.mu.Lock()
	s.pivotTime = time.Now()
	s.pivotPTS = startVPTS
	s.mu.Unlock()
	s.SetSpeed(SpeedNormal)
}

func (s *UnixSCR) GetCurrent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.pivotTime).Seconds()
	return s.pivotPTS + int64(elapsed*s.speedFactor)
}
