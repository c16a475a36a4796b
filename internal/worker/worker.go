// Package worker implements the three decoder-worker threads of spec.md
// §4.5-§4.7: one owning the video packet fifo, one the audio fifo, one
// the subpicture fifo. Each is a single goroutine that pulls packets in
// order, switches control packets into metronom/decoder lifecycle calls,
// and dispatches data packets to the installed decoder via
// internal/decoder.
//
// Grounded on the teacher's internal/pipeline.Pipeline.Run: a pull loop
// reading from one input at a time and switching on what it gets,
// generalized from a multi-channel select fan-in (the teacher forwards
// several demuxer output channels into one relay) to a single owned fifo
// per worker, per spec.md §4.5's "each is a single thread owning exactly
// one FIFO".
package worker

import (
	"log/slog"
	"sync"

	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// ProgressSink receives the demuxer-reported input position/time carried
// on data packets, feeding the engine facade's progress UI.
type ProgressSink interface {
	SetInputPosition(pos, time int64)
}

// Events is the subset of the event bus a decoder worker publishes to.
type Events interface {
	decoder.Events
	StreamFinished()
	ChannelsChanged()
}

// Metronom is the subset of *metronom.Metronom a decoder worker drives.
type Metronom interface {
	HandleDiscontinuity(which metronom.Stream, kind metronom.DiscontinuityKind, offset int64)
}

const (
	trackVideo = iota
	trackAudio
)

// FinishedTracker posts StreamFinished once both the video and the audio
// worker have each seen CONTROL_END, per spec.md §4.5/4.6's "if peer is
// also finished, post StreamFinished". The subpicture worker has no peer
// of its own and does not use this type.
type FinishedTracker struct {
	mu     sync.Mutex
	done   [2]bool
	events Events
}

// NewFinishedTracker creates a tracker that posts to events once both
// the video and audio sides report finished.
func NewFinishedTracker(events Events) *FinishedTracker {
	return &FinishedTracker{events: events}
}

func (t *FinishedTracker) markFinished(which int) {
	t.mu.Lock()
	t.done[which] = true
	both := t.done[0] && t.done[1]
	t.mu.Unlock()
	if both && t.events != nil {
		t.events.StreamFinished()
	}
}

func (t *FinishedTracker) reset(which int) {
	t.mu.Lock()
	t.done[which] = false
	t.mu.Unlock()
}

func logOrDefault(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}
