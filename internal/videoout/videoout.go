// Package videoout implements the video output display loop of spec.md
// §4.8: a periodic tick that drains the frame pool's display queue,
// dropping anything that has already gone stale and otherwise handing
// the next on-time frame to the video driver with its active overlays
// blended in.
//
// Grounded on original_source/src/xine-engine/video_out.c's
// video_out_loop, ported from its SIGALRM/setitimer pacing to a
// time.Ticker per spec.md §9's redesign flag against signal-driven
// wakeup, matching how internal/metronom's sync loop already replaces
// the same pattern with a ticker.
package videoout

import (
	"context"
	"log/slog"
	"time"

	"github.com/zsiec/xine-engine/internal/framepool"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// Clock is the master clock collaborator: the video output loop reads
// cur_pts from it once per tick.
type Clock interface {
	GetCurrentTime() int64
}

// Property identifies one of the driver's adjustable settings, per
// spec.md §6's "get_property(i)/set_property(i, v)" passthrough
// (video_out.c's VO_PROP_* constants). Zoom and aspect-mode are the two
// the scaling contract (§4.8b) needs a UI to be able to drive.
type Property int

const (
	PropertyZoomX Property = iota
	PropertyZoomY
	PropertyAspectMode
	PropertyHue
	PropertySaturation
	PropertyBrightness
	PropertyContrast
)

// Driver is the external video driver collaborator of spec.md §6: it
// owns the actual display hardware/window and is handed fully blended
// frames.
type Driver interface {
	// UpdateFrameFormat is called whenever a frame's geometry differs
	// from the last one handed to the driver, before DisplayFrame.
	UpdateFrameFormat(f *media.Frame)
	// OverlayBlend composites an active overlay onto f's pixels. Called
	// once per active overlay, before DisplayFrame, while f still holds
	// only the display lock (spec.md §4.3: never once driver_locked is
	// set).
	OverlayBlend(f *media.Frame, overlay media.Overlay)
	// Capabilities reports the driver's supported Property bitset,
	// matching video_out.c's vo_get_capabilities passthrough.
	Capabilities() uint32
	// GetProperty/SetProperty read and adjust driver settings such as
	// zoom and aspect mode; SetProperty returns the value actually
	// applied (drivers may clamp).
	GetProperty(p Property) int
	SetProperty(p Property, v int) int
	// DisplayFrame hands f to the driver. The driver eventually calls
	// back into the frame pool's FrameDisplayed once the hardware has
	// shown it; this call itself must not block long (spec.md §5).
	DisplayFrame(f *media.Frame)
}

// defaultTickPeriod is used until the first frame establishes a real
// pts_per_frame: a conservative 24fps.
const defaultTickPeriod = time.Second / 24

// ticksDuration converts a count of 90kHz PTS ticks to a wall-clock
// time.Duration, for sizing the display loop's ticker off pts_per_frame.
func ticksDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * time.Second / media.TicksPerSecond
}

// Loop is the video output worker (C8). One Loop is wired to one
// framepool.Pool for the lifetime of a stream.
type Loop struct {
	pool   *framepool.Pool
	clock  Clock
	driver Driver
	log    *slog.Logger

	lastWidth, lastHeight int
	lastFormat            media.PixelFormat

	delivered, discarded uint64
}

// New creates a Loop draining pool's display queue and handing frames to
// driver. Use MetronomClock(m) for clock when driving off a real
// internal/metronom.Metronom. logger may be nil, in which case
// slog.Default() is used.
func New(pool *framepool.Pool, clock Clock, driver Driver, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		pool:   pool,
		clock:  clock,
		driver: driver,
		log:    logger.With("component", "video_out"),
	}
}

// Run ticks until ctx is cancelled, at which point it drains the display
// queue back to the free list (via pool.Close) and returns. Grounded on
// video_out_loop's cancellation contract in spec.md §4.8: "when
// video_loop_running is cleared, the loop drains the display queue into
// free before exiting."
func (l *Loop) Run(ctx context.Context) error {
	period := defaultTickPeriod
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.pool.Close()
			return ctx.Err()
		case <-ticker.C:
			if half := l.pool.PTSPerHalfFrame(); half > 0 {
				if want := ticksDuration(half * 2); want != period {
					period = want
					ticker.Reset(period)
				}
			}
			l.tick()
		}
	}
}

// tick runs one pass of the drop/wait/display staging of spec.md §4.8
// steps 1-7.
func (l *Loop) tick() {
	curPTS := l.clock.GetCurrentTime()
	halfFrame := l.pool.PTSPerHalfFrame()

	for {
		head, ok := l.pool.PeekDisplayFrame()
		if !ok {
			return
		}
		if halfFrame > 0 && curPTS-head.VPTS > halfFrame {
			l.pool.DropDisplayFrame(head)
			l.discarded++
			continue
		}
		break
	}

	head, ok := l.pool.PeekDisplayFrame()
	if !ok {
		return
	}
	if head.VPTS-curPTS > 0 {
		return
	}

	f, overlays, ok := l.pool.TakeDisplayFrame()
	if !ok {
		return
	}
	l.display(f, overlays)
}

func (l *Loop) display(f *media.Frame, overlays []media.Overlay) {
	if f.Width != l.lastWidth || f.Height != l.lastHeight || f.Format != l.lastFormat {
		l.driver.UpdateFrameFormat(f)
		l.lastWidth, l.lastHeight, l.lastFormat = f.Width, f.Height, f.Format
	}
	for _, o := range overlays {
		l.driver.OverlayBlend(f, o)
	}
	l.pool.HandToDriver(f)
	l.driver.DisplayFrame(f)

	l.delivered++
	l.logCounters()
}

// logCounters logs the delivered/skipped/discarded counters every 200
// delivered frames, per spec.md §4.8 step 7, and resets the delivered and
// discarded counts. Skipped frames are tracked by framepool.Pool itself (a
// decode-time decision, not a display-loop one); the logged skipped value
// is the pool's running total and is not reset.
func (l *Loop) logCounters() {
	if l.delivered == 0 || l.delivered%200 != 0 {
		return
	}
	_, skipped, _ := l.pool.Stats()
	l.log.Info("video output counters", "delivered", l.delivered, "skipped", skipped, "discarded", l.discarded)
	l.delivered, l.discarded = 0, 0
}

// metronomClock adapts *metronom.Metronom to Clock without requiring
// callers to depend on the metronom package directly.
type metronomClock struct{ m *metronom.Metronom }

func (c metronomClock) GetCurrentTime() int64 { return c.m.GetCurrentTime() }

// MetronomClock wraps m as a Clock for New.
func MetronomClock(m *metronom.Metronom) Clock { return metronomClock{m} }
