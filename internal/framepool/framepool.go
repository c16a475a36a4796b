// Package framepool implements the video frame free/display queue pair
// described in spec.md §4.3: a fixed-size pool of frames with a tri-lock
// ownership model (decoder/display/driver), a draw path that maps a
// decoded frame's PTS to VPTS and decides whether to display, skip, or
// discard it, and selection of the active subtitle/caption overlays
// produced by the subpicture worker (the video driver does the blending).
//
// Grounded on original_source/src/xine-engine/video_out.c's
// vo_get_frame/vo_frame_draw/vo_frame_free/vo_frame_displayed, carried
// over to Go with the three boolean lock fields replaced by
// media.Frame's lockBit bitset (internal/media/frame.go), and the
// hand-rolled img_buf_fifo_t replaced by the pool's own free and display
// slices guarded by one mutex and condition variable.
package framepool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// DrawResult reports what Draw decided to do with a frame, mirroring
// vo_frame_draw's int return (0 for displayed, or a positive
// frames-to-skip count when discarded for running late).
type DrawResult struct {
	// Displayed is true when the frame was appended to the display
	// queue. False means it was immediately recycled: either discarded
	// (running behind the master clock) or skipped (img.Bad).
	Displayed bool
	// Discarded is true when the frame missed its deadline by more than
	// half a frame duration and was dropped without ever reaching the
	// display queue.
	Discarded bool
	// FramesToSkip is vo_frame_draw's heuristic for how many subsequent
	// frames the decoder should fast-skip to catch back up, valid only
	// when Discarded is true.
	FramesToSkip int
	// Overlays is the set of active subtitle/OSD overlays whose interval
	// covers this frame's VPTS, valid only when Displayed is true. The
	// video driver (an external collaborator) blends these onto the
	// frame's pixels at presentation time.
	Overlays []media.Overlay
}

// Pool owns the free and display queues for one video output stream.
type Pool struct {
	mu   sync.Mutex
	cond sync.Cond
	log  *slog.Logger

	metronom *metronom.Metronom

	free    []*media.Frame
	display []*media.Frame

	ptsPerFrame     int64
	ptsPerHalfFrame int64

	lastFrame *media.Frame

	numDelivered uint64
	numSkipped   uint64
	numDiscarded uint64

	// overlays is the current set of active subtitle/OSD overlays,
	// replaced wholesale by the subpicture worker each time it decodes a
	// new SPU packet (internal/worker's spu track map owns selection of
	// which channel's overlays are current).
	overlays []media.Overlay

	closed bool
}

// New creates a Pool of the given capacity (spec.md §4.3 default is
// media.NumFrameBuffers), all frames starting on the free list. logger
// may be nil, in which case slog.Default() is used.
func New(capacity int, m *metronom.Metronom, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		log:      logger.With("component", "framepool"),
		metronom: m,
		free:     make([]*media.Frame, 0, capacity),
	}
	p.cond.L = &p.mu
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &media.Frame{})
	}
	return p
}

// GetFrame acquires a frame from the free list, locks it for the decoder,
// and stamps its geometry. Blocks while the free list is empty (the
// decoder is producing faster than the display loop can drain),
// mirroring vo_get_frame's pthread_cond_wait on an empty free queue.
func (p *Pool) GetFrame(ctx context.Context, width, height int, format media.PixelFormat, aspect media.AspectCode, duration int64) (*media.Frame, error) {
	f, err := p.wait(ctx, func() (*media.Frame, bool) {
		n := len(p.free)
		if n == 0 {
			return nil, false
		}
		elem := p.free[n-1]
		p.free = p.free[:n-1]
		return elem, true
	})
	if err != nil {
		return nil, fmt.Errorf("framepool: get frame: %w", err)
	}

	p.mu.Lock()
	if p.ptsPerFrame != duration {
		p.ptsPerFrame = duration
		p.ptsPerHalfFrame = duration / 2
	}
	f.Reset()
	f.Width, f.Height = width, height
	f.Format = format
	f.Aspect = aspect
	f.Duration = duration
	f.LockDecoder()
	p.mu.Unlock()

	return f, nil
}

// Draw maps f.PTS to VPTS via the metronom and decides whether to queue
// it for display, skip it (f.Bad), or discard it because it has already
// missed its on-screen deadline by more than half a frame duration.
// Grounded directly on vo_frame_draw. The caller (a video decoder worker)
// must call FrameFree(f) once it returns, regardless of outcome, to
// release the decoder's lock acquired by GetFrame — a displayed frame
// stays alive via its display/driver locks until the video output stage
// and driver are done with it.
func (p *Pool) Draw(f *media.Frame) DrawResult {
	p.metronom.GotVideoFrame(f)

	curVPTS := p.metronom.GetCurrentTime()
	diff := f.VPTS - curVPTS

	p.mu.Lock()
	halfFrame := p.ptsPerHalfFrame
	framesToSkip := 0
	if p.ptsPerFrame > 0 {
		framesToSkip = int((-diff/p.ptsPerFrame + 3) * 2)
	}

	if curVPTS > 0 && diff < -halfFrame {
		p.numDiscarded++
		p.lastFrame = f
		p.mu.Unlock()

		p.log.Debug("frame discarded, running behind", "diff", diff, "frames_to_skip", framesToSkip)
		p.frameDisplayed(f)
		return DrawResult{Discarded: true, FramesToSkip: framesToSkip}
	}

	if !f.Bad {
		p.lastFrame = f
		f.LockDisplay()
		p.display = append(p.display, f)
		p.numDelivered++
		overlays := p.activeOverlaysLocked(f.VPTS)
		p.mu.Unlock()
		p.cond.Signal()
		return DrawResult{Displayed: true, Overlays: overlays}
	}

	p.numSkipped++
	p.mu.Unlock()
	p.frameDisplayed(f)
	return DrawResult{}
}

// GetDisplayFrame dequeues the next frame from the display queue,
// blocking while it is empty. Called by the video output display loop
// (internal/videoout).
func (p *Pool) GetDisplayFrame(ctx context.Context) (*media.Frame, error) {
	f, err := p.wait(ctx, func() (*media.Frame, bool) {
		if len(p.display) == 0 {
			return nil, false
		}
		elem := p.display[0]
		p.display = p.display[1:]
		return elem, true
	})
	if err != nil {
		return nil, fmt.Errorf("framepool: get display frame: %w", err)
	}
	return f, nil
}

// PeekDisplayFrame returns the current head of the display queue without
// dequeuing it, for the video output loop's own drop/wait staging
// (spec.md §4.8 steps 2-5). This runs independently of the
// submission-time discard Draw already performs: a frame that was fresh
// enough to queue can still go stale while it waits behind others if the
// display loop itself falls behind (scenario S4).
func (p *Pool) PeekDisplayFrame() (*media.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.display) == 0 {
		return nil, false
	}
	return p.display[0], true
}

// DropDisplayFrame removes f from the head of the display queue because
// the video output loop's drop stage decided the clock has already
// passed it by more than half a frame (spec.md §4.8 step 3), and returns
// it to the free list once no other lock is held. f must be the frame
// most recently returned by PeekDisplayFrame.
func (p *Pool) DropDisplayFrame(f *media.Frame) {
	p.mu.Lock()
	if len(p.display) > 0 && p.display[0] == f {
		p.display = p.display[1:]
	}
	p.numDiscarded++
	free := f.UnlockDisplay()
	if free {
		p.free = append(p.free, f)
	}
	p.mu.Unlock()
	if free {
		p.cond.Signal()
	}
}

// TakeDisplayFrame dequeues the head of the display queue for
// presentation (spec.md §4.8 step 6), returning the overlays active at
// its VPTS. The frame keeps its display lock until HandToDriver is
// called: per §4.3, overlay blending must never run on a frame whose
// driver lock is already set, so the caller is expected to blend first
// and only then call HandToDriver right before passing the frame to the
// driver.
func (p *Pool) TakeDisplayFrame() (f *media.Frame, overlays []media.Overlay, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.display) == 0 {
		return nil, nil, false
	}
	f = p.display[0]
	p.display = p.display[1:]
	overlays = p.activeOverlaysLocked(f.VPTS)
	return f, overlays, true
}

// HandToDriver sets the driver's ownership lock and releases the display
// loop's, in that order so the frame is never momentarily unlocked
// between the two. Called after any overlay blend decided by
// TakeDisplayFrame's returned overlays, immediately before the frame is
// passed to the video driver.
func (p *Pool) HandToDriver(f *media.Frame) {
	p.mu.Lock()
	f.LockDriver()
	f.UnlockDisplay()
	p.mu.Unlock()
}

// FrameDisplayed is called by the driver once it has finished showing a
// frame: it clears the driver lock and, if the decoder has also released
// its lock, returns the frame to the free list. Grounded on
// vo_frame_displayed.
func (p *Pool) FrameDisplayed(f *media.Frame) { p.frameDisplayed(f) }

func (p *Pool) frameDisplayed(f *media.Frame) {
	p.mu.Lock()
	f.UnlockDriver()
	free := f.UnlockDisplay()
	if free {
		p.free = append(p.free, f)
	}
	p.mu.Unlock()
	if free {
		p.cond.Signal()
	}
}

// FrameFree is called by the decoder to release its ownership of a frame,
// both after Draw and when it abandons a frame without drawing it (e.g. a
// bad frame or a flush). Grounded on vo_frame_free.
func (p *Pool) FrameFree(f *media.Frame) {
	p.mu.Lock()
	free := f.UnlockDecoder()
	if free {
		p.free = append(p.free, f)
	}
	p.mu.Unlock()
	if free {
		p.cond.Signal()
	}
}

// SetOverlays replaces the active overlay set, called by the subpicture
// worker each time it decodes a new SPU packet or the track map switches
// channel.
func (p *Pool) SetOverlays(overlays []media.Overlay) {
	p.mu.Lock()
	p.overlays = overlays
	p.mu.Unlock()
}

// activeOverlaysLocked returns every overlay whose display interval
// covers vpts. Callers must hold p.mu.
func (p *Pool) activeOverlaysLocked(vpts int64) []media.Overlay {
	if len(p.overlays) == 0 {
		return nil
	}
	var out []media.Overlay
	for _, o := range p.overlays {
		if o.Overlaps(vpts) {
			out = append(out, o)
		}
	}
	return out
}

// PTSPerHalfFrame returns the current half-frame-duration threshold used
// for the drop/discard decisions of both Draw and the video output
// loop's own drop stage. Zero until the first GetFrame call establishes a
// frame duration.
func (p *Pool) PTSPerHalfFrame() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ptsPerHalfFrame
}

// GetLastFrame returns the most recently drawn frame (displayed,
// skipped, or discarded), used for "freeze frame" style queries. May be
// nil before the first Draw call.
func (p *Pool) GetLastFrame() *media.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame
}

// Stats reports the running delivered/skipped/discarded counters.
func (p *Pool) Stats() (delivered, skipped, discarded uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numDelivered, p.numSkipped, p.numDiscarded
}

// Close drains the display queue (returning every undisplayed frame to
// the free list) and wakes any blocked GetFrame/GetDisplayFrame callers.
// Grounded on vo_free_img_buffers' drain-on-shutdown loop, per
// SPEC_FULL.md §5.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	for _, f := range p.display {
		// Full teardown: return every undisplayed frame to the free
		// list unconditionally, regardless of outstanding decoder/driver
		// locks, matching vo_free_img_buffers' unconditional disposal.
		f.Reset()
		p.free = append(p.free, f)
	}
	p.display = p.display[:0]
	p.mu.Unlock()
	p.cond.Broadcast()
}

var errClosed = errPoolClosed{}

type errPoolClosed struct{}

func (errPoolClosed) Error() string { return "framepool: closed" }

func (p *Pool) wait(ctx context.Context, try func() (*media.Frame, bool)) (*media.Frame, error) {
	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				p.cond.Broadcast()
			case <-stop:
			}
		}()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if f, ok := try(); ok {
			return f, nil
		}
		if p.closed {
			return nil, errClosed
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		p.cond.Wait()
	}
}
