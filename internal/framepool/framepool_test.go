package framepool

import (
	"context"
	"testing"
	"time"

	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	m := metronom.New(nil)
	t.Cleanup(m.Close)
	return New(capacity, m, nil)
}

func TestGetFrameLocksForDecoder(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 2)
	ctx := context.Background()

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if !f.Locked() {
		t.Fatal("frame not locked after GetFrame")
	}
	if f.Width != 720 || f.Height != 480 {
		t.Fatalf("dimensions = %dx%d, want 720x480", f.Width, f.Height)
	}
}

func TestDrawQueuesGoodFrameForDisplay(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 2)
	ctx := context.Background()

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	f.PTS = 0 // precaching: the paused clock reads 0, lateness check skipped

	res := p.Draw(f)
	if !res.Displayed || res.Discarded {
		t.Fatalf("Draw result = %+v, want Displayed", res)
	}

	got, err := p.GetDisplayFrame(ctx)
	if err != nil {
		t.Fatalf("GetDisplayFrame: %v", err)
	}
	if got != f {
		t.Fatal("GetDisplayFrame returned a different frame than was drawn")
	}
}

func TestDrawSkipsBadFrame(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	ctx := context.Background()

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	f.Bad = true

	res := p.Draw(f)
	if res.Displayed {
		t.Fatal("bad frame should not be marked displayed")
	}
	p.FrameFree(f) // decoder releases its hold, as it always does after Draw

	// Single-capacity pool: the frame must have come straight back to
	// the free list, so a second GetFrame must not block.
	done := make(chan struct{})
	go func() {
		if _, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000); err != nil {
			t.Errorf("GetFrame after skip: %v", err)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("skipped frame never returned to the free list")
	}
}

func TestFrameDisplayedRequiresAllLocksClear(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	ctx := context.Background()

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	res := p.Draw(f)
	if !res.Displayed {
		t.Fatalf("Draw result = %+v, want Displayed", res)
	}
	if _, err := p.GetDisplayFrame(ctx); err != nil {
		t.Fatalf("GetDisplayFrame: %v", err)
	}

	// Frame is decoder-locked (from GetFrame), display-locked (from
	// Draw), and now driver-locked (simulated: the display loop handed
	// it to the driver).
	p.mu.Lock()
	f.LockDriver()
	p.mu.Unlock()

	p.FrameDisplayed(f) // clears driver + display locks, decoder still held
	if !f.Locked() {
		t.Fatal("frame unlocked while decoder lock still held")
	}

	p.FrameFree(f) // decoder releases its hold
	if f.Locked() {
		t.Fatal("frame should be fully unlocked once all three locks clear")
	}
}

func TestSetOverlaysAttachesActiveOverlaysOnDraw(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	ctx := context.Background()

	p.SetOverlays([]media.Overlay{
		{VPTS: 0, Duration: 1 << 40, Text: "hello"},
	})

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	res := p.Draw(f)
	if len(res.Overlays) != 1 || res.Overlays[0].Text != "hello" {
		t.Fatalf("Overlays = %+v, want one overlay with text hello", res.Overlays)
	}
}

func TestCloseDrainsDisplayQueue(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 1)
	ctx := context.Background()

	f, err := p.GetFrame(ctx, 720, 480, media.FormatYV12, media.Aspect4x3, 3000)
	if err != nil {
		t.Fatalf("GetFrame: %v", err)
	}
	if res := p.Draw(f); !res.Displayed {
		t.Fatalf("Draw result = %+v, want Displayed", res)
	}

	p.Close()

	if _, err := p.GetDisplayFrame(ctx); err == nil {
		t.Fatal("GetDisplayFrame should fail on a closed, drained pool")
	}
}
