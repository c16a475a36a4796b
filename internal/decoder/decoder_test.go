package decoder

import (
	"testing"

	"github.com/zsiec/xine-engine/internal/media"
)

func TestRegistryLookupMasksStreamIndexBits(t *testing.T) {
	t.Parallel()
	r := NewRegistry[int]()
	r.Register(media.VideoFamilyH264, 42)

	got, ok := r.Lookup(media.VideoFamilyH264 | 7) // stream index 7, same family
	if !ok || got != 42 {
		t.Fatalf("Lookup() = (%d, %v), want (42, true)", got, ok)
	}

	if _, ok := r.Lookup(media.VideoFamilyMPEG); ok {
		t.Fatal("Lookup() found a decoder for an unregistered family")
	}

	r.Unregister(media.VideoFamilyH264)
	if _, ok := r.Lookup(media.VideoFamilyH264); ok {
		t.Fatal("Lookup() found a decoder after Unregister")
	}
}

type fakeVideoDecoder struct {
	initErr   error
	inits     int
	closes    int
	resets    int
	decodeRet DecodeOutcome
}

func (f *fakeVideoDecoder) Init(VideoSink) error                  { f.inits++; return f.initErr }
func (f *fakeVideoDecoder) DecodeData(*media.Packet) DecodeOutcome { return f.decodeRet }
func (f *fakeVideoDecoder) Reset()                                { f.resets++ }
func (f *fakeVideoDecoder) Close()                                { f.closes++ }

type fakeEvents struct {
	unknown      []media.Kind
	codecChanges []struct {
		old, new media.Kind
		handled  bool
	}
}

func (e *fakeEvents) UnknownCodec(class, family media.Kind) {
	e.unknown = append(e.unknown, family)
}

func (e *fakeEvents) CodecChanged(class media.Kind, old, new media.Kind, handled bool) {
	e.codecChanges = append(e.codecChanges, struct {
		old, new media.Kind
		handled  bool
	}{old, new, handled})
}

func TestVideoDispatcherReportsUnknownFamilyOnce(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[VideoDecoder]()
	events := &fakeEvents{}
	d := NewVideoDispatcher(reg, nil, events)

	pkt := &media.Packet{Kind: media.VideoFamilyH264}
	for i := 0; i < 3; i++ {
		if got := d.Dispatch(pkt); got != Skip {
			t.Fatalf("Dispatch() = %v, want Skip", got)
		}
	}
	if len(events.unknown) != 1 {
		t.Fatalf("UnknownCodec fired %d times, want 1", len(events.unknown))
	}
}

func TestVideoDispatcherSwitchesDecoderOnFamilyChange(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[VideoDecoder]()
	mpeg := &fakeVideoDecoder{decodeRet: Ok}
	h264 := &fakeVideoDecoder{decodeRet: Ok}
	reg.Register(media.VideoFamilyMPEG, mpeg)
	reg.Register(media.VideoFamilyH264, h264)

	events := &fakeEvents{}
	d := NewVideoDispatcher(reg, nil, events)

	d.Dispatch(&media.Packet{Kind: media.VideoFamilyMPEG})
	if mpeg.inits != 1 || mpeg.closes != 0 {
		t.Fatalf("mpeg decoder inits=%d closes=%d, want 1,0", mpeg.inits, mpeg.closes)
	}

	d.Dispatch(&media.Packet{Kind: media.VideoFamilyMPEG})
	if mpeg.inits != 1 {
		t.Fatalf("mpeg decoder re-initialized on repeat family, inits=%d", mpeg.inits)
	}

	d.Dispatch(&media.Packet{Kind: media.VideoFamilyH264})
	if mpeg.closes != 1 {
		t.Fatalf("mpeg decoder closes=%d, want 1 after switching away", mpeg.closes)
	}
	if h264.inits != 1 {
		t.Fatalf("h264 decoder inits=%d, want 1", h264.inits)
	}
	if len(events.codecChanges) != 2 {
		t.Fatalf("CodecChanged fired %d times, want 2", len(events.codecChanges))
	}
	if !events.codecChanges[1].handled {
		t.Fatal("second CodecChanged reported handled=false, want true")
	}
}

func TestVideoDispatcherInitErrorReturnsFatal(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[VideoDecoder]()
	dec := &fakeVideoDecoder{initErr: errBoom, decodeRet: Ok}
	reg.Register(media.VideoFamilyMPEG, dec)

	events := &fakeEvents{}
	d := NewVideoDispatcher(reg, nil, events)

	if got := d.Dispatch(&media.Packet{Kind: media.VideoFamilyMPEG}); got != Fatal {
		t.Fatalf("Dispatch() = %v, want Fatal", got)
	}
	if len(events.codecChanges) != 1 || events.codecChanges[0].handled {
		t.Fatal("CodecChanged should report handled=false on Init error")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

const errBoom = errString("boom")

type fakeSPUSink struct {
	vptsOffset int64
	overlays   []media.Overlay
	calls      int
}

func (s *fakeSPUSink) SPUVPTS(pts, duration int64) int64 {
	if pts == 0 {
		return 0
	}
	return pts + s.vptsOffset
}

func (s *fakeSPUSink) SetOverlays(overlays []media.Overlay) {
	s.calls++
	s.overlays = overlays
}

func TestDVDSPUDecoderEmitsRLEOverlay(t *testing.T) {
	t.Parallel()
	sink := &fakeSPUSink{vptsOffset: 1000}
	d := NewDVDSPUDecoder()
	if err := d.Init(sink); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	pkt := &media.Packet{Kind: media.SPUFamilyDVD, PTS: 5000, Payload: []byte{1, 2, 3, 4}}
	if got := d.DecodeData(pkt); got != Ok {
		t.Fatalf("DecodeData() = %v, want Ok", got)
	}
	if sink.calls != 1 || len(sink.overlays) != 1 {
		t.Fatalf("SetOverlays called %d times with %d overlays, want 1,1", sink.calls, len(sink.overlays))
	}
	ov := sink.overlays[0]
	if ov.VPTS != 6000 || ov.Duration != dvdSPUDefaultDuration || len(ov.RLEData) != 4 {
		t.Fatalf("overlay = %+v, unexpected fields", ov)
	}
}

func TestTeletextDecoderEmitsTextOverlay(t *testing.T) {
	t.Parallel()
	sink := &fakeSPUSink{vptsOffset: 500}
	d := NewTeletextDecoder()
	_ = d.Init(sink)

	pkt := &media.Packet{Kind: media.SPUFamilyTeletext, PTS: 2000, Payload: []byte("hello")}
	d.DecodeData(pkt)

	if len(sink.overlays) != 1 || sink.overlays[0].Text != "hello" {
		t.Fatalf("overlays = %+v, want one overlay with Text=hello", sink.overlays)
	}
}

func TestCCXSPUDecoderIgnoresNonCaptionPayload(t *testing.T) {
	t.Parallel()
	sink := &fakeSPUSink{vptsOffset: 30000}
	d := NewCCXSPUDecoder()
	if err := d.Init(sink); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	pkt := &media.Packet{Kind: media.SPUFamilyCEA608708, PTS: 9000, Payload: []byte{0x00, 0x01, 0x02}}
	if got := d.DecodeData(pkt); got != Ok {
		t.Fatalf("DecodeData() = %v, want Ok", got)
	}
	if sink.calls != 0 {
		t.Fatalf("SetOverlays called %d times on non-caption payload, want 0", sink.calls)
	}

	d.Close()
}

func TestSPUDispatcherRoutesByFamily(t *testing.T) {
	t.Parallel()
	reg := NewRegistry[SPUDecoder]()
	sink := &fakeSPUSink{vptsOffset: 100}
	reg.Register(media.SPUFamilyDVD, NewDVDSPUDecoder())
	reg.Register(media.SPUFamilyTeletext, NewTeletextDecoder())

	d := NewSPUDispatcher(reg, sink, nil)

	d.Dispatch(&media.Packet{Kind: media.SPUFamilyDVD, PTS: 1000, Payload: []byte{9}})
	if len(sink.overlays) != 1 || sink.overlays[0].RLEData == nil {
		t.Fatalf("expected an RLE overlay from the DVD decoder, got %+v", sink.overlays)
	}

	d.Dispatch(&media.Packet{Kind: media.SPUFamilyTeletext, PTS: 1000, Payload: []byte("hi")})
	if len(sink.overlays) != 1 || sink.overlays[0].Text != "hi" {
		t.Fatalf("expected a text overlay from the teletext decoder, got %+v", sink.overlays)
	}
}
