package worker

import (
	"context"
	"testing"

	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

func newPacketFIFO(t *testing.T, capacity int) *fifo.FIFO[media.Packet] {
	t.Helper()
	return fifo.New(capacity, func() *media.Packet { return &media.Packet{} })
}

func pushPacket(t *testing.T, q *fifo.FIFO[media.Packet], pkt media.Packet) {
	t.Helper()
	p, err := q.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	*p = pkt
	q.Put(p)
}

type fakeVideoDecoder struct {
	decodeRet decoder.DecodeOutcome
	decodes   int
	closes    int
}

func (f *fakeVideoDecoder) Init(decoder.VideoSink) error                  { return nil }
func (f *fakeVideoDecoder) DecodeData(*media.Packet) decoder.DecodeOutcome { f.decodes++; return f.decodeRet }
func (f *fakeVideoDecoder) Reset()                                        {}
func (f *fakeVideoDecoder) Close()                                        { f.closes++ }

type fakeAudioDecoder struct {
	decodeRet decoder.DecodeOutcome
	decodes   int
	closes    int
}

func (f *fakeAudioDecoder) Init(decoder.AudioSink) error                  { return nil }
func (f *fakeAudioDecoder) DecodeData(*media.Packet) decoder.DecodeOutcome { f.decodes++; return f.decodeRet }
func (f *fakeAudioDecoder) Reset()                                        {}
func (f *fakeAudioDecoder) Close()                                        { f.closes++ }

type fakeMetronom struct {
	calls []metronom.Stream
	kinds []metronom.DiscontinuityKind
}

func (m *fakeMetronom) HandleDiscontinuity(which metronom.Stream, kind metronom.DiscontinuityKind, offset int64) {
	m.calls = append(m.calls, which)
	m.kinds = append(m.kinds, kind)
}

type fakeEvents struct {
	unknown       int
	codecChanges  int
	finished      int
	channelChange int
}

func (e *fakeEvents) UnknownCodec(class, family media.Kind)                        { e.unknown++ }
func (e *fakeEvents) CodecChanged(class media.Kind, old, new media.Kind, handled bool) { e.codecChanges++ }
func (e *fakeEvents) StreamFinished()                                              { e.finished++ }
func (e *fakeEvents) ChannelsChanged()                                             { e.channelChange++ }

func TestVideoWorkerProcessesControlAndData(t *testing.T) {
	t.Parallel()
	q := newPacketFIFO(t, 8)
	reg := decoder.NewRegistry[decoder.VideoDecoder]()
	dec := &fakeVideoDecoder{decodeRet: decoder.Ok}
	reg.Register(media.VideoFamilyH264, dec)
	m := &fakeMetronom{}

	w := NewVideoWorker(q, decoder.NewVideoDispatcher(reg, nil, nil), m, nil, nil, nil, nil)

	pushPacket(t, q, media.Packet{Kind: media.ControlStart})
	pushPacket(t, q, media.Packet{Kind: media.VideoFamilyH264, PTS: 1000})
	pushPacket(t, q, media.Packet{Kind: media.ControlQuit})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if dec.decodes != 1 {
		t.Fatalf("decodes = %d, want 1", dec.decodes)
	}
	if len(m.calls) != 1 || m.calls[0] != metronom.StreamVideo || m.kinds[0] != metronom.DiscontinuityStreamStart {
		t.Fatalf("metronom calls = %+v/%+v, want one StreamVideo/StreamStart call", m.calls, m.kinds)
	}
	if dec.closes != 1 {
		t.Fatalf("closes = %d, want 1 (only CONTROL_QUIT should close the installed decoder)", dec.closes)
	}
}

func TestVideoWorkerMutesAfterFatalDecode(t *testing.T) {
	t.Parallel()
	q := newPacketFIFO(t, 8)
	reg := decoder.NewRegistry[decoder.VideoDecoder]()
	dec := &fakeVideoDecoder{decodeRet: decoder.Fatal}
	reg.Register(media.VideoFamilyH264, dec)

	w := NewVideoWorker(q, decoder.NewVideoDispatcher(reg, nil, nil), nil, nil, nil, nil, nil)

	pushPacket(t, q, media.Packet{Kind: media.VideoFamilyH264})
	pushPacket(t, q, media.Packet{Kind: media.VideoFamilyH264})
	pushPacket(t, q, media.Packet{Kind: media.ControlQuit})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if dec.decodes != 1 {
		t.Fatalf("decodes = %d, want 1 (worker should mute the class after Fatal)", dec.decodes)
	}
}

func TestVideoWorkerRunStopsOnFifoClose(t *testing.T) {
	t.Parallel()
	q := newPacketFIFO(t, 2)
	reg := decoder.NewRegistry[decoder.VideoDecoder]()
	w := NewVideoWorker(q, decoder.NewVideoDispatcher(reg, nil, nil), nil, nil, nil, nil, nil)

	q.Close()
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run() returned nil error, want the fifo's closed sentinel")
	}
}

func TestAudioWorkerTrackChangeClosesDecoderMidStream(t *testing.T) {
	t.Parallel()
	q := newPacketFIFO(t, 8)
	reg := decoder.NewRegistry[decoder.AudioDecoder]()
	stream0 := &fakeAudioDecoder{decodeRet: decoder.Ok}
	stream1 := &fakeAudioDecoder{decodeRet: decoder.Ok}
	const family0 = media.AudioFamilyMPEG
	const family1 = media.AudioFamilyAAC
	reg.Register(family0, stream0)
	reg.Register(family1, stream1)

	events := &fakeEvents{}
	w := NewAudioWorker(q, decoder.NewAudioDispatcher(reg, nil, nil), nil, nil, nil, events, nil)

	// Stream 0 (family0) established as the sole, selected track.
	pushPacket(t, q, media.Packet{Kind: family0})
	// A packet for a family that sorts below family0 arrives: the track
	// map reorders, the selected index now points at the new family, and
	// the stale decoder must be closed (spec.md §8 scenario S5).
	lower := family0 - (1 << 16)
	pushPacket(t, q, media.Packet{Kind: lower})
	pushPacket(t, q, media.Packet{Kind: media.ControlQuit})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stream0.decodes != 1 {
		t.Fatalf("stream0 decodes = %d, want 1", stream0.decodes)
	}
	if stream0.closes != 1 {
		t.Fatalf("stream0 closes = %d, want 1 (track change closes the stale decoder)", stream0.closes)
	}
}

func TestAudioWorkerChannelSelectPostsChannelsChanged(t *testing.T) {
	t.Parallel()
	q := newPacketFIFO(t, 8)
	reg := decoder.NewRegistry[decoder.AudioDecoder]()
	events := &fakeEvents{}
	w := NewAudioWorker(q, decoder.NewAudioDispatcher(reg, nil, nil), nil, nil, nil, events, nil)

	pushPacket(t, q, media.Packet{Kind: media.ControlAudioChannel, DecoderInfo: [4]int{1}})
	pushPacket(t, q, media.Packet{Kind: media.ControlQuit})

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if events.channelChange != 1 {
		t.Fatalf("ChannelsChanged fired %d times, want 1", events.channelChange)
	}
}

func TestFinishedTrackerFiresOnlyWhenBothDone(t *testing.T) {
	t.Parallel()
	events := &fakeEvents{}
	tr := NewFinishedTracker(events)

	tr.markFinished(trackVideo)
	if events.finished != 0 {
		t.Fatal("StreamFinished fired with only one side done")
	}
	tr.markFinished(trackAudio)
	if events.finished != 1 {
		t.Fatalf("StreamFinished fired %d times, want 1", events.finished)
	}
}

func TestTrackMapObserveDetectsReselectNeeded(t *testing.T) {
	t.Parallel()
	tm := newTrackMap()

	if reselect := tm.observe(media.AudioFamilyAAC); reselect {
		t.Fatal("first observation of the only track should not require reselect")
	}
	// AAC > MPEG by construction (0x02 << 16 > 0x01 << 16), so MPEG
	// inserts before the selected index 0.
	if reselect := tm.observe(media.AudioFamilyMPEG); !reselect {
		t.Fatal("inserting a lower-sorting family at/before the selected index should require reselect")
	}
	kind, ok := tm.selectedKind()
	if !ok || kind != media.AudioFamilyMPEG {
		t.Fatalf("selectedKind() = (%v, %v), want (AudioFamilyMPEG, true)", kind, ok)
	}
}
