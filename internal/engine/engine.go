// Package engine implements the playback facade of spec.md §4.10: the
// state machine (Stop -> Play -> Stop, with Pause modeled as Play at
// speed zero) and the public operations (play/stop/seek/pause/
// set_speed/set_av_offset/select_audio_channel/select_spu_channel/eject)
// that drive the metronom, frame pool, decoder workers, and video output
// loop built from the other internal packages.
//
// Grounded on original_source/src/xine-engine/xine.c's xine_play/
// xine_stop/xine_set_speed/xine_select_audio_channel/xine_eject, and on
// the teacher's cmd/prism/main.go app struct: a thin facade holding
// pre-built collaborators, wired together by the caller (here,
// cmd/xineengine/main.go) rather than constructing its own dependency
// graph internally.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/xine-engine/internal/config"
	"github.com/zsiec/xine-engine/internal/events"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
	"github.com/zsiec/xine-engine/internal/videoout"
	"github.com/zsiec/xine-engine/internal/worker"
)

// Status is the facade's top-level state, spec.md §4.10: "Stop -> Play
// -> Stop; Pause is modeled as Play with speed = 0".
type Status int

const (
	StatusStop Status = iota
	StatusPlay
)

func (s Status) String() string {
	if s == StatusPlay {
		return "play"
	}
	return "stop"
}

// speedFast4 is the original's SPEED_FAST_4: the fastest trick-play
// speed xine_set_speed clamps to, four times SpeedNormal.
const speedFast4 = metronom.SpeedNormal * 4

// InputSource is the external input-plugin collaborator of spec.md §6.
type InputSource interface {
	Open(mrl string) bool
	GetLength() int64
	GetCurrentTime() int64
	GetMRL() string
	Eject() bool
	Close()
}

// DemuxStatus reports whether a Demuxer is producing packets, the Go
// analogue of demux.c's DEMUX_OK/DEMUX_FINISHED.
type DemuxStatus int

const (
	DemuxOK DemuxStatus = iota
	DemuxFinished
)

// Demuxer is the external demuxer-plugin collaborator of spec.md §6.
// Probe reports whether this demuxer recognizes input's content; Start
// begins pushing packets into the three FIFOs from a goroutine it owns,
// returning once that goroutine is running (not once the stream ends).
type Demuxer interface {
	Probe(input InputSource, mrl string) bool
	Start(ctx context.Context, videoFIFO, audioFIFO, spuFIFO *fifo.FIFO[media.Packet], startPos, startTime int64) error
	Stop()
	GetStatus() DemuxStatus
	GetStreamLength() int64
}

// Engine is the playback facade. One Engine drives one active stream at
// a time; the decoder/output worker goroutines run for the Engine's
// whole lifetime (started by Run) regardless of play/stop transitions,
// matching spec.md §5's "small number of long-lived workers".
type Engine struct {
	mu     sync.Mutex
	status Status
	speed  int

	curMRL   string
	curInput InputSource
	curDemux Demuxer

	inputs   []InputSource
	demuxers []Demuxer

	avOffset     int64
	audioChannel int
	spuChannel   int

	metro      *metronom.Metronom
	videoFIFO  *fifo.FIFO[media.Packet]
	audioFIFO  *fifo.FIFO[media.Packet]
	spuFIFO    *fifo.FIFO[media.Packet]
	videoWork  *worker.VideoWorker
	audioWork  *worker.AudioWorker
	spuWork    *worker.SPUWorker
	videoLoop  *videoout.Loop
	bus        *events.Bus
	pub        events.Publisher
	cfg        *config.Store
	log        *slog.Logger
}

// Deps bundles every collaborator Engine needs, built by the caller the
// way cmd/prism/main.go builds its app struct's fields before handing
// them to wiring functions.
type Deps struct {
	Metronom     *metronom.Metronom
	VideoFIFO    *fifo.FIFO[media.Packet]
	AudioFIFO    *fifo.FIFO[media.Packet]
	SPUFIFO      *fifo.FIFO[media.Packet]
	VideoWorker  *worker.VideoWorker
	AudioWorker  *worker.AudioWorker
	SPUWorker    *worker.SPUWorker
	VideoLoop    *videoout.Loop
	Bus          *events.Bus
	Config       *config.Store
	Inputs       []InputSource
	Demuxers     []Demuxer
	Logger       *slog.Logger
}

// New creates an Engine in StatusStop from deps.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		status:       StatusStop,
		speed:        metronom.SpeedNormal,
		spuChannel:   -1,
		inputs:       deps.Inputs,
		demuxers:     deps.Demuxers,
		metro:        deps.Metronom,
		videoFIFO:    deps.VideoFIFO,
		audioFIFO:    deps.AudioFIFO,
		spuFIFO:      deps.SPUFIFO,
		videoWork:    deps.VideoWorker,
		audioWork:    deps.AudioWorker,
		spuWork:      deps.SPUWorker,
		videoLoop:    deps.VideoLoop,
		bus:          deps.Bus,
		pub:          events.NewPublisher(deps.Bus),
		cfg:          deps.Config,
		log:          logger.With("component", "engine"),
	}
}

// Run starts the long-lived worker goroutines (video decoder, audio
// decoder, spu decoder, video output) and blocks until one fails or ctx
// is cancelled, at which point it posts CONTROL_QUIT to all three FIFOs
// and waits for all four goroutines through one errgroup Wait. They are
// joined together, not one after another in a fixed order, and the
// metronom's sync goroutine is not among them (Metronom.Close stops it).
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.videoLoop.Run(gctx) })
	g.Go(func() error { return e.videoWork.Run(gctx) })
	g.Go(func() error { return e.audioWork.Run(gctx) })
	g.Go(func() error { return e.spuWork.Run(gctx) })

	<-gctx.Done()
	e.postControlAll(media.ControlQuit)

	return g.Wait()
}

// Status returns the current top-level state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Speed returns the current trick-play speed (metronom.SpeedNormal == 4
// for normal playback, metronom.SpeedPause == 0 when paused).
func (e *Engine) Speed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// CurrentMRL returns the MRL of the last successful Play call, or "" if
// nothing has ever played.
func (e *Engine) CurrentMRL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curMRL
}

func (e *Engine) postControlAll(kind media.Kind) {
	e.postControl(e.videoFIFO, kind)
	e.postControl(e.audioFIFO, kind)
	e.postControl(e.spuFIFO, kind)
}

// postControl acquires a free packet, stamps it as a control packet of
// kind, and enqueues it. Uses a background context: control packets must
// not be dropped even during shutdown (spec.md §7's FIFOFull row —
// producers block rather than lose a packet).
func (e *Engine) postControl(f *fifo.FIFO[media.Packet], kind media.Kind) {
	pkt, err := f.Acquire(context.Background())
	if err != nil {
		return
	}
	*pkt = media.Packet{Kind: kind}
	f.Put(pkt)
}

func (e *Engine) postChannelControl(f *fifo.FIFO[media.Packet], kind media.Kind, channel int) {
	pkt, err := f.Acquire(context.Background())
	if err != nil {
		return
	}
	*pkt = media.Packet{Kind: kind}
	pkt.DecoderInfo[0] = channel
	f.Put(pkt)
}
