package worker

import (
	"context"
	"log/slog"

	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// SPUWorker is the subpicture worker of spec.md §4.7: same shape as
// AudioWorker (including the track map), but outputs Overlay values
// through its decoder's SPUSink rather than samples. It has no peer in
// FinishedTracker — a track may legitimately carry no subtitles at all.
type SPUWorker struct {
	queue      *fifo.FIFO[media.Packet]
	dispatcher *decoder.SPUDispatcher
	metronom   Metronom
	progress   ProgressSink
	events     Events
	tracks     *trackMap
	log        *slog.Logger

	muted bool
}

// NewSPUWorker creates an SPUWorker pulling from queue.
func NewSPUWorker(queue *fifo.FIFO[media.Packet], dispatcher *decoder.SPUDispatcher, m Metronom, progress ProgressSink, events Events, logger *slog.Logger) *SPUWorker {
	return &SPUWorker{
		queue:      queue,
		dispatcher: dispatcher,
		metronom:   m,
		progress:   progress,
		events:     events,
		tracks:     newTrackMap(),
		log:        logOrDefault(logger, "spu_worker"),
	}
}

// Run pulls packets until the fifo is closed, ctx is cancelled, or a
// CONTROL_QUIT packet is processed.
func (w *SPUWorker) Run(ctx context.Context) error {
	for {
		pkt, err := w.queue.Get(ctx)
		if err != nil {
			return err
		}
		quit := w.handle(pkt)
		w.queue.Release(pkt)
		if quit {
			return nil
		}
	}
}

func (w *SPUWorker) handle(pkt *media.Packet) (quit bool) {
	if w.progress != nil {
		w.progress.SetInputPosition(pkt.InputPos, pkt.InputTime)
	}

	switch pkt.Kind {
	case media.ControlStart:
		w.dispatcher.Close()
		w.tracks.reset()
		w.muted = false
	case media.ControlEnd:
		w.dispatcher.Close()
	case media.ControlQuit:
		w.dispatcher.Close()
		return true
	case media.ControlResetDecoder:
		w.dispatcher.Reset()
	case media.ControlNewPTS:
		if w.metronom != nil {
			kind := metronom.DiscontinuityAbsolute
			if pkt.Seek {
				kind = metronom.DiscontinuityStreamSeek
			}
			w.metronom.HandleDiscontinuity(metronom.StreamAudio, kind, pkt.DiscontinuityOffset)
		}
	case media.ControlDiscontinuity:
		// SPU has no wrap offset of its own (spec.md §4.2's
		// got_spu_packet rides the video/audio wrap offset); nothing
		// to announce on this fifo.
	case media.ControlSPUChannel:
		if w.tracks.setSelected(pkt.DecoderInfo[0]) {
			w.dispatcher.Close()
		}
		if w.events != nil {
			w.events.ChannelsChanged()
		}
	case media.ControlAudioChannel, media.ControlNop, media.ControlHeadersDone:
		// not meaningful to the spu worker
	default:
		w.handleData(pkt)
	}
	return false
}

func (w *SPUWorker) handleData(pkt *media.Packet) {
	if pkt.Kind.Class() != media.ClassSPU {
		return
	}
	if w.tracks.observe(pkt.Kind) {
		w.dispatcher.Close()
	}
	sel, ok := w.tracks.selectedKind()
	if !ok || pkt.Kind.Family() != sel || w.muted {
		return
	}
	switch w.dispatcher.Dispatch(pkt) {
	case decoder.ResetNeeded:
		w.dispatcher.Reset()
	case decoder.Fatal:
		w.dispatcher.Close()
		w.muted = true
	}
}
