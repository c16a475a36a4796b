package worker

import (
	"context"
	"log/slog"

	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// AudioWorker is VideoWorker's counterpart for the audio fifo (spec.md
// §4.6), additionally maintaining the track map of §4.6b: packets
// belonging to a logical channel other than the selected one are
// released without decoding.
type AudioWorker struct {
	queue      *fifo.FIFO[media.Packet]
	dispatcher *decoder.AudioDispatcher
	metronom   Metronom
	progress   ProgressSink
	finished   *FinishedTracker
	events     Events
	tracks     *trackMap
	log        *slog.Logger

	muted bool
}

// NewAudioWorker creates an AudioWorker pulling from queue.
func NewAudioWorker(queue *fifo.FIFO[media.Packet], dispatcher *decoder.AudioDispatcher, m Metronom, progress ProgressSink, finished *FinishedTracker, events Events, logger *slog.Logger) *AudioWorker {
	return &AudioWorker{
		queue:      queue,
		dispatcher: dispatcher,
		metronom:   m,
		progress:   progress,
		finished:   finished,
		events:     events,
		tracks:     newTrackMap(),
		log:        logOrDefault(logger, "audio_worker"),
	}
}

// Run pulls packets until the fifo is closed, ctx is cancelled, or a
// CONTROL_QUIT packet is processed.
func (w *AudioWorker) Run(ctx context.Context) error {
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

func (w *AudioWorker) handle(pkt *media.Packet) (quit bool) {
	if w.progress != nil {
		w.progress.SetInputPosition(pkt.InputPos, pkt.InputTime)
	}

	switch pkt.Kind {
	case media.ControlStart:
		w.dispatcher.Close()
		w.tracks.reset()
		w.muted = false
		if w.finished != nil {
			w.finished.reset(trackAudio)
		}
		if w.metronom != nil {
			w.metronom.HandleDiscontinuity(metronom.StreamAudio, metronom.DiscontinuityStreamStart, 0)
		}
	case media.ControlEnd:
		w.dispatcher.Close()
		if w.finished != nil {
			w.finished.markFinished(trackAudio)
		}
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
		if w.metronom != nil {
			w.metronom.HandleDiscontinuity(metronom.StreamAudio, metronom.DiscontinuityRelative, pkt.DiscontinuityOffset)
		}
	case media.ControlAudioChannel:
		if w.tracks.setSelected(pkt.DecoderInfo[0]) {
			w.dispatcher.Close()
		}
		if w.events != nil {
			w.events.ChannelsChanged()
		}
	case media.ControlSPUChannel, media.ControlNop, media.ControlHeadersDone:
		// not meaningful to the audio worker
	default:
		w.handleData(pkt)
	}
	return false
}

func (w *AudioWorker) handleData(pkt *media.Packet) {
	if pkt.Kind.Class() != media.ClassAudio {
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
