package worker

import (
	"context"
	"log/slog"

	"github.com/zsiec/xine-engine/internal/decoder"
	"github.com/zsiec/xine-engine/internal/fifo"
	"github.com/zsiec/xine-engine/internal/media"
	"github.com/zsiec/xine-engine/internal/metronom"
)

// VideoWorker is the single thread of spec.md §4.5 owning the video
// packet fifo.
type VideoWorker struct {
	queue      *fifo.FIFO[media.Packet]
	dispatcher *decoder.VideoDispatcher
	metronom   Metronom
	progress   ProgressSink
	finished   *FinishedTracker
	events     Events
	log        *slog.Logger

	muted bool
}

// NewVideoWorker creates a VideoWorker pulling from queue. m, progress,
// finished, and events may be nil to disable the corresponding behavior
// (used by tests exercising a single aspect of the loop).
func NewVideoWorker(queue *fifo.FIFO[media.Packet], dispatcher *decoder.VideoDispatcher, m Metronom, progress ProgressSink, finished *FinishedTracker, events Events, logger *slog.Logger) *VideoWorker {
	return &VideoWorker{
		queue:      queue,
		dispatcher: dispatcher,
		metronom:   m,
		progress:   progress,
		finished:   finished,
		events:     events,
		log:        logOrDefault(logger, "video_worker"),
	}
}

// Run pulls packets until the fifo is closed, ctx is cancelled, or a
// CONTROL_QUIT packet is processed.
func (w *VideoWorker) Run(ctx context.Context) error {
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

func (w *VideoWorker) handle(pkt *media.Packet) (quit bool) {
	if w.progress != nil {
		w.progress.SetInputPosition(pkt.InputPos, pkt.InputTime)
	}

	switch pkt.Kind {
	case media.ControlStart:
		w.dispatcher.Close()
		w.muted = false
		if w.finished != nil {
			w.finished.reset(trackVideo)
		}
		if w.metronom != nil {
			w.metronom.HandleDiscontinuity(metronom.StreamVideo, metronom.DiscontinuityStreamStart, 0)
		}
	case media.ControlEnd:
		w.dispatcher.Close()
		if w.finished != nil {
			w.finished.markFinished(trackVideo)
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
			w.metronom.HandleDiscontinuity(metronom.StreamVideo, kind, pkt.DiscontinuityOffset)
		}
	case media.ControlDiscontinuity:
		if w.metronom != nil {
			w.metronom.HandleDiscontinuity(metronom.StreamVideo, metronom.DiscontinuityRelative, pkt.DiscontinuityOffset)
		}
	case media.ControlNop, media.ControlHeadersDone, media.ControlAudioChannel, media.ControlSPUChannel:
		// not meaningful to the video worker
	default:
		if pkt.Kind.Class() != media.ClassVideo || w.muted {
			break
		}
		w.handleOutcome(w.dispatcher.Dispatch(pkt))
	}
	return false
}

func (w *VideoWorker) handleOutcome(outcome decoder.DecodeOutcome) {
	switch outcome {
	case decoder.ResetNeeded:
		w.dispatcher.Reset()
	case decoder.Fatal:
		w.dispatcher.Close()
		w.muted = true
	}
}
