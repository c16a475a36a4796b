// Package decoder implements the per-class decoder registry and dispatch
// rules of spec.md §4.4: a map from a packet's codec-family kind to an
// installed decoder plugin, populated at engine startup and consulted by
// every decoder worker (internal/worker) on each data packet.
//
// Grounded on original_source/src/xine-engine/video_decoder.c and
// audio_decoder.c's decoder-changed -> close/init/event dispatch sequence,
// expressed as a Go interface per spec.md §9's guidance against
// translating the original's vtable-of-function-pointers pattern, and on
// the teacher's internal/ingest.Registry (map + mutex + lifecycle
// registration, key lookups served without blocking registration).
package decoder

import (
	"context"

	"github.com/zsiec/xine-engine/internal/framepool"
	"github.com/zsiec/xine-engine/internal/media"
)

// DecodeOutcome reports what DecodeData did with a packet, modeled as an
// enum per spec.md §9 rather than a Go error: the worker loop must keep
// running after Skip or Reset, which a plain error return would make
// awkward to distinguish from a fatal condition.
type DecodeOutcome int

const (
	// Ok means the packet was consumed normally.
	Ok DecodeOutcome = iota
	// Skip means the packet could not be decoded but the stream should
	// continue; the worker drops the remainder of the current coded unit
	// and resynchronizes at the next FRAME_END.
	Skip
	// ResetNeeded means the decoder hit state corruption it cannot
	// recover from internally and asks the worker to call Reset before
	// the next packet.
	ResetNeeded
	// Fatal means the decoder cannot continue on this track at all; the
	// worker closes the decoder and mutes the class for the remainder of
	// the track (spec.md §7's DecoderDecodeFail row, escalated).
	Fatal
)

func (o DecodeOutcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Skip:
		return "skip"
	case ResetNeeded:
		return "reset_needed"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// VideoSink is the output collaborator a VideoDecoder plugin emits decoded
// pictures into, the frame-pool side of spec.md §4.3.
type VideoSink interface {
	GetFrame(ctx context.Context, width, height int, format media.PixelFormat, aspect media.AspectCode, duration int64) (*media.Frame, error)
	Draw(f *media.Frame) framepool.DrawResult
	FrameFree(f *media.Frame)
}

// AudioSink is the output collaborator an AudioDecoder plugin emits
// decoded samples into: the audio driver's buffer plus the metronom's
// sample-to-VPTS mapping (spec.md §6's AudioDriver, fronted by the
// metronom per §4.2).
type AudioSink interface {
	PutBuffer(samples []byte, pts int64, numSamples int64) (vpts int64)
}

// SPUSink is the output collaborator a SPUDecoder plugin emits decoded
// overlays into: the frame pool's active overlay set (spec.md §4.3's
// overlay blend). SPUVPTS mirrors the original's subtitle decoders calling
// straight into the stream's metronom (metronom->got_spu_packet) to place
// an overlay on the shared VPTS timeline instead of the SPU's raw PTS.
type SPUSink interface {
	SPUVPTS(pts, duration int64) int64
	SetOverlays(overlays []media.Overlay)
}

// VideoDecoder is a format-specific video codec plugin. Init/Close bracket
// the decoder's lifetime on one track; DecodeData is called once per data
// packet of this decoder's registered kind; Reset is called on
// CONTROL_RESET_DECODER without tearing the decoder down.
type VideoDecoder interface {
	Init(sink VideoSink) error
	DecodeData(pkt *media.Packet) DecodeOutcome
	Reset()
	Close()
}

// AudioDecoder is a format-specific audio codec plugin, the audio
// counterpart of VideoDecoder.
type AudioDecoder interface {
	Init(sink AudioSink) error
	DecodeData(pkt *media.Packet) DecodeOutcome
	Reset()
	Close()
}

// SPUDecoder is a format-specific subtitle/caption decoder plugin.
type SPUDecoder interface {
	Init(sink SPUSink) error
	DecodeData(pkt *media.Packet) DecodeOutcome
	Reset()
	Close()
}
