package decoder

import (
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
)

// Events receives the diagnostic/lifecycle events a dispatcher publishes
// while switching decoders, matching spec.md §4.4's "emits one diagnostic
// event" / "CodecChanged event" steps. Implemented by the worker's wiring
// onto internal/events.Bus. A nil Events discards them.
type Events interface {
	UnknownCodec(class, family media.Kind)
	CodecChanged(class media.Kind, old, new media.Kind, handled bool)
}

// VideoDispatcher implements spec.md §4.4's dispatch steps for the video
// decoder worker: look up the decoder installed for an incoming packet's
// codec family, switch decoders (close the old, init the new) when the
// family changes, cache and report unknown families exactly once each,
// then forward the packet to DecodeData. One Dispatcher belongs to
// exactly one worker, mirroring video_decoder.c's per-thread
// "last decoder used" state.
type VideoDispatcher struct {
	registry *Registry[VideoDecoder]
	sink     VideoSink
	events   Events

	mu          sync.Mutex
	current     VideoDecoder
	currentKind media.Kind
	hasCurrent  bool
	seenUnknown map[media.Kind]bool
}

// NewVideoDispatcher creates a Dispatcher serving decode requests from
// registry against sink, reporting lifecycle events to events (nil to
// discard).
func NewVideoDispatcher(registry *Registry[VideoDecoder], sink VideoSink, events Events) *VideoDispatcher {
	return &VideoDispatcher{registry: registry, sink: sink, events: events, seenUnknown: make(map[media.Kind]bool)}
}

// Dispatch routes a data packet to its installed decoder. Returns Skip for
// a packet whose codec family has no installed decoder.
func (d *VideoDispatcher) Dispatch(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	family := pkt.Kind.Family()
	dec, ok := d.registry.Lookup(pkt.Kind)
	if !ok {
		if !d.seenUnknown[family] {
			d.seenUnknown[family] = true
			if d.events != nil {
				d.events.UnknownCodec(media.ClassVideo, family)
			}
		}
		return Skip
	}
	delete(d.seenUnknown, family)

	if !d.hasCurrent || family != d.currentKind {
		old := d.currentKind
		if d.hasCurrent {
			d.current.Close()
		}
		if err := dec.Init(d.sink); err != nil {
			d.hasCurrent = false
			if d.events != nil {
				d.events.CodecChanged(media.ClassVideo, old, family, false)
			}
			return Fatal
		}
		d.current, d.currentKind, d.hasCurrent = dec, family, true
		if d.events != nil {
			d.events.CodecChanged(media.ClassVideo, old, family, true)
		}
	}

	return d.current.DecodeData(pkt)
}

// Reset resets the currently installed decoder, a no-op if none is
// installed. Used by CONTROL_RESET_DECODER.
func (d *VideoDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Reset()
	}
}

// Close closes the currently installed decoder and clears dispatch state
// so the next packet triggers a fresh Init.
func (d *VideoDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Close()
		d.current, d.hasCurrent = nil, false
	}
	d.seenUnknown = make(map[media.Kind]bool)
}

// AudioDispatcher is AudioDecoder's counterpart of VideoDispatcher.
type AudioDispatcher struct {
	registry *Registry[AudioDecoder]
	sink     AudioSink
	events   Events

	mu          sync.Mutex
	current     AudioDecoder
	currentKind media.Kind
	hasCurrent  bool
	seenUnknown map[media.Kind]bool
}

func NewAudioDispatcher(registry *Registry[AudioDecoder], sink AudioSink, events Events) *AudioDispatcher {
	return &AudioDispatcher{registry: registry, sink: sink, events: events, seenUnknown: make(map[media.Kind]bool)}
}

func (d *AudioDispatcher) Dispatch(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	family := pkt.Kind.Family()
	dec, ok := d.registry.Lookup(pkt.Kind)
	if !ok {
		if !d.seenUnknown[family] {
			d.seenUnknown[family] = true
			if d.events != nil {
				d.events.UnknownCodec(media.ClassAudio, family)
			}
		}
		return Skip
	}
	delete(d.seenUnknown, family)

	if !d.hasCurrent || family != d.currentKind {
		old := d.currentKind
		if d.hasCurrent {
			d.current.Close()
		}
		if err := dec.Init(d.sink); err != nil {
			d.hasCurrent = false
			if d.events != nil {
				d.events.CodecChanged(media.ClassAudio, old, family, false)
			}
			return Fatal
		}
		d.current, d.currentKind, d.hasCurrent = dec, family, true
		if d.events != nil {
			d.events.CodecChanged(media.ClassAudio, old, family, true)
		}
	}

	return d.current.DecodeData(pkt)
}

func (d *AudioDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Reset()
	}
}

func (d *AudioDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Close()
		d.current, d.hasCurrent = nil, false
	}
	d.seenUnknown = make(map[media.Kind]bool)
}

// SPUDispatcher is SPUDecoder's counterpart of VideoDispatcher.
type SPUDispatcher struct {
	registry *Registry[SPUDecoder]
	sink     SPUSink
	events   Events

	mu          sync.Mutex
	current     SPUDecoder
	currentKind media.Kind
	hasCurrent  bool
	seenUnknown map[media.Kind]bool
}

func NewSPUDispatcher(registry *Registry[SPUDecoder], sink SPUSink, events Events) *SPUDispatcher {
	return &SPUDispatcher{registry: registry, sink: sink, events: events, seenUnknown: make(map[media.Kind]bool)}
}

func (d *SPUDispatcher) Dispatch(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	family := pkt.Kind.Family()
	dec, ok := d.registry.Lookup(pkt.Kind)
	if !ok {
		if !d.seenUnknown[family] {
			d.seenUnknown[family] = true
			if d.events != nil {
				d.events.UnknownCodec(media.ClassSPU, family)
			}
		}
		return Skip
	}
	delete(d.seenUnknown, family)

	if !d.hasCurrent || family != d.currentKind {
		old := d.currentKind
		if d.hasCurrent {
			d.current.Close()
		}
		if err := dec.Init(d.sink); err != nil {
			d.hasCurrent = false
			if d.events != nil {
				d.events.CodecChanged(media.ClassSPU, old, family, false)
			}
			return Fatal
		}
		d.current, d.currentKind, d.hasCurrent = dec, family, true
		if d.events != nil {
			d.events.CodecChanged(media.ClassSPU, old, family, true)
		}
	}

	return d.current.DecodeData(pkt)
}

func (d *SPUDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Reset()
	}
}

func (d *SPUDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasCurrent {
		d.current.Close()
		d.current, d.hasCurrent = nil, false
	}
	d.seenUnknown = make(map[media.Kind]bool)
}
