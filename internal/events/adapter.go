package events

import "github.com/zsiec/xine-engine/internal/media"

// Publisher adapts a *Bus to the decoder.Events and worker.Events
// interfaces, translating each worker/decoder callback into a typed
// Event posted to every subscriber. Kept separate from Bus itself so
// Bus stays a generic fan-out primitive with no knowledge of the
// playback domain.
type Publisher struct{ Bus *Bus }

// NewPublisher wraps bus.
func NewPublisher(bus *Bus) Publisher { return Publisher{Bus: bus} }

// UnknownCodec implements decoder.Events: a packet family arrived with no
// registered decoder. Reported as an unhandled CodecChanged, matching
// spec.md §8 invariant 9 (one such event per distinct unknown family).
func (p Publisher) UnknownCodec(class, family media.Kind) {
	p.Bus.Send(Event{Kind: KindCodecChanged, Class: class, NewFamily: family, Handled: false})
}

// CodecChanged implements decoder.Events: the installed decoder for a
// class switched from old to new (or was freshly installed, old == 0).
func (p Publisher) CodecChanged(class media.Kind, old, new media.Kind, handled bool) {
	p.Bus.Send(Event{Kind: KindCodecChanged, Class: class, OldFamily: old, NewFamily: new, Handled: handled})
}

// StreamFinished implements worker.Events: both video and audio workers
// have processed CONTROL_END.
func (p Publisher) StreamFinished() {
	p.Bus.Send(Event{Kind: KindStreamFinished})
}

// ChannelsChanged implements worker.Events: the audio or SPU track map
// changed the set or selection of logical channels.
func (p Publisher) ChannelsChanged() {
	p.Bus.Send(Event{Kind: KindChannelsChanged})
}

// VideoOutputChanged announces that the active video output driver for
// mrl changed, for engine facade use.
func (p Publisher) VideoOutputChanged(mrl string) {
	p.Bus.Send(Event{Kind: KindVideoOutputChanged, MRL: mrl})
}

// NoVideo announces that mrl's stream carries no video track.
func (p Publisher) NoVideo(mrl string) {
	p.Bus.Send(Event{Kind: KindNoVideo, MRL: mrl})
}

// FrameFormatChange announces a change in delivered frame geometry,
// surfaced to the UI for window/aspect adjustment.
func (p Publisher) FrameFormatChange(width, height int, aspect media.AspectCode) {
	p.Bus.Send(Event{Kind: KindFrameFormatChange, Width: width, Height: height, Aspect: aspect})
}

// HandleInputEvent forwards an opaque UI input event (keypress, mouse)
// through the bus via the single generic hook described in spec.md §6.
func (p Publisher) HandleInputEvent(kind int, data []byte, x, y int) {
	p.Bus.Send(Event{Kind: KindInput, InputKind: kind, InputData: data, X: x, Y: y})
}

// OpenFailed announces that play(mrl) could not find a usable input or
// demuxer plugin, or the demuxer failed to start, per spec.md §4.10.
func (p Publisher) OpenFailed(mrl string) {
	p.Bus.Send(Event{Kind: KindOpenFailed, MRL: mrl})
}
