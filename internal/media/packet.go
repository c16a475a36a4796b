// Package media defines the packet, frame, and overlay types that flow
// through the playback pipeline, from the demuxer through the decoder
// stage to the video output stage.
package media

// TicksPerSecond is the metronom's time unit: 90000 ticks per second, matching the
// PTS clock rate of MPEG-family containers.
const TicksPerSecond = 90000

// Buffer-type kind. The upper byte identifies the stream class; the
// lower bits identify the codec/stream index within that class.
type Kind uint32

// Stream-class byte, matching the upper byte of a Kind.
const (
	ClassControl Kind = 0x00 << 24
	ClassAudio   Kind = 0x02 << 24
	ClassVideo   Kind = 0x03 << 24
	ClassSPU     Kind = 0x04 << 24

	classMask Kind = 0xFF << 24
)

// Class returns the stream-class byte of a Kind.
func (k Kind) Class() Kind { return k & classMask }

// Control packet kinds (ClassControl | low bits).
const (
	ControlStart         Kind = ClassControl | 0x01
	ControlEnd           Kind = ClassControl | 0x02
	ControlQuit          Kind = ClassControl | 0x03
	ControlNewPTS        Kind = ClassControl | 0x04
	ControlDiscontinuity Kind = ClassControl | 0x05
	ControlResetDecoder  Kind = ClassControl | 0x06
	ControlHeadersDone   Kind = ClassControl | 0x07
	ControlAudioChannel  Kind = ClassControl | 0x08
	ControlSPUChannel    Kind = ClassControl | 0x09
	ControlNop           Kind = ClassControl | 0x0A
)

// familyMask isolates the class byte plus the codec-family byte (bits
// 16-31) of a Kind, the registry lookup key per spec.md §4.4: dispatch is
// keyed by "the upper 16 bits", leaving the lower 16 bits free to carry a
// stream index (e.g. which of several audio or SPU tracks) that the
// decoder registry itself never inspects.
const familyMask Kind = 0xFFFF << 16

// Family returns the registry dispatch key for a Kind: its class byte and
// codec-family byte, with any stream-index bits masked off.
func (k Kind) Family() Kind { return k & familyMask }

// Codec-family bytes, next byte down from the class byte. Video/audio
// families are named here for completeness (spec.md §6's wire-visible
// kind ranges) even though this core never ships a concrete video/audio
// codec decoder — codec implementations are an explicit Non-goal (§1);
// only the SPU families below have a decoder plugin in this repository.
const (
	VideoFamilyMPEG Kind = ClassVideo | (0x01 << 16)
	VideoFamilyH264 Kind = ClassVideo | (0x02 << 16)

	AudioFamilyMPEG Kind = ClassAudio | (0x01 << 16)
	AudioFamilyAAC  Kind = ClassAudio | (0x02 << 16)

	SPUFamilyDVD       Kind = ClassSPU | (0x01 << 16)
	SPUFamilyTeletext  Kind = ClassSPU | (0x02 << 16)
	SPUFamilyCEA608708 Kind = ClassSPU | (0x03 << 16)
)

// Decoder-flags bitset carried on a Packet.
type Flags uint32

const (
	FlagHeader    Flags = 1 << iota // codec header/extradata
	FlagFrameEnd                    // last fragment of a coded picture
	FlagPreview                     // preview-only data, not for display
	FlagSpecial                     // decoder-specific side information follows
	FlagStdHeader                   // standard (non-proprietary) header format
	FlagSeek                        // packet follows a seek
	FlagEndStream                   // last packet of the stream
)

// Has reports whether all bits in want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }

// DiscontinuityKind identifies the kind of PTS discontinuity announced by
// a CONTROL_NEWPTS/CONTROL_DISCONTINUITY packet or by handle_discontinuity.
type DiscontinuityKind int

const (
	DiscontinuityStreamStart DiscontinuityKind = iota
	DiscontinuityAbsolute
	DiscontinuityRelative
	DiscontinuityStreamSeek
)

// Packet is a typed, pool-allocated payload carried between the demuxer
// and a decoder worker via a fifo.FIFO. Ownership transfers to the
// consumer on Get and must be returned via Release when done with it.
type Packet struct {
	Kind  Kind
	Flags Flags

	// Payload is the packet's compressed byte range. Callers that reuse
	// Payload's backing array across acquisitions must not retain slices
	// of it past Release.
	Payload []byte

	// PTS is the source presentation timestamp in 90kHz units, or 0 if
	// the packet carries no timestamp (interpolated by the metronom).
	PTS int64

	// InputPos/InputTime optionally report the demuxer's position in the
	// input stream at the time this packet was produced, used by the
	// engine facade for progress reporting.
	InputPos  int64
	InputTime int64

	// DiscontinuityOffset carries the offset argument of a NEWPTS or
	// DISCONTINUITY control packet.
	DiscontinuityOffset int64
	// Seek indicates a NEWPTS packet followed a seek rather than a
	// natural splice (selects StreamSeek vs. Absolute discontinuity kind).
	Seek bool

	// DecoderInfo is a small side-channel for decoder-specific metadata
	// (e.g. sample format hints) too small to warrant their own field.
	DecoderInfo [4]int
}

// Reset clears a Packet for reuse from the free list. Payload's backing
// array is kept (truncated to zero length) so repeated acquisitions don't
// churn allocations.
func (p *Packet) Reset() {
	*p = Packet{Payload: p.Payload[:0]}
}
