package decoder

import (
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
)

// teletextHoldDuration mirrors captionHoldDuration: teletext subtitle
// pages carry no in-band clear time either.
const teletextHoldDuration = 5 * media.TicksPerSecond

// TeletextDecoder is a minimal SPUFamilyTeletext decoder: it treats a
// packet's payload as already-extracted UTF-8 page text rather than
// decoding raw teletext packets (Hamming-protected bytes, page/row
// addressing, character-set mapping), which is out of scope here. It
// exists so the registry and worker dispatch have a real plugin to
// exercise for the teletext family in tests.
type TeletextDecoder struct {
	mu   sync.Mutex
	sink SPUSink
}

func NewTeletextDecoder() *TeletextDecoder { return &TeletextDecoder{} }

func (d *TeletextDecoder) Init(sink SPUSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	return nil
}

func (d *TeletextDecoder) DecodeData(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) == 0 {
		return Ok
	}
	vpts := d.sink.SPUVPTS(pkt.PTS, teletextHoldDuration)
	if vpts == 0 {
		return Ok
	}
	d.sink.SetOverlays([]media.Overlay{{VPTS: vpts, Duration: teletextHoldDuration, Text: string(pkt.Payload)}})
	return Ok
}

func (d *TeletextDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sink != nil {
		d.sink.SetOverlays(nil)
	}
}

func (d *TeletextDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = nil
}
