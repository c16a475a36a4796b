package decoder

import (
	"sync"

	"github.com/zsiec/xine-engine/internal/media"
)

// dvdSPUDefaultDuration bounds an RLE overlay's display time when the
// packet carries no explicit clear command; DVD subtitle streams normally
// terminate a region explicitly, but a few malformed discs never do.
const dvdSPUDefaultDuration = 10 * media.TicksPerSecond

// DVDSPUDecoder is a minimal SPUFamilyDVD decoder: it forwards a packet's
// payload as a pre-rendered RLE overlay region without parsing the DVD SPU
// control-sequence-table (palette/highlight/crop), which is out of scope
// for this repository (full codec implementations are a Non-goal). It
// exists so internal/decoder's registry and worker dispatch have a real
// plugin to exercise for the DVD SPU family in tests.
type DVDSPUDecoder struct {
	mu   sync.Mutex
	sink SPUSink
}

func NewDVDSPUDecoder() *DVDSPUDecoder { return &DVDSPUDecoder{} }

func (d *DVDSPUDecoder) Init(sink SPUSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	return nil
}

func (d *DVDSPUDecoder) DecodeData(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) == 0 {
		return Ok
	}
	vpts := d.sink.SPUVPTS(pkt.PTS, dvdSPUDefaultDuration)
	if vpts == 0 {
		return Ok
	}
	rle := make([]byte, len(pkt.Payload))
	copy(rle, pkt.Payload)
	d.sink.SetOverlays([]media.Overlay{{VPTS: vpts, Duration: dvdSPUDefaultDuration, RLEData: rle}})
	return Ok
}

func (d *DVDSPUDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sink != nil {
		d.sink.SetOverlays(nil)
	}
}

func (d *DVDSPUDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = nil
}
