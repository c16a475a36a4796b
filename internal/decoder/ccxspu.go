package decoder

import (
	"sync"

	"github.com/zsiec/ccx"

	"github.com/zsiec/xine-engine/internal/media"
)

// captionHoldDuration is how long a decoded CEA-608/708 caption stays on
// screen once emitted. Unlike DVD SPU, closed-caption byte pairs carry no
// explicit clear time in-band (a channel's caption simply holds until the
// next one replaces it or an erase/control code arrives); this mirrors the
// fixed hold xine's cc_decoder.c uses rather than inventing an unbounded
// overlay.
const captionHoldDuration = 5 * media.TicksPerSecond

// CCXSPUDecoder decodes CEA-608/708 closed captions carried as SEI byte
// pairs (spec.md §6's SPU packet payload for the cea608708 family) into
// text overlays, using github.com/zsiec/ccx for both the line-21 state
// machine and the DTVCC service-block parser.
//
// Grounded on _examples/zsiec-prism/internal/demux/mpegts.go's
// handleCaptionSEI/drainDTVCC: same per-channel decoder maps, same
// control-code repeat suppression for CEA-608, same DTVCC packet-size/
// parse/service-dispatch sequence.
type CCXSPUDecoder struct {
	mu sync.Mutex

	sink SPUSink

	cea608Decs map[int]*ccx.CEA608Decoder
	cea708Svcs map[int]*ccx.CEA708Service

	dtvccBuf []byte

	lastCtrl     map[int][2]byte
	lastWasCtrl  map[int]bool
	lastCtrlSeen map[int]int64
	packetCount  int64

	active map[int]media.Overlay
}

// NewCCXSPUDecoder creates an unopened CCXSPUDecoder; call Init before
// DecodeData.
func NewCCXSPUDecoder() *CCXSPUDecoder {
	return &CCXSPUDecoder{}
}

func (d *CCXSPUDecoder) Init(sink SPUSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	d.cea608Decs = map[int]*ccx.CEA608Decoder{1: ccx.NewCEA608Decoder(), 2: ccx.NewCEA608Decoder(), 3: ccx.NewCEA608Decoder(), 4: ccx.NewCEA608Decoder()}
	d.cea708Svcs = make(map[int]*ccx.CEA708Service)
	for i := 1; i <= 6; i++ {
		d.cea708Svcs[i] = ccx.NewCEA708Service()
	}
	d.dtvccBuf = d.dtvccBuf[:0]
	d.lastCtrl = make(map[int][2]byte)
	d.lastWasCtrl = make(map[int]bool)
	d.lastCtrlSeen = make(map[int]int64)
	d.packetCount = 0
	d.active = make(map[int]media.Overlay)
	return nil
}

func (d *CCXSPUDecoder) DecodeData(pkt *media.Packet) DecodeOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.packetCount++
	cd := ccx.ExtractCaptions(pkt.Payload)
	if cd == nil {
		return Ok
	}

	changed := false

	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]
		field := pair.Field

		isCtrl := cc1 >= 0x10 && cc1 <= 0x1F
		if isCtrl {
			cp := [2]byte{cc1, cc2}
			gap := d.packetCount - d.lastCtrlSeen[field]
			if d.lastWasCtrl[field] && d.lastCtrl[field] == cp && gap <= 2 {
				d.lastWasCtrl[field] = false
				continue
			}
			d.lastCtrl[field] = cp
			d.lastWasCtrl[field] = true
			d.lastCtrlSeen[field] = d.packetCount
		} else {
			d.lastWasCtrl[field] = false
		}

		dec := d.cea608Decs[pair.Channel]
		if dec == nil {
			continue
		}
		text := dec.Decode(cc1, cc2)
		if text == "" {
			continue
		}
		d.setOverlay(pair.Channel, text, pkt.PTS)
		changed = true
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			d.drainDTVCC(pkt.PTS)
			d.dtvccBuf = d.dtvccBuf[:0]
		}
		d.dtvccBuf = append(d.dtvccBuf, t.Data[0], t.Data[1])
	}
	if d.drainDTVCC(pkt.PTS) {
		changed = true
	}

	if changed {
		d.publish()
	}
	return Ok
}

func (d *CCXSPUDecoder) drainDTVCC(pts int64) bool {
	if len(d.dtvccBuf) < 1 {
		return false
	}
	packetSize := ccx.DTVCCPacketSize(d.dtvccBuf[0])
	if len(d.dtvccBuf) < packetSize {
		return false
	}

	changed := false
	for _, block := range ccx.ParseDTVCCPacket(d.dtvccBuf[:packetSize]) {
		svc := d.cea708Svcs[block.ServiceNum]
		if svc == nil {
			continue
		}
		if !svc.ProcessBlock(block.Data) {
			continue
		}
		text := svc.DisplayText()
		if text == "" {
			continue
		}
		d.setOverlay(block.ServiceNum+6, text, pts)
		changed = true
	}
	d.dtvccBuf = d.dtvccBuf[packetSize:]
	return changed
}

func (d *CCXSPUDecoder) setOverlay(channel int, text string, pts int64) {
	vpts := d.sink.SPUVPTS(pts, captionHoldDuration)
	if vpts == 0 {
		return
	}
	d.active[channel] = media.Overlay{VPTS: vpts, Duration: captionHoldDuration, Text: text}
}

func (d *CCXSPUDecoder) publish() {
	overlays := make([]media.Overlay, 0, len(d.active))
	for _, o := range d.active {
		overlays = append(overlays, o)
	}
	d.sink.SetOverlays(overlays)
}

func (d *CCXSPUDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.cea608Decs {
		d.cea608Decs[k] = ccx.NewCEA608Decoder()
	}
	for k := range d.cea708Svcs {
		d.cea708Svcs[k] = ccx.NewCEA708Service()
	}
	d.dtvccBuf = d.dtvccBuf[:0]
	d.active = make(map[int]media.Overlay)
	d.publish()
}

func (d *CCXSPUDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = nil
	d.sink = nil
}
