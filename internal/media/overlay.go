package media

// Overlay is a time-bounded pixel+alpha region (subtitle/OSD) produced by
// the subpicture worker, to be blended onto any video frame whose VPTS
// falls within [VPTS, VPTS+Duration).
type Overlay struct {
	VPTS     int64
	Duration int64

	// RLEData is an alpha run-length-encoded region in YV12 or YUY2
	// colorspace, as produced by a DVD SPU decoder. Nil for text-only
	// overlays (closed captions), which carry Text instead.
	RLEData []byte
	X, Y    int
	Width   int
	Height  int

	// Text is set for text-based subtitle/caption sources (CEA-608/708,
	// teletext) instead of a pre-rendered RLE bitmap; the OSD renderer
	// (an external collaborator) is responsible for rasterizing it.
	Text string
}

// Overlaps reports whether vpts falls within this overlay's display
// interval.
func (o Overlay) Overlaps(vpts int64) bool {
	return vpts >= o.VPTS && vpts < o.VPTS+o.Duration
}
