package videoout

import "github.com/zsiec/xine-engine/internal/media"

// AspectMode is the user's requested display aspect ratio policy,
// spec.md §4.8b.
type AspectMode int

const (
	AspectModeAuto AspectMode = iota
	AspectModeSquare
	AspectMode4x3
	AspectMode16x9
	AspectMode2x1
)

// aspectRatio resolves an AspectMode (falling back to the stream's own
// AspectCode when mode is Auto) to a width/height ratio. Auto's MPEG-code
// mapping is: {Anamorphic, PanScan} -> 16:9, {DVB} -> 2.11:1,
// {Square, DontTouch} -> source pixel ratio, {4x3} -> 4:3. Grounded on
// vo_scale.c's vo_scale_compute_ideal_size aspect table.
func aspectRatio(mode AspectMode, streamAspect media.AspectCode, sourceW, sourceH int) float64 {
	switch mode {
	case AspectModeSquare:
		return float64(sourceW) / float64(sourceH)
	case AspectMode4x3:
		return 4.0 / 3.0
	case AspectMode16x9:
		return 16.0 / 9.0
	case AspectMode2x1:
		return 2.0
	}

	switch streamAspect {
	case media.AspectAnamorphic, media.AspectPanScan:
		return 16.0 / 9.0
	case media.AspectDVB:
		return 2.11
	case media.Aspect4x3:
		return 4.0 / 3.0
	case media.AspectSquare, media.AspectDontTouch:
		return float64(sourceW) / float64(sourceH)
	default:
		return float64(sourceW) / float64(sourceH)
	}
}

// ScaleInput is the geometry and user settings the scaler needs to
// compute an output rectangle, per spec.md §4.8b.
type ScaleInput struct {
	DeliveredW, DeliveredH int
	DeliveredAspect        media.AspectCode
	UserAspectMode         AspectMode
	ZoomX, ZoomY           float64 // 1.0 = no zoom
	GUIW, GUIH             int
	GUIPixelAspect         float64 // 1.0 for square GUI pixels
}

// ScaleOutput is the computed geometry: where the (possibly letterboxed
// or pillarboxed) output rectangle sits inside the GUI area, and which
// sub-rectangle of the source frame is displayed inside it.
type ScaleOutput struct {
	OutputW, OutputH       int
	OutputXOff, OutputYOff int

	DisplayedW, DisplayedH       int
	DisplayedXOff, DisplayedYOff int
}

// Compute implements spec.md §4.8b's scaling contract: the displayed
// sub-rectangle of the source is centered; the output rectangle is
// letter/pillar-boxed to fit inside the GUI area at the resolved aspect
// ratio; zoom factors >= 1 enlarge the output up to the GUI bounds,
// beyond which they crop the displayed rectangle instead. Grounded on
// vo_scale.c's vo_scale_compute_ideal_size / vo_scale_compute_output_size.
func Compute(in ScaleInput) ScaleOutput {
	if in.DeliveredW <= 0 || in.DeliveredH <= 0 || in.GUIW <= 0 || in.GUIH <= 0 {
		return ScaleOutput{}
	}
	pixelAspect := in.GUIPixelAspect
	if pixelAspect <= 0 {
		pixelAspect = 1.0
	}
	zoomX, zoomY := in.ZoomX, in.ZoomY
	if zoomX <= 0 {
		zoomX = 1.0
	}
	if zoomY <= 0 {
		zoomY = 1.0
	}

	ratio := aspectRatio(in.UserAspectMode, in.DeliveredAspect, in.DeliveredW, in.DeliveredH)

	// Ideal size: the largest rectangle of aspect `ratio` (corrected for
	// the GUI's pixel aspect) that fits inside the GUI area.
	idealW := float64(in.GUIH) * ratio / pixelAspect
	idealH := float64(in.GUIH)
	if idealW > float64(in.GUIW) {
		idealW = float64(in.GUIW)
		idealH = float64(in.GUIW) * pixelAspect / ratio
	}

	out := ScaleOutput{
		DisplayedW: in.DeliveredW,
		DisplayedH: in.DeliveredH,
	}

	// Zoom beyond what the GUI can hold crops the displayed source
	// rectangle instead of enlarging the output past the GUI bounds.
	zoomedW := idealW * zoomX
	zoomedH := idealH * zoomY

	if zoomedW > float64(in.GUIW) {
		cropFrac := float64(in.GUIW) / zoomedW
		out.DisplayedW = int(float64(in.DeliveredW) * cropFrac)
		zoomedW = float64(in.GUIW)
	}
	if zoomedH > float64(in.GUIH) {
		cropFrac := float64(in.GUIH) / zoomedH
		out.DisplayedH = int(float64(in.DeliveredH) * cropFrac)
		zoomedH = float64(in.GUIH)
	}

	out.OutputW = int(zoomedW)
	out.OutputH = int(zoomedH)
	out.OutputXOff = (in.GUIW - out.OutputW) / 2
	out.OutputYOff = (in.GUIH - out.OutputH) / 2

	out.DisplayedXOff = (in.DeliveredW - out.DisplayedW) / 2
	out.DisplayedYOff = (in.DeliveredH - out.DisplayedH) / 2

	return out
}
