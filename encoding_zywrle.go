// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"io"
	"math"
)

// ZYWRLEEncoder sends the ZYWRLE encoding: a wavelet pre-filter reduces
// high-frequency detail before the result is handed to the ZRLE tile
// machinery, trading a small amount of fidelity for a denser tile stream
// at low quality settings. The pre-filter is lossy; the subsequent ZRLE
// encode of the filtered pre-image is exact.
type ZYWRLEEncoder struct{}

// Type returns the ZYWRLE encoding identifier.
func (*ZYWRLEEncoder) Type() int32 { return EncodingZYWRLE }

// EncodeRectangle applies the wavelet pre-filter to the rectangle's
// canonical pixels, then encodes the filtered pre-image exactly as
// ZRLEEncoder would, through its own persistent compression stream.
func (*ZYWRLEEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	filtered := zywrlePreFilter(src, int(rect.W), int(rect.H), zywrleLevels(ctx.Quality))

	stride := int(rect.W) * 4
	var body []byte
	for tileY := 0; tileY < int(rect.H); tileY += zrleTileSize {
		tileH := minInt(zrleTileSize, int(rect.H)-tileY)
		for tileX := 0; tileX < int(rect.W); tileX += zrleTileSize {
			tileW := minInt(zrleTileSize, int(rect.W)-tileX)
			tile := extractTile(filtered, stride, tileX, tileY, tileW, tileH)
			body = encodeZRLETile(body, tile, tileW, tileH, ctx.Translator)
		}
	}

	compressed, err := ctx.State.Compress(EncodingZYWRLE, StreamZYWRLE, body)
	if err != nil {
		return encodingError("ZYWRLEEncoder.EncodeRectangle", "failed to compress tile stream", err)
	}

	out := appendUint32(nil, uint32(len(compressed))) // #nosec G115 - deflate output bounded by tile stream size
	out = append(out, compressed...)
	if _, err := w.Write(out); err != nil {
		return encodingError("ZYWRLEEncoder.EncodeRectangle", "failed to write ZYWRLE rectangle", err)
	}
	return nil
}

// Reset is a no-op; ZYWRLE's persistent state lives in the EncoderState
// deflate stream, reset independently.
func (*ZYWRLEEncoder) Reset() {}

// zywrleLevels maps a quality-level pseudo-encoding value (0-9, -1 if
// unset) onto a wavelet decomposition depth: higher quality asks for a
// shallower (less lossy) transform.
func zywrleLevels(quality int) int {
	switch {
	case quality < 0:
		return 2
	case quality >= 6: // quality >= 79 on the 0-100 JPEG scale (tightJPEGQuality levels 6-9)
		return 1
	case quality >= 3: // 42-78 on the JPEG scale (levels 3-5)
		return 2
	default:
		return 3
	}
}

// zywrlePreFilter converts a canonical RGBA32 buffer to a reversible YUV
// plane triple, applies a single-pass Haar wavelet decomposition to each
// plane, quantizes the detail coefficients with a step that grows with
// levels, reconstructs via the inverse transform, and converts back to
// RGBA32. The decomposition depth is always one pass whatever levels is;
// the approximation quadrant is not decomposed further. The result
// approximates the input with high-frequency detail attenuated in
// proportion to levels.
func zywrlePreFilter(pixels []byte, w, h, levels int) []byte {
	if levels <= 0 || w < 2 || h < 2 {
		out := make([]byte, len(pixels))
		copy(out, pixels)
		return out
	}

	y := make([]float64, w*h)
	u := make([]float64, w*h)
	v := make([]float64, w*h)
	for i := 0; i < w*h; i++ {
		off := i * 4
		yy, uu, vv := rctForward(pixels[off], pixels[off+1], pixels[off+2])
		y[i], u[i], v[i] = yy, uu, vv
	}

	for _, plane := range [][]float64{y, u, v} {
		haarForward2D(plane, w, h, levels)
		quantizeDetail2D(plane, w, h, levels)
		haarInverse2D(plane, w, h, levels)
	}

	out := make([]byte, len(pixels))
	for i := 0; i < w*h; i++ {
		r, g, b := rctInverse(y[i], u[i], v[i])
		off := i * 4
		out[off], out[off+1], out[off+2] = r, g, b
		out[off+3] = pixels[off+3]
	}
	return out
}

// rctForward applies a reversible color transform: Y is the green channel,
// U and V are the blue and red differences from green. It uses only
// subtraction, so rctInverse undoes it exactly.
func rctForward(r, g, b byte) (y, u, v float64) {
	ri, gi, bi := float64(r), float64(g), float64(b)
	return gi, bi - gi, ri - gi
}

// rctInverse is the exact inverse of rctForward, with output clamped to a
// valid byte range since the wavelet round trip is lossy.
func rctInverse(y, u, v float64) (r, g, b byte) {
	gf := y
	bf := u + gf
	rf := v + gf
	return clampByte(rf), clampByte(gf), clampByte(bf)
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// haarForward2D applies one separable 2D Haar decomposition (rows then
// columns) in place. `levels` does not change the decomposition's depth
// here -- it only scales how aggressively quantizeDetail2D rounds the
// resulting detail coefficients, which is where ZYWRLE's quality knob
// actually acts.
func haarForward2D(plane []float64, w, h, levels int) {
	if levels <= 0 || w < 2 || h < 2 {
		return
	}

	rows := make([]float64, w)
	cols := make([]float64, h)

	for y := 0; y < h; y++ {
		copy(rows, plane[y*w:y*w+w])
		haarForward1D(rows)
		copy(plane[y*w:y*w+w], rows)
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			cols[y] = plane[y*w+x]
		}
		haarForward1D(cols)
		for y := 0; y < h; y++ {
			plane[y*w+x] = cols[y]
		}
	}
}

// haarInverse2D is the exact structural inverse of haarForward2D.
func haarInverse2D(plane []float64, w, h, levels int) {
	if levels <= 0 || w < 2 || h < 2 {
		return
	}

	rows := make([]float64, w)
	cols := make([]float64, h)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			cols[y] = plane[y*w+x]
		}
		haarInverse1D(cols)
		for y := 0; y < h; y++ {
			plane[y*w+x] = cols[y]
		}
	}
	for y := 0; y < h; y++ {
		copy(rows, plane[y*w:y*w+w])
		haarInverse1D(rows)
		copy(plane[y*w:y*w+w], rows)
	}
}

// haarForward1D performs one lifting-scheme Haar decomposition step,
// replacing a sequence with [averages..., differences...]. In an
// odd-length sequence the last element has no pair and stays in place.
func haarForward1D(data []float64) {
	n := len(data)
	if n < 2 {
		return
	}
	half := n / 2
	tmp := make([]float64, n)
	for i := 0; i < half; i++ {
		a, b := data[2*i], data[2*i+1]
		tmp[i] = (a + b) / 2
		tmp[half+i] = (a - b) / 2
	}
	if n%2 == 1 {
		tmp[n-1] = data[n-1]
	}
	copy(data, tmp)
}

// haarInverse1D is the exact inverse of haarForward1D.
func haarInverse1D(data []float64) {
	n := len(data)
	if n < 2 {
		return
	}
	half := n / 2
	tmp := make([]float64, n)
	for i := 0; i < half; i++ {
		s, d := data[i], data[half+i]
		tmp[2*i] = s + d
		tmp[2*i+1] = s - d
	}
	if n%2 == 1 {
		tmp[n-1] = data[n-1]
	}
	copy(data, tmp)
}

// quantizeDetail2D applies the ZYWRLE non-linear quantizer (quantize x^2,
// dequantize sqrt(x)) to the three detail subbands produced by
// haarForward2D (horizontal, vertical, diagonal), leaving the low-pass
// (approximation) quadrant untouched. The quantization step grows with
// levels, so a deeper requested decomposition attenuates detail harder
// even though haarForward2D itself only ever runs one pass.
func quantizeDetail2D(plane []float64, w, h, levels int) {
	if levels <= 0 || w < 2 || h < 2 {
		return
	}
	step := 6.0 * float64(levels)
	halfW, halfH := w/2, h/2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < halfW && y < halfH {
				continue // low-pass quadrant, carried through untouched
			}
			idx := y*w + x
			plane[idx] = dequantize(quantize(plane[idx], step), step)
		}
	}
}

func quantize(x, step float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	mag := math.Abs(x) / step
	return sign * math.Round(mag*mag)
}

func dequantize(q, step float64) float64 {
	sign := 1.0
	if q < 0 {
		sign = -1.0
	}
	return sign * math.Sqrt(math.Abs(q)) * step
}
