// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"image/png"
	"io"
)

// tightPNGCtrl is the TightPng extension's compression-control byte for a
// PNG payload, distinct from standard Tight's JPEG control byte (0x90)
// since TightPng never sends JPEG.
const tightPNGCtrl byte = 0x0A

// TightPngEncoder sends the TightPng pseudo-encoding (-260): identical to
// Tight's solid/mono/indexed dispatch, but a rectangle too varied for a
// palette is always sent losslessly as PNG rather than JPEG.
type TightPngEncoder struct{}

// Type returns the TightPng pseudo-encoding identifier.
func (*TightPngEncoder) Type() int32 { return EncodingTightPng }

// Reset is a no-op; TightPng shares Tight's persistent compression state.
func (*TightPngEncoder) Reset() {}

// EncodeRectangle mirrors TightEncoder.EncodeRectangle, substituting a PNG
// payload for Tight's JPEG case.
func (*TightPngEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	palette, ok := detectTightPalette(src, int(rect.W)*int(rect.H))

	switch {
	case ok && palette.Count() == 1:
		return writeTightSolid(w, palette.Palette()[0], ctx)
	case ok && palette.Count() == 2:
		return writeTightMono(w, src, rect, palette, ctx)
	case ok:
		return writeTightIndexed(w, src, rect, palette, ctx)
	default:
		return writeTightPNG(w, src, rect)
	}
}

func writeTightPNG(w io.Writer, pixels []byte, rect Rect) error {
	img := canonicalToNRGBA(pixels, int(rect.W), int(rect.H))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return encodingError("TightPngEncoder.writeTightPNG", "png encode failed", err)
	}

	body := []byte{tightPNGCtrl}
	body = appendCompactLength(body, buf.Len())
	body = append(body, buf.Bytes()...)

	if _, err := w.Write(body); err != nil {
		return encodingError("TightPngEncoder.writeTightPNG", "failed to write png rectangle", err)
	}
	return nil
}
