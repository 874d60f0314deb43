// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// Hextile subencoding bitmask values and tile geometry, RFC 6143 Section 7.7.4.
const (
	HextileRaw                 = 1
	HextileBackgroundSpecified = 2
	HextileForegroundSpecified = 4
	HextileAnySubrects         = 8
	HextileSubrectsColoured    = 16

	HextileTileSize    = 16
	MaxSubrectsPerTile = 255
)

// HextileEncoder sends the Hextile encoding: the rectangle is tiled into
// 16x16 blocks (partial at the right/bottom edges), each independently
// choosing raw, solid-background, or colored-subrectangle representation.
type HextileEncoder struct {
	haveLast   bool
	lastR      byte
	lastG      byte
	lastB      byte
}

// Type returns the Hextile encoding identifier.
func (*HextileEncoder) Type() int32 { return EncodingHextile }

// EncodeRectangle writes one subencoding byte plus body per tile, in
// raster order, left-to-right then top-to-bottom.
func (he *HextileEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	stride := int(rect.W) * 4

	var out []byte
	for tileY := 0; tileY < int(rect.H); tileY += HextileTileSize {
		tileH := minInt(HextileTileSize, int(rect.H)-tileY)
		for tileX := 0; tileX < int(rect.W); tileX += HextileTileSize {
			tileW := minInt(HextileTileSize, int(rect.W)-tileX)
			tile := extractTile(src, stride, tileX, tileY, tileW, tileH)
			out = he.encodeTile(out, tile, tileW, tileH, ctx)
		}
	}

	if _, err := w.Write(out); err != nil {
		return encodingError("HextileEncoder.EncodeRectangle", "failed to write hextile body", err)
	}
	return nil
}

// Reset clears the last-emitted background/foreground memory, forcing the
// next tile to re-specify its colors explicitly.
func (he *HextileEncoder) Reset() {
	he.haveLast = false
}

// extractTile copies a tileW x tileH block of canonical RGBA32 pixels
// starting at (x, y) within a stride-wide buffer.
func extractTile(pixels []byte, stride, x, y, tileW, tileH int) []byte {
	out := make([]byte, tileW*tileH*4)
	for row := 0; row < tileH; row++ {
		srcOff := (y+row)*stride + x*4
		dstOff := row * tileW * 4
		copy(out[dstOff:dstOff+tileW*4], pixels[srcOff:srcOff+tileW*4])
	}
	return out
}

func (he *HextileEncoder) encodeTile(dst, tile []byte, tileW, tileH int, ctx *EncodeContext) []byte {
	bgR, bgG, bgB := dominantColor(tile, tileW, tileH)
	subrects := buildSubrects(tile, tileW, tileH, bgR, bgG, bgB)

	if len(subrects) > MaxSubrectsPerTile {
		return he.encodeRawTile(dst, tile, ctx)
	}

	var subencoding byte
	backgroundChanged := !he.haveLast || bgR != he.lastR || bgG != he.lastG || bgB != he.lastB
	if backgroundChanged {
		subencoding |= HextileBackgroundSpecified
	}
	if len(subrects) > 0 {
		subencoding |= HextileAnySubrects | HextileSubrectsColoured
	}

	dst = append(dst, subencoding)
	if backgroundChanged {
		dst = ctx.Translator.TranslatePixel(dst, bgR, bgG, bgB)
		he.haveLast, he.lastR, he.lastG, he.lastB = true, bgR, bgG, bgB
	}
	if len(subrects) > 0 {
		dst = append(dst, byte(len(subrects)))
		for _, s := range subrects {
			dst = ctx.Translator.TranslatePixel(dst, s.r, s.g, s.b)
			xy := byte(s.x<<4) | byte(s.y&0x0F)
			wh := byte((s.w-1)<<4) | byte((s.h-1)&0x0F)
			dst = append(dst, xy, wh)
		}
	}
	return dst
}

func (he *HextileEncoder) encodeRawTile(dst, tile []byte, ctx *EncodeContext) []byte {
	dst = append(dst, HextileRaw)
	dst = ctx.Translator.TranslateRect(dst, tile)
	he.haveLast = false
	return dst
}
