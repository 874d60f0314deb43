// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// ZlibHexEncoder sends the ZlibHex encoding: a Hextile tile stream whose
// per-tile subencoding and geometry bytes travel uncompressed, but whose
// pixel payloads (raw tile pixels, and background/foreground/subrect
// colors) are deflated through two persistent streams, each length-prefixed
// independently.
type ZlibHexEncoder struct {
	haveLast bool
	lastR    byte
	lastG    byte
	lastB    byte
}

// Type returns the ZlibHex encoding identifier.
func (*ZlibHexEncoder) Type() int32 { return EncodingZlibHex }

// EncodeRectangle writes one subencoding byte and associated body per
// tile, in raster order.
func (z *ZlibHexEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	stride := int(rect.W) * 4

	var out []byte
	for tileY := 0; tileY < int(rect.H); tileY += HextileTileSize {
		tileH := minInt(HextileTileSize, int(rect.H)-tileY)
		for tileX := 0; tileX < int(rect.W); tileX += HextileTileSize {
			tileW := minInt(HextileTileSize, int(rect.W)-tileX)
			tile := extractTile(src, stride, tileX, tileY, tileW, tileH)
			next, err := z.encodeTile(out, tile, tileW, tileH, ctx)
			if err != nil {
				return err
			}
			out = next
		}
	}

	if _, err := w.Write(out); err != nil {
		return encodingError("ZlibHexEncoder.EncodeRectangle", "failed to write ZlibHex body", err)
	}
	return nil
}

// Reset clears the last-emitted background memory, forcing the next tile
// to re-specify it explicitly.
func (z *ZlibHexEncoder) Reset() {
	z.haveLast = false
}

func (z *ZlibHexEncoder) encodeTile(dst, tile []byte, tileW, tileH int, ctx *EncodeContext) ([]byte, error) {
	bgR, bgG, bgB := dominantColor(tile, tileW, tileH)
	subrects := buildSubrects(tile, tileW, tileH, bgR, bgG, bgB)

	if len(subrects) > MaxSubrectsPerTile {
		dst = append(dst, HextileRaw)
		payload := ctx.Translator.TranslateRect(nil, tile)
		compressed, err := ctx.State.Compress(EncodingZlibHex, StreamZlibHexRaw, payload)
		if err != nil {
			return nil, encodingError("ZlibHexEncoder.encodeTile", "failed to compress raw tile", err)
		}
		dst = appendUint32(dst, uint32(len(compressed))) // #nosec G115 - deflate output bounded by tile size
		dst = append(dst, compressed...)
		z.haveLast = false
		return dst, nil
	}

	var subencoding byte
	backgroundChanged := !z.haveLast || bgR != z.lastR || bgG != z.lastG || bgB != z.lastB
	if backgroundChanged {
		subencoding |= HextileBackgroundSpecified
	}
	if len(subrects) > 0 {
		subencoding |= HextileAnySubrects | HextileSubrectsColoured
	}
	dst = append(dst, subencoding)

	var colorPayload []byte
	if backgroundChanged {
		colorPayload = ctx.Translator.TranslatePixel(colorPayload, bgR, bgG, bgB)
		z.haveLast, z.lastR, z.lastG, z.lastB = true, bgR, bgG, bgB
	}
	for _, s := range subrects {
		colorPayload = ctx.Translator.TranslatePixel(colorPayload, s.r, s.g, s.b)
	}
	if len(colorPayload) > 0 {
		compressed, err := ctx.State.Compress(EncodingZlibHex, StreamZlibHexSub, colorPayload)
		if err != nil {
			return nil, encodingError("ZlibHexEncoder.encodeTile", "failed to compress tile colors", err)
		}
		dst = appendUint32(dst, uint32(len(compressed))) // #nosec G115 - deflate output bounded by tile size
		dst = append(dst, compressed...)
	}

	if len(subrects) > 0 {
		dst = append(dst, byte(len(subrects)))
		for _, s := range subrects {
			xy := byte(s.x<<4) | byte(s.y&0x0F)
			wh := byte((s.w-1)<<4) | byte((s.h-1)&0x0F)
			dst = append(dst, xy, wh)
		}
	}
	return dst, nil
}
