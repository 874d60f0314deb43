// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// zrleTileSize is the ZRLE tile edge length, RFC 6143-adjacent TightVNC
// extension "ZRLE encoding".
const zrleTileSize = 64

// zrleSubencoding identifies the per-tile body format within a ZRLE stream.
const (
	zrleSubRaw    = 0
	zrleSubSolid  = 1
	zrlePaletteMin = 2
	zrlePaletteMax = 16
)

// ZRLEEncoder sends the ZRLE encoding: 64x64 tiles, each reduced to a
// solid color, a packed-indexed palette, or raw CPIXELs, with the entire
// rectangle's tile stream deflated through one persistent zlib stream and
// length-prefixed at the rectangle level.
type ZRLEEncoder struct{}

// Type returns the ZRLE encoding identifier.
func (*ZRLEEncoder) Type() int32 { return EncodingZRLE }

// EncodeRectangle writes the 4-byte compressed-length prefix followed by
// the deflated tile stream.
func (*ZRLEEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	stride := int(rect.W) * 4

	var body []byte
	for tileY := 0; tileY < int(rect.H); tileY += zrleTileSize {
		tileH := minInt(zrleTileSize, int(rect.H)-tileY)
		for tileX := 0; tileX < int(rect.W); tileX += zrleTileSize {
			tileW := minInt(zrleTileSize, int(rect.W)-tileX)
			tile := extractTile(src, stride, tileX, tileY, tileW, tileH)
			body = encodeZRLETile(body, tile, tileW, tileH, ctx.Translator)
		}
	}

	compressed, err := ctx.State.Compress(EncodingZRLE, StreamZRLE, body)
	if err != nil {
		return encodingError("ZRLEEncoder.EncodeRectangle", "failed to compress tile stream", err)
	}

	out := appendUint32(nil, uint32(len(compressed))) // #nosec G115 - deflate output bounded by tile stream size
	out = append(out, compressed...)
	if _, err := w.Write(out); err != nil {
		return encodingError("ZRLEEncoder.EncodeRectangle", "failed to write ZRLE rectangle", err)
	}
	return nil
}

// Reset is a no-op; ZRLE's persistent state lives in the EncoderState
// deflate stream, reset independently.
func (*ZRLEEncoder) Reset() {}

// encodeZRLETile appends one tile's ZRLE body (subencoding byte followed
// by its payload) to dst.
func encodeZRLETile(dst, tile []byte, tileW, tileH int, t *Translator) []byte {
	palette, indices := tilePalette(tile, tileW*tileH)

	switch {
	case len(palette) == 1:
		dst = append(dst, zrleSubSolid)
		return t.TranslateCPixel(dst, palette[0].r, palette[0].g, palette[0].b)

	case len(palette) >= zrlePaletteMin && len(palette) <= zrlePaletteMax:
		dst = append(dst, byte(len(palette)))
		for _, c := range palette {
			dst = t.TranslateCPixel(dst, c.r, c.g, c.b)
		}
		return appendPackedIndices(dst, indices, tileW, tileH, len(palette))

	default:
		dst = append(dst, zrleSubRaw)
		for i := 0; i < tileW*tileH; i++ {
			off := i * 4
			dst = t.TranslateCPixel(dst, tile[off], tile[off+1], tile[off+2])
		}
		return dst
	}
}

type rgbColor struct{ r, g, b byte }

// tilePalette scans a tile's canonical pixels and returns its distinct
// colors in first-seen order along with each pixel's palette index. If
// more than zrlePaletteMax colors are present, palette is returned empty
// and the tile must fall back to raw.
func tilePalette(tile []byte, pixelCount int) ([]rgbColor, []int) {
	index := make(map[rgbColor]int, zrlePaletteMax+1)
	var palette []rgbColor
	indices := make([]int, pixelCount)

	for i := 0; i < pixelCount; i++ {
		off := i * 4
		c := rgbColor{tile[off], tile[off+1], tile[off+2]}
		idx, ok := index[c]
		if !ok {
			if len(palette) > zrlePaletteMax {
				return nil, nil
			}
			idx = len(palette)
			index[c] = idx
			palette = append(palette, c)
		}
		indices[i] = idx
	}
	if len(palette) > zrlePaletteMax {
		return nil, nil
	}
	return palette, indices
}

// appendPackedIndices packs per-pixel palette indices at 1, 2, or 4 bits
// per pixel depending on palette size, each row byte-aligned (padded to
// the next byte boundary), matching the ZRLE packed-palette format.
func appendPackedIndices(dst []byte, indices []int, tileW, tileH, paletteSize int) []byte {
	bitsPerIndex := 4
	switch {
	case paletteSize <= 2:
		bitsPerIndex = 1
	case paletteSize <= 4:
		bitsPerIndex = 2
	}
	perByte := 8 / bitsPerIndex

	for y := 0; y < tileH; y++ {
		row := indices[y*tileW : y*tileW+tileW]
		for x := 0; x < len(row); x += perByte {
			var b byte
			for i := 0; i < perByte && x+i < len(row); i++ {
				shift := 8 - bitsPerIndex*(i+1)
				b |= byte(row[x+i]) << uint(shift) // #nosec G115 - index fits in bitsPerIndex bits
			}
			dst = append(dst, b)
		}
	}
	return dst
}
