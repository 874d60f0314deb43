// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
)

// Tight compression-control byte values this package emits. Real TightVNC
// servers additionally pack per-stream reset flags into the basic
// compression control byte's high nibble; this package never resets a
// Tight stream mid-session (PixelFormat change already resets every
// stream), so the basic control byte is always 0x00.
const (
	tightFillCtrl    byte = 0x80
	tightMonoCtrl    byte = 0x50
	tightIndexedCtrl byte = 0x60
	tightBasicCtrl   byte = 0x00
	tightJPEGCtrl    byte = 0x90
)

// tightJPEGQuality maps a TightVNC quality-level pseudo-encoding (0-9) to
// the corresponding libjpeg quality percentage. Levels 2 and 3 map to
// visually near-identical percentages (41 and 42): this matches the table
// TightVNC itself has shipped for years and is preserved verbatim rather
// than smoothed out.
var tightJPEGQuality = [10]int{15, 29, 41, 42, 62, 77, 79, 86, 92, 100}

// tightPaletteLimit bounds the palette sub-encodings at 16 distinct colors:
// 1 color is solid fill, 2 is mono, 3-16 is indexed; a rectangle with more
// colors goes to JPEG or basic.
const tightPaletteLimit = 16

// TightEncoder sends the Tight encoding: a per-rectangle choice between a
// solid fill, a 1-bit-per-pixel Mono bitmap, an Indexed palette, a
// persistent-zlib full-color stream, or JPEG, whichever best matches the
// rectangle's color distribution.
type TightEncoder struct{}

// Type returns the Tight encoding identifier.
func (*TightEncoder) Type() int32 { return EncodingTight }

// Reset is a no-op; Tight's persistent state lives in EncodeContext.State,
// shared with every other compressing encoder.
func (*TightEncoder) Reset() {}

// EncodeRectangle chooses the cheapest representation that fits the
// rectangle's pixel content and writes the compression-control byte
// followed by its sub-encoding body.
func (*TightEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	palette, ok := detectTightPalette(src, int(rect.W)*int(rect.H))

	switch {
	case ok && palette.Count() == 1:
		return writeTightSolid(w, palette.Palette()[0], ctx)
	case ok && palette.Count() == 2:
		return writeTightMono(w, src, rect, palette, ctx)
	case ok:
		return writeTightIndexed(w, src, rect, palette, ctx)
	case tightUsesJPEG(ctx.Quality):
		if err := writeTightJPEG(w, src, rect, ctx); err == nil {
			return nil
		}
		return writeTightBasic(w, src, ctx)
	default:
		return writeTightBasic(w, src, ctx)
	}
}

// defaultTightQuality is the JPEG quality level (0-9) a session uses when
// the client has never sent a quality-level pseudo-encoding, §4.1/§6.
const defaultTightQuality = 5

// resolveTightQuality maps a session's raw quality field (-1 meaning
// "client never sent one") to the effective 0-9 level.
func resolveTightQuality(quality int) int {
	if quality < 0 || quality > 9 {
		return defaultTightQuality
	}
	return quality
}

// tightUsesJPEG reports whether the negotiated quality level falls in the
// lossy JPEG regime: quality 1-9 uses JPEG, quality 0 falls back to the
// full-color zlib sub-encoding, §4.5.9.
func tightUsesJPEG(quality int) bool {
	q := resolveTightQuality(quality)
	return q >= 1 && q <= 9
}

// detectTightPalette scans canonical pixels for up to tightPaletteLimit
// distinct colors, returning ok=false once the rectangle proves too varied
// for a palette-based sub-encoding.
func detectTightPalette(pixels []byte, pixelCount int) (*PaletteDetector, bool) {
	converter := NewColorFormatConverter()
	pd := NewPaletteDetector(tightPaletteLimit)
	for i := 0; i < pixelCount; i++ {
		off := i * 4
		c := converter.RGB8ToColor(pixels[off], pixels[off+1], pixels[off+2])
		if !pd.Add(c) {
			return pd, false
		}
	}
	return pd, true
}

func writeTightSolid(w io.Writer, c Color, ctx *EncodeContext) error {
	converter := NewColorFormatConverter()
	r, g, b := converter.ColorToRGB8(c)
	body := []byte{tightFillCtrl}
	body = ctx.Translator.TranslateCPixel(body, r, g, b)
	if _, err := w.Write(body); err != nil {
		return encodingError("TightEncoder.writeTightSolid", "failed to write solid fill", err)
	}
	return nil
}

func writeTightMono(w io.Writer, pixels []byte, rect Rect, pd *PaletteDetector, ctx *EncodeContext) error {
	converter := NewColorFormatConverter()
	palette := pd.Palette()
	r0, g0, b0 := converter.ColorToRGB8(palette[0])
	r1, g1, b1 := converter.ColorToRGB8(palette[1])

	rowBytes := (int(rect.W) + 7) / 8
	bitmap := make([]byte, rowBytes*int(rect.H))
	for y := 0; y < int(rect.H); y++ {
		for x := 0; x < int(rect.W); x++ {
			off := (y*int(rect.W) + x) * 4
			c := converter.RGB8ToColor(pixels[off], pixels[off+1], pixels[off+2])
			if pd.IndexOf(c) == 1 {
				bitmap[y*rowBytes+x/8] |= 0x80 >> uint(x%8) // #nosec G115 - x%8 bounded to 0-7
			}
		}
	}

	compressed, err := ctx.State.Compress(EncodingTight, StreamTightMono, bitmap)
	if err != nil {
		return err
	}

	body := []byte{tightMonoCtrl}
	body = ctx.Translator.TranslateCPixel(body, r0, g0, b0)
	body = ctx.Translator.TranslateCPixel(body, r1, g1, b1)
	body = appendCompactLength(body, len(compressed))
	body = append(body, compressed...)

	if _, err := w.Write(body); err != nil {
		return encodingError("TightEncoder.writeTightMono", "failed to write mono rectangle", err)
	}
	return nil
}

func writeTightIndexed(w io.Writer, pixels []byte, rect Rect, pd *PaletteDetector, ctx *EncodeContext) error {
	converter := NewColorFormatConverter()
	palette := pd.Palette()

	indices := make([]byte, int(rect.W)*int(rect.H))
	for i := 0; i < len(indices); i++ {
		off := i * 4
		c := converter.RGB8ToColor(pixels[off], pixels[off+1], pixels[off+2])
		indices[i] = byte(pd.IndexOf(c)) // #nosec G115 - bounded by tightPaletteLimit
	}

	compressed, err := ctx.State.Compress(EncodingTight, StreamTightIndexed, indices)
	if err != nil {
		return err
	}

	body := []byte{tightIndexedCtrl, byte(len(palette) - 1)} // #nosec G115 - bounded by tightPaletteLimit
	for _, c := range palette {
		r, g, b := converter.ColorToRGB8(c)
		body = ctx.Translator.TranslateCPixel(body, r, g, b)
	}
	body = appendCompactLength(body, len(compressed))
	body = append(body, compressed...)

	if _, err := w.Write(body); err != nil {
		return encodingError("TightEncoder.writeTightIndexed", "failed to write indexed rectangle", err)
	}
	return nil
}

func writeTightBasic(w io.Writer, pixels []byte, ctx *EncodeContext) error {
	payload := ctx.Translator.TranslateRect(nil, pixels)
	compressed, err := ctx.State.Compress(EncodingTight, StreamTightFullColor, payload)
	if err != nil {
		return err
	}

	body := []byte{tightBasicCtrl}
	body = appendCompactLength(body, len(compressed))
	body = append(body, compressed...)

	if _, err := w.Write(body); err != nil {
		return encodingError("TightEncoder.writeTightBasic", "failed to write basic compression rectangle", err)
	}
	return nil
}

// writeTightJPEG encodes the rectangle as a JPEG image, quality chosen from
// the client's last SetEncodings quality-level pseudo-encoding.
func writeTightJPEG(w io.Writer, pixels []byte, rect Rect, ctx *EncodeContext) error {
	img := canonicalToNRGBA(pixels, int(rect.W), int(rect.H))

	quality := tightJPEGQuality[resolveTightQuality(ctx.Quality)]

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return encodingError("TightEncoder.writeTightJPEG", "jpeg encode failed", err)
	}

	body := []byte{tightJPEGCtrl}
	body = appendCompactLength(body, buf.Len())
	body = append(body, buf.Bytes()...)

	if _, err := w.Write(body); err != nil {
		return encodingError("TightEncoder.writeTightJPEG", "failed to write jpeg rectangle", err)
	}
	return nil
}

// canonicalToNRGBA converts a canonical RGBA32 pixel buffer (R, G, B, X)
// into an image.NRGBA image/jpeg and image/png can consume directly.
func canonicalToNRGBA(pixels []byte, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		src := pixels[i*4 : i*4+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0xFF
	}
	return img
}
