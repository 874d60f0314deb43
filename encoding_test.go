// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

// newTestContext builds an EncodeContext targeting the canonical pixel
// format (identity translation), with fresh compression state.
func newTestContext(t *testing.T) *EncodeContext {
	t.Helper()
	translator, err := NewTranslator(CanonicalPixelFormat)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	return &EncodeContext{
		Translator:  translator,
		State:       NewEncoderState(6),
		Quality:     -1,
		Compression: -1,
	}
}

// fillSolid writes a single RGB color across every pixel of a width x
// height canonical RGBA32 framebuffer region via fb.Write.
func fillSolid(fb *Framebuffer, r, g, b byte) {
	w, h := fb.Width(), fb.Height()
	data := make([]byte, int(w)*int(h)*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = r, g, b, 0xFF
	}
	_ = fb.Write(data)
}

// fillCheckerboard alternates two colors in a 1-pixel checkerboard, enough
// variety to defeat a solid-color fast path.
func fillCheckerboard(fb *Framebuffer, r1, g1, b1, r2, g2, b2 byte) {
	w, h := fb.Width(), fb.Height()
	data := make([]byte, int(w)*int(h)*4)
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			off := (y*int(w) + x) * 4
			if (x+y)%2 == 0 {
				data[off], data[off+1], data[off+2], data[off+3] = r1, g1, b1, 0xFF
			} else {
				data[off], data[off+1], data[off+2], data[off+3] = r2, g2, b2, 0xFF
			}
		}
	}
	_ = fb.Write(data)
}

func TestRawEncoder_RoundTrip(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fillSolid(fb, 10, 20, 30)

	ctx := newTestContext(t)
	var buf bytes.Buffer
	enc := &RawEncoder{}
	rect := Rect{W: 4, H: 4}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}

	want := 4 * 4 * 4
	if buf.Len() != want {
		t.Fatalf("raw body length = %d, want %d", buf.Len(), want)
	}

	body := buf.Bytes()
	for i := 0; i+3 < len(body); i += 4 {
		if body[i] != 10 || body[i+1] != 20 || body[i+2] != 30 {
			t.Fatalf("pixel %d = %v, want (10,20,30,_)", i/4, body[i:i+4])
		}
	}
}

func TestRawEncoder_Type(t *testing.T) {
	if (&RawEncoder{}).Type() != EncodingRaw {
		t.Fatalf("RawEncoder.Type() = %d, want %d", (&RawEncoder{}).Type(), EncodingRaw)
	}
}

func TestEncodeCopyRect(t *testing.T) {
	entry := CopyRectEntry{Src: Rect{X: 5, Y: 5, W: 10, H: 10}, DX: 3, DY: -2}

	var buf bytes.Buffer
	if err := EncodeCopyRect(&buf, entry); err != nil {
		t.Fatalf("EncodeCopyRect: %v", err)
	}

	// 12-byte rect header (x, y, w, h, encoding) + 4-byte source coords.
	if buf.Len() != 16 {
		t.Fatalf("copyrect message length = %d, want 16", buf.Len())
	}

	body := buf.Bytes()
	dest := entry.Dest()
	gotX := uint16(body[0])<<8 | uint16(body[1])
	gotY := uint16(body[2])<<8 | uint16(body[3])
	if gotX != dest.X || gotY != dest.Y {
		t.Fatalf("dest coords = (%d,%d), want (%d,%d)", gotX, gotY, dest.X, dest.Y)
	}

	srcX := uint16(body[12])<<8 | uint16(body[13])
	srcY := uint16(body[14])<<8 | uint16(body[15])
	if srcX != entry.Src.X || srcY != entry.Src.Y {
		t.Fatalf("source coords = (%d,%d), want (%d,%d)", srcX, srcY, entry.Src.X, entry.Src.Y)
	}
}

func TestRREEncoder_SolidBackground(t *testing.T) {
	fb := NewFramebuffer(8, 8)
	fillSolid(fb, 1, 2, 3)

	ctx := newTestContext(t)
	var buf bytes.Buffer
	enc := &RREEncoder{}
	rect := Rect{W: 8, H: 8}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}

	body := buf.Bytes()
	numSubrects := uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3])
	if numSubrects != 0 {
		t.Fatalf("numSubrects = %d, want 0 for a solid rectangle", numSubrects)
	}
	if body[4] != 1 || body[5] != 2 || body[6] != 3 {
		t.Fatalf("background color = %v, want (1,2,3,_)", body[4:8])
	}
}

func TestCoRREEncoder_RejectsOversizedRect(t *testing.T) {
	fb := NewFramebuffer(300, 10)
	fillSolid(fb, 0, 0, 0)

	ctx := newTestContext(t)
	enc := &CoRREEncoder{}
	rect := Rect{W: 300, H: 10}

	if err := enc.EncodeRectangle(&bytes.Buffer{}, fb, rect, ctx); err == nil {
		t.Fatal("expected error for rectangle wider than 255 pixels")
	} else if !IsVNCError(err, ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
}

func TestHextileEncoder_SolidTile(t *testing.T) {
	fb := NewFramebuffer(16, 16)
	fillSolid(fb, 7, 8, 9)

	ctx := newTestContext(t)
	enc := &HextileEncoder{}
	var buf bytes.Buffer
	rect := Rect{W: 16, H: 16}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}

	body := buf.Bytes()
	if len(body) == 0 {
		t.Fatal("expected non-empty hextile body")
	}
	if body[0]&HextileAnySubrects != 0 {
		t.Fatalf("subencoding %#x should not report subrects for a solid tile", body[0])
	}
}

func TestHextileEncoder_ResetClearsBackgroundMemory(t *testing.T) {
	enc := &HextileEncoder{haveLast: true, lastR: 1, lastG: 2, lastB: 3}
	enc.Reset()
	if enc.haveLast {
		t.Fatal("Reset should clear haveLast")
	}
}

func TestZlibEncoder_DecompressesBackToOriginal(t *testing.T) {
	fb := NewFramebuffer(8, 8)
	fillCheckerboard(fb, 1, 2, 3, 200, 201, 202)

	ctx := newTestContext(t)
	enc := &ZlibEncoder{}
	var buf bytes.Buffer
	rect := Rect{W: 8, H: 8}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}
	if buf.Len() < 4 {
		t.Fatalf("zlib body too short: %d bytes", buf.Len())
	}

	zr, err := zlib.NewReader(bytes.NewReader(buf.Bytes()[4:]))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	want := ctx.Translator.TranslateRect(nil, fb.ReadRect(rect))
	got := make([]byte, len(want))
	if _, err := io.ReadFull(zr, got); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("decompressed pixels differ from the translated original")
	}
}

func TestZRLEEncoder_ProducesNonEmptyBody(t *testing.T) {
	fb := NewFramebuffer(64, 64)
	fillCheckerboard(fb, 50, 60, 70, 80, 90, 100)

	ctx := newTestContext(t)
	enc := &ZRLEEncoder{}
	var buf bytes.Buffer
	rect := Rect{W: 64, H: 64}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty ZRLE body")
	}
}

func TestEncoderInterfaceSatisfied(t *testing.T) {
	var encoders = []RectEncoder{
		&RawEncoder{},
		&RREEncoder{},
		&CoRREEncoder{},
		&HextileEncoder{},
		&ZlibEncoder{},
		&ZlibHexEncoder{},
		&ZRLEEncoder{},
		&ZYWRLEEncoder{},
		&TightEncoder{},
		&TightPngEncoder{},
	}

	wantTypes := map[int32]bool{
		EncodingRaw: true, EncodingRRE: true, EncodingCoRRE: true,
		EncodingHextile: true, EncodingZlib: true, EncodingZlibHex: true,
		EncodingZRLE: true, EncodingZYWRLE: true, EncodingTight: true,
		EncodingTightPng: true,
	}

	for _, enc := range encoders {
		if !wantTypes[enc.Type()] {
			t.Errorf("unexpected encoding type %d for %T", enc.Type(), enc)
		}
		enc.Reset()
	}
}

func TestEncoding_PixelFormatCompatibility(t *testing.T) {
	fb := NewFramebuffer(4, 4)
	fillSolid(fb, 100, 150, 200)

	translator, err := NewTranslator(PixelFormat16BitRGB565)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	ctx := &EncodeContext{Translator: translator, State: NewEncoderState(6), Quality: -1, Compression: -1}

	var buf bytes.Buffer
	enc := &RawEncoder{}
	rect := Rect{W: 4, H: 4}

	if err := enc.EncodeRectangle(&buf, fb, rect, ctx); err != nil {
		t.Fatalf("EncodeRectangle: %v", err)
	}

	want := 4 * 4 * 2 // 16-bit format packs 2 bytes per pixel.
	if buf.Len() != want {
		t.Fatalf("raw body length = %d, want %d", buf.Len(), want)
	}
}

func TestWriteRectHeader(t *testing.T) {
	var buf bytes.Buffer
	rect := Rect{X: 1, Y: 2, W: 3, H: 4}
	if err := writeRectHeader(&buf, rect, EncodingRaw); err != nil {
		t.Fatalf("writeRectHeader: %v", err)
	}
	if buf.Len() != 12 {
		t.Fatalf("header length = %d, want 12", buf.Len())
	}
}
