// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"testing"
)

func TestPaletteDetector_AddWithinLimit(t *testing.T) {
	pd := NewPaletteDetector(4)

	colors := []Color{ColorRed, ColorGreen, ColorBlue, ColorRed, ColorBlack}
	for _, c := range colors {
		if !pd.Add(c) {
			t.Fatalf("Add(%+v) returned false under limit", c)
		}
	}

	if pd.Count() != 4 {
		t.Errorf("Count() = %d, want 4", pd.Count())
	}
}

func TestPaletteDetector_AbortsPastLimit(t *testing.T) {
	pd := NewPaletteDetector(2)

	if !pd.Add(ColorRed) {
		t.Fatal("first Add returned false")
	}
	if !pd.Add(ColorGreen) {
		t.Fatal("second Add returned false")
	}
	if pd.Add(ColorBlue) {
		t.Fatal("third distinct Add should have returned false past the limit")
	}

	if pd.Count() != 2 {
		t.Errorf("Count() = %d, want 2 after abort", pd.Count())
	}
}

func TestPaletteDetector_RepeatedColorNeverCountsTwice(t *testing.T) {
	pd := NewPaletteDetector(1)

	if !pd.Add(ColorBlack) {
		t.Fatal("Add should succeed for the first distinct color")
	}
	for i := 0; i < 10; i++ {
		if !pd.Add(ColorBlack) {
			t.Fatal("repeated Add of a known color must not abort")
		}
	}
	if pd.Count() != 1 {
		t.Errorf("Count() = %d, want 1", pd.Count())
	}
}

func TestPaletteDetector_IndexOfAndPaletteOrder(t *testing.T) {
	pd := NewPaletteDetector(ColorMapSize)

	seq := []Color{ColorBlue, ColorRed, ColorGreen}
	for _, c := range seq {
		pd.Add(c)
	}

	for i, c := range seq {
		if pd.IndexOf(c) != i {
			t.Errorf("IndexOf(%+v) = %d, want %d", c, pd.IndexOf(c), i)
		}
	}

	palette := pd.Palette()
	if len(palette) != len(seq) {
		t.Fatalf("Palette() length = %d, want %d", len(palette), len(seq))
	}
	for i, c := range seq {
		if palette[i] != c {
			t.Errorf("Palette()[%d] = %+v, want %+v", i, palette[i], c)
		}
	}
}

func TestColor_FormatConverter(t *testing.T) {
	converter := NewColorFormatConverter()

	r8, g8, b8 := uint8(255), uint8(128), uint8(64)
	color := converter.RGB8ToColor(r8, g8, b8)

	expectedColor := Color{R: 65535, G: 32896, B: 16448}
	if color != expectedColor {
		t.Errorf("RGB8ToColor failed: got %+v, expected %+v", color, expectedColor)
	}

	rBack, gBack, bBack := converter.ColorToRGB8(color)
	if rBack != r8 || gBack != g8 || bBack != b8 {
		t.Errorf("ColorToRGB8 failed: got (%d,%d,%d), expected (%d,%d,%d)",
			rBack, gBack, bBack, r8, g8, b8)
	}
}

func TestColor_FormatConverterRGB16(t *testing.T) {
	converter := NewColorFormatConverter()

	color := converter.RGB16ToColor(1000, 2000, 3000)
	r, g, b := converter.ColorToRGB16(color)
	if r != 1000 || g != 2000 || b != 3000 {
		t.Errorf("RGB16 round trip failed: got (%d,%d,%d)", r, g, b)
	}
}

func TestColor_FormatConverterHSV(t *testing.T) {
	converter := NewColorFormatConverter()

	h, s, v := 0.0, 100.0, 100.0 // Pure red
	color := converter.HSVToColor(h, s, v)

	if color.R < 65000 || color.G > 1000 || color.B > 1000 {
		t.Errorf("HSVToColor red failed: got (%d,%d,%d)", color.R, color.G, color.B)
	}

	hBack, sBack, vBack := converter.ColorToHSV(ColorRed)

	if hBack < -1 || hBack > 1 {
		t.Errorf("ColorToHSV hue failed: got %f, expected ~0", hBack)
	}
	if sBack < 99 || sBack > 101 {
		t.Errorf("ColorToHSV saturation failed: got %f, expected ~100", sBack)
	}
	if vBack < 99 || vBack > 101 {
		t.Errorf("ColorToHSV value failed: got %f, expected ~100", vBack)
	}
}

func TestColor_Constants(t *testing.T) {
	if ColorBlack != (Color{R: 0, G: 0, B: 0}) {
		t.Errorf("ColorBlack incorrect: %+v", ColorBlack)
	}
	if ColorWhite != (Color{R: 65535, G: 65535, B: 65535}) {
		t.Errorf("ColorWhite incorrect: %+v", ColorWhite)
	}
	if ColorRed != (Color{R: 65535, G: 0, B: 0}) {
		t.Errorf("ColorRed incorrect: %+v", ColorRed)
	}
}

func BenchmarkPaletteDetectorAdd(b *testing.B) {
	pd := NewPaletteDetector(ColorMapSize)
	color := Color{R: 65535, G: 32768, B: 16384}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pd.Add(color)
	}
}

func BenchmarkColorFormatConverter(b *testing.B) {
	converter := NewColorFormatConverter()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		color := converter.RGB8ToColor(255, 128, 64)
		converter.ColorToRGB8(color)
	}
}
