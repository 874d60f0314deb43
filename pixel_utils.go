// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// CanonicalPixelReader provides utilities for reading pixel data out of the
// framebuffer's canonical RGBA32 storage format and expanding it to the
// 16-bit-per-channel Color type. The encoders in this package do their own
// pixel comparisons and do not use it.
type CanonicalPixelReader struct {
	converter ColorFormatConverter
}

// NewCanonicalPixelReader creates a reader for canonical framebuffer pixels.
func NewCanonicalPixelReader() *CanonicalPixelReader {
	return &CanonicalPixelReader{}
}

// ColorAt expands the canonical pixel starting at the given byte offset
// (R, G, B, X order) into a Color.
func (pr *CanonicalPixelReader) ColorAt(pixels []byte, offset int) Color {
	return pr.converter.RGB8ToColor(pixels[offset], pixels[offset+1], pixels[offset+2])
}

// ReadRow expands a contiguous run of canonical pixels into Colors.
func (pr *CanonicalPixelReader) ReadRow(pixels []byte, count int) []Color {
	colors := make([]Color, count)
	for i := 0; i < count; i++ {
		colors[i] = pr.ColorAt(pixels, i*4)
	}
	return colors
}

// calculatePixelDataSize calculates the number of canonical bytes needed to
// hold a rectangle of the given dimensions before translation to a client's
// negotiated pixel format.
func calculatePixelDataSize(width, height uint16) int {
	return int(width) * int(height) * 4
}
