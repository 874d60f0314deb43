// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"sync"
	"sync/atomic"
)

// bytesPerCanonicalPixel is the width of one pixel in the framebuffer's
// fixed internal storage format: 32-bit true color, byte order R, G, B, X.
const bytesPerCanonicalPixel = 4

// Framebuffer is the shared pixel store written by the embedder and read by
// every client session. It is single-writer/many-reader: sessions observe
// pixels, they never mutate them. Width and height are stored atomically so
// a reader sees a consistent size even while a resize is in flight.
type Framebuffer struct {
	width, height atomic.Uint32

	mu      sync.RWMutex
	pixels  []byte
	logger  Logger
	session sessionRegistry
}

// sessionRegistry is the subset of the session registry the framebuffer
// needs in order to fan a resize's full-dirty notification and compression
// reset out to every connected session. It is satisfied by *Server.
type sessionRegistry interface {
	markAllDirty(Rect)
	resetAllCompressors()
}

// NewFramebuffer creates a framebuffer of the given dimensions, initialized
// to black (R=G=B=0, X=0xFF).
func NewFramebuffer(width, height uint16) *Framebuffer {
	fb := &Framebuffer{
		pixels: make([]byte, int(width)*int(height)*bytesPerCanonicalPixel),
	}
	fb.width.Store(uint32(width))
	fb.height.Store(uint32(height))
	fillBlack(fb.pixels)
	return fb
}

// SetLogger attaches a logger used for resize and write diagnostics.
func (fb *Framebuffer) SetLogger(logger Logger) {
	fb.logger = logger
}

func (fb *Framebuffer) attachRegistry(r sessionRegistry) {
	fb.session = r
}

// Width returns the current framebuffer width.
func (fb *Framebuffer) Width() uint16 {
	return uint16(fb.width.Load()) // #nosec G115 - stored as uint16 by construction
}

// Height returns the current framebuffer height.
func (fb *Framebuffer) Height() uint16 {
	return uint16(fb.height.Load()) // #nosec G115 - stored as uint16 by construction
}

// Stride returns the number of bytes per scanline.
func (fb *Framebuffer) Stride() int {
	return int(fb.Width()) * bytesPerCanonicalPixel
}

// Write copies a full canonical RGBA32 frame into the backing store and
// marks the entire surface dirty for every session. data must be exactly
// width*height*4 bytes.
func (fb *Framebuffer) Write(data []byte) error {
	fb.mu.Lock()
	expected := fb.Stride() * int(fb.Height())
	if len(data) != expected {
		fb.mu.Unlock()
		return validationError("Framebuffer.Write",
			"pixel data length does not match width*height*4", nil)
	}
	copy(fb.pixels, data)
	fb.mu.Unlock() // publication fence: pixels visible before the dirty mark below

	if fb.session != nil {
		fb.session.markAllDirty(Rect{W: fb.Width(), H: fb.Height()})
	}
	return nil
}

// MarkDirty unions rect into every session's per-client dirty accumulator.
func (fb *Framebuffer) MarkDirty(rect Rect) {
	rect = rect.ClampTo(fb.Width(), fb.Height())
	if rect.Empty() {
		return
	}
	if fb.session != nil {
		fb.session.markAllDirty(rect)
	}
}

// Snapshot returns a read-only copy of the current pixel buffer together
// with the dimensions it corresponds to, taken atomically with respect to
// concurrent writers.
func (fb *Framebuffer) Snapshot() (pixels []byte, width, height uint16) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]byte, len(fb.pixels))
	copy(out, fb.pixels)
	return out, fb.Width(), fb.Height()
}

// Resize atomically publishes new dimensions, reallocates the buffer,
// copies the top-left min(old,new) sub-image to the origin, fills the
// remainder with black, marks the full surface dirty for every session,
// and resets all per-client compression streams.
func (fb *Framebuffer) Resize(newW, newH uint16) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	oldW, oldH := fb.Width(), fb.Height()
	newPixels := make([]byte, int(newW)*int(newH)*bytesPerCanonicalPixel)
	fillBlack(newPixels)

	copyW := minInt(int(oldW), int(newW))
	copyH := minInt(int(oldH), int(newH))
	oldStride := int(oldW) * bytesPerCanonicalPixel
	newStride := int(newW) * bytesPerCanonicalPixel
	rowBytes := copyW * bytesPerCanonicalPixel

	for y := 0; y < copyH; y++ {
		srcOff := y * oldStride
		dstOff := y * newStride
		copy(newPixels[dstOff:dstOff+rowBytes], fb.pixels[srcOff:srcOff+rowBytes])
	}

	fb.pixels = newPixels
	fb.width.Store(uint32(newW))
	fb.height.Store(uint32(newH))

	if fb.logger != nil {
		fb.logger.Info("framebuffer resized",
			Field{Key: "old_width", Value: oldW}, Field{Key: "old_height", Value: oldH},
			Field{Key: "new_width", Value: newW}, Field{Key: "new_height", Value: newH})
	}

	if fb.session != nil {
		fb.session.markAllDirty(Rect{W: newW, H: newH})
		fb.session.resetAllCompressors()
	}
	return nil
}

// CopyRegion performs an overlap-safe block copy within the framebuffer:
// src and dst are same-size rectangles; when they overlap, the traversal
// direction is chosen to avoid self-corruption.
func (fb *Framebuffer) CopyRegion(src, dst Rect) error {
	if src.W != dst.W || src.H != dst.H {
		return validationError("Framebuffer.CopyRegion", "source and destination size mismatch", nil)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	stride := fb.Stride()
	rowBytes := int(src.W) * bytesPerCanonicalPixel

	topToBottom := dst.Y <= src.Y
	leftToRight := dst.X <= src.X

	rows := make([]int, src.H)
	for i := range rows {
		rows[i] = i
	}
	if !topToBottom {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	for _, i := range rows {
		srcOff := (int(src.Y)+i)*stride + int(src.X)*bytesPerCanonicalPixel
		dstOff := (int(dst.Y)+i)*stride + int(dst.X)*bytesPerCanonicalPixel

		if leftToRight {
			copy(fb.pixels[dstOff:dstOff+rowBytes], fb.pixels[srcOff:srcOff+rowBytes])
		} else {
			for x := int(src.W) - 1; x >= 0; x-- {
				px := x * bytesPerCanonicalPixel
				copy(fb.pixels[dstOff+px:dstOff+px+bytesPerCanonicalPixel], fb.pixels[srcOff+px:srcOff+px+bytesPerCanonicalPixel])
			}
		}
	}

	return nil
}

// ReadRect copies the canonical pixel bytes of rect into a freshly
// allocated buffer, for use by an encoder.
func (fb *Framebuffer) ReadRect(rect Rect) []byte {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	stride := fb.Stride()
	out := make([]byte, int(rect.W)*int(rect.H)*bytesPerCanonicalPixel)
	rowBytes := int(rect.W) * bytesPerCanonicalPixel

	for y := 0; y < int(rect.H); y++ {
		srcOff := (int(rect.Y)+y)*stride + int(rect.X)*bytesPerCanonicalPixel
		dstOff := y * rowBytes
		copy(out[dstOff:dstOff+rowBytes], fb.pixels[srcOff:srcOff+rowBytes])
	}
	return out
}

func fillBlack(pixels []byte) {
	for i := 0; i+3 < len(pixels); i += 4 {
		pixels[i] = 0
		pixels[i+1] = 0
		pixels[i+2] = 0
		pixels[i+3] = 0xFF
	}
}
