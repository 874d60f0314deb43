// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"image"

	"golang.org/x/image/draw"
)

// Thumbnail returns a downsampled copy of the current framebuffer no
// larger than maxWidth x maxHeight, preserving aspect ratio, for embedders
// that want a cheap desktop preview (a notification icon, a session list)
// outside the RFB wire protocol entirely. A zero maxWidth or maxHeight
// means "no limit on that axis".
func (fb *Framebuffer) Thumbnail(maxWidth, maxHeight int) (image.Image, error) {
	pixels, width, height := fb.Snapshot()
	if width == 0 || height == 0 {
		return nil, validationError("Framebuffer.Thumbnail", "framebuffer has zero area", nil)
	}

	src := canonicalToNRGBA(pixels, int(width), int(height))

	dstW, dstH := thumbnailDimensions(int(width), int(height), maxWidth, maxHeight)
	if dstW == int(width) && dstH == int(height) {
		return src, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst, nil
}

// thumbnailDimensions computes the largest size no bigger than
// maxWidth x maxHeight that preserves the source aspect ratio. A zero
// bound on either axis is treated as unconstrained on that axis alone.
func thumbnailDimensions(srcW, srcH, maxWidth, maxHeight int) (w, h int) {
	if maxWidth <= 0 && maxHeight <= 0 {
		return srcW, srcH
	}
	if maxWidth <= 0 {
		maxWidth = srcW
	}
	if maxHeight <= 0 {
		maxHeight = srcH
	}
	if srcW <= maxWidth && srcH <= maxHeight {
		return srcW, srcH
	}

	widthScale := float64(maxWidth) / float64(srcW)
	heightScale := float64(maxHeight) / float64(srcH)
	scale := widthScale
	if heightScale < scale {
		scale = heightScale
	}

	w = maxInt(1, int(float64(srcW)*scale))
	h = maxInt(1, int(float64(srcH)*scale))
	return w, h
}
