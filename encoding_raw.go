// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// RawEncoder sends uncompressed pixel data, RFC 6143 Section 7.7.1. Every
// other encoder falls back to this one on encoding failure.
type RawEncoder struct{}

// Type returns the Raw encoding identifier.
func (*RawEncoder) Type() int32 { return EncodingRaw }

// EncodeRectangle writes the rect's pixels translated into the client's
// negotiated PixelFormat, left-to-right, top-to-bottom, with no compression.
func (*RawEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	out := ctx.Translator.TranslateRect(nil, src)
	_, err := w.Write(out)
	if err != nil {
		return encodingError("RawEncoder.EncodeRectangle", "failed to write pixel data", err)
	}
	return nil
}

// Reset is a no-op; Raw carries no persistent state across updates.
func (*RawEncoder) Reset() {}
