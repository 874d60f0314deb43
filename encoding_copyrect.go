// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// CopyRectEncoder sends a CopyRect rectangle, RFC 6143 Section 7.7.2: four
// bytes naming the source top-left corner, with no pixel data at all. The
// destination's size and position come from the rectangle header; the
// source rectangle shares that size. Unlike the other encoders, a CopyRect
// body cannot be produced from framebuffer pixels alone, since by the time
// it is written the framebuffer already holds the post-copy state -- the
// source coordinates must come from the CopyRectEntry a CopyRectScheduler
// drained, not from re-reading the destination.
type CopyRectEncoder struct{}

// Type returns the CopyRect encoding identifier.
func (*CopyRectEncoder) Type() int32 { return EncodingCopyRect }

// EncodeCopyRect writes one CopyRect rectangle: header naming the
// destination (size and position), followed by the 4-byte source
// coordinate body.
func EncodeCopyRect(w io.Writer, entry CopyRectEntry) error {
	if err := writeRectHeader(w, entry.Dest(), EncodingCopyRect); err != nil {
		return encodingError("EncodeCopyRect", "failed to write rectangle header", err)
	}
	body := appendUint16(appendUint16(nil, entry.Src.X), entry.Src.Y)
	if _, err := w.Write(body); err != nil {
		return encodingError("EncodeCopyRect", "failed to write source coordinates", err)
	}
	return nil
}
