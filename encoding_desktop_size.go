// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// DesktopSizePseudoEncoding tells a client that has advertised
// pseudo-encoding -223 the framebuffer dimensions: a single zero-body
// rectangle whose header carries the dimensions in place of width and
// height, with no pixel data following.
type DesktopSizePseudoEncoding struct{}

// Type returns the DesktopSize pseudo-encoding identifier.
func (*DesktopSizePseudoEncoding) Type() int32 { return EncodingDesktopSize }

// EncodeDesktopSizeUpdate writes the DesktopSize rectangle carrying
// (width, height). Session.flush calls it on the first update after a
// SetEncodings that lists DesktopSize; a later Framebuffer.Resize does not
// cause another call.
func EncodeDesktopSizeUpdate(w io.Writer, width, height uint16) error {
	rect := Rect{X: 0, Y: 0, W: width, H: height}
	if err := writeRectHeader(w, rect, EncodingDesktopSize); err != nil {
		return encodingError("EncodeDesktopSizeUpdate", "failed to write desktop size rectangle", err)
	}
	return nil
}
