// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// Encoding type identifiers (RFC 6143 Section 7.7, plus the TightVNC and
// libvncserver pseudo-encodings this package recognizes during SetEncodings
// negotiation).
const (
	EncodingRaw         int32 = 0
	EncodingCopyRect    int32 = 1
	EncodingRRE         int32 = 2
	EncodingCoRRE       int32 = 4
	EncodingHextile     int32 = 5
	EncodingZlib        int32 = 6
	EncodingTight       int32 = 7
	EncodingZlibHex     int32 = 8
	EncodingZRLE        int32 = 16
	EncodingZYWRLE      int32 = 17
	EncodingTightPng    int32 = -260
	EncodingCursor      int32 = -239
	EncodingDesktopSize int32 = -223
)

// Encoder identifies an encoding a session may negotiate.
type Encoder interface {
	Type() int32
}

// EncodeContext carries the per-client state a RectEncoder needs to turn
// canonical framebuffer pixels into wire bytes: the negotiated pixel-format
// translator, this client's persistent compression streams, and the
// quality/compression levels last recorded from SetEncodings.
type EncodeContext struct {
	Translator  *Translator
	State       *EncoderState
	Quality     int // 0-9, -1 if the client never sent a quality-level pseudo-encoding
	Compression int // 0-9, -1 if unset
	Palette     *PaletteDetector
}

// RectEncoder encodes one rectangle of framebuffer pixels into its wire
// body (everything after the common x/y/width/height/encoding-type header).
type RectEncoder interface {
	Encoder
	EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error
	Reset()
}

// writeRectHeader writes the common RFB rectangle header: position, size,
// and encoding type, shared by every rectangle regardless of encoding.
func writeRectHeader(w io.Writer, rect Rect, encoding int32) error {
	header := make([]byte, 0, 12)
	header = appendUint16(header, rect.X)
	header = appendUint16(header, rect.Y)
	header = appendUint16(header, rect.W)
	header = appendUint16(header, rect.H)
	header = appendInt32(header, encoding)
	_, err := w.Write(header)
	return err
}

func appendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func appendInt32(dst []byte, v int32) []byte {
	u := uint32(v) // #nosec G115 - two's complement round trip is intentional
	return append(dst, byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}
