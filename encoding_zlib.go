// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "io"

// ZlibEncoder sends the Zlib encoding: translated pixels deflated through
// one persistent stream (flushed with Z_SYNC_FLUSH semantics so the
// dictionary carries across updates), wrapped in a 4-byte big-endian
// length prefix.
type ZlibEncoder struct{}

// Type returns the Zlib encoding identifier.
func (*ZlibEncoder) Type() int32 { return EncodingZlib }

// EncodeRectangle writes the compressed-length prefix followed by the
// deflated, translated rectangle.
func (*ZlibEncoder) EncodeRectangle(w io.Writer, fb *Framebuffer, rect Rect, ctx *EncodeContext) error {
	src := fb.ReadRect(rect)
	translated := ctx.Translator.TranslateRect(nil, src)

	compressed, err := ctx.State.Compress(EncodingZlib, StreamZlib, translated)
	if err != nil {
		return encodingError("ZlibEncoder.EncodeRectangle", "failed to compress pixel data", err)
	}

	out := appendUint32(nil, uint32(len(compressed))) // #nosec G115 - deflate output bounded by rectangle size
	out = append(out, compressed...)
	if _, err := w.Write(out); err != nil {
		return encodingError("ZlibEncoder.EncodeRectangle", "failed to write Zlib rectangle", err)
	}
	return nil
}

// Reset is a no-op; Zlib's persistent state lives in the EncoderState
// deflate stream, reset independently on PixelFormat change.
func (*ZlibEncoder) Reset() {}
