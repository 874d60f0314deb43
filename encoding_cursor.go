// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// CursorPseudoEncoding identifies the Cursor pseudo-encoding during
// SetEncodings negotiation. Cursor-shape pixel transmission is out of
// scope; this type exists only so a client offering -239 is recognized
// rather than rejected, and never produces a rectangle body.
type CursorPseudoEncoding struct{}

// Type returns the Cursor pseudo-encoding identifier.
func (*CursorPseudoEncoding) Type() int32 { return EncodingCursor }
