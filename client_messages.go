// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Client-to-server message type identifiers (RFC 6143 Section 7.5).
const (
	MsgSetPixelFormat           uint8 = 0
	MsgSetEncodings             uint8 = 2
	MsgFramebufferUpdateRequest uint8 = 3
	MsgKeyEvent                 uint8 = 4
	MsgPointerEvent             uint8 = 5
	MsgClientCutText            uint8 = 6
)

// MaxEncodingsPerClient bounds a single SetEncodings message, mirroring the
// server's tolerance for a FramebufferUpdate's rectangle count.
const MaxEncodingsPerClient = 10000

// MaxClientClipboardLength bounds a single ClientCutText payload.
const MaxClientClipboardLength = 10 * 1024 * 1024

// ClientMessage is a message decoded from the client-to-server stream.
type ClientMessage interface {
	Type() uint8
	Apply(h SessionHandler) error
}

// SessionHandler is the subset of a client session's state a decoded
// ClientMessage needs in order to apply itself. Satisfied by *Session; kept
// narrow here so this file has no dependency on the session's own shape.
type SessionHandler interface {
	ApplyPixelFormat(PixelFormat) error
	ApplyEncodings(preferred []int32, quality, compression int)
	ApplyFramebufferUpdateRequest(incremental bool, rect Rect) error
	EmitKeyEvent(down bool, keysym uint32)
	EmitPointerEvent(buttonMask uint8, x, y uint16)
	EmitCutText(text string)
}

// ReadClientMessage reads and decodes a single client-to-server message,
// including its leading type byte, from r.
func ReadClientMessage(r io.Reader) (ClientMessage, error) {
	var msgType [1]byte
	if _, err := io.ReadFull(r, msgType[:]); err != nil {
		return nil, networkError("ReadClientMessage", "failed to read message type", err)
	}

	switch msgType[0] {
	case MsgSetPixelFormat:
		return readSetPixelFormat(r)
	case MsgSetEncodings:
		return readSetEncodings(r)
	case MsgFramebufferUpdateRequest:
		return readFramebufferUpdateRequest(r)
	case MsgKeyEvent:
		return readKeyEvent(r)
	case MsgPointerEvent:
		return readPointerEvent(r)
	case MsgClientCutText:
		return readClientCutText(r)
	default:
		return nil, protocolError("ReadClientMessage",
			fmt.Sprintf("unknown client message type %d", msgType[0]), nil)
	}
}

// SetPixelFormatMessage requests the pixel format subsequent
// FramebufferUpdates should be encoded in.
type SetPixelFormatMessage struct {
	Format PixelFormat
}

// Type returns the SetPixelFormat message type identifier.
func (*SetPixelFormatMessage) Type() uint8 { return MsgSetPixelFormat }

func readSetPixelFormat(r io.Reader) (ClientMessage, error) {
	var padding [3]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, networkError("readSetPixelFormat", "failed to read padding", err)
	}

	var format PixelFormat
	if err := readPixelFormat(r, &format); err != nil {
		return nil, protocolError("readSetPixelFormat", "failed to read pixel format", err)
	}

	validator := newInputValidator()
	if err := validator.ValidatePixelFormat(&format); err != nil {
		return nil, protocolError("readSetPixelFormat", "invalid pixel format", err)
	}

	return &SetPixelFormatMessage{Format: format}, nil
}

// Apply re-initializes the session's translator for the new format and
// discards every persistent compression stream, since the byte stream a
// stream's dictionary was built against no longer applies.
func (m *SetPixelFormatMessage) Apply(h SessionHandler) error {
	return h.ApplyPixelFormat(m.Format)
}

// SetEncodingsMessage replaces the client's encoding preference list, in
// the order the client sent it (most preferred first).
type SetEncodingsMessage struct {
	Encodings []int32
}

// Type returns the SetEncodings message type identifier.
func (*SetEncodingsMessage) Type() uint8 { return MsgSetEncodings }

func readSetEncodings(r io.Reader) (ClientMessage, error) {
	var padding [1]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, networkError("readSetEncodings", "failed to read padding", err)
	}

	var numEncodings uint16
	if err := binary.Read(r, binary.BigEndian, &numEncodings); err != nil {
		return nil, networkError("readSetEncodings", "failed to read encoding count", err)
	}
	if numEncodings > MaxEncodingsPerClient {
		return nil, protocolError("readSetEncodings",
			fmt.Sprintf("too many encodings: %d (max %d)", numEncodings, MaxEncodingsPerClient), nil)
	}

	encodings := make([]int32, numEncodings)
	for i := range encodings {
		if err := binary.Read(r, binary.BigEndian, &encodings[i]); err != nil {
			return nil, networkError("readSetEncodings",
				fmt.Sprintf("failed to read encoding %d", i), err)
		}
	}

	return &SetEncodingsMessage{Encodings: encodings}, nil
}

// Apply rewrites the session's preference list and records the first
// quality-level and compression-level pseudo-encodings found, per the
// TightVNC convention of encoding the level as a small negative number.
func (m *SetEncodingsMessage) Apply(h SessionHandler) error {
	quality, compression := -1, -1
	for _, enc := range m.Encodings {
		if level, ok := qualityLevelFromPseudoEncoding(enc); ok && quality == -1 {
			quality = level
		}
		if level, ok := compressionLevelFromPseudoEncoding(enc); ok && compression == -1 {
			compression = level
		}
	}
	h.ApplyEncodings(m.Encodings, quality, compression)
	return nil
}

// qualityLevelFromPseudoEncoding decodes a TightVNC JPEG quality-level
// pseudo-encoding (-32 for quality 0 through -23 for quality 9).
func qualityLevelFromPseudoEncoding(enc int32) (level int, ok bool) {
	if enc >= -32 && enc <= -23 {
		return int(enc + 32), true
	}
	return 0, false
}

// compressionLevelFromPseudoEncoding decodes a TightVNC zlib compression
// level pseudo-encoding (-256 for level 0 through -247 for level 9).
func compressionLevelFromPseudoEncoding(enc int32) (level int, ok bool) {
	if enc >= -256 && enc <= -247 {
		return int(enc + 256), true
	}
	return 0, false
}

// FramebufferUpdateRequestMessage asks the server to send an update
// covering the given rectangle.
type FramebufferUpdateRequestMessage struct {
	Incremental bool
	Rect        Rect
}

// Type returns the FramebufferUpdateRequest message type identifier.
func (*FramebufferUpdateRequestMessage) Type() uint8 { return MsgFramebufferUpdateRequest }

func readFramebufferUpdateRequest(r io.Reader) (ClientMessage, error) {
	var incrementalByte [1]byte
	if _, err := io.ReadFull(r, incrementalByte[:]); err != nil {
		return nil, networkError("readFramebufferUpdateRequest", "failed to read incremental flag", err)
	}

	var x, y, width, height uint16
	for _, field := range []*uint16{&x, &y, &width, &height} {
		if err := binary.Read(r, binary.BigEndian, field); err != nil {
			return nil, networkError("readFramebufferUpdateRequest", "failed to read rectangle field", err)
		}
	}

	return &FramebufferUpdateRequestMessage{
		Incremental: incrementalByte[0] != 0,
		Rect:        Rect{X: x, Y: y, W: width, H: height},
	}, nil
}

// Apply records the request against the session. A non-incremental request
// forces the entire requested rectangle into the next update regardless of
// the session's current dirty region.
func (m *FramebufferUpdateRequestMessage) Apply(h SessionHandler) error {
	return h.ApplyFramebufferUpdateRequest(m.Incremental, m.Rect)
}

// KeyEventMessage reports a key press or release, identified by X11 keysym.
type KeyEventMessage struct {
	Down   bool
	Keysym uint32
}

// Type returns the KeyEvent message type identifier.
func (*KeyEventMessage) Type() uint8 { return MsgKeyEvent }

func readKeyEvent(r io.Reader) (ClientMessage, error) {
	var downFlag [1]byte
	if _, err := io.ReadFull(r, downFlag[:]); err != nil {
		return nil, networkError("readKeyEvent", "failed to read down flag", err)
	}

	var padding [2]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, networkError("readKeyEvent", "failed to read padding", err)
	}

	var keysym uint32
	if err := binary.Read(r, binary.BigEndian, &keysym); err != nil {
		return nil, networkError("readKeyEvent", "failed to read keysym", err)
	}

	validator := newInputValidator()
	if err := validator.ValidateKeySymbol(keysym); err != nil {
		return nil, protocolError("readKeyEvent", "invalid keysym", err)
	}

	return &KeyEventMessage{Down: downFlag[0] != 0, Keysym: keysym}, nil
}

// Apply forwards the key event to the embedder.
func (m *KeyEventMessage) Apply(h SessionHandler) error {
	h.EmitKeyEvent(m.Down, m.Keysym)
	return nil
}

// PointerEventMessage reports pointer motion and button state.
type PointerEventMessage struct {
	ButtonMask uint8
	X, Y       uint16
}

// Type returns the PointerEvent message type identifier.
func (*PointerEventMessage) Type() uint8 { return MsgPointerEvent }

func readPointerEvent(r io.Reader) (ClientMessage, error) {
	var buttonMask [1]byte
	if _, err := io.ReadFull(r, buttonMask[:]); err != nil {
		return nil, networkError("readPointerEvent", "failed to read button mask", err)
	}

	var x, y uint16
	if err := binary.Read(r, binary.BigEndian, &x); err != nil {
		return nil, networkError("readPointerEvent", "failed to read x", err)
	}
	if err := binary.Read(r, binary.BigEndian, &y); err != nil {
		return nil, networkError("readPointerEvent", "failed to read y", err)
	}

	return &PointerEventMessage{ButtonMask: buttonMask[0], X: x, Y: y}, nil
}

// Apply forwards the pointer event to the embedder.
func (m *PointerEventMessage) Apply(h SessionHandler) error {
	h.EmitPointerEvent(m.ButtonMask, m.X, m.Y)
	return nil
}

// ClientCutTextMessage carries clipboard text the client wants pushed to
// the embedder.
type ClientCutTextMessage struct {
	Text string
}

// Type returns the ClientCutText message type identifier.
func (*ClientCutTextMessage) Type() uint8 { return MsgClientCutText }

func readClientCutText(r io.Reader) (ClientMessage, error) {
	var padding [3]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, networkError("readClientCutText", "failed to read padding", err)
	}

	var textLength uint32
	if err := binary.Read(r, binary.BigEndian, &textLength); err != nil {
		return nil, networkError("readClientCutText", "failed to read text length", err)
	}

	validator := newInputValidator()
	if err := validator.ValidateMessageLength(textLength, MaxClientClipboardLength); err != nil {
		return nil, protocolError("readClientCutText", "clipboard text too large", err)
	}

	textBytes := make([]byte, textLength)
	if _, err := io.ReadFull(r, textBytes); err != nil {
		return nil, networkError("readClientCutText", "failed to read clipboard text", err)
	}

	// RFC 6143 Section 7.5.6: classic clients send Latin-1, not UTF-8;
	// rejecting every non-ASCII payload as a ProtocolViolation would close
	// the session on perfectly valid clipboard text, so the raw bytes are
	// decoded per §4.2 ("UTF-8 or Latin-1 per negotiated extension")
	// before UTF-8 validation ever runs.
	text := validator.DecodeClipboardText(textBytes)
	if err := validator.ValidateTextData(text, int(MaxClientClipboardLength)); err != nil {
		return nil, protocolError("readClientCutText", "invalid clipboard text", err)
	}

	return &ClientCutTextMessage{Text: validator.SanitizeText(text)}, nil
}

// Apply forwards the clipboard text to the embedder.
func (m *ClientCutTextMessage) Apply(h SessionHandler) error {
	h.EmitCutText(m.Text)
	return nil
}
