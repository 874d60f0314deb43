// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"net"
	"sync"
	"time"
)

// sessionState is the protocol state machine position of a ClientSession,
// §4.2. Handshake negotiation (AwaitVersion/AwaitSecurity/AwaitInit) runs
// to completion in Server.handshake before a Session is constructed; Session
// itself only occupies Running and, on shutdown, Closing.
type sessionState int32

const (
	sessionRunning sessionState = iota
	sessionClosing
)

// supportedEncodings is the set of rectangle encodings this package can
// produce. It carries no order: session dispatch walks the client's own
// SetEncodings ordering and takes the first entry found in this set.
var supportedEncodings = map[int32]bool{
	EncodingTight:    true,
	EncodingTightPng: true,
	EncodingZRLE:     true,
	EncodingZYWRLE:   true,
	EncodingZlibHex:  true,
	EncodingZlib:     true,
	EncodingHextile:  true,
	EncodingRRE:      true,
	EncodingCoRRE:    true,
	EncodingRaw:      true,
}

// Session is one client's connection to the RFB server: its socket, wire
// state, and everything the spec's ClientSession attributes describe. A
// session owns its socket, its compression streams, its dirty-region
// accumulator, and its CopyRect emission queue exclusively; it only ever
// reads the shared Framebuffer.
type Session struct {
	id     ClientID
	conn   net.Conn
	fb     *Framebuffer
	events chan<- Event
	logger Logger

	closeTimeout time.Duration

	mu          sync.Mutex
	format      PixelFormat
	translator  *Translator
	preferred   []int32
	quality     int
	compression int
	wantsDesktopSize bool

	encoderState *EncoderState
	hextile      *HextileEncoder
	zlibhex      *ZlibHexEncoder

	dirty   DirtyRegion
	copyQ   *CopyRectScheduler
	hasReq  bool
	incReq  bool
	reqRect Rect

	state   sessionState
	notify  chan struct{}
	writeMu sync.Mutex
}

// newSession wires a freshly handshaken connection into a session bound to
// the shared framebuffer. The server's event channel receives input and
// lifecycle events; id identifies this session in those events.
func newSession(id ClientID, conn net.Conn, fb *Framebuffer, events chan<- Event, logger Logger, closeTimeout time.Duration) *Session {
	s := &Session{
		id:           id,
		conn:         conn,
		fb:           fb,
		events:       events,
		logger:       logger,
		closeTimeout: closeTimeout,
		format:       *CanonicalPixelFormat,
		quality:      -1,
		compression:  -1,
		encoderState: NewEncoderState(5),
		hextile:      &HextileEncoder{},
		zlibhex:      &ZlibHexEncoder{},
		notify:       make(chan struct{}, 1),
	}
	s.copyQ = NewCopyRectScheduler(&s.dirty)
	translator, err := NewTranslator(&s.format)
	if err == nil {
		s.translator = translator
	}
	return s
}

// run drives the session to completion: a reader goroutine decodes client
// messages and applies them, while this goroutine blocks on update-ready
// notifications and writes FramebufferUpdate messages. Both suspend only
// on socket I/O or the notify channel, never while holding the framebuffer.
func (s *Session) run(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go s.readLoop(sessionCtx, readErr)

	reason := DisconnectClientClosed
	var resultErr error

loop:
	for {
		select {
		case <-sessionCtx.Done():
			reason = DisconnectServerStopped
			break loop
		case err := <-readErr:
			resultErr = err
			if err != nil {
				if IsVNCError(err, ErrProtocol) {
					reason = DisconnectProtocolViolation
				} else {
					reason = DisconnectIOError
				}
			}
			break loop
		case <-s.notify:
			if err := s.flush(); err != nil {
				resultErr = err
				reason = DisconnectIOError
				break loop
			}
		}
	}

	s.close()
	s.encoderState.Reset()

	if s.events != nil {
		select {
		case s.events <- ClientDisconnectedEvent{Client: s.id, Reason: reason, Err: resultErr}:
		default:
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	s.state = sessionClosing
	s.mu.Unlock()
	_ = s.conn.SetDeadline(time.Now().Add(s.closeTimeout))
	_ = s.conn.Close()
}

// readLoop decodes and applies client-to-server messages until the
// connection closes or a ProtocolViolation occurs.
func (s *Session) readLoop(ctx context.Context, done chan<- error) {
	for {
		select {
		case <-ctx.Done():
			done <- nil
			return
		default:
		}

		msg, err := ReadClientMessage(s.conn)
		if err != nil {
			done <- err
			return
		}
		if err := msg.Apply(s); err != nil {
			if s.logger != nil {
				ForClient(s.logger, s.id).Warn("dropping session after malformed client message",
					Field{Key: "error", Value: err})
			}
			done <- err
			return
		}
	}
}

// signalUpdate wakes the write loop, coalescing repeated signals the way a
// condition variable broadcast would.
func (s *Session) signalUpdate() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// markDirty unions rect into this session's own dirty accumulator. Called
// by the framebuffer (directly, or via the server's registry fan-out) --
// never by another session.
func (s *Session) markDirty(rect Rect) {
	s.mu.Lock()
	s.dirty.Mark(rect)
	s.mu.Unlock()
	s.signalUpdate()
}

// resetCompressors discards every persistent compression stream and the
// encoder family's own color-memory state, called on PixelFormat change or
// framebuffer resize.
func (s *Session) resetCompressors() {
	s.encoderState.Reset()
	s.hextile.Reset()
	s.zlibhex.Reset()
}

// noteDesktopResize is called after a resize (the caller has already
// marked the full surface dirty) and wakes the write loop while a
// DesktopSize rectangle is still pending. It does not queue a new one: a
// session sends a DesktopSize rectangle once, on the first update after a
// SetEncodings that lists the pseudo-encoding, and a later resize is not
// announced that way.
func (s *Session) noteDesktopResize() {
	s.mu.Lock()
	wants := s.wantsDesktopSize
	s.mu.Unlock()
	if wants {
		s.signalUpdate()
	}
}

// ApplyPixelFormat implements SessionHandler: re-initializes the
// translator for the new format and discards every persistent compression
// stream, since a stream's dictionary was built against the old byte
// stream semantics.
//
// §3 requires color-map output to fall back to 32bpp true-colour: this
// package never emits a color map, so a client that asks for one (TrueColor
// false) gets the canonical true-colour format instead and is expected to
// accept the substituted SetPixelFormat rather than the one it requested.
func (s *Session) ApplyPixelFormat(format PixelFormat) error {
	if err := format.Validate(); err != nil {
		return validationError("Session.ApplyPixelFormat", "invalid pixel format", err)
	}
	if !format.TrueColor {
		format = *CanonicalPixelFormat
	}

	translator, err := NewTranslator(&format)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.format = format
	s.translator = translator
	s.mu.Unlock()

	s.resetCompressors()
	return nil
}

// ApplyEncodings implements SessionHandler: rewrites the preference list
// and records the first-seen quality/compression pseudo-encodings.
func (s *Session) ApplyEncodings(preferred []int32, quality, compression int) {
	s.mu.Lock()
	s.preferred = preferred
	if quality >= 0 {
		s.quality = quality
	}
	if compression >= 0 {
		s.compression = compression
		s.encoderState.SetLevel(compression)
	}
	for _, enc := range preferred {
		if enc == EncodingDesktopSize {
			s.wantsDesktopSize = true
		}
	}
	s.mu.Unlock()
}

// ApplyFramebufferUpdateRequest implements SessionHandler: records the
// pending request. A non-incremental request forces the entire requested
// rectangle into the next send regardless of the session's current dirty
// region.
func (s *Session) ApplyFramebufferUpdateRequest(incremental bool, rect Rect) error {
	s.mu.Lock()
	s.hasReq = true
	s.incReq = incremental
	s.reqRect = rect
	if !incremental {
		s.dirty.Mark(rect)
	}
	s.mu.Unlock()
	s.signalUpdate()
	return nil
}

// EmitKeyEvent implements SessionHandler: forwards the key event to the
// embedder's event channel.
func (s *Session) EmitKeyEvent(down bool, keysym uint32) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- KeyEvent{Client: s.id, Keysym: keysym, Down: down}:
	default:
	}
}

// EmitPointerEvent implements SessionHandler: forwards the pointer event to
// the embedder's event channel.
func (s *Session) EmitPointerEvent(buttonMask uint8, x, y uint16) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- PointerEvent{Client: s.id, X: x, Y: y, ButtonMask: buttonMask}:
	default:
	}
}

// EmitCutText implements SessionHandler: forwards clipboard text to the
// embedder's event channel.
func (s *Session) EmitCutText(text string) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- CutTextEvent{Client: s.id, Text: text}:
	default:
	}
}

// flush is the per-session update step: drain the CopyRect queue and the
// dirty region, and write at most one FramebufferUpdate message covering
// both, CopyRect rectangles first. A flush is a no-op if no update has been
// requested, or if the requested region and everything pending are empty.
func (s *Session) flush() error {
	s.mu.Lock()
	if !s.hasReq {
		s.mu.Unlock()
		return nil
	}
	reqRect := s.reqRect
	wantsDesktopSize := s.wantsDesktopSize
	s.mu.Unlock()

	copies := s.copyQ.Drain()

	s.mu.Lock()
	clamped := s.dirty.Drain(reqRect)
	s.mu.Unlock()

	if len(copies) == 0 && len(clamped) == 0 {
		return nil
	}

	s.mu.Lock()
	s.hasReq = false
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	encType := s.chooseEncoding()

	total := len(copies)
	for _, rect := range clamped {
		total += rectWireCount(rect, encType)
	}
	if wantsDesktopSize {
		total++
	}
	if err := writeFramebufferUpdateHeader(s.conn, total); err != nil {
		return err
	}

	if wantsDesktopSize {
		if err := EncodeDesktopSizeUpdate(s.conn, s.fb.Width(), s.fb.Height()); err != nil {
			return err
		}
		s.mu.Lock()
		s.wantsDesktopSize = false
		s.mu.Unlock()
	}

	for _, c := range copies {
		if err := EncodeCopyRect(s.conn, c); err != nil {
			return err
		}
	}

	for _, rect := range clamped {
		if err := s.encodeOneRect(rect, encType); err != nil {
			return err
		}
	}
	return nil
}

// rectWireCount returns the number of wire rectangles a single dirty
// rectangle expands to under encType: CoRRE splits any dimension over 255
// pixels into multiple 255x255-bounded tiles (§4.5.3), every other encoding
// emits exactly one.
func rectWireCount(rect Rect, encType int32) int {
	if encType != EncodingCoRRE {
		return 1
	}
	tilesX := (int(rect.W) + 254) / 255
	tilesY := (int(rect.H) + 254) / 255
	if tilesX == 0 {
		tilesX = 1
	}
	if tilesY == 0 {
		tilesY = 1
	}
	return tilesX * tilesY
}

// encoderFor returns a fresh RectEncoder instance for a negotiated encoding
// type, reusing the session's persistent color-memory state for Hextile
// and ZlibHex.
func (s *Session) encoderFor(encType int32) RectEncoder {
	switch encType {
	case EncodingRaw:
		return &RawEncoder{}
	case EncodingRRE:
		return &RREEncoder{}
	case EncodingCoRRE:
		return &CoRREEncoder{}
	case EncodingHextile:
		return s.hextile
	case EncodingZlib:
		return &ZlibEncoder{}
	case EncodingZlibHex:
		return s.zlibhex
	case EncodingZRLE:
		return &ZRLEEncoder{}
	case EncodingZYWRLE:
		return &ZYWRLEEncoder{}
	case EncodingTight:
		return &TightEncoder{}
	case EncodingTightPng:
		return &TightPngEncoder{}
	default:
		return nil
	}
}

// chooseEncoding walks the client's preference list, in the order the
// client sent it, for the first entry this package implements.
func (s *Session) chooseEncoding() int32 {
	s.mu.Lock()
	preferred := s.preferred
	s.mu.Unlock()

	for _, enc := range preferred {
		if supportedEncodings[enc] {
			return enc
		}
	}
	return EncodingRaw
}

// encodeOneRect encodes one dirty rectangle with the given (already-chosen)
// encoding, splitting for CoRRE's 255x255 tile limit and falling back
// within the client's own advertised encodings on EncodingFailure (§7): a
// client that never advertised Raw never receives an encoding-0 rectangle
// as a fallback. encType must match what rectWireCount was computed with,
// so the FramebufferUpdate header's rectangle count stays correct.
func (s *Session) encodeOneRect(rect Rect, encType int32) error {
	if encType == EncodingCoRRE {
		return s.encodeCoRRETiled(rect)
	}

	return s.encodeRectWithFallback(rect, encType)
}

func (s *Session) encodeRectWithFallback(rect Rect, encType int32) error {
	ctx := s.encodeContext()
	enc := s.encoderFor(encType)
	if enc == nil {
		enc = &RawEncoder{}
		encType = EncodingRaw
	}

	var buf twoStageBuffer
	if err := writeRectHeader(&buf, rect, encType); err == nil {
		if err := enc.EncodeRectangle(&buf, s.fb, rect, ctx); err == nil {
			_, werr := s.conn.Write(buf.Bytes())
			return werr
		}
	}

	if s.logger != nil {
		ForClient(s.logger, s.id).Warn("encoder failed, falling back", Field{Key: "encoding", Value: encType})
	}

	for _, fallback := range []int32{EncodingTight, EncodingZRLE, EncodingZlib, EncodingRaw} {
		if fallback == encType || !s.clientAdvertises(fallback) {
			continue
		}
		var retryBuf twoStageBuffer
		fbEnc := s.encoderFor(fallback)
		if fbEnc == nil {
			continue
		}
		if err := writeRectHeader(&retryBuf, rect, fallback); err != nil {
			continue
		}
		if err := fbEnc.EncodeRectangle(&retryBuf, s.fb, rect, ctx); err != nil {
			continue
		}
		_, werr := s.conn.Write(retryBuf.Bytes())
		return werr
	}

	return encodingError("Session.encodeRectWithFallback", "no advertised encoding could encode rectangle", nil)
}

func (s *Session) clientAdvertises(enc int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.preferred {
		if e == enc {
			return true
		}
	}
	return false
}

// encodeCoRRETiled splits a rectangle larger than 255x255 into CoRRE-sized
// tiles, §4.5.3.
func (s *Session) encodeCoRRETiled(rect Rect) error {
	ctx := s.encodeContext()
	enc := &CoRREEncoder{}

	for y := 0; y < int(rect.H); y += 255 {
		tileH := minInt(255, int(rect.H)-y)
		for x := 0; x < int(rect.W); x += 255 {
			tileW := minInt(255, int(rect.W)-x)
			tile := Rect{X: rect.X + uint16(x), Y: rect.Y + uint16(y), W: uint16(tileW), H: uint16(tileH)} // #nosec G115 - bounded by rect dims

			var buf twoStageBuffer
			if err := writeRectHeader(&buf, tile, EncodingCoRRE); err != nil {
				return err
			}
			if err := enc.EncodeRectangle(&buf, s.fb, tile, ctx); err != nil {
				return err
			}
			if _, err := s.conn.Write(buf.Bytes()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) encodeContext() *EncodeContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &EncodeContext{
		Translator:  s.translator,
		State:       s.encoderState,
		Quality:     s.quality,
		Compression: s.compression,
	}
}

// twoStageBuffer is a minimal io.Writer accumulating a rectangle's header
// and encoded body before one socket write, so a partially-encoded
// rectangle on encoder failure never reaches the client.
type twoStageBuffer struct {
	data []byte
}

func (b *twoStageBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *twoStageBuffer) Bytes() []byte { return b.data }
