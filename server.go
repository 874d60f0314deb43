// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// repeaterIDLength is the fixed width of the ASCII identifier string an
// UltraVNC repeater expects ahead of the ordinary RFB handshake.
const repeaterIDLength = 250

// Server listens for RFB clients, runs each one through the handshake
// state machine, and fans framebuffer changes out to every connected
// Session. It implements framebuffer.go's sessionRegistry interface so a
// Framebuffer can notify every session of a write or resize without
// knowing the session type itself.
type Server struct {
	cfg          *ServerConfig
	fb           *Framebuffer
	listener     net.Listener
	authRegistry *AuthRegistry
	logger       Logger

	events chan Event
	nextID atomic.Uint64

	mu       sync.RWMutex
	sessions map[ClientID]*Session

	copyMu        sync.Mutex
	pendingCopies []CopyRectEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
	stopErr  error
}

// Start configures, binds, and runs a Server against the given
// framebuffer. The returned Server owns the listener until Stop is called.
func Start(fb *Framebuffer, opts ...ServerOption) (*Server, error) {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	registry := NewAuthRegistry()
	if cfg.Password != "" {
		password := cfg.Password
		registry.Register(2, func() ServerAuth { return NewServerAuthVNC(password) })
	}
	registry.SetLogger(cfg.Logger)

	addr := cfg.Interface
	if addr == "" {
		addr = ":5900"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, networkError("Start", "failed to bind RFB listener", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		cfg:          cfg,
		fb:           fb,
		listener:     listener,
		authRegistry: registry,
		logger:       cfg.Logger,
		events:       make(chan Event, 256),
		sessions:     make(map[ClientID]*Session),
		ctx:          ctx,
		cancel:       cancel,
	}

	fb.attachRegistry(srv)
	fb.SetLogger(cfg.Logger)

	srv.wg.Add(1)
	go srv.acceptLoop()

	if cfg.Logger != nil {
		cfg.Logger.Info("rfb server started", Field{Key: "address", Value: listener.Addr().String()})
	}

	return srv, nil
}

// Events returns the channel on which client input and lifecycle
// notifications arrive. The channel is closed once Stop has drained every
// session.
func (s *Server) Events() <-chan Event {
	return s.events
}

// IsActive reports whether the server is still accepting and serving
// connections.
func (s *Server) IsActive() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}

// Stop closes the listener, closes every session's connection, and waits
// for all session goroutines to exit before closing the event channel.
// Calls after the first do nothing and return the first call's result.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		err := s.listener.Close()

		for _, sess := range s.snapshotSessions() {
			sess.close()
		}

		s.wg.Wait()
		close(s.events)

		if err != nil {
			s.stopErr = networkError("Server.Stop", "failed to close listener", err)
		}
	})
	return s.stopErr
}

// acceptLoop accepts incoming connections until the listener is closed by
// Stop, handing each off to its own handshake-and-serve goroutine.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if s.logger != nil {
				s.logger.Warn("accept failed", Field{Key: "error", Value: err})
			}
			continue
		}

		if s.cfg.MaxClients > 0 && s.sessionCount() >= s.cfg.MaxClients {
			_ = conn.Close()
			continue
		}

		id := ClientID(s.nextID.Add(1))
		s.wg.Add(1)
		go s.establishSession(conn, id)
	}
}

// ConnectReverse dials a listening viewer and runs the ordinary server-side
// handshake over the resulting connection, RFC 6143's reverse-connection
// mode: the server is still the protocol "server", it is only the
// transport direction that reverses.
func (s *Server) ConnectReverse(ctx context.Context, addr string) (ClientID, error) {
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, networkError("Server.ConnectReverse", "failed to dial reverse viewer", err)
	}

	id := ClientID(s.nextID.Add(1))
	s.wg.Add(1)
	go s.establishSession(conn, id)
	return id, nil
}

// ConnectRepeater dials an UltraVNC-style repeater, writes the 250-byte
// NUL-padded ASCII rendezvous identifier it expects ahead of the RFB
// handshake, and then proceeds exactly as ConnectReverse.
func (s *Server) ConnectRepeater(ctx context.Context, addr, idString string) (ClientID, error) {
	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, networkError("Server.ConnectRepeater", "failed to dial repeater", err)
	}

	if _, err := conn.Write(repeaterIDHeader(idString)); err != nil {
		_ = conn.Close()
		return 0, networkError("Server.ConnectRepeater", "failed to write repeater id string", err)
	}

	id := ClientID(s.nextID.Add(1))
	s.wg.Add(1)
	go s.establishSession(conn, id)
	return id, nil
}

// repeaterIDHeader pads idString with NUL bytes to the fixed 250-byte
// rendezvous identifier width; an idString longer than 250 bytes is
// silently truncated, matching the repeater wire format's fixed width.
func repeaterIDHeader(idString string) []byte {
	buf := make([]byte, repeaterIDLength)
	copy(buf, idString)
	return buf
}

// establishSession runs the handshake state machine over conn, registers
// the resulting session on success, and blocks serving it until it
// disconnects.
func (s *Server) establishSession(conn net.Conn, id ClientID) {
	defer s.wg.Done()

	sess, err := s.handshake(conn, id)
	if err != nil {
		if s.logger != nil {
			ForClient(s.logger, id).Warn("handshake failed", Field{Key: "error", Value: err})
		}
		_ = conn.Close()
		s.emit(ClientDisconnectedEvent{Client: id, Reason: DisconnectHandshakeFailed, Err: err})
		return
	}

	s.register(id, sess)
	s.emit(ClientConnectedEvent{Client: id, Address: conn.RemoteAddr().String()})

	sess.run(s.ctx)

	s.unregister(id)
}

// handshake drives states AwaitVersion, AwaitSecurity, and AwaitInit to
// completion, bounded by the configured handshake timeout, and returns a
// Session ready to enter Running.
func (s *Server) handshake(conn net.Conn, id ClientID) (*Session, error) {
	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}

	version, err := negotiateVersion(conn, s.cfg.ProtocolVersion)
	if err != nil {
		return nil, err
	}

	if err := negotiateSecurity(s.ctx, conn, version, s.authRegistry, s.logger); err != nil {
		return nil, err
	}

	if _, err := negotiateInit(conn, s.fb, s.cfg.DesktopName); err != nil {
		return nil, err
	}

	_ = conn.SetDeadline(time.Time{})

	return newSession(id, conn, s.fb, s.events, s.logger, s.cfg.CloseTimeout), nil
}

func (s *Server) register(id ClientID, sess *Session) {
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
}

func (s *Server) unregister(id ClientID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) sessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// snapshotSessions returns every currently registered session, so fan-out
// operations never hold the registry lock while writing to a socket.
func (s *Server) snapshotSessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		if s.logger != nil {
			s.logger.Warn("dropping event, channel full")
		}
	}
}

// markAllDirty implements sessionRegistry: it is called by Framebuffer.Write
// and Framebuffer.MarkDirty, and unions rect into every connected session's
// own dirty accumulator.
func (s *Server) markAllDirty(rect Rect) {
	for _, sess := range s.snapshotSessions() {
		sess.markDirty(rect)
	}
}

// resetAllCompressors implements sessionRegistry: called by
// Framebuffer.Resize, it discards every session's persistent compression
// streams and, for sessions that advertised the DesktopSize
// pseudo-encoding, queues the resize notification.
func (s *Server) resetAllCompressors() {
	for _, sess := range s.snapshotSessions() {
		sess.resetCompressors()
		sess.noteDesktopResize()
	}
}

// ScheduleCopyRect queues a scroll/move of src by (dx, dy) for every
// connected session's own CopyRect emission ordering. The underlying
// framebuffer pixels are not touched until DoCopyRect is called, since a
// region may be rescheduled or demoted before it is ever applied.
func (s *Server) ScheduleCopyRect(src Rect, dx, dy int) {
	s.copyMu.Lock()
	s.pendingCopies = append(s.pendingCopies, CopyRectEntry{Src: src, DX: dx, DY: dy})
	s.copyMu.Unlock()

	for _, sess := range s.snapshotSessions() {
		sess.copyQ.Schedule(src, dx, dy)
	}
}

// DoCopyRect applies every copy queued since the last call exactly once to
// the shared framebuffer. Per-session CopyRectSchedulers already hold their
// own copies of these entries for wire emission; this method only performs
// the physical pixel move, and must never be invoked more than once per
// scheduled entry, since the source region is overwritten by the first
// application.
func (s *Server) DoCopyRect() error {
	s.copyMu.Lock()
	pending := s.pendingCopies
	s.pendingCopies = nil
	s.copyMu.Unlock()

	for _, entry := range pending {
		if err := DoCopyRect(s.fb, entry); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastCutText sends ServerCutText to every connected client.
func (s *Server) BroadcastCutText(text string) {
	if len(text) > MaxServerClipboardLength {
		text = text[:MaxServerClipboardLength]
	}

	for _, sess := range s.snapshotSessions() {
		sess.writeMu.Lock()
		err := writeServerCutText(sess.conn, text)
		sess.writeMu.Unlock()

		if err != nil && s.logger != nil {
			ForClient(s.logger, sess.id).Warn("failed to broadcast cut text", Field{Key: "error", Value: err})
		}
	}
}
