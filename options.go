// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "time"

// ServerConfig holds the configuration recognized at server start. It is
// built from functional ServerOptions rather than parsed from a file
// format, mirroring the teacher's ClientConfig/ClientOption idiom.
type ServerConfig struct {
	// Interface is the bind address; empty binds all interfaces.
	Interface string

	// DesktopName is the UTF-8 name advertised in ServerInit.
	DesktopName string

	// Password, if non-empty, enables classic VNC Authentication; its
	// effective length is 8 bytes (RFC 6143), longer values are silently
	// truncated by the DES key schedule.
	Password string

	// ProtocolVersion is the version line the server offers first, before
	// negotiating down to whatever the client supports. Defaults to 3.8.
	ProtocolVersion ProtocolVersion

	// MaxClients bounds concurrent sessions; zero means unlimited.
	MaxClients int

	// HandshakeTimeout bounds the AwaitVersion/AwaitSecurity/AwaitInit
	// states before the connection is dropped.
	HandshakeTimeout time.Duration

	// CloseTimeout bounds how long Stop waits for an in-flight write to
	// drain before a session is dropped.
	CloseTimeout time.Duration

	// DialTimeout bounds ConnectReverse/ConnectRepeater attempts.
	DialTimeout time.Duration

	// Logger receives connection lifecycle, handshake, and encoder
	// fallback diagnostics. Defaults to NoOpLogger.
	Logger Logger

	// Thumbnail, if set, records a preview size for embedders that call
	// Framebuffer.Thumbnail (see thumbnail.go). Nothing in this package
	// reads it; Framebuffer.Thumbnail takes its bounds as arguments.
	Thumbnail *ThumbnailConfig
}

// ThumbnailConfig holds a preview size (maximum width and height) for
// Framebuffer.Thumbnail callers.
type ThumbnailConfig struct {
	MaxWidth, MaxHeight int
}

// ServerOption configures a ServerConfig. Applied left to right by Start.
type ServerOption func(*ServerConfig)

// defaultServerConfig returns the configuration Start uses before any
// ServerOption overrides it.
func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ProtocolVersion:  protocolVersion38,
		HandshakeTimeout: 10 * time.Second,
		CloseTimeout:     2 * time.Second,
		DialTimeout:      30 * time.Second,
		Logger:           &NoOpLogger{},
	}
}

// WithInterface binds the listener to a specific local address instead of
// all interfaces.
func WithInterface(iface string) ServerOption {
	return func(c *ServerConfig) { c.Interface = iface }
}

// WithDesktopName sets the name advertised in ServerInit.
func WithDesktopName(name string) ServerOption {
	return func(c *ServerConfig) { c.DesktopName = name }
}

// WithPassword enables classic VNC Authentication with the given shared
// password. An empty password (the default) disables VncAuth and offers
// only the None security type.
func WithPassword(password string) ServerOption {
	return func(c *ServerConfig) { c.Password = password }
}

// WithProtocolVersion overrides the RFB version the server offers first.
func WithProtocolVersion(v ProtocolVersion) ServerOption {
	return func(c *ServerConfig) { c.ProtocolVersion = v }
}

// WithMaxClients bounds the number of concurrent sessions.
func WithMaxClients(n int) ServerOption {
	return func(c *ServerConfig) { c.MaxClients = n }
}

// WithLogger attaches a Logger used across the listener, sessions, and
// encoder family.
func WithLogger(logger Logger) ServerOption {
	return func(c *ServerConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithHandshakeTimeout overrides how long a connection may spend in
// AwaitVersion/AwaitSecurity/AwaitInit before being dropped.
func WithHandshakeTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.HandshakeTimeout = d }
}

// WithCloseTimeout overrides how long Stop waits for in-flight writes to
// drain before dropping a session.
func WithCloseTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.CloseTimeout = d }
}

// WithDialTimeout overrides the default timeout for ConnectReverse and
// ConnectRepeater attempts.
func WithDialTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.DialTimeout = d }
}

// WithThumbnail sets ServerConfig.Thumbnail. Framebuffer.Thumbnail works
// without it and does not read it; zero bounds passed to it mean no limit.
func WithThumbnail(maxWidth, maxHeight int) ServerOption {
	return func(c *ServerConfig) { c.Thumbnail = &ThumbnailConfig{MaxWidth: maxWidth, MaxHeight: maxHeight} }
}
