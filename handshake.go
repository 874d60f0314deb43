// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// protocolVersionLength is the fixed wire length of a "RFB XXX.YYY\n" line.
const protocolVersionLength = 12

// ProtocolVersion identifies one of the three RFB handshake dialects this
// package speaks.
type ProtocolVersion struct {
	Major, Minor uint
}

// String renders the version the way it appears on the wire, e.g. "003.008".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%03d.%03d", v.Major, v.Minor)
}

// Line renders the full 12-byte ProtocolVersion handshake message.
func (v ProtocolVersion) Line() []byte {
	return []byte(fmt.Sprintf("RFB %s\n", v.String()))
}

// AtLeast reports whether v is equal to or newer than other.
func (v ProtocolVersion) AtLeast(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

var (
	protocolVersion33 = ProtocolVersion{Major: 3, Minor: 3}
	protocolVersion37 = ProtocolVersion{Major: 3, Minor: 7}
	protocolVersion38 = ProtocolVersion{Major: 3, Minor: 8}
)

// negotiateVersion implements state AwaitVersion: the server offers its
// configured version, reads the client's response, and settles on
// min(configured, client). An agreed version of 3.0-3.2 is rejected; no
// other clamping is applied, so a client version such as 3.5 is kept as sent.
func negotiateVersion(conn net.Conn, offered ProtocolVersion) (ProtocolVersion, error) {
	if _, err := conn.Write(offered.Line()); err != nil {
		return ProtocolVersion{}, networkError("negotiateVersion", "failed to write server ProtocolVersion", err)
	}

	var raw [protocolVersionLength]byte
	if _, err := io.ReadFull(conn, raw[:]); err != nil {
		return ProtocolVersion{}, networkError("negotiateVersion", "failed to read client ProtocolVersion", err)
	}

	validator := newInputValidator()
	if err := validator.ValidateProtocolVersion(string(raw[:])); err != nil {
		return ProtocolVersion{}, protocolError("negotiateVersion", "invalid client protocol version", err)
	}

	var major, minor uint
	if n, err := fmt.Sscanf(string(raw[:]), "RFB %d.%d\n", &major, &minor); n != 2 || err != nil {
		return ProtocolVersion{}, protocolError("negotiateVersion", "unparseable client protocol version", err)
	}
	client := ProtocolVersion{Major: major, Minor: minor}

	if client.Major < 3 {
		return ProtocolVersion{}, unsupportedError("negotiateVersion",
			fmt.Sprintf("unsupported major version %d", client.Major), nil)
	}

	agreed := offered
	if !client.AtLeast(offered) {
		agreed = client
	}
	if agreed.Major == 3 && agreed.Minor < 3 {
		return ProtocolVersion{}, unsupportedError("negotiateVersion",
			fmt.Sprintf("unsupported protocol version %s", agreed), nil)
	}
	return agreed, nil
}

// negotiateSecurity implements state AwaitSecurity. Under 3.3 the server
// unilaterally dictates a single security type; under 3.7+ it offers the
// registry's supported types and reads the client's choice. The selected
// ServerAuth then runs its type-specific exchange, after which the common
// SecurityResult message (and, for failures under 3.8+, a UTF-8 reason
// string) is written here.
func negotiateSecurity(ctx context.Context, conn net.Conn, version ProtocolVersion, registry *AuthRegistry, logger Logger) error {
	types := registry.GetSupportedTypes()
	if len(types) == 0 {
		return authenticationError("negotiateSecurity", "no security types configured", nil)
	}

	var selected uint8
	if version.Major == 3 && version.Minor < 7 {
		selected = types[0]
		if err := binary.Write(conn, binary.BigEndian, uint32(selected)); err != nil {
			return networkError("negotiateSecurity", "failed to write 3.3 security type", err)
		}
	} else {
		header := append([]byte{byte(len(types))}, types...)
		if _, err := conn.Write(header); err != nil {
			return networkError("negotiateSecurity", "failed to write security type list", err)
		}

		var chosen [1]byte
		if _, err := io.ReadFull(conn, chosen[:]); err != nil {
			return networkError("negotiateSecurity", "failed to read client security choice", err)
		}
		selected = chosen[0]
		if !registry.IsSupported(selected) {
			return authenticationError("negotiateSecurity",
				fmt.Sprintf("client selected unsupported security type %d", selected), nil)
		}
	}

	auth, err := registry.CreateAuth(selected)
	if err != nil {
		return err
	}
	if authWithLogger, ok := auth.(interface{ SetLogger(Logger) }); ok {
		authWithLogger.SetLogger(logger)
	}

	handshakeErr := auth.Handshake(ctx, conn)

	if handshakeErr == nil {
		if err := binary.Write(conn, binary.BigEndian, uint32(0)); err != nil {
			return networkError("negotiateSecurity", "failed to write SecurityResult success", err)
		}
		return nil
	}

	if err := binary.Write(conn, binary.BigEndian, uint32(1)); err != nil {
		return networkError("negotiateSecurity", "failed to write SecurityResult failure", err)
	}
	if version.AtLeast(protocolVersion38) {
		reason := []byte("authentication failed")
		if err := binary.Write(conn, binary.BigEndian, uint32(len(reason))); err != nil {
			return networkError("negotiateSecurity", "failed to write failure reason length", err)
		}
		if _, err := conn.Write(reason); err != nil {
			return networkError("negotiateSecurity", "failed to write failure reason", err)
		}
	}
	return authenticationError("negotiateSecurity", "client authentication failed", handshakeErr)
}

// negotiateInit implements state AwaitInit: it reads ClientInit (the
// sharedFlag byte) and writes ServerInit (framebuffer dimensions, the
// server's canonical pixel format, and the desktop name).
func negotiateInit(conn net.Conn, fb *Framebuffer, desktopName string) (shared bool, err error) {
	var sharedFlag [1]byte
	if _, err := io.ReadFull(conn, sharedFlag[:]); err != nil {
		return false, networkError("negotiateInit", "failed to read ClientInit", err)
	}

	out := make([]byte, 0, 24+len(desktopName))
	out = appendUint16(out, fb.Width())
	out = appendUint16(out, fb.Height())

	pfBytes, err := writePixelFormat(CanonicalPixelFormat)
	if err != nil {
		return false, err
	}
	out = append(out, pfBytes...)
	out = append(out, byte(len(desktopName)>>24), byte(len(desktopName)>>16), byte(len(desktopName)>>8), byte(len(desktopName))) // #nosec G115 - desktop name bounded by caller
	out = append(out, desktopName...)

	if _, err := conn.Write(out); err != nil {
		return false, networkError("negotiateInit", "failed to write ServerInit", err)
	}
	return sharedFlag[0] != 0, nil
}
