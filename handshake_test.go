// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestProtocolVersion_StringAndLine(t *testing.T) {
	v := ProtocolVersion{Major: 3, Minor: 8}
	if v.String() != "003.008" {
		t.Fatalf("String() = %q, want %q", v.String(), "003.008")
	}
	if string(v.Line()) != "RFB 003.008\n" {
		t.Fatalf("Line() = %q, want %q", v.Line(), "RFB 003.008\n")
	}
}

func TestProtocolVersion_AtLeast(t *testing.T) {
	if !protocolVersion38.AtLeast(protocolVersion37) {
		t.Fatal("3.8 should be at least 3.7")
	}
	if protocolVersion33.AtLeast(protocolVersion38) {
		t.Fatal("3.3 should not be at least 3.8")
	}
	if !protocolVersion37.AtLeast(protocolVersion37) {
		t.Fatal("3.7 should be at least itself")
	}
}

func TestNegotiateVersion_AgreesOnLowerClientVersion(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	done := make(chan struct{})
	var agreed ProtocolVersion
	var negErr error
	go func() {
		agreed, negErr = negotiateVersion(serverConn, protocolVersion38)
		close(done)
	}()

	var serverLine [protocolVersionLength]byte
	if _, err := clientConn.Read(serverLine[:]); err != nil {
		t.Fatalf("read server version line: %v", err)
	}
	if string(serverLine[:]) != "RFB 003.008\n" {
		t.Fatalf("server offered %q, want RFB 003.008", serverLine)
	}

	if _, err := clientConn.Write([]byte("RFB 003.003\n")); err != nil {
		t.Fatalf("write client version: %v", err)
	}

	<-done
	if negErr != nil {
		t.Fatalf("negotiateVersion: %v", negErr)
	}
	if agreed != protocolVersion33 {
		t.Fatalf("agreed version = %v, want 3.3", agreed)
	}
}

func TestNegotiateVersion_RejectsUnsupportedMajor(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := negotiateVersion(serverConn, protocolVersion38)
		done <- err
	}()

	var serverLine [protocolVersionLength]byte
	_, _ = clientConn.Read(serverLine[:])
	_, _ = clientConn.Write([]byte("RFB 002.000\n"))

	err := <-done
	if err == nil {
		t.Fatal("expected an error for an unsupported major version")
	}
	if !IsVNCError(err, ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}
}

func TestNegotiateSecurity_None33(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	registry := NewAuthRegistry()

	done := make(chan error, 1)
	go func() {
		done <- negotiateSecurity(context.Background(), serverConn, protocolVersion33, registry, &NoOpLogger{})
	}()

	var typeBytes [4]byte
	if _, err := clientConn.Read(typeBytes[:]); err != nil {
		t.Fatalf("read security type: %v", err)
	}
	securityType := uint32(typeBytes[0])<<24 | uint32(typeBytes[1])<<16 | uint32(typeBytes[2])<<8 | uint32(typeBytes[3])
	if securityType != 1 {
		t.Fatalf("3.3 security type = %d, want 1 (None)", securityType)
	}

	var result [4]byte
	if _, err := clientConn.Read(result[:]); err != nil {
		t.Fatalf("read security result: %v", err)
	}
	if result != [4]byte{0, 0, 0, 0} {
		t.Fatalf("security result = %v, want success", result)
	}

	if err := <-done; err != nil {
		t.Fatalf("negotiateSecurity: %v", err)
	}
}

func TestNegotiateSecurity_ListedUnder37(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	registry := NewAuthRegistry()

	done := make(chan error, 1)
	go func() {
		done <- negotiateSecurity(context.Background(), serverConn, protocolVersion38, registry, &NoOpLogger{})
	}()

	var header [2]byte // count byte + the one registered type (None)
	if _, err := clientConn.Read(header[:]); err != nil {
		t.Fatalf("read security type list: %v", err)
	}
	if header[0] != 1 || header[1] != 1 {
		t.Fatalf("security list = %v, want [1 1]", header)
	}

	if _, err := clientConn.Write([]byte{1}); err != nil {
		t.Fatalf("write chosen security type: %v", err)
	}

	var result [4]byte
	if _, err := clientConn.Read(result[:]); err != nil {
		t.Fatalf("read security result: %v", err)
	}
	if result != [4]byte{0, 0, 0, 0} {
		t.Fatalf("security result = %v, want success", result)
	}

	if err := <-done; err != nil {
		t.Fatalf("negotiateSecurity: %v", err)
	}
}

func TestNegotiateInit(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	fb := NewFramebuffer(800, 600)

	done := make(chan struct {
		shared bool
		err    error
	}, 1)
	go func() {
		shared, err := negotiateInit(serverConn, fb, "test desktop")
		done <- struct {
			shared bool
			err    error
		}{shared, err}
	}()

	if _, err := clientConn.Write([]byte{1}); err != nil {
		t.Fatalf("write ClientInit: %v", err)
	}

	serverInit := make([]byte, 4+16+4+len("test desktop"))
	if _, err := clientConn.Read(serverInit); err != nil {
		t.Fatalf("read ServerInit: %v", err)
	}

	w := uint16(serverInit[0])<<8 | uint16(serverInit[1])
	h := uint16(serverInit[2])<<8 | uint16(serverInit[3])
	if w != 800 || h != 600 {
		t.Fatalf("ServerInit dimensions = %dx%d, want 800x600", w, h)
	}

	name := string(serverInit[24:])
	if name != "test desktop" {
		t.Fatalf("ServerInit name = %q, want %q", name, "test desktop")
	}

	result := <-done
	if result.err != nil {
		t.Fatalf("negotiateInit: %v", result.err)
	}
	if !result.shared {
		t.Fatal("expected sharedFlag true")
	}
}

// withDeadline sets a short deadline on a net.Pipe end so a test that expects
// no further traffic does not hang forever if the implementation misbehaves.
func withDeadline(t *testing.T, conn net.Conn) {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
}
