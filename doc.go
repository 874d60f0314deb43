// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Package rfb implements the server half of the Remote Framebuffer (RFB)
// protocol as defined in RFC 6143: it exposes a screen's pixel buffer to
// one or more remote viewers, streams incremental updates, and forwards
// input events back to an embedding application.
//
// # Basic Usage
//
//	fb := rfb.NewFramebuffer(1920, 1080)
//
//	srv, err := rfb.Start(fb, rfb.WithDesktopName("example"), rfb.WithPassword("secret"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
//	go func() {
//		for ev := range srv.Events() {
//			switch e := ev.(type) {
//			case rfb.PointerEvent:
//				handlePointer(e)
//			case rfb.KeyEvent:
//				handleKey(e)
//			case rfb.CutTextEvent:
//				handleClipboard(e.Text)
//			}
//		}
//	}()
//
//	// Elsewhere, whenever the embedder has produced a new frame:
//	fb.Write(pixels)
//	fb.MarkDirty(rfb.Rect{X: 0, Y: 0, W: 1920, H: 1080})
//
// # Reverse and Repeater Connections
//
//	id, err := srv.ConnectReverse(ctx, "viewer.example.com:5500")
//
//	id, err := srv.ConnectRepeater(ctx, "repeater.example.com:5500", "ID:1234")
//
// # Error Handling
//
//	if rfb.IsVNCError(err, rfb.ErrAuthentication) {
//		log.Printf("authentication failed: %v", err)
//	}
//
// This package follows the on-the-wire behavior of RFB 3.3/3.7/3.8,
// including CopyRect, RRE, CoRRE, Hextile, Zlib, ZlibHex, ZRLE, ZYWRLE,
// and Tight/TightPng. It does not implement TLS, file transfer, or
// multi-monitor extensions.
package rfb
