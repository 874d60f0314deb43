// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import (
	"bytes"
	"compress/zlib"
	"sync"
)

// Persistent zlib stream identifiers, matching the Tight encoding's stream
// numbering (0 = full-color zlib, 1 = mono, 2 = indexed) and reused for the
// single-stream encodings (Zlib, ZRLE, ZYWRLE each get their own id space).
const (
	StreamTightFullColor = 0
	StreamTightMono      = 1
	StreamTightIndexed   = 2
	StreamZlib           = 0
	StreamZRLE           = 0
	StreamZYWRLE         = 0
	StreamZlibHexRaw     = 0
	StreamZlibHexSub     = 1
)

// EncoderState holds a client's persistent, per-(encoding, stream-id) zlib
// deflate streams. RFB requires the deflate dictionary to survive across
// FramebufferUpdate messages; a stream is reset (and a new one created) iff
// the client's PixelFormat changes or the client disconnects, and a stream
// is never shared across clients.
type EncoderState struct {
	mu      sync.Mutex
	streams map[streamKey]*persistentStream
	level   int
}

type streamKey struct {
	encoding int32
	id       int
}

type persistentStream struct {
	buf *bytes.Buffer
	w   *zlib.Writer
}

// NewEncoderState creates encoder state with the given default zlib
// compression level (0-9).
func NewEncoderState(level int) *EncoderState {
	return &EncoderState{
		streams: make(map[streamKey]*persistentStream),
		level:   level,
	}
}

// SetLevel updates the compression level used for streams created from now
// on; existing open streams keep their original level until reset.
func (es *EncoderState) SetLevel(level int) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.level = level
}

// stream returns the persistent deflate stream for (encoding, id), creating
// it on first use.
func (es *EncoderState) stream(encoding int32, id int) (*persistentStream, error) {
	es.mu.Lock()
	defer es.mu.Unlock()

	key := streamKey{encoding: encoding, id: id}
	if ps, ok := es.streams[key]; ok {
		return ps, nil
	}

	buf := &bytes.Buffer{}
	w, err := zlib.NewWriterLevel(buf, clampZlibLevel(es.level))
	if err != nil {
		return nil, encodingError("EncoderState.stream", "failed to create zlib writer", err)
	}
	ps := &persistentStream{buf: buf, w: w}
	es.streams[key] = ps
	return ps, nil
}

// Compress deflates data through the persistent stream identified by
// (encoding, id), flushing with Z_SYNC_FLUSH semantics (zlib.Writer.Flush)
// so the dictionary carries across calls, and returns the compressed bytes
// produced by this call only.
func (es *EncoderState) Compress(encoding int32, id int, data []byte) ([]byte, error) {
	ps, err := es.stream(encoding, id)
	if err != nil {
		return nil, err
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	ps.buf.Reset()
	if _, err := ps.w.Write(data); err != nil {
		return nil, encodingError("EncoderState.Compress", "zlib write failed", err)
	}
	if err := ps.w.Flush(); err != nil {
		return nil, encodingError("EncoderState.Compress", "zlib flush failed", err)
	}

	out := make([]byte, ps.buf.Len())
	copy(out, ps.buf.Bytes())
	return out, nil
}

// Reset discards every persistent stream. Called when the client's
// PixelFormat changes (the byte stream semantics change with it) or when
// the client disconnects.
func (es *EncoderState) Reset() {
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, ps := range es.streams {
		_ = ps.w.Close()
	}
	es.streams = make(map[streamKey]*persistentStream)
}

// clampZlibLevel maps an RFB 0-9 compression level onto compress/zlib's
// accepted range, defaulting out-of-range values to zlib.DefaultCompression.
func clampZlibLevel(level int) int {
	if level < 0 || level > 9 {
		return zlib.DefaultCompression
	}
	return level
}
