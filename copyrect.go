// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "sync"

// CopyRectEntry is a queued CopyRect record: (src, dx, dy). Dest is
// computed as src offset by (dx, dy).
type CopyRectEntry struct {
	Src    Rect
	DX, DY int
}

// Dest returns the destination rectangle this entry copies into.
func (e CopyRectEntry) Dest() Rect {
	return Rect{
		X: uint16(int(e.Src.X) + e.DX), // #nosec G115 - framebuffer coordinates fit uint16
		Y: uint16(int(e.Src.Y) + e.DY), // #nosec G115 - framebuffer coordinates fit uint16
		W: e.Src.W,
		H: e.Src.H,
	}
}

// CopyRectScheduler implements the offset-conflict-demotion discipline of
// libvncserver's rfbScheduleCopyRect: copies queued within one flush are
// emitted as CopyRect messages before any dirty-region encoding, and a
// newly scheduled copy whose destination overlaps a pending copy with a
// different (dx, dy) demotes the older entry's destination into the dirty
// region instead of emitting two conflicting copies.
type CopyRectScheduler struct {
	mu      sync.Mutex
	pending []CopyRectEntry
	dirty   *DirtyRegion
}

// NewCopyRectScheduler creates a scheduler that demotes conflicting entries
// into the given dirty region.
func NewCopyRectScheduler(dirty *DirtyRegion) *CopyRectScheduler {
	return &CopyRectScheduler{dirty: dirty}
}

// Schedule queues a copy of src offset by (dx, dy). Any pending entry whose
// destination overlaps the new entry's destination, with a different
// offset, is removed from the queue and its destination is marked dirty.
func (s *CopyRectScheduler) Schedule(src Rect, dx, dy int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := CopyRectEntry{Src: src, DX: dx, DY: dy}
	dest := entry.Dest()

	kept := s.pending[:0]
	for _, existing := range s.pending {
		if (existing.DX != dx || existing.DY != dy) && existing.Dest().Intersects(dest) {
			s.dirty.Mark(existing.Dest())
			continue
		}
		kept = append(kept, existing)
	}
	s.pending = append(kept, entry)
}

// Drain returns all queued entries and clears the queue. The session emits
// each entry as a CopyRect rectangle before any dirty-region pixel updates
// of the same flush; it does not touch the framebuffer, whose pixels are
// moved by Server.DoCopyRect from the server's own queue.
func (s *CopyRectScheduler) Drain() []CopyRectEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}
	out := s.pending
	s.pending = nil
	return out
}

// Empty reports whether the queue currently holds no entries.
func (s *CopyRectScheduler) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) == 0
}

// DoCopyRect immediately applies a queued copy to the framebuffer. The
// queue entry itself is preserved by the caller for later emission as a
// CopyRect rectangle.
func DoCopyRect(fb *Framebuffer, entry CopyRectEntry) error {
	return fb.CopyRegion(entry.Src, entry.Dest())
}
