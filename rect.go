// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

// Rect is an axis-aligned pixel rectangle in framebuffer coordinates.
type Rect struct {
	X, Y, W, H uint16
}

// Empty reports whether the rectangle covers zero pixels.
func (r Rect) Empty() bool {
	return r.W == 0 || r.H == 0
}

// Right returns the exclusive right edge of the rectangle.
func (r Rect) Right() int {
	return int(r.X) + int(r.W)
}

// Bottom returns the exclusive bottom edge of the rectangle.
func (r Rect) Bottom() int {
	return int(r.Y) + int(r.H)
}

// Intersects reports whether r and o share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return int(r.X) < o.Right() && int(o.X) < r.Right() &&
		int(r.Y) < o.Bottom() && int(o.Y) < r.Bottom()
}

// Intersect returns the overlapping region of r and o, or the zero Rect
// (Empty() true) if they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	if !r.Intersects(o) {
		return Rect{}
	}
	x0 := maxInt(int(r.X), int(o.X))
	y0 := maxInt(int(r.Y), int(o.Y))
	x1 := minInt(r.Right(), o.Right())
	y1 := minInt(r.Bottom(), o.Bottom())
	return Rect{X: uint16(x0), Y: uint16(y0), W: uint16(x1 - x0), H: uint16(y1 - y0)} // #nosec G115 - bounded by uint16 inputs
}

// Union returns the smallest rectangle containing both r and o. A zero
// operand is treated as the identity.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x0 := minInt(int(r.X), int(o.X))
	y0 := minInt(int(r.Y), int(o.Y))
	x1 := maxInt(r.Right(), o.Right())
	y1 := maxInt(r.Bottom(), o.Bottom())
	return Rect{X: uint16(x0), Y: uint16(y0), W: uint16(x1 - x0), H: uint16(y1 - y0)} // #nosec G115 - bounded by uint16 inputs
}

// ClampTo intersects r with the rectangle (0, 0, w, h), the visible
// framebuffer extent.
func (r Rect) ClampTo(w, h uint16) Rect {
	return r.Intersect(Rect{W: w, H: h})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// DirtyRegion accumulates the union of rectangles marked dirty since a
// session last drained its updates. It is per-session, never global,
// because each client consumes updates at a different rate (§ Per-session
// vs per-server dirty region).
type DirtyRegion struct {
	rects []Rect
}

// Mark unions rect into the accumulated region. Adjacent/overlapping
// rectangles are periodically coalesced in Drain to bound growth.
func (d *DirtyRegion) Mark(rect Rect) {
	if rect.Empty() {
		return
	}
	d.rects = append(d.rects, rect)
}

// Empty reports whether no region has been marked dirty.
func (d *DirtyRegion) Empty() bool {
	return len(d.rects) == 0
}

// Drain returns the portion of the accumulated dirty region that falls
// within limit -- the client's current pending FramebufferUpdateRequest
// rectangle -- coalesced into one bounding rectangle and clamped to limit.
// Any dirty area outside limit is retained rather than discarded, so a
// later request that widens past limit still observes it (§3's "pending
// update request rectangle").
func (d *DirtyRegion) Drain(limit Rect) []Rect {
	if len(d.rects) == 0 {
		return nil
	}
	union := d.rects[0]
	for _, r := range d.rects[1:] {
		union = union.Union(r)
	}

	sent := union.Intersect(limit)
	if sent.Empty() {
		d.rects = []Rect{union}
		return nil
	}

	d.rects = rectSubtract(union, limit)
	return []Rect{sent}
}

// Clear discards all accumulated rectangles without returning them.
func (d *DirtyRegion) Clear() {
	d.rects = d.rects[:0]
}

// rectSubtract returns the portion of full lying outside cut, decomposed
// into up to four axis-aligned bands (top, bottom, left, right of the
// overlap), or a single-element slice containing full unchanged if the two
// don't intersect at all.
func rectSubtract(full, cut Rect) []Rect {
	if !full.Intersects(cut) {
		return []Rect{full}
	}

	fx0, fy0, fx1, fy1 := int(full.X), int(full.Y), full.Right(), full.Bottom()
	cx0, cy0, cx1, cy1 := int(cut.X), int(cut.Y), cut.Right(), cut.Bottom()

	var out []Rect
	if cy0 > fy0 {
		out = append(out, Rect{X: full.X, Y: full.Y, W: full.W, H: uint16(cy0 - fy0)}) // #nosec G115 - bounded by full's own dimensions
	}
	if cy1 < fy1 {
		out = append(out, Rect{X: full.X, Y: uint16(cy1), W: full.W, H: uint16(fy1 - cy1)}) // #nosec G115 - bounded by full's own dimensions
	}

	midY0, midY1 := maxInt(fy0, cy0), minInt(fy1, cy1)
	if midY1 > midY0 {
		if cx0 > fx0 {
			out = append(out, Rect{X: full.X, Y: uint16(midY0), W: uint16(cx0 - fx0), H: uint16(midY1 - midY0)}) // #nosec G115 - bounded by full's own dimensions
		}
		if cx1 < fx1 {
			out = append(out, Rect{X: uint16(cx1), Y: uint16(midY0), W: uint16(fx1 - cx1), H: uint16(midY1 - midY0)}) // #nosec G115 - bounded by full's own dimensions
		}
	}
	return out
}
