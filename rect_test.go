// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package rfb

import "testing"

func TestRect_IntersectAndUnion(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	b := Rect{X: 5, Y: 5, W: 10, H: 10}

	i := a.Intersect(b)
	if i != (Rect{X: 5, Y: 5, W: 5, H: 5}) {
		t.Fatalf("Intersect = %+v, want {5 5 5 5}", i)
	}

	u := a.Union(b)
	if u != (Rect{X: 0, Y: 0, W: 15, H: 15}) {
		t.Fatalf("Union = %+v, want {0 0 15 15}", u)
	}
}

func TestDirtyRegion_Drain_WithinLimitClearsRegion(t *testing.T) {
	var d DirtyRegion
	d.Mark(Rect{X: 0, Y: 0, W: 10, H: 10})

	sent := d.Drain(Rect{X: 0, Y: 0, W: 20, H: 20})
	if len(sent) != 1 || sent[0] != (Rect{X: 0, Y: 0, W: 10, H: 10}) {
		t.Fatalf("Drain = %+v, want the full marked rect", sent)
	}
	if !d.Empty() {
		t.Fatal("expected the region to be fully drained when limit covers everything marked")
	}
}

// TestDirtyRegion_Drain_OutsideLimitRetainsRemainder guards against the bug
// where a sub-rectangle FramebufferUpdateRequest silently discarded any
// dirty area outside the requested rect: a pixel write outside the
// client's current request must stay pending so a later, wider request
// still observes it (§3's "pending update request rectangle").
func TestDirtyRegion_Drain_OutsideLimitRetainsRemainder(t *testing.T) {
	var d DirtyRegion
	// Mark the whole 100x100 surface dirty, but the client only requested
	// the left half.
	d.Mark(Rect{X: 0, Y: 0, W: 100, H: 100})

	sent := d.Drain(Rect{X: 0, Y: 0, W: 50, H: 100})
	if len(sent) != 1 || sent[0] != (Rect{X: 0, Y: 0, W: 50, H: 100}) {
		t.Fatalf("Drain = %+v, want the left half only", sent)
	}
	if d.Empty() {
		t.Fatal("expected the right half to remain pending, not be discarded")
	}

	// A later request covering the whole surface must still see the right
	// half, which was never actually sent to the client.
	rest := d.Drain(Rect{X: 0, Y: 0, W: 100, H: 100})
	var union Rect
	for _, r := range rest {
		union = union.Union(r)
	}
	want := Rect{X: 50, Y: 0, W: 50, H: 100}
	if union != want {
		t.Fatalf("remaining dirty area = %+v, want %+v (the right half, never lost)", union, want)
	}
	if !d.Empty() {
		t.Fatal("expected the region to be empty after the wider request drains the remainder")
	}
}

func TestDirtyRegion_Drain_DisjointFromLimitKeepsEverythingPending(t *testing.T) {
	var d DirtyRegion
	d.Mark(Rect{X: 0, Y: 0, W: 10, H: 10})

	sent := d.Drain(Rect{X: 50, Y: 50, W: 10, H: 10})
	if sent != nil {
		t.Fatalf("Drain = %+v, want nil (no overlap with the request)", sent)
	}
	if d.Empty() {
		t.Fatal("expected the dirty rect to remain pending when it doesn't overlap the request")
	}
}

func TestRectSubtract(t *testing.T) {
	full := Rect{X: 0, Y: 0, W: 100, H: 100}

	cases := []struct {
		name string
		cut  Rect
		want Rect // bounding union of the returned bands
	}{
		{"cut fully contains full", Rect{X: 0, Y: 0, W: 100, H: 100}, Rect{}},
		{"cut is top-left corner", Rect{X: 0, Y: 0, W: 50, H: 50}, Rect{X: 0, Y: 0, W: 100, H: 100}},
		{"cut is center", Rect{X: 25, Y: 25, W: 50, H: 50}, Rect{X: 0, Y: 0, W: 100, H: 100}},
		{"cut is left band", Rect{X: 0, Y: 0, W: 40, H: 100}, Rect{X: 40, Y: 0, W: 60, H: 100}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			bands := rectSubtract(full, c.cut)
			var union Rect
			for _, b := range bands {
				union = union.Union(b)
				if b.Intersects(c.cut) {
					t.Fatalf("band %+v overlaps cut %+v", b, c.cut)
				}
			}
			if union != c.want {
				t.Fatalf("union of bands = %+v, want %+v", union, c.want)
			}
		})
	}
}
