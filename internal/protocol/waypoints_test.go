package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func wp(name string, x, y, z int32, shared ...uuid.UUID) WaypointEntry {
	return WaypointEntry{
		Name: name, X: x, Y: y, Z: z,
		Dimension:  "overworld",
		Kind:       "home",
		Visibility: VisibilityShared,
		Owner:      uuid.MustParse("6f2c0000-0000-4000-8000-000000000001"),
		SharedWith: shared,
	}
}

func sameEntries(a, b []WaypointEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.Name != y.Name || x.X != y.X || x.Y != y.Y || x.Z != y.Z ||
			x.Dimension != y.Dimension || x.Kind != y.Kind ||
			x.Visibility != y.Visibility || x.Owner != y.Owner {
			return false
		}
		// nil and empty shared sets are the same on the wire
		if len(x.SharedWith) != len(y.SharedWith) {
			return false
		}
		for j := range x.SharedWith {
			if x.SharedWith[j] != y.SharedWith[j] {
				return false
			}
		}
	}
	return true
}

func TestWaypointSnapshot_RoundTrip(t *testing.T) {
	friend := uuid.MustParse("6f2c0000-0000-4000-8000-0000000000aa")
	entries := []WaypointEntry{
		wp("spawn", 0, 64, 0),
		wp("mine", -1024, 11, 2048, friend),
		{
			Name: "void", X: -2147483648, Y: 2147483647, Z: -1,
			Visibility: VisibilityPrivate,
			Owner:      uuid.MustParse("6f2c0000-0000-4000-8000-0000000000bb"),
		},
	}
	b, err := EncodeWaypointSnapshot(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWaypointSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sameEntries(entries, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", entries, got)
	}
}

func TestWaypointSnapshot_OrderPreserved(t *testing.T) {
	entries := []WaypointEntry{wp("c", 3, 3, 3), wp("a", 1, 1, 1), wp("b", 2, 2, 2)}
	b, err := EncodeWaypointSnapshot(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWaypointSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i, name := range []string{"c", "a", "b"} {
		if got[i].Name != name {
			t.Fatalf("entry %d: expected %q, got %q", i, name, got[i].Name)
		}
	}
}

func TestWaypointSnapshot_Deterministic(t *testing.T) {
	entries := []WaypointEntry{wp("spawn", 0, 64, 0), wp("mine", 9, 9, 9)}
	b1, _ := EncodeWaypointSnapshot(entries)
	b2, _ := EncodeWaypointSnapshot(entries)
	if !bytes.Equal(b1, b2) {
		t.Fatalf("encoding not deterministic")
	}
}

func TestWaypointSnapshot_EmptyFieldsNormalized(t *testing.T) {
	in := []WaypointEntry{{Name: "bare", Owner: uuid.MustParse("6f2c0000-0000-4000-8000-0000000000cc")}}
	b, err := EncodeWaypointSnapshot(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWaypointSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got[0].Dimension != "" || got[0].Kind != "" || got[0].Visibility != "" {
		t.Fatalf("expected empty strings, got %+v", got[0])
	}
	if got[0].SharedWith == nil || len(got[0].SharedWith) != 0 {
		t.Fatalf("expected empty shared set, got %v", got[0].SharedWith)
	}
}

func TestWaypointSnapshot_TruncatedFails(t *testing.T) {
	entries := []WaypointEntry{wp("a", 1, 2, 3), wp("b", 4, 5, 6), wp("c", 7, 8, 9)}
	b, err := EncodeWaypointSnapshot(entries)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Chop the buffer so the count promises 3 entries but only ~1 is present.
	for _, cut := range []int{1, len(b) / 3, len(b) - 1} {
		got, err := DecodeWaypointSnapshot(b[:cut])
		if err == nil {
			t.Fatalf("cut at %d: expected decode error, got %d entries", cut, len(got))
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("cut at %d: expected ErrMalformed, got %v", cut, err)
		}
		if got != nil {
			t.Fatalf("cut at %d: partial result returned", cut)
		}
	}
}

func TestWaypointSnapshot_TrailingBytesFail(t *testing.T) {
	b, _ := EncodeWaypointSnapshot([]WaypointEntry{wp("a", 1, 2, 3)})
	if _, err := DecodeWaypointSnapshot(append(b, 0x00)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestWaypointSnapshot_HostileCountBounded(t *testing.T) {
	// A count prefix claiming ~1e18 entries must be refused, not allocated.
	hostile := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
	if _, err := DecodeWaypointSnapshot(hostile); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestWaypointSnapshot_OversizedStringRefusedOnEncode(t *testing.T) {
	e := wp("x", 0, 0, 0)
	e.Name = strings.Repeat("n", MaxStringLen+1)
	if _, err := EncodeWaypointSnapshot([]WaypointEntry{e}); err == nil {
		t.Fatalf("expected encode error for oversized name")
	}
}

func TestWaypointSnapshot_EmptySnapshot(t *testing.T) {
	b, err := EncodeWaypointSnapshot(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeWaypointSnapshot(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(got))
	}
}
