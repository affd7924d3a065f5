package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// Waypoint visibility tags carried on the wire. The tag set is owned by the
// map layer; the codec treats them as opaque strings.
const (
	VisibilityPrivate = "PRIVATE"
	VisibilityShared  = "SHARED"
	VisibilityPublic  = "PUBLIC"
	VisibilityGlobal  = "GLOBAL"
)

// WaypointEntry is one named world position in a snapshot. Identities are
// opaque 128-bit values; the codec assumes no further structure.
type WaypointEntry struct {
	Name       string
	X, Y, Z    int32
	Dimension  string
	Kind       string
	Visibility string
	Owner      uuid.UUID
	SharedWith []uuid.UUID
}

// EncodeWaypointSnapshot serializes entries in order: uvarint entry count,
// then per entry name, x, y, z, dimension, kind, visibility, owner, shared
// count and shared identities. Nil SharedWith encodes as an empty set, so
// decoders never observe a missing-field state. The codec is stateless.
func EncodeWaypointSnapshot(entries []WaypointEntry) ([]byte, error) {
	if len(entries) > MaxSnapshotLen {
		return nil, fmt.Errorf("snapshot of %d entries exceeds cap %d", len(entries), MaxSnapshotLen)
	}
	var w wireWriter
	w.uvarint(uint64(len(entries)))
	for i := range entries {
		e := &entries[i]
		if err := w.string(e.Name); err != nil {
			return nil, fmt.Errorf("entry %d name: %w", i, err)
		}
		w.int32be(e.X)
		w.int32be(e.Y)
		w.int32be(e.Z)
		if err := w.string(e.Dimension); err != nil {
			return nil, fmt.Errorf("entry %d dimension: %w", i, err)
		}
		if err := w.string(e.Kind); err != nil {
			return nil, fmt.Errorf("entry %d kind: %w", i, err)
		}
		if err := w.string(e.Visibility); err != nil {
			return nil, fmt.Errorf("entry %d visibility: %w", i, err)
		}
		w.id(e.Owner)
		if len(e.SharedWith) > MaxSharedLen {
			return nil, fmt.Errorf("entry %d shares %d identities, cap %d", i, len(e.SharedWith), MaxSharedLen)
		}
		w.uvarint(uint64(len(e.SharedWith)))
		for _, s := range e.SharedWith {
			w.id(s)
		}
	}
	return w.bytes(), nil
}

// DecodeWaypointSnapshot reverses EncodeWaypointSnapshot, reconstructing
// entries in original order. Truncated or oversized input fails with an
// error wrapping ErrMalformed; no partial snapshot is ever returned.
func DecodeWaypointSnapshot(b []byte) ([]WaypointEntry, error) {
	r := wireReader{b: b}
	n, err := r.count(MaxSnapshotLen, "entry")
	if err != nil {
		return nil, err
	}
	entries := make([]WaypointEntry, 0, n)
	for i := 0; i < n; i++ {
		var e WaypointEntry
		if e.Name, err = r.string(); err != nil {
			return nil, err
		}
		if e.X, err = r.int32be(); err != nil {
			return nil, err
		}
		if e.Y, err = r.int32be(); err != nil {
			return nil, err
		}
		if e.Z, err = r.int32be(); err != nil {
			return nil, err
		}
		if e.Dimension, err = r.string(); err != nil {
			return nil, err
		}
		if e.Kind, err = r.string(); err != nil {
			return nil, err
		}
		if e.Visibility, err = r.string(); err != nil {
			return nil, err
		}
		if e.Owner, err = r.id(); err != nil {
			return nil, err
		}
		shared, err := r.count(MaxSharedLen, "shared identity")
		if err != nil {
			return nil, err
		}
		e.SharedWith = make([]uuid.UUID, 0, shared)
		for j := 0; j < shared; j++ {
			u, err := r.id()
			if err != nil {
				return nil, err
			}
			e.SharedWith = append(e.SharedWith, u)
		}
		entries = append(entries, e)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after snapshot", ErrMalformed, r.remaining())
	}
	return entries, nil
}
