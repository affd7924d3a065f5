package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformed wraps every decode failure. A decode either yields a complete
// value or fails with an error unwrapping to ErrMalformed; partial results
// are never returned.
var ErrMalformed = errors.New("malformed payload")

type wireWriter struct {
	buf bytes.Buffer
	tmp [binary.MaxVarintLen64]byte
}

func (w *wireWriter) uvarint(v uint64) {
	n := binary.PutUvarint(w.tmp[:], v)
	w.buf.Write(w.tmp[:n])
}

func (w *wireWriter) int32be(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// string writes a uvarint length prefix followed by the UTF-8 bytes.
// Strings longer than MaxStringLen are refused at encode time so a peer
// never has to.
func (w *wireWriter) string(s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("string of %d bytes exceeds cap %d", len(s), MaxStringLen)
	}
	w.uvarint(uint64(len(s)))
	w.buf.WriteString(s)
	return nil
}

func (w *wireWriter) id(u uuid.UUID) {
	w.buf.Write(u[:])
}

func (w *wireWriter) bytes() []byte { return w.buf.Bytes() }

type wireReader struct {
	b   []byte
	off int
}

func (r *wireReader) fail(what string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformed, what, r.off)
}

func (r *wireReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, r.fail("bad varint")
	}
	r.off += n
	return v, nil
}

// count reads a uvarint and bounds it by max.
func (r *wireReader) count(max int, what string) (int, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(max) {
		return 0, fmt.Errorf("%w: %s count %d exceeds cap %d", ErrMalformed, what, v, max)
	}
	return int(v), nil
}

func (r *wireReader) int32be() (int32, error) {
	if r.off+4 > len(r.b) {
		return 0, r.fail("truncated int32")
	}
	v := int32(binary.BigEndian.Uint32(r.b[r.off:]))
	r.off += 4
	return v, nil
}

func (r *wireReader) string() (string, error) {
	n, err := r.count(MaxStringLen, "string")
	if err != nil {
		return "", err
	}
	if r.off+n > len(r.b) {
		return "", r.fail("truncated string")
	}
	s := string(r.b[r.off : r.off+n])
	r.off += n
	return s, nil
}

func (r *wireReader) id() (uuid.UUID, error) {
	var u uuid.UUID
	if r.off+16 > len(r.b) {
		return u, r.fail("truncated identity")
	}
	copy(u[:], r.b[r.off:r.off+16])
	r.off += 16
	return u, nil
}

func (r *wireReader) remaining() int { return len(r.b) - r.off }
