package protocol

// VersionUnreadable is reported in rejection messages when a handshake
// response could not be decoded.
const VersionUnreadable = -1

// EncodeVersion serializes a protocol token as a single uvarint, the payload
// of both the handshake query and the handshake response.
func EncodeVersion(version int) []byte {
	var w wireWriter
	w.uvarint(uint64(version))
	return w.bytes()
}

// DecodeVersion reads a single uvarint protocol token. Trailing bytes after
// the token are malformed.
func DecodeVersion(b []byte) (int, error) {
	r := wireReader{b: b}
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	if r.remaining() != 0 {
		return 0, r.fail("trailing bytes after version")
	}
	if v > 1<<31-1 {
		return 0, r.fail("version out of range")
	}
	return int(v), nil
}
