package protocol

// Frame prepends the message id byte to a payload. The transport below is
// already length-framed, so no length prefix is needed here.
func Frame(id byte, payload []byte) []byte {
	out := make([]byte, 0, 1+len(payload))
	out = append(out, id)
	return append(out, payload...)
}

// ParseFrame splits a frame into message id and payload.
func ParseFrame(b []byte) (byte, []byte, error) {
	if len(b) == 0 {
		return 0, nil, (&wireReader{b: b}).fail("empty frame")
	}
	return b[0], b[1:], nil
}
