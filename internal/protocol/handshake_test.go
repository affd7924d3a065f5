package protocol

import (
	"errors"
	"testing"
)

func TestVersion_RoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, Version, 127, 128, 1 << 20} {
		got, err := DecodeVersion(EncodeVersion(v))
		if err != nil {
			t.Fatalf("version %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("expected %d, got %d", v, got)
		}
	}
}

func TestVersion_Unreadable(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"unterminated": {0x80},
		"trailing":     {0x04, 0x00},
		"overflow":     {0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02},
	}
	for name, b := range cases {
		if _, err := DecodeVersion(b); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}
