package config

import (
	"bytes"
	"testing"
)

func TestEncodingRoundTrip(t *testing.T) {
	enc := DefaultEncoding()

	for _, test := range []struct {
		codec Codec
		text  string
		raw   []byte
	}{
		{CodecUTF8, "センター", []byte("センター")},
		{CodecUTF16, "ab", []byte{'a', 0, 'b', 0}},
		{CodecShiftJIS, "ひざ", []byte{0x82, 0xd0, 0x82, 0xb4}},
	} {
		raw, err := enc.Encode(test.codec, test.text)
		if err != nil {
			t.Fatalf("%v: %v", test.codec, err)
		}
		if !bytes.Equal(raw, test.raw) {
			t.Errorf("%v: encoded %x, want %x", test.codec, raw, test.raw)
		}
		s, err := enc.Decode(test.codec, raw)
		if err != nil {
			t.Fatalf("%v: %v", test.codec, err)
		}
		if s != test.text {
			t.Errorf("%v: decoded %q, want %q", test.codec, s, test.text)
		}
	}
}

func TestShiftJISStopsAtZero(t *testing.T) {
	s, err := DefaultEncoding().Decode(CodecShiftJIS, []byte{'a', 'b', 0, 0xfd, 0xfd})
	if err != nil {
		t.Fatal(err)
	}
	if s != "ab" {
		t.Errorf("got %q", s)
	}
}

func TestConstants(t *testing.T) {
	enc := DefaultEncoding()
	if enc.Constant(ConstantKnee) != "ひざ" {
		t.Errorf("knee token %q", enc.Constant(ConstantKnee))
	}
	if enc.Constant(ConstantCenter) != "センター" {
		t.Errorf("center token %q", enc.Constant(ConstantCenter))
	}
}
