package config

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Codec is text encoding of model file strings
type Codec int

const (
	CodecUTF16 Codec = iota
	CodecUTF8
	// fixed codec of legacy pmd files, never stored in file
	CodecShiftJIS
)

func (c Codec) String() string {
	switch c {
	case CodecUTF16:
		return "utf-16le"
	case CodecUTF8:
		return "utf-8"
	case CodecShiftJIS:
		return "shift-jis"
	}
	return "unknown"
}

func ParseCodec(name string) (Codec, error) {
	for _, c := range []Codec{CodecUTF16, CodecUTF8, CodecShiftJIS} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, errors.Errorf("Unknown codec %q", name)
}

// Encoding converts between model file text and go strings,
// and provides well known bone name tokens
type Encoding interface {
	Constant(id ConstantType) string
	Decode(codec Codec, raw []byte) (string, error)
	Encode(codec Codec, s string) ([]byte, error)
}

type defaultEncoding struct {
	constants map[ConstantType]string
}

var defaultEncodingInstance Encoding = &defaultEncoding{constants: defaultConstants}

func DefaultEncoding() Encoding {
	return defaultEncodingInstance
}

func textEncoding(codec Codec) (encoding.Encoding, error) {
	switch codec {
	case CodecUTF16:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case CodecUTF8:
		return unicode.UTF8, nil
	case CodecShiftJIS:
		return japanese.ShiftJIS, nil
	}
	return nil, errors.Errorf("Unknown codec %d", codec)
}

func (e *defaultEncoding) Constant(id ConstantType) string {
	return e.constants[id]
}

func (e *defaultEncoding) Decode(codec Codec, raw []byte) (string, error) {
	if codec == CodecShiftJIS {
		if n := bytes.IndexByte(raw, 0); n >= 0 {
			raw = raw[:n]
		}
	}
	if codec == CodecUTF8 {
		return string(raw), nil
	}
	enc, err := textEncoding(codec)
	if err != nil {
		return "", err
	}
	s, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", errors.Wrapf(err, "Failed to decode %v text", codec)
	}
	return string(s), nil
}

func (e *defaultEncoding) Encode(codec Codec, s string) ([]byte, error) {
	if codec == CodecUTF8 {
		return []byte(s), nil
	}
	enc, err := textEncoding(codec)
	if err != nil {
		return nil, err
	}
	b, _, err := transform.Bytes(enc.NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode %q as %v", s, codec)
	}
	return b, nil
}
