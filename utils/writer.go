package utils

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Writer appends little endian values to buffer preallocated with expected size
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) Write(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutI8(v int8) {
	w.PutU8(uint8(v))
}

func (w *Writer) PutU16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) PutI16(v int16) {
	w.PutU16(uint16(v))
}

func (w *Writer) PutU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) PutI32(v int32) {
	w.PutU32(uint32(v))
}

func (w *Writer) PutF32(v float32) {
	w.PutU32(math.Float32bits(v))
}

func (w *Writer) PutVec2(v mgl32.Vec2) {
	for _, f := range v {
		w.PutF32(f)
	}
}

func (w *Writer) PutVec3(v mgl32.Vec3) {
	for _, f := range v {
		w.PutF32(f)
	}
}

func (w *Writer) PutVec4(v mgl32.Vec4) {
	for _, f := range v {
		w.PutF32(f)
	}
}

func (w *Writer) PutQuat(q mgl32.Quat) {
	w.PutVec3(q.V)
	w.PutF32(q.W)
}

func (w *Writer) PutSignedIndex(v int, size int) {
	switch size {
	case 1:
		w.PutI8(int8(v))
	case 2:
		w.PutI16(int16(v))
	default:
		w.PutI32(int32(v))
	}
}

func (w *Writer) PutUnsignedIndex(v int, size int) {
	switch size {
	case 1:
		w.PutU8(uint8(v))
	case 2:
		w.PutU16(uint16(v))
	default:
		w.PutI32(int32(v))
	}
}

func (w *Writer) PutSizedText(b []byte) {
	w.PutI32(int32(len(b)))
	w.Write(b)
}

// PutFixedText writes zero padded field, truncating longer input
func (w *Writer) PutFixedText(b []byte, size int) {
	if len(b) > size {
		b = b[:size]
	}
	w.Write(b)
	for i := len(b); i < size; i++ {
		w.buf = append(w.buf, 0)
	}
}
