package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Cursor is a bounds checked little endian reader.
// Failed reads never move the position.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

func (c *Cursor) Pos() int {
	return c.pos
}

func (c *Cursor) Rest() int {
	return len(c.buf) - c.pos
}

func (c *Cursor) Len() int {
	return len(c.buf)
}

// Seek moves cursor to absolute offset
func (c *Cursor) Seek(pos int) bool {
	if pos < 0 || pos > len(c.buf) {
		return false
	}
	c.pos = pos
	return true
}

func (c *Cursor) Read(amount int) ([]byte, bool) {
	if amount < 0 || amount > c.Rest() {
		return nil, false
	}
	oldPos := c.pos
	c.pos += amount
	return c.buf[oldPos:c.pos], true
}

func (c *Cursor) Skip(amount int) bool {
	_, ok := c.Read(amount)
	return ok
}

// SkipRecords skips count records of stride bytes each.
// Huge counts are rejected before multiplication.
func (c *Cursor) SkipRecords(count, stride int) bool {
	if count < 0 || stride < 0 {
		return false
	}
	if stride != 0 && count > c.Rest()/stride {
		return false
	}
	return c.Skip(count * stride)
}

func (c *Cursor) ReadU8() (uint8, bool) {
	b, ok := c.Read(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *Cursor) ReadI8() (int8, bool) {
	v, ok := c.ReadU8()
	return int8(v), ok
}

func (c *Cursor) ReadU16() (uint16, bool) {
	b, ok := c.Read(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *Cursor) ReadI16() (int16, bool) {
	v, ok := c.ReadU16()
	return int16(v), ok
}

func (c *Cursor) ReadU32() (uint32, bool) {
	b, ok := c.Read(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *Cursor) ReadI32() (int32, bool) {
	v, ok := c.ReadU32()
	return int32(v), ok
}

func (c *Cursor) ReadF32() (float32, bool) {
	v, ok := c.ReadU32()
	return math.Float32frombits(v), ok
}

func (c *Cursor) readFloats(out []float32) bool {
	b, ok := c.Read(4 * len(out))
	if !ok {
		return false
	}
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return true
}

func (c *Cursor) ReadVec2() (v mgl32.Vec2, ok bool) {
	ok = c.readFloats(v[:])
	return
}

func (c *Cursor) ReadVec3() (v mgl32.Vec3, ok bool) {
	ok = c.readFloats(v[:])
	return
}

func (c *Cursor) ReadVec4() (v mgl32.Vec4, ok bool) {
	ok = c.readFloats(v[:])
	return
}

// ReadQuat reads x, y, z, w order
func (c *Cursor) ReadQuat() (mgl32.Quat, bool) {
	v, ok := c.ReadVec4()
	if !ok {
		return mgl32.QuatIdent(), false
	}
	return mgl32.Quat{W: v[3], V: v.Vec3()}, true
}

// ReadSignedIndex reads variable width index with sign extension,
// so 0xff for 1 byte field means -1
func (c *Cursor) ReadSignedIndex(size int) (int, bool) {
	switch size {
	case 1:
		v, ok := c.ReadI8()
		return int(v), ok
	case 2:
		v, ok := c.ReadI16()
		return int(v), ok
	case 4:
		v, ok := c.ReadI32()
		return int(v), ok
	}
	return 0, false
}

func (c *Cursor) ReadUnsignedIndex(size int) (int, bool) {
	switch size {
	case 1:
		v, ok := c.ReadU8()
		return int(v), ok
	case 2:
		v, ok := c.ReadU16()
		return int(v), ok
	case 4:
		// stored as signed on the wire when width is 4
		v, ok := c.ReadI32()
		return int(v), ok
	}
	return 0, false
}

// ReadSizedText reads 4 byte length prefixed bytes
func (c *Cursor) ReadSizedText() ([]byte, bool) {
	start := c.pos
	l, ok := c.ReadI32()
	if !ok || l < 0 {
		c.pos = start
		return nil, false
	}
	b, ok := c.Read(int(l))
	if !ok {
		c.pos = start
		return nil, false
	}
	return b, true
}

func (c *Cursor) SkipSizedText() bool {
	_, ok := c.ReadSizedText()
	return ok
}

// ReadFixedText reads zero padded field of fixed size and
// returns bytes until first zero
func (c *Cursor) ReadFixedText(size int) ([]byte, bool) {
	b, ok := c.Read(size)
	if !ok {
		return nil, false
	}
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return b, true
}

func (c *Cursor) String() string {
	return fmt.Sprintf("cursor[pos:0x%x,size:0x%x]", c.pos, len(c.buf))
}

// IndexSize returns minimal width of index field able to address count entities.
// Signed fields reserve -1 as empty reference.
func IndexSize(count int, signed bool) int {
	if signed {
		switch {
		case count < 0x80:
			return 1
		case count < 0x8000:
			return 2
		}
		return 4
	}
	switch {
	case count < 0x100:
		return 1
	case count < 0x10000:
		return 2
	}
	return 4
}
