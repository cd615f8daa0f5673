package mmd

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

type IndexType int

const (
	IndexType8  IndexType = 1
	IndexType16 IndexType = 2
	IndexType32 IndexType = 4
)

type StrideType int

const (
	StrideVertex StrideType = iota
	StrideNormal
	StrideTexCoord
	StrideTexCoordDelta
	StrideEdgeSize
	StrideBoneIndex
	StrideBoneWeight
	StrideUVA1
	StrideUVA2
	StrideUVA3
	StrideUVA4
)

// Stride describes one attribute inside interleaved vertex record
type Stride struct {
	Type   StrideType
	Offset int
	Size   int
}

type vertexLayout struct {
	strides []Stride
	size    int
}

func (l *vertexLayout) add(t StrideType, floats int) {
	l.strides = append(l.strides, Stride{Type: t, Offset: l.size, Size: floats * 4})
	l.size += floats * 4
}

func (l *vertexLayout) Strides() []Stride {
	return l.strides
}

// StrideSize is size of one vertex record in bytes
func (l *vertexLayout) StrideSize() int {
	return l.size
}

func (l *vertexLayout) StrideOffset(t StrideType) (int, bool) {
	for _, s := range l.strides {
		if s.Type == t {
			return s.Offset, true
		}
	}
	return 0, false
}

func putFloats(buf []byte, offset int, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[offset+i*4:], math.Float32bits(v))
	}
}

func IndexTypeForCount(vertices int) IndexType {
	switch {
	case vertices <= 0xff:
		return IndexType8
	case vertices <= 0xffff:
		return IndexType16
	}
	return IndexType32
}

type IndexBuffer struct {
	Type  IndexType
	count int
	data  []byte
}

func (m *Model) NewIndexBuffer() *IndexBuffer {
	b := &IndexBuffer{Type: IndexTypeForCount(len(m.Vertices)), count: len(m.Indices)}
	b.data = make([]byte, len(m.Indices)*int(b.Type))
	for i, idx := range m.Indices {
		switch b.Type {
		case IndexType8:
			b.data[i] = uint8(idx)
		case IndexType16:
			binary.LittleEndian.PutUint16(b.data[i*2:], uint16(idx))
		default:
			binary.LittleEndian.PutUint32(b.data[i*4:], uint32(idx))
		}
	}
	return b
}

func (b *IndexBuffer) Bytes() []byte { return b.data }

func (b *IndexBuffer) Count() int { return b.count }

func (b *IndexBuffer) StrideSize() int { return int(b.Type) }

func (b *IndexBuffer) Index(i int) int {
	switch b.Type {
	case IndexType8:
		return int(b.data[i])
	case IndexType16:
		return int(binary.LittleEndian.Uint16(b.data[i*2:]))
	}
	return int(binary.LittleEndian.Uint32(b.data[i*4:]))
}

// StaticVertexBuffer holds attributes not changed by pose
type StaticVertexBuffer struct {
	vertexLayout
	data []byte
}

func (m *Model) NewStaticVertexBuffer() *StaticVertexBuffer {
	b := &StaticVertexBuffer{}
	b.add(StrideTexCoord, 2)
	b.add(StrideBoneIndex, 4)
	b.add(StrideBoneWeight, 4)
	b.data = make([]byte, len(m.Vertices)*b.size)
	for i, v := range m.Vertices {
		base := i * b.size
		putFloats(b.data, base, v.TexCoord[0], v.TexCoord[1])
		putFloats(b.data, base+8, float32(v.Bones[0]), float32(v.Bones[1]), float32(v.Bones[2]), float32(v.Bones[3]))
		putFloats(b.data, base+24, v.Weights[0], v.Weights[1], v.Weights[2], v.Weights[3])
		if v.Type == SkinningBDEF2 || v.Type == SkinningSDEF {
			putFloats(b.data, base+28, 1-v.Weights[0])
		}
	}
	return b
}

func (b *StaticVertexBuffer) Bytes() []byte { return b.data }

// DynamicVertexBuffer holds skinned positions and morphed attributes
type DynamicVertexBuffer struct {
	vertexLayout
	model *Model
	data  []byte
	uvs   int
}

func (m *Model) NewDynamicVertexBuffer() *DynamicVertexBuffer {
	b := &DynamicVertexBuffer{model: m, uvs: m.AdditionalUVSize}
	b.add(StrideVertex, 3)
	b.add(StrideNormal, 3)
	b.add(StrideTexCoordDelta, 4)
	b.add(StrideEdgeSize, 1)
	for i := 0; i < b.uvs; i++ {
		b.add(StrideUVA1+StrideType(i), 4)
	}
	b.data = make([]byte, len(m.Vertices)*b.size)
	return b
}

func (b *DynamicVertexBuffer) Bytes() []byte { return b.data }

// Update skins every vertex and returns bounding box of the result
func (b *DynamicVertexBuffer) Update() AABB {
	m := b.model
	positions := make([]mgl32.Vec3, len(m.Vertices))

	utils.ParallelFor(len(m.Vertices), m.workers, func(i int) {
		v := m.Vertices[i]
		position, normal := v.PerformSkinning(m.Bones)
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		positions[i] = position
		base := i * b.size
		putFloats(b.data, base, position[0], position[1], position[2])
		putFloats(b.data, base+12, normal[0], normal[1], normal[2])
		d := v.UVDeltas[0]
		putFloats(b.data, base+24, d[0], d[1], d[2], d[3])
		edge := v.EdgeSize
		if mat := m.Material(v.Material); mat != nil {
			edge *= mat.EdgeSize.Result
		}
		putFloats(b.data, base+40, edge*m.edgeWidth)
		for j := 0; j < b.uvs; j++ {
			uv := v.MorphedUV(j)
			putFloats(b.data, base+44+j*16, uv[0], uv[1], uv[2], uv[3])
		}
	})

	var box AABB
	for i, p := range positions {
		if i == 0 {
			box = AABB{Min: p, Max: p}
			continue
		}
		box.Min = utils.MinV3(box.Min, p)
		box.Max = utils.MaxV3(box.Max, p)
	}
	m.aabb = box
	return box
}

// MatrixBuffer holds skinning matrices of every bone, column major
type MatrixBuffer struct {
	model *Model
	data  []byte
}

func (m *Model) NewMatrixBuffer() *MatrixBuffer {
	return &MatrixBuffer{model: m, data: make([]byte, len(m.Bones)*64)}
}

func (b *MatrixBuffer) Bytes() []byte { return b.data }

func (b *MatrixBuffer) Update() {
	m := b.model
	utils.ParallelFor(len(m.Bones), m.workers, func(i int) {
		t := m.Bones[i].skinningTransform
		putFloats(b.data, i*64, t[:]...)
	})
}
