package mmd

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

type MorphCategory uint8

const (
	MorphCategoryBase MorphCategory = iota
	MorphCategoryEyebrow
	MorphCategoryEye
	MorphCategoryLip
	MorphCategoryOther
	maxMorphCategory
)

type MorphKind uint8

const (
	MorphGroup MorphKind = iota
	MorphVertex
	MorphBone
	MorphTexCoord
	MorphUVA1
	MorphUVA2
	MorphUVA3
	MorphUVA4
	MorphMaterial
	MorphFlip
	MorphImpulse
	maxMorphKind
)

func (k MorphKind) String() string {
	return [...]string{"group", "vertex", "bone", "texcoord", "uva1", "uva2", "uva3", "uva4", "material", "flip", "impulse", "unknown"}[utils.Clamp(k, 0, maxMorphKind)]
}

func (k MorphKind) isUV() bool {
	return k >= MorphTexCoord && k <= MorphUVA4
}

type VertexMorph struct {
	Vertex   int
	Position mgl32.Vec3

	// resolved vertex, differs from Vertex for pmd morphs indexing base morph
	target int
}

type UVMorph struct {
	Vertex int
	Offset mgl32.Vec4
}

type BoneMorph struct {
	Bone        int
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
}

const (
	MaterialMorphMultiply uint8 = iota
	MaterialMorphAdd
)

type MaterialMorph struct {
	// -1 targets every material
	Material  int
	Operation uint8
	Diffuse   mgl32.Vec4
	Specular  mgl32.Vec3
	Shininess float32
	Ambient   mgl32.Vec3
	EdgeColor mgl32.Vec4
	EdgeSize  float32
	Texture   mgl32.Vec4
	Sphere    mgl32.Vec4
	Toon      mgl32.Vec4
}

type GroupMorph struct {
	Morph  int
	Weight float32
}

type ImpulseMorph struct {
	RigidBody int
	Local     bool
	Velocity  mgl32.Vec3
	Torque    mgl32.Vec3
}

type Morph struct {
	Index       int
	Name        string
	EnglishName string
	Category    MorphCategory
	Kind        MorphKind

	Vertices  []VertexMorph
	UVs       []UVMorph
	Bones     []BoneMorph
	Materials []MaterialMorph
	Groups    []GroupMorph
	Flips     []GroupMorph
	Impulses  []ImpulseMorph

	weight float32
}

func NewMorph(kind MorphKind) *Morph {
	return &Morph{Kind: kind, Category: MorphCategoryOther}
}

func (m *Morph) Weight() float32 {
	return m.weight
}

func (m *Morph) SetWeight(w float32) {
	m.weight = utils.Clamp(w, 0, 1)
}

func (m *Morph) entryCount() int {
	switch {
	case m.Kind == MorphGroup:
		return len(m.Groups)
	case m.Kind == MorphVertex:
		return len(m.Vertices)
	case m.Kind == MorphBone:
		return len(m.Bones)
	case m.Kind.isUV():
		return len(m.UVs)
	case m.Kind == MorphMaterial:
		return len(m.Materials)
	case m.Kind == MorphFlip:
		return len(m.Flips)
	case m.Kind == MorphImpulse:
		return len(m.Impulses)
	}
	return 0
}

// pmd, vertex morphs only

const pmdMorphVertexSize = 16

func preparsePMDMorphs(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU16()
	if !ok {
		return false
	}
	info.Morphs = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.Skip(20) {
			return false
		}
		n, ok := r.ReadU32()
		if !ok || !r.Skip(1) || !r.SkipRecords(int(n), pmdMorphVertexSize) {
			return false
		}
	}
	return true
}

func (m *Morph) readPMD(r *reader) bool {
	var ok [3]bool
	var n uint32
	var category uint8
	m.Name, ok[0] = r.readFixedText(20)
	n, ok[1] = r.ReadU32()
	category, ok[2] = r.ReadU8()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	if MorphCategory(category) >= maxMorphCategory || int(n) > r.Rest()/pmdMorphVertexSize {
		return false
	}
	m.Category = MorphCategory(category)
	m.Kind = MorphVertex
	m.Vertices = make([]VertexMorph, n)
	for i := range m.Vertices {
		index, ok := r.ReadU32()
		if !ok {
			return false
		}
		pos, ok := r.ReadVec3()
		if !ok {
			return false
		}
		m.Vertices[i] = VertexMorph{Vertex: int(index), Position: pos, target: -1}
	}
	return true
}

func (m *Morph) writePMD(w *writer) {
	w.putFixedText(m.Name, 20)
	w.PutU32(uint32(len(m.Vertices)))
	w.PutU8(uint8(m.Category))
	for _, v := range m.Vertices {
		w.PutU32(uint32(v.Vertex))
		w.PutVec3(v.Position)
	}
}

func (m *Morph) estimatePMD(l *layout) int {
	return 25 + len(m.Vertices)*pmdMorphVertexSize
}

// pmx

func pmxMorphEntrySize(kind MorphKind, info *DataInfo) int {
	switch {
	case kind == MorphGroup, kind == MorphFlip:
		return info.MorphIndexSize + 4
	case kind == MorphVertex:
		return info.VertexIndexSize + 12
	case kind == MorphBone:
		return info.BoneIndexSize + 28
	case kind.isUV():
		return info.VertexIndexSize + 16
	case kind == MorphMaterial:
		return info.MaterialIndexSize + 1 + 28*4
	case kind == MorphImpulse:
		return info.RigidBodyIndexSize + 25
	}
	return 0
}

func preparsePMXMorphs(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Morphs = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(1) {
			return false
		}
		kind, ok := r.ReadU8()
		if !ok || MorphKind(kind) >= maxMorphKind {
			return false
		}
		n, ok := r.ReadI32()
		if !ok || n < 0 || !r.SkipRecords(int(n), pmxMorphEntrySize(MorphKind(kind), info)) {
			return false
		}
	}
	return true
}

func (m *Morph) readPMX(r *reader) bool {
	var ok bool
	if m.Name, ok = r.readText(); !ok {
		return false
	}
	if m.EnglishName, ok = r.readText(); !ok {
		return false
	}
	category, ok := r.ReadU8()
	if !ok || MorphCategory(category) >= maxMorphCategory {
		return false
	}
	kind, ok := r.ReadU8()
	if !ok || MorphKind(kind) >= maxMorphKind {
		return false
	}
	m.Category, m.Kind = MorphCategory(category), MorphKind(kind)
	count, ok := r.ReadI32()
	if !ok || count < 0 || int(count) > r.Rest()/pmxMorphEntrySize(m.Kind, r.info) {
		return false
	}
	n := int(count)

	switch {
	case m.Kind == MorphGroup, m.Kind == MorphFlip:
		list := make([]GroupMorph, n)
		for i := range list {
			if list[i].Morph, ok = r.readMorphIndex(); !ok {
				return false
			}
			if list[i].Weight, ok = r.ReadF32(); !ok {
				return false
			}
		}
		if m.Kind == MorphGroup {
			m.Groups = list
		} else {
			m.Flips = list
		}
	case m.Kind == MorphVertex:
		m.Vertices = make([]VertexMorph, n)
		for i := range m.Vertices {
			v := &m.Vertices[i]
			if v.Vertex, ok = r.readVertexIndex(); !ok {
				return false
			}
			if v.Position, ok = r.ReadVec3(); !ok {
				return false
			}
			v.target = v.Vertex
		}
	case m.Kind == MorphBone:
		m.Bones = make([]BoneMorph, n)
		for i := range m.Bones {
			b := &m.Bones[i]
			if b.Bone, ok = r.readBoneIndex(); !ok {
				return false
			}
			if b.Translation, ok = r.ReadVec3(); !ok {
				return false
			}
			if b.Rotation, ok = r.ReadQuat(); !ok {
				return false
			}
		}
	case m.Kind.isUV():
		m.UVs = make([]UVMorph, n)
		for i := range m.UVs {
			if m.UVs[i].Vertex, ok = r.readVertexIndex(); !ok {
				return false
			}
			if m.UVs[i].Offset, ok = r.ReadVec4(); !ok {
				return false
			}
		}
	case m.Kind == MorphMaterial:
		m.Materials = make([]MaterialMorph, n)
		for i := range m.Materials {
			if !m.Materials[i].readPMX(r) {
				return false
			}
		}
	case m.Kind == MorphImpulse:
		m.Impulses = make([]ImpulseMorph, n)
		for i := range m.Impulses {
			im := &m.Impulses[i]
			if im.RigidBody, ok = r.readRigidBodyIndex(); !ok {
				return false
			}
			local, ok := r.ReadU8()
			if !ok {
				return false
			}
			im.Local = local != 0
			if im.Velocity, ok = r.ReadVec3(); !ok {
				return false
			}
			if im.Torque, ok = r.ReadVec3(); !ok {
				return false
			}
		}
	}
	return true
}

func (mm *MaterialMorph) readPMX(r *reader) bool {
	var ok [11]bool
	mm.Material, ok[0] = r.readMaterialIndex()
	mm.Operation, ok[1] = r.ReadU8()
	mm.Diffuse, ok[2] = r.ReadVec4()
	mm.Specular, ok[3] = r.ReadVec3()
	mm.Shininess, ok[4] = r.ReadF32()
	mm.Ambient, ok[5] = r.ReadVec3()
	mm.EdgeColor, ok[6] = r.ReadVec4()
	mm.EdgeSize, ok[7] = r.ReadF32()
	mm.Texture, ok[8] = r.ReadVec4()
	mm.Sphere, ok[9] = r.ReadVec4()
	mm.Toon, ok[10] = r.ReadVec4()
	for _, o := range ok {
		if !o {
			return false
		}
	}
	return true
}

func (mm *MaterialMorph) writePMX(w *writer) {
	w.putMaterialIndex(mm.Material)
	w.PutU8(mm.Operation)
	w.PutVec4(mm.Diffuse)
	w.PutVec3(mm.Specular)
	w.PutF32(mm.Shininess)
	w.PutVec3(mm.Ambient)
	w.PutVec4(mm.EdgeColor)
	w.PutF32(mm.EdgeSize)
	w.PutVec4(mm.Texture)
	w.PutVec4(mm.Sphere)
	w.PutVec4(mm.Toon)
}

func (m *Morph) writePMX(w *writer) {
	w.putText(m.Name)
	w.putText(m.EnglishName)
	w.PutU8(uint8(m.Category))
	w.PutU8(uint8(m.Kind))
	w.PutI32(int32(m.entryCount()))

	switch {
	case m.Kind == MorphGroup, m.Kind == MorphFlip:
		list := m.Groups
		if m.Kind == MorphFlip {
			list = m.Flips
		}
		for _, g := range list {
			w.putMorphIndex(g.Morph)
			w.PutF32(g.Weight)
		}
	case m.Kind == MorphVertex:
		for _, v := range m.Vertices {
			w.putVertexIndex(v.Vertex)
			w.PutVec3(v.Position)
		}
	case m.Kind == MorphBone:
		for _, b := range m.Bones {
			w.putBoneIndex(b.Bone)
			w.PutVec3(b.Translation)
			w.PutQuat(b.Rotation)
		}
	case m.Kind.isUV():
		for _, uv := range m.UVs {
			w.putVertexIndex(uv.Vertex)
			w.PutVec4(uv.Offset)
		}
	case m.Kind == MorphMaterial:
		for i := range m.Materials {
			m.Materials[i].writePMX(w)
		}
	case m.Kind == MorphImpulse:
		for _, im := range m.Impulses {
			w.putRigidBodyIndex(im.RigidBody)
			w.PutU8(boolByte(im.Local))
			w.PutVec3(im.Velocity)
			w.PutVec3(im.Torque)
		}
	}
}

func (m *Morph) estimatePMX(l *layout) int {
	return l.textSize(m.Name) + l.textSize(m.EnglishName) + 1 + 1 + 4 +
		m.entryCount()*pmxMorphEntrySize(m.Kind, l.info)
}

func (m *Morph) validate(model *Model) bool {
	inRange := func(i, n int) bool { return i >= 0 && i < n }
	for i := range m.Vertices {
		if !inRange(m.Vertices[i].Vertex, len(model.Vertices)) && model.format == FormatPMX {
			return false
		}
	}
	for _, uv := range m.UVs {
		if !inRange(uv.Vertex, len(model.Vertices)) {
			return false
		}
	}
	for _, b := range m.Bones {
		if !inRange(b.Bone, len(model.Bones)) {
			return false
		}
	}
	for _, mm := range m.Materials {
		if mm.Material != -1 && !inRange(mm.Material, len(model.Materials)) {
			return false
		}
		if mm.Operation > MaterialMorphAdd {
			return false
		}
	}
	for _, g := range append(append([]GroupMorph(nil), m.Groups...), m.Flips...) {
		if !inRange(g.Morph, len(model.Morphs)) {
			return false
		}
	}
	for _, im := range m.Impulses {
		if !inRange(im.RigidBody, len(model.RigidBodies)) {
			return false
		}
	}
	return true
}
