package mmd

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

type SkinningType uint8

const (
	SkinningBDEF1 SkinningType = iota
	SkinningBDEF2
	SkinningBDEF4
	SkinningSDEF
	maxSkinningType
)

func (t SkinningType) String() string {
	switch t {
	case SkinningBDEF1:
		return "bdef1"
	case SkinningBDEF2:
		return "bdef2"
	case SkinningBDEF4:
		return "bdef4"
	case SkinningSDEF:
		return "sdef"
	}
	return "unknown"
}

func (t SkinningType) boneCount() int {
	switch t {
	case SkinningBDEF1:
		return 1
	case SkinningBDEF4:
		return 4
	}
	return 2
}

const pmdVertexSize = 38

type Vertex struct {
	Index    int
	Origin   mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
	UVs      [maxUVCount]mgl32.Vec4
	Type     SkinningType
	Bones    [4]int
	Weights  [4]float32
	SdefC    mgl32.Vec3
	SdefR0   mgl32.Vec3
	SdefR1   mgl32.Vec3
	EdgeSize float32

	// material owning the vertex, derived from material index ranges
	Material int

	MorphDelta mgl32.Vec3
	// 0 for texcoord, 1..4 for additional uvs
	UVDeltas [maxUVCount + 1]mgl32.Vec4
}

func NewVertex() *Vertex {
	return &Vertex{
		Bones:    [4]int{-1, -1, -1, -1},
		Weights:  [4]float32{1, 0, 0, 0},
		EdgeSize: 1,
		Material: -1,
	}
}

func (v *Vertex) ResetMorphs() {
	v.MorphDelta = mgl32.Vec3{}
	v.UVDeltas = [maxUVCount + 1]mgl32.Vec4{}
}

func (v *Vertex) MorphedTexCoord() mgl32.Vec2 {
	return v.TexCoord.Add(v.UVDeltas[0].Vec2())
}

func (v *Vertex) MorphedUV(i int) mgl32.Vec4 {
	return v.UVs[i].Add(v.UVDeltas[i+1])
}

func boneTransform(bones []*Bone, i int) mgl32.Mat4 {
	if i < 0 || i >= len(bones) {
		return mgl32.Ident4()
	}
	return bones[i].skinningTransform
}

// PerformSkinning returns skinned position and normal.
// Morph delta is added to origin before blending. Blended normal is not
// renormalized.
func (v *Vertex) PerformSkinning(bones []*Bone) (position, normal mgl32.Vec3) {
	p := v.Origin.Add(v.MorphDelta)

	switch v.Type {
	case SkinningBDEF1:
		m := boneTransform(bones, v.Bones[0])
		return utils.TransformCoord(m, p), utils.TransformNormal(m, v.Normal)
	case SkinningBDEF2:
		w := v.Weights[0]
		m0 := boneTransform(bones, v.Bones[0])
		m1 := boneTransform(bones, v.Bones[1])
		position = utils.TransformCoord(m0, p).Mul(w).Add(utils.TransformCoord(m1, p).Mul(1 - w))
		normal = utils.TransformNormal(m0, v.Normal).Mul(w).Add(utils.TransformNormal(m1, v.Normal).Mul(1 - w))
	case SkinningBDEF4:
		for i := 0; i < 4; i++ {
			if v.Weights[i] == 0 {
				continue
			}
			m := boneTransform(bones, v.Bones[i])
			position = position.Add(utils.TransformCoord(m, p).Mul(v.Weights[i]))
			normal = normal.Add(utils.TransformNormal(m, v.Normal).Mul(v.Weights[i]))
		}
	case SkinningSDEF:
		position, normal = v.performSDEF(bones, p)
	}
	return position, normal
}

func (v *Vertex) performSDEF(bones []*Bone, p mgl32.Vec3) (position, normal mgl32.Vec3) {
	w0 := v.Weights[0]
	w1 := 1 - w0
	m0 := boneTransform(bones, v.Bones[0])
	m1 := boneTransform(bones, v.Bones[1])

	rw := v.SdefR0.Mul(w0).Add(v.SdefR1.Mul(w1))
	r0 := v.SdefC.Add(v.SdefR0).Sub(rw)
	r1 := v.SdefC.Add(v.SdefR1).Sub(rw)
	cr0 := v.SdefC.Add(r0).Mul(0.5)
	cr1 := v.SdefC.Add(r1).Mul(0.5)

	q := mgl32.QuatSlerp(mgl32.Mat4ToQuat(m0), mgl32.Mat4ToQuat(m1), w1)
	rotation := q.Mat4()

	position = utils.TransformNormal(rotation, p.Sub(v.SdefC)).
		Add(utils.TransformCoord(m0, cr0).Mul(w0)).
		Add(utils.TransformCoord(m1, cr1).Mul(w1))
	normal = utils.TransformNormal(rotation, v.Normal)
	return
}

func (v *Vertex) validateBones(boneCount int) bool {
	for i := 0; i < v.Type.boneCount(); i++ {
		if b := v.Bones[i]; b < -1 || b >= boneCount {
			return false
		}
	}
	return true
}

// pmd

func preparsePMDVertices(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.Vertices = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), pmdVertexSize)
}

func (v *Vertex) readPMD(r *reader) bool {
	var ok [9]bool
	var bone0, bone1 uint16
	var weight, noEdge uint8
	v.Origin, ok[0] = r.ReadVec3()
	v.Normal, ok[1] = r.ReadVec3()
	v.TexCoord, ok[2] = r.ReadVec2()
	bone0, ok[3] = r.ReadU16()
	bone1, ok[4] = r.ReadU16()
	weight, ok[5] = r.ReadU8()
	noEdge, ok[6] = r.ReadU8()
	for _, o := range ok[:7] {
		if !o {
			return false
		}
	}
	v.Type = SkinningBDEF2
	v.Bones = [4]int{pmdBoneRef(bone0), pmdBoneRef(bone1), -1, -1}
	v.Weights = [4]float32{float32(weight) / 100, 0, 0, 0}
	v.EdgeSize = 1
	if noEdge != 0 {
		v.EdgeSize = 0
	}
	return true
}

func pmdBoneRef(i uint16) int {
	if i == 0xffff {
		return -1
	}
	return int(i)
}

func (v *Vertex) writePMD(w *writer) {
	w.PutVec3(v.Origin)
	w.PutVec3(v.Normal)
	w.PutVec2(v.TexCoord)
	w.putPMDIndex(v.Bones[0])
	w.putPMDIndex(v.Bones[1])
	w.PutU8(uint8(utils.Clamp(v.Weights[0]*100+0.5, 0, 100)))
	w.PutU8(boolByte(v.EdgeSize == 0))
}

func (v *Vertex) estimatePMD(l *layout) int {
	return pmdVertexSize
}

// pmx

func pmxDeformSize(t SkinningType, boneIndexSize int) int {
	switch t {
	case SkinningBDEF1:
		return boneIndexSize
	case SkinningBDEF2:
		return boneIndexSize*2 + 4
	case SkinningBDEF4:
		return boneIndexSize*4 + 16
	case SkinningSDEF:
		return boneIndexSize*2 + 4 + 36
	}
	return 0
}

func preparsePMXVertices(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Vertices = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.Skip(32 + info.AdditionalUVSize*16) {
			return false
		}
		t, ok := r.ReadU8()
		if !ok || SkinningType(t) >= maxSkinningType {
			return false
		}
		if !r.Skip(pmxDeformSize(SkinningType(t), info.BoneIndexSize) + 4) {
			return false
		}
	}
	return true
}

func (v *Vertex) readPMX(r *reader) bool {
	var ok bool
	if v.Origin, ok = r.ReadVec3(); !ok {
		return false
	}
	if v.Normal, ok = r.ReadVec3(); !ok {
		return false
	}
	if v.TexCoord, ok = r.ReadVec2(); !ok {
		return false
	}
	for i := 0; i < r.info.AdditionalUVSize; i++ {
		if v.UVs[i], ok = r.ReadVec4(); !ok {
			return false
		}
	}
	t, ok := r.ReadU8()
	if !ok || SkinningType(t) >= maxSkinningType {
		return false
	}
	v.Type = SkinningType(t)
	v.Bones = [4]int{-1, -1, -1, -1}
	v.Weights = [4]float32{}

	for i := 0; i < v.Type.boneCount(); i++ {
		if v.Bones[i], ok = r.readBoneIndex(); !ok {
			return false
		}
	}
	switch v.Type {
	case SkinningBDEF1:
		v.Weights[0] = 1
	case SkinningBDEF2, SkinningSDEF:
		if v.Weights[0], ok = r.ReadF32(); !ok {
			return false
		}
		v.Weights[1] = 1 - v.Weights[0]
	case SkinningBDEF4:
		for i := range v.Weights {
			if v.Weights[i], ok = r.ReadF32(); !ok {
				return false
			}
		}
	}
	if v.Type == SkinningSDEF {
		if v.SdefC, ok = r.ReadVec3(); !ok {
			return false
		}
		if v.SdefR0, ok = r.ReadVec3(); !ok {
			return false
		}
		if v.SdefR1, ok = r.ReadVec3(); !ok {
			return false
		}
	}
	v.EdgeSize, ok = r.ReadF32()
	return ok
}

func (v *Vertex) writePMX(w *writer) {
	w.PutVec3(v.Origin)
	w.PutVec3(v.Normal)
	w.PutVec2(v.TexCoord)
	for i := 0; i < w.info.AdditionalUVSize; i++ {
		w.PutVec4(v.UVs[i])
	}
	w.PutU8(uint8(v.Type))
	for i := 0; i < v.Type.boneCount(); i++ {
		w.putBoneIndex(v.Bones[i])
	}
	switch v.Type {
	case SkinningBDEF2, SkinningSDEF:
		w.PutF32(v.Weights[0])
	case SkinningBDEF4:
		for _, weight := range v.Weights {
			w.PutF32(weight)
		}
	}
	if v.Type == SkinningSDEF {
		w.PutVec3(v.SdefC)
		w.PutVec3(v.SdefR0)
		w.PutVec3(v.SdefR1)
	}
	w.PutF32(v.EdgeSize)
}

func (v *Vertex) estimatePMX(l *layout) int {
	return 32 + l.info.AdditionalUVSize*16 + 1 + pmxDeformSize(v.Type, l.info.BoneIndexSize) + 4
}
