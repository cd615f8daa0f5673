package mmd

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

// Color is material color with morph layers
type Color struct {
	Base   mgl32.Vec4
	Mul    mgl32.Vec4
	Add    mgl32.Vec4
	Result mgl32.Vec4
}

func NewColor(base mgl32.Vec4) Color {
	c := Color{Base: base}
	c.Reset()
	return c
}

func (c *Color) Reset() {
	c.Mul = mgl32.Vec4{1, 1, 1, 1}
	c.Add = mgl32.Vec4{}
	c.Result = c.Base
}

func (c *Color) CalculateMulWeight(value mgl32.Vec4, weight float32) {
	one := mgl32.Vec4{1, 1, 1, 1}
	c.Mul = utils.MulV4(c.Mul, one.Sub(one.Sub(value).Mul(weight)))
}

func (c *Color) CalculateAddWeight(value mgl32.Vec4, weight float32) {
	c.Add = c.Add.Add(value.Mul(weight))
}

func (c *Color) Calculate() {
	c.Result = utils.MulV4(c.Base, c.Mul).Add(c.Add)
}

// Scalar is material value with morph layers
type Scalar struct {
	Base   float32
	Mul    float32
	Add    float32
	Result float32
}

func NewScalar(base float32) Scalar {
	s := Scalar{Base: base}
	s.Reset()
	return s
}

func (s *Scalar) Reset() {
	s.Mul = 1
	s.Add = 0
	s.Result = s.Base
}

func (s *Scalar) CalculateMulWeight(value float32, weight float32) {
	s.Mul *= 1 - (1-value)*weight
}

func (s *Scalar) CalculateAddWeight(value float32, weight float32) {
	s.Add += value * weight
}

func (s *Scalar) Calculate() {
	s.Result = s.Base*s.Mul + s.Add
}

type MaterialFlags uint8

const (
	MaterialFlagCullingDisabled MaterialFlags = 0x01
	MaterialFlagHasShadow       MaterialFlags = 0x02
	MaterialFlagHasShadowMap    MaterialFlags = 0x04
	MaterialFlagSelfShadow      MaterialFlags = 0x08
	MaterialFlagEdge            MaterialFlags = 0x10
	MaterialFlagVertexColor     MaterialFlags = 0x20
	MaterialFlagPointDraw       MaterialFlags = 0x40
	MaterialFlagLineDraw        MaterialFlags = 0x80
)

type SphereMode uint8

const (
	SphereNone SphereMode = iota
	SphereMultiply
	SphereAdd
	SphereSubTexture
	maxSphereMode
)

type IndexRange struct {
	Start int
	End   int
	Count int
}

const pmdMaterialSize = 70

type Material struct {
	Index       int
	Name        string
	EnglishName string
	UserData    string

	Ambient   Color
	Diffuse   Color
	Specular  Color
	EdgeColor Color
	Shininess Scalar
	EdgeSize  Scalar

	MainTextureBlend   Color
	SphereTextureBlend Color
	ToonTextureBlend   Color

	Flags      MaterialFlags
	SphereMode SphereMode

	// texture table indices, -1 for none
	MainTextureIndex   int
	SphereTextureIndex int
	ToonTextureIndex   int
	SharedToon         bool

	MainTexture   string
	SphereTexture string
	ToonTexture   string

	IndexRange IndexRange
}

func NewMaterial() *Material {
	m := &Material{
		MainTextureIndex:   -1,
		SphereTextureIndex: -1,
		ToonTextureIndex:   -1,
	}
	m.Diffuse = NewColor(mgl32.Vec4{1, 1, 1, 1})
	m.Ambient = NewColor(mgl32.Vec4{0, 0, 0, 1})
	m.Specular = NewColor(mgl32.Vec4{0, 0, 0, 1})
	m.EdgeColor = NewColor(mgl32.Vec4{0, 0, 0, 1})
	m.Shininess = NewScalar(0)
	m.EdgeSize = NewScalar(1)
	m.resetTextureBlends()
	return m
}

func (m *Material) resetTextureBlends() {
	m.MainTextureBlend = NewColor(mgl32.Vec4{1, 1, 1, 1})
	m.SphereTextureBlend = NewColor(mgl32.Vec4{1, 1, 1, 1})
	m.ToonTextureBlend = NewColor(mgl32.Vec4{1, 1, 1, 1})
}

func (m *Material) layers() []*Color {
	return []*Color{
		&m.Ambient, &m.Diffuse, &m.Specular, &m.EdgeColor,
		&m.MainTextureBlend, &m.SphereTextureBlend, &m.ToonTextureBlend,
	}
}

func (m *Material) ResetMorphs() {
	for _, c := range m.layers() {
		c.Reset()
	}
	m.Shininess.Reset()
	m.EdgeSize.Reset()
}

func (m *Material) calculate() {
	for _, c := range m.layers() {
		c.Calculate()
	}
	m.Shininess.Calculate()
	m.EdgeSize.Calculate()
}

func (m *Material) has(f MaterialFlags) bool {
	return m.Flags&f != 0
}

func (m *Material) IsCullingDisabled() bool { return m.has(MaterialFlagCullingDisabled) }
func (m *Material) HasShadow() bool { return m.has(MaterialFlagHasShadow) }
func (m *Material) HasShadowMap() bool { return m.has(MaterialFlagHasShadowMap) }
func (m *Material) IsSelfShadowEnabled() bool { return m.has(MaterialFlagSelfShadow) }
func (m *Material) IsEdgeEnabled() bool { return m.has(MaterialFlagEdge) }
func (m *Material) HasVertexColor() bool { return m.has(MaterialFlagVertexColor) }
func (m *Material) IsPointDrawEnabled() bool { return m.has(MaterialFlagPointDraw) }
func (m *Material) IsLineDrawEnabled() bool { return m.has(MaterialFlagLineDraw) }

// pmd

func preparsePMDMaterials(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.Materials = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), pmdMaterialSize)
}

func (m *Material) readPMD(r *reader, enc config.Encoding) bool {
	var ok [8]bool
	var diffuse mgl32.Vec4
	var shininess float32
	var specular, ambient mgl32.Vec3
	var toon, edge uint8
	var nindices uint32
	var texture string
	diffuse, ok[0] = r.ReadVec4()
	shininess, ok[1] = r.ReadF32()
	specular, ok[2] = r.ReadVec3()
	ambient, ok[3] = r.ReadVec3()
	toon, ok[4] = r.ReadU8()
	edge, ok[5] = r.ReadU8()
	nindices, ok[6] = r.ReadU32()
	texture, ok[7] = r.readFixedText(20)
	for _, o := range ok {
		if !o {
			return false
		}
	}

	m.Diffuse = NewColor(diffuse)
	m.Shininess = NewScalar(shininess)
	m.Specular = NewColor(specular.Vec4(1))
	m.Ambient = NewColor(ambient.Vec4(1))
	m.EdgeColor = NewColor(mgl32.Vec4{0, 0, 0, 1})
	m.EdgeSize = NewScalar(1)
	m.resetTextureBlends()
	m.IndexRange.Count = int(nindices)

	m.ToonTextureIndex = -1
	if toon != 0xff {
		m.ToonTextureIndex = int(toon)
	}
	m.Flags = MaterialFlagHasShadow | MaterialFlagHasShadowMap | MaterialFlagSelfShadow
	if edge != 0 {
		m.Flags |= MaterialFlagEdge
	}
	if diffuse[3] < 1 {
		m.Flags |= MaterialFlagCullingDisabled
	}
	m.MainTexture, m.SphereTexture, m.SphereMode = splitPMDTexture(texture, enc)
	return true
}

// splitPMDTexture splits "main*sphere" combined texture field
func splitPMDTexture(s string, enc config.Encoding) (main, sphere string, mode SphereMode) {
	sep := enc.Constant(config.ConstantTextureSeparator)
	isSphere := func(name string) SphereMode {
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, enc.Constant(config.ConstantSphereExtension)):
			return SphereMultiply
		case strings.HasSuffix(lower, enc.Constant(config.ConstantSphereAddExtension)):
			return SphereAdd
		}
		return SphereNone
	}

	if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
		return parts[0], parts[1], isSphere(parts[1])
	}
	if mode = isSphere(s); mode != SphereNone {
		return "", s, mode
	}
	return s, "", SphereNone
}

func joinPMDTexture(main, sphere string, enc config.Encoding) string {
	if main != "" && sphere != "" {
		return main + enc.Constant(config.ConstantTextureSeparator) + sphere
	}
	return main + sphere
}

func (m *Material) writePMD(w *writer, enc config.Encoding) {
	w.PutVec4(m.Diffuse.Base)
	w.PutF32(m.Shininess.Base)
	w.PutVec3(m.Specular.Base.Vec3())
	w.PutVec3(m.Ambient.Base.Vec3())
	if m.ToonTextureIndex < 0 {
		w.PutU8(0xff)
	} else {
		w.PutU8(uint8(m.ToonTextureIndex))
	}
	w.PutU8(boolByte(m.IsEdgeEnabled()))
	w.PutU32(uint32(m.IndexRange.Count))
	w.putFixedText(joinPMDTexture(m.MainTexture, m.SphereTexture, enc), 20)
}

func (m *Material) estimatePMD(l *layout) int {
	return pmdMaterialSize
}

// pmx

func preparsePMXMaterials(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Materials = Section{Offset: r.Pos(), Count: int(count)}
	ts := info.TextureIndexSize
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(16+12+4+12+1+16+4+ts*2+1) {
			return false
		}
		shared, ok := r.ReadU8()
		if !ok {
			return false
		}
		toonSize := ts
		if shared != 0 {
			toonSize = 1
		}
		if !r.Skip(toonSize) || !r.SkipSizedText() || !r.Skip(4) {
			return false
		}
	}
	return true
}

func (m *Material) readPMX(r *reader) bool {
	var ok bool
	if m.Name, ok = r.readText(); !ok {
		return false
	}
	if m.EnglishName, ok = r.readText(); !ok {
		return false
	}
	var ok2 [9]bool
	var diffuse, edgeColor mgl32.Vec4
	var specular, ambient mgl32.Vec3
	var shininess, edgeSize float32
	var flags, sphereMode uint8
	diffuse, ok2[0] = r.ReadVec4()
	specular, ok2[1] = r.ReadVec3()
	shininess, ok2[2] = r.ReadF32()
	ambient, ok2[3] = r.ReadVec3()
	flags, ok2[4] = r.ReadU8()
	edgeColor, ok2[5] = r.ReadVec4()
	edgeSize, ok2[6] = r.ReadF32()
	m.MainTextureIndex, ok2[7] = r.readTextureIndex()
	m.SphereTextureIndex, ok2[8] = r.readTextureIndex()
	for _, o := range ok2 {
		if !o {
			return false
		}
	}
	if sphereMode, ok = r.ReadU8(); !ok || SphereMode(sphereMode) >= maxSphereMode {
		return false
	}
	shared, ok := r.ReadU8()
	if !ok {
		return false
	}
	m.SharedToon = shared != 0
	if m.SharedToon {
		toon, ok := r.ReadU8()
		if !ok {
			return false
		}
		m.ToonTextureIndex = int(toon)
	} else if m.ToonTextureIndex, ok = r.readTextureIndex(); !ok {
		return false
	}
	if m.UserData, ok = r.readText(); !ok {
		return false
	}
	nindices, ok := r.ReadI32()
	if !ok || nindices < 0 {
		return false
	}

	m.Diffuse = NewColor(diffuse)
	m.Specular = NewColor(specular.Vec4(1))
	m.Shininess = NewScalar(shininess)
	m.Ambient = NewColor(ambient.Vec4(1))
	m.EdgeColor = NewColor(edgeColor)
	m.EdgeSize = NewScalar(edgeSize)
	m.resetTextureBlends()
	m.Flags = MaterialFlags(flags)
	m.SphereMode = SphereMode(sphereMode)
	m.IndexRange.Count = int(nindices)
	return true
}

func (m *Material) writePMX(w *writer) {
	w.putText(m.Name)
	w.putText(m.EnglishName)
	w.PutVec4(m.Diffuse.Base)
	w.PutVec3(m.Specular.Base.Vec3())
	w.PutF32(m.Shininess.Base)
	w.PutVec3(m.Ambient.Base.Vec3())
	w.PutU8(uint8(m.Flags))
	w.PutVec4(m.EdgeColor.Base)
	w.PutF32(m.EdgeSize.Base)
	w.putTextureIndex(m.MainTextureIndex)
	w.putTextureIndex(m.SphereTextureIndex)
	w.PutU8(uint8(m.SphereMode))
	w.PutU8(boolByte(m.SharedToon))
	if m.SharedToon {
		w.PutU8(uint8(m.ToonTextureIndex))
	} else {
		w.putTextureIndex(m.ToonTextureIndex)
	}
	w.putText(m.UserData)
	w.PutI32(int32(m.IndexRange.Count))
}

func (m *Material) estimatePMX(l *layout) int {
	ts := l.info.TextureIndexSize
	size := l.textSize(m.Name) + l.textSize(m.EnglishName) + 16 + 12 + 4 + 12 + 1 + 16 + 4 + ts*2 + 1 + 1
	if m.SharedToon {
		size++
	} else {
		size += ts
	}
	return size + l.textSize(m.UserData) + 4
}
