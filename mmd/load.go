package mmd

import (
	"bytes"
	"fmt"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

const (
	pmdNameSize            = 20
	pmdCommentSize         = 256
	pmdToonTextureNameSize = 100
)

// DetectFormat looks at file signature only
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte(pmxSignature)):
		return FormatPMX
	case bytes.HasPrefix(data, []byte(pmdSignature)):
		return FormatPMD
	}
	return FormatUnknown
}

// Preparse validates layout of whole file without materializing entities
func Preparse(data []byte) (*DataInfo, error) {
	switch DetectFormat(data) {
	case FormatPMX:
		return preparsePMX(data)
	case FormatPMD:
		return preparsePMD(data)
	}
	if len(data) < 4 {
		return nil, newParseError(InvalidHeaderError, "File too small: %d bytes", len(data))
	}
	return nil, newParseError(InvalidSignatureError, "Unknown signature %q", utils.DumpToOneLineString(data[:4]))
}

func sectionError(t ErrorType, r *reader) *ParseError {
	return newParseError(t, "Failed at offset 0x%x", r.Pos())
}

func preparsePMD(data []byte) (*DataInfo, error) {
	info := &DataInfo{Format: FormatPMD, Codec: config.CodecShiftJIS}
	r := newReader(data, info, nil)

	if !r.Skip(len(pmdSignature)) {
		return nil, newParseError(InvalidHeaderError, "Truncated signature")
	}
	version, ok := r.ReadF32()
	if !ok {
		return nil, newParseError(InvalidHeaderError, "Truncated version")
	}
	if version != pmdVersion {
		return nil, newParseError(InvalidVersionError, "Unsupported version %v", version)
	}
	info.Version = version
	if info.Name, ok = r.Read(pmdNameSize); !ok {
		return nil, sectionError(InvalidNameSizeError, r)
	}
	if info.Comment, ok = r.Read(pmdCommentSize); !ok {
		return nil, sectionError(InvalidCommentSizeError, r)
	}

	for _, section := range []struct {
		preparse func(*reader, *DataInfo) bool
		err      ErrorType
	}{
		{preparsePMDVertices, InvalidVerticesError},
		{preparsePMDIndices, InvalidIndicesError},
		{preparsePMDMaterials, InvalidMaterialsError},
		{preparsePMDBones, InvalidBonesError},
		{preparsePMDIKConstraints, InvalidIKConstraintsError},
		{preparsePMDMorphs, InvalidMorphsError},
		{preparsePMDLabels, InvalidLabelsError},
	} {
		if !section.preparse(r, info) {
			return nil, sectionError(section.err, r)
		}
	}

	// trailing blocks are optional
	for _, section := range []struct {
		preparse func(*reader, *DataInfo) bool
		err      ErrorType
	}{
		{preparsePMDEnglishNames, InvalidEnglishNamesError},
		{preparsePMDCustomToonTextures, InvalidCustomToonTexturesError},
		{preparsePMDRigidBodies, InvalidRigidBodiesError},
		{preparsePMDJoints, InvalidJointsError},
	} {
		if r.Rest() == 0 {
			break
		}
		if !section.preparse(r, info) {
			return nil, sectionError(section.err, r)
		}
	}
	info.End = r.Pos()
	return info, nil
}

func preparsePMDIndices(r *reader, info *DataInfo) bool {
	count, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.Indices = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), 2)
}

func preparsePMDEnglishNames(r *reader, info *DataInfo) bool {
	flag, ok := r.ReadU8()
	if !ok {
		return false
	}
	info.HasEnglish = flag != 0
	info.EnglishNames = Section{Offset: r.Pos()}
	if !info.HasEnglish {
		return true
	}
	if info.EnglishName, ok = r.Read(pmdNameSize); !ok {
		return false
	}
	if info.EnglishComment, ok = r.Read(pmdCommentSize); !ok {
		return false
	}
	morphs := info.Morphs.Count - 1
	if morphs < 0 {
		morphs = 0
	}
	return r.SkipRecords(info.Bones.Count, pmdNameSize) &&
		r.SkipRecords(morphs, pmdNameSize) &&
		r.SkipRecords(info.BoneCategoryNames.Count, pmdBoneCategoryNameSize)
}

func preparsePMDCustomToonTextures(r *reader, info *DataInfo) bool {
	info.CustomToonTextures = Section{Offset: r.Pos(), Count: pmdToonTextureCount}
	return r.SkipRecords(pmdToonTextureCount, pmdToonTextureNameSize)
}

func preparsePMX(data []byte) (*DataInfo, error) {
	info := &DataInfo{Format: FormatPMX}
	r := newReader(data, info, nil)

	if !r.Skip(len(pmxSignature)) {
		return nil, newParseError(InvalidHeaderError, "Truncated signature")
	}
	version, ok := r.ReadF32()
	if !ok {
		return nil, newParseError(InvalidHeaderError, "Truncated version")
	}
	if version != pmxVersion {
		return nil, newParseError(InvalidVersionError, "Unsupported version %v", version)
	}
	info.Version = version

	flagsSize, ok := r.ReadU8()
	if !ok {
		return nil, newParseError(InvalidHeaderError, "Truncated flags size")
	}
	if flagsSize != pmxFlagsSize {
		return nil, newParseError(InvalidFlagSizeError, "Unsupported flags size %d", flagsSize)
	}
	flags, ok := r.Read(pmxFlagsSize)
	if !ok {
		return nil, newParseError(InvalidHeaderError, "Truncated flags")
	}
	if flags[0] > 1 {
		return nil, newParseError(InvalidFlagsError, "Unknown codec %d", flags[0])
	}
	info.Codec = config.Codec(flags[0])
	if flags[1] > maxUVCount {
		return nil, newParseError(InvalidFlagsError, "Too many additional uvs %d", flags[1])
	}
	info.AdditionalUVSize = int(flags[1])
	for i, size := range info.indexSizes() {
		*size = int(flags[2+i])
		if !validIndexSize(*size) {
			return nil, newParseError(InvalidFlagsError, "Invalid index size %d at flag %d", *size, 2+i)
		}
	}

	for _, text := range []struct {
		out *[]byte
		err ErrorType
	}{
		{&info.Name, InvalidNameSizeError},
		{&info.EnglishName, InvalidEnglishNameSizeError},
		{&info.Comment, InvalidCommentSizeError},
		{&info.EnglishComment, InvalidEnglishCommentSizeError},
	} {
		if *text.out, ok = r.ReadSizedText(); !ok {
			return nil, sectionError(text.err, r)
		}
	}

	for _, section := range []struct {
		preparse func(*reader, *DataInfo) bool
		err      ErrorType
	}{
		{preparsePMXVertices, InvalidVerticesError},
		{preparsePMXIndices, InvalidIndicesError},
		{preparsePMXTextures, InvalidTexturesError},
		{preparsePMXMaterials, InvalidMaterialsError},
		{preparsePMXBones, InvalidBonesError},
		{preparsePMXMorphs, InvalidMorphsError},
		{preparsePMXLabels, InvalidLabelsError},
		{preparsePMXRigidBodies, InvalidRigidBodiesError},
		{preparsePMXJoints, InvalidJointsError},
	} {
		if !section.preparse(r, info) {
			return nil, sectionError(section.err, r)
		}
	}
	info.End = r.Pos()
	return info, nil
}

func preparsePMXIndices(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Indices = Section{Offset: r.Pos(), Count: int(count)}
	return r.SkipRecords(int(count), info.VertexIndexSize)
}

func preparsePMXTextures(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Textures = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() {
			return false
		}
	}
	return true
}

// Preparse records failure code in model, model data is untouched
func (m *Model) Preparse(data []byte) (*DataInfo, error) {
	info, err := Preparse(data)
	if err != nil {
		m.lastError = ErrorTypeOf(err)
		return nil, err
	}
	return info, nil
}

// Load replaces model content with parsed data.
// On failure model keeps previous content and records error code.
func (m *Model) Load(data []byte) error {
	next, err := m.parse(data)
	if err != nil {
		m.lastError = ErrorTypeOf(err)
		utils.Logger("mmd").Warnf("Failed to load model: %v", err)
		return err
	}

	world := m.world
	if world != nil {
		m.LeaveWorld()
	}
	*m = *next
	if world != nil {
		m.JoinWorld(world)
	}
	utils.Logger("mmd").Debugf("Loaded %v model %q: %d vertices, %d bones, %d morphs",
		m.format, m.Name, len(m.Vertices), len(m.Bones), len(m.Morphs))
	return nil
}

func (m *Model) parse(data []byte) (*Model, error) {
	info, err := Preparse(data)
	if err != nil {
		return nil, err
	}

	next := m.emptyCopy()
	next.state = StatePreparsed
	next.format = info.Format
	next.Version = info.Version
	next.Codec = info.Codec
	next.AdditionalUVSize = info.AdditionalUVSize

	text := &textCodec{enc: m.enc, codec: info.Codec}
	r := newReader(data, info, text)
	next.Name = text.decode(info.Name)
	next.EnglishName = text.decode(info.EnglishName)
	next.Comment = text.decode(info.Comment)
	next.EnglishComment = text.decode(info.EnglishComment)

	if info.Format == FormatPMD {
		err = next.readPMD(r)
	} else {
		err = next.readPMX(r)
	}
	if err != nil {
		return nil, err
	}
	if err := next.link(); err != nil {
		return nil, err
	}
	next.rawText, next.rawCodec = text.raw, info.Codec
	next.state = StateLinked
	next.PerformUpdate(0)
	next.state = StateReady
	return next, nil
}

// readSection positions reader at section and reads count records
func readSection[T any](r *reader, s Section, t ErrorType, create func(i int) T, read func(T) bool) ([]T, error) {
	if !r.Seek(s.Offset) {
		return nil, sectionError(t, r)
	}
	list := make([]T, s.Count)
	for i := range list {
		list[i] = create(i)
		if !read(list[i]) {
			return nil, newParseError(t, "Failed to read record %d at offset 0x%x", i, r.Pos())
		}
	}
	return list, nil
}

func (m *Model) readPMD(r *reader) (err error) {
	info := r.info

	if m.Vertices, err = readSection(r, info.Vertices, InvalidVerticesError,
		func(i int) *Vertex { v := NewVertex(); v.Index = i; return v },
		func(v *Vertex) bool { return v.readPMD(r) }); err != nil {
		return err
	}
	if err = m.readIndices(r, func() (int, bool) {
		v, ok := r.ReadU16()
		return int(v), ok
	}); err != nil {
		return err
	}
	if m.Materials, err = readSection(r, info.Materials, InvalidMaterialsError,
		func(i int) *Material { mat := NewMaterial(); mat.Index = i; return mat },
		func(mat *Material) bool { return mat.readPMD(r, m.enc) }); err != nil {
		return err
	}
	if m.Bones, err = readSection(r, info.Bones, InvalidBonesError,
		func(i int) *Bone { b := NewBone(); b.Index = i; return b },
		func(b *Bone) bool { return b.readPMD(r) }); err != nil {
		return err
	}
	if m.IKConstraints, err = readSection(r, info.IKConstraints, InvalidIKConstraintsError,
		func(i int) *IKConstraint { return &IKConstraint{} },
		func(c *IKConstraint) bool { return c.readPMD(r) }); err != nil {
		return err
	}
	if m.Morphs, err = readSection(r, info.Morphs, InvalidMorphsError,
		func(i int) *Morph { return &Morph{Index: i} },
		func(morph *Morph) bool { return morph.readPMD(r) }); err != nil {
		return err
	}
	labels, ok := readPMDLabels(r, m.enc.Constant(config.ConstantMorphLabel))
	if !ok {
		return sectionError(InvalidLabelsError, r)
	}
	m.Labels = labels

	if info.HasEnglish {
		if err := m.readPMDEnglishNames(r); err != nil {
			return err
		}
	}
	m.HasEnglish = info.HasEnglish

	if info.CustomToonTextures.Count > 0 {
		if !r.Seek(info.CustomToonTextures.Offset) {
			return sectionError(InvalidCustomToonTexturesError, r)
		}
		for i := range m.CustomToonTextures {
			name, ok := r.readFixedText(pmdToonTextureNameSize)
			if !ok {
				return sectionError(InvalidCustomToonTexturesError, r)
			}
			m.CustomToonTextures[i] = name
		}
	}

	if m.RigidBodies, err = readSection(r, info.RigidBodies, InvalidRigidBodiesError,
		func(i int) *RigidBody { rb := NewRigidBody(); rb.Index = i; return rb },
		func(rb *RigidBody) bool { return rb.readPMD(r) }); err != nil {
		return err
	}
	if m.Joints, err = readSection(r, info.Joints, InvalidJointsError,
		func(i int) *Joint { return &Joint{Index: i} },
		func(j *Joint) bool { return j.readPMD(r) }); err != nil {
		return err
	}
	return nil
}

func (m *Model) readPMDEnglishNames(r *reader) error {
	info := r.info
	if !r.Seek(info.EnglishNames.Offset + pmdNameSize + pmdCommentSize) {
		return sectionError(InvalidEnglishNamesError, r)
	}
	read := func() (string, bool) { return r.readFixedText(pmdNameSize) }
	for _, b := range m.Bones {
		name, ok := read()
		if !ok {
			return sectionError(InvalidEnglishNamesError, r)
		}
		b.EnglishName = name
	}
	for i := 1; i < len(m.Morphs); i++ {
		name, ok := read()
		if !ok {
			return sectionError(InvalidEnglishNamesError, r)
		}
		m.Morphs[i].EnglishName = name
	}
	for _, l := range pmdBoneCategories(m.Labels) {
		name, ok := r.readFixedText(pmdBoneCategoryNameSize)
		if !ok {
			return sectionError(InvalidEnglishNamesError, r)
		}
		l.EnglishName = name
	}
	return nil
}

func (m *Model) readIndices(r *reader, read func() (int, bool)) error {
	if !r.Seek(r.info.Indices.Offset) {
		return sectionError(InvalidIndicesError, r)
	}
	m.Indices = make([]int, r.info.Indices.Count)
	for i := range m.Indices {
		v, ok := read()
		if !ok {
			return sectionError(InvalidIndicesError, r)
		}
		m.Indices[i] = v
	}
	return nil
}

func (m *Model) readPMX(r *reader) (err error) {
	info := r.info

	if m.Vertices, err = readSection(r, info.Vertices, InvalidVerticesError,
		func(i int) *Vertex { v := NewVertex(); v.Index = i; return v },
		func(v *Vertex) bool { return v.readPMX(r) }); err != nil {
		return err
	}
	if err = m.readIndices(r, r.readVertexIndex); err != nil {
		return err
	}
	if !r.Seek(info.Textures.Offset) {
		return sectionError(InvalidTexturesError, r)
	}
	m.Textures = make([]string, info.Textures.Count)
	for i := range m.Textures {
		var ok bool
		if m.Textures[i], ok = r.readText(); !ok {
			return sectionError(InvalidTexturesError, r)
		}
	}
	if m.Materials, err = readSection(r, info.Materials, InvalidMaterialsError,
		func(i int) *Material { mat := NewMaterial(); mat.Index = i; return mat },
		func(mat *Material) bool { return mat.readPMX(r) }); err != nil {
		return err
	}
	if m.Bones, err = readSection(r, info.Bones, InvalidBonesError,
		func(i int) *Bone { b := NewBone(); b.Index = i; return b },
		func(b *Bone) bool { return b.readPMX(r) }); err != nil {
		return err
	}
	m.IKConstraints = nil
	for _, b := range m.Bones {
		if b.IK != nil {
			m.IKConstraints = append(m.IKConstraints, b.IK)
		}
	}
	if m.Morphs, err = readSection(r, info.Morphs, InvalidMorphsError,
		func(i int) *Morph { return &Morph{Index: i} },
		func(morph *Morph) bool { return morph.readPMX(r) }); err != nil {
		return err
	}
	if m.Labels, err = readSection(r, info.Labels, InvalidLabelsError,
		func(i int) *Label { return &Label{Index: i} },
		func(l *Label) bool { return l.readPMX(r) }); err != nil {
		return err
	}
	if m.RigidBodies, err = readSection(r, info.RigidBodies, InvalidRigidBodiesError,
		func(i int) *RigidBody { rb := NewRigidBody(); rb.Index = i; return rb },
		func(rb *RigidBody) bool { return rb.readPMX(r) }); err != nil {
		return err
	}
	if m.Joints, err = readSection(r, info.Joints, InvalidJointsError,
		func(i int) *Joint { return &Joint{Index: i} },
		func(j *Joint) bool { return j.readPMX(r) }); err != nil {
		return err
	}
	return nil
}

// link validates every cross reference and derives dependent data
func (m *Model) link() error {
	m.rebuildNames()
	inRange := func(i, n int) bool { return i >= -1 && i < n }

	for _, v := range m.Vertices {
		if !v.validateBones(len(m.Bones)) {
			return newParseError(InvalidVerticesError, "Vertex %d references missing bone", v.Index)
		}
	}
	for i, idx := range m.Indices {
		if idx < 0 || idx >= len(m.Vertices) {
			return newParseError(InvalidIndicesError, "Index %d references missing vertex %d", i, idx)
		}
	}

	offset := 0
	for _, mat := range m.Materials {
		if !inRange(mat.MainTextureIndex, len(m.Textures)) || !inRange(mat.SphereTextureIndex, len(m.Textures)) {
			return newParseError(InvalidMaterialsError, "Material %d references missing texture", mat.Index)
		}
		if m.format == FormatPMX && !mat.SharedToon && !inRange(mat.ToonTextureIndex, len(m.Textures)) {
			return newParseError(InvalidMaterialsError, "Material %d references missing toon texture", mat.Index)
		}
		if m.format == FormatPMD && mat.ToonTextureIndex >= pmdToonTextureCount {
			return newParseError(InvalidMaterialsError, "Material %d references missing toon texture", mat.Index)
		}
		if mat.IndexRange.Count > len(m.Indices)-offset {
			return newParseError(InvalidMaterialsError, "Material %d index range overflows index buffer", mat.Index)
		}
		mat.IndexRange.Start = offset
		mat.IndexRange.End = offset + mat.IndexRange.Count
		offset = mat.IndexRange.End
		m.resolveTextures(mat)
		for _, idx := range m.Indices[mat.IndexRange.Start:mat.IndexRange.End] {
			m.Vertices[idx].Material = mat.Index
		}
	}

	if err := m.linkBones(); err != nil {
		return err
	}
	if err := m.linkMorphs(); err != nil {
		return err
	}
	for _, l := range m.Labels {
		if !l.validate(len(m.Bones), len(m.Morphs)) {
			return newParseError(InvalidLabelsError, "Label %d references missing object", l.Index)
		}
	}

	m.linkRigidBodies()
	for _, j := range m.Joints {
		if !j.validate(len(m.RigidBodies)) {
			return newParseError(InvalidJointsError, "Joint %d references missing rigid body", j.Index)
		}
	}

	m.rebuildOrders()
	return nil
}

func (m *Model) resolveTextures(mat *Material) {
	texture := func(i int) string {
		if i < 0 || i >= len(m.Textures) {
			return ""
		}
		return m.Textures[i]
	}
	switch m.format {
	case FormatPMX:
		mat.MainTexture = texture(mat.MainTextureIndex)
		mat.SphereTexture = texture(mat.SphereTextureIndex)
		if mat.SharedToon {
			mat.ToonTexture = sharedToonTextureName(mat.ToonTextureIndex)
		} else {
			mat.ToonTexture = texture(mat.ToonTextureIndex)
		}
	case FormatPMD:
		mat.ToonTexture = ""
		if mat.ToonTextureIndex >= 0 {
			mat.ToonTexture = m.CustomToonTextures[mat.ToonTextureIndex]
		}
	}
}

func sharedToonTextureName(i int) string {
	if i < 0 || i >= pmdToonTextureCount {
		return ""
	}
	return fmt.Sprintf("toon%02d.bmp", i+1)
}

func (m *Model) linkBones() error {
	n := len(m.Bones)
	inRange := func(i int) bool { return i >= -1 && i < n }

	for _, b := range m.Bones {
		if !inRange(b.Parent) || !inRange(b.Destination) || !inRange(b.InherentParent) {
			return newParseError(InvalidBonesError, "Bone %d references missing bone", b.Index)
		}
		if m.format == FormatPMD && b.Type != BoneFollowRotate && !inRange(b.Target) {
			return newParseError(InvalidBonesError, "Bone %d references missing target bone", b.Index)
		}
		if parent := m.Bone(b.Parent); parent != nil && m.HasBoneLoopChain(b, parent) {
			return newParseError(InvalidBonesError, "Bone %d has loop in parent chain", b.Index)
		}
	}

	ikError := InvalidBonesError
	if m.format == FormatPMD {
		ikError = InvalidIKConstraintsError
		for _, b := range m.Bones {
			b.derivePMDFlags(m.Bones, m.enc)
		}
	}
	for i, c := range m.IKConstraints {
		if c.Iterations > maxIKIterations {
			return newParseError(ikError, "IK constraint %d has %d iterations, max is %d", i, c.Iterations, maxIKIterations)
		}
		if !c.validate(n) {
			return newParseError(ikError, "IK constraint %d references missing bone", i)
		}
		c.detectAxisXAlignment(m.format, m.Bones, m.enc)
	}
	return nil
}

func (m *Model) linkMorphs() error {
	for _, morph := range m.Morphs {
		if !morph.validate(m) {
			return newParseError(InvalidMorphsError, "Morph %d references missing object", morph.Index)
		}
	}
	if m.format != FormatPMD || len(m.Morphs) == 0 {
		return nil
	}

	// pmd morphs index vertices of base morph
	base := m.Morphs[0]
	if base.Category != MorphCategoryBase {
		return newParseError(InvalidMorphsError, "First morph %q is not base morph", base.Name)
	}
	for i := range base.Vertices {
		v := &base.Vertices[i]
		if v.Vertex < 0 || v.Vertex >= len(m.Vertices) {
			return newParseError(InvalidMorphsError, "Base morph references missing vertex %d", v.Vertex)
		}
		v.target = v.Vertex
	}
	for _, morph := range m.Morphs[1:] {
		for i := range morph.Vertices {
			v := &morph.Vertices[i]
			if v.Vertex < 0 || v.Vertex >= len(base.Vertices) {
				return newParseError(InvalidMorphsError, "Morph %d references missing base vertex %d", morph.Index, v.Vertex)
			}
			v.target = base.Vertices[v.Vertex].Vertex
		}
	}
	return nil
}

// linkRigidBodies binds bodies to bones. Invalid bone reference is no binding.
func (m *Model) linkRigidBodies() {
	for _, b := range m.Bones {
		b.simulated = false
	}
	for _, rb := range m.RigidBodies {
		rb.boundBone = -1
		switch {
		case m.format == FormatPMD && rb.Bone == pmdCenterBoneIndex:
			if center := m.FindBone(m.enc.Constant(config.ConstantCenter)); center != nil {
				rb.boundBone = center.Index
			}
		case rb.Bone >= 0 && rb.Bone < len(m.Bones):
			rb.boundBone = rb.Bone
		default:
			if rb.Bone != -1 {
				utils.Logger("mmd").Debugf("Rigid body %q references missing bone %d", rb.Name, rb.Bone)
			}
		}
		rb.bind(m.format, m.Bones)
		if rb.boundBone >= 0 && rb.IsDynamic() {
			m.Bones[rb.boundBone].simulated = true
		}
	}
}
