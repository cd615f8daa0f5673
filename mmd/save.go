package mmd

import (
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

// SetCodec selects text encoding used when model is saved as pmx
func (m *Model) SetCodec(codec config.Codec) error {
	if codec != config.CodecUTF8 && codec != config.CodecUTF16 {
		return errors.Errorf("Codec %v is not supported by pmx", codec)
	}
	m.Codec = codec
	return nil
}

// layout describes how model would be written right now
func (m *Model) saveLayout() *layout {
	info := &DataInfo{Format: m.format, Version: m.Version, Codec: m.Codec, AdditionalUVSize: m.AdditionalUVSize}
	if m.format == FormatPMD {
		info.Codec = config.CodecShiftJIS
		info.Version = pmdVersion
	} else {
		info.Version = pmxVersion
		info.VertexIndexSize = utils.IndexSize(len(m.Vertices), false)
		info.TextureIndexSize = utils.IndexSize(len(m.Textures), true)
		info.MaterialIndexSize = utils.IndexSize(len(m.Materials), true)
		info.BoneIndexSize = utils.IndexSize(len(m.Bones), true)
		info.MorphIndexSize = utils.IndexSize(len(m.Morphs), true)
		info.RigidBodyIndexSize = utils.IndexSize(len(m.RigidBodies), true)
	}
	text := &textCodec{enc: m.enc, codec: info.Codec}
	if m.rawCodec == info.Codec {
		text.raw = m.rawText
	}
	return &layout{info: info, text: text}
}

func (m *Model) EstimateSize() int {
	l := m.saveLayout()
	if m.format == FormatPMD {
		return m.estimatePMD(l)
	}
	return m.estimatePMX(l)
}

// Save serializes model into buffer of exactly EstimateSize bytes
func (m *Model) Save() ([]byte, error) {
	l := m.saveLayout()
	var size int
	if m.format == FormatPMD {
		size = m.estimatePMD(l)
	} else {
		size = m.estimatePMX(l)
	}

	w := newWriter(l, size)
	if m.format == FormatPMD {
		m.writePMD(w)
	} else {
		m.writePMX(w)
	}

	if l.text.err != nil {
		m.lastError = InvalidSaveSizeError
		return nil, wrapParseError(InvalidSaveSizeError, l.text.err, "Failed to encode text")
	}
	if w.Len() != size {
		m.lastError = InvalidSaveSizeError
		return nil, newParseError(InvalidSaveSizeError, "Written %d bytes, expected %d", w.Len(), size)
	}
	return w.Bytes(), nil
}

// pmd

func (m *Model) estimatePMD(l *layout) int {
	size := len(pmdSignature) + 4 + pmdNameSize + pmdCommentSize
	size += 4
	for _, v := range m.Vertices {
		size += v.estimatePMD(l)
	}
	size += 4 + 2*len(m.Indices)
	size += 4
	for _, mat := range m.Materials {
		size += mat.estimatePMD(l)
	}
	size += 2
	for _, b := range m.Bones {
		size += b.estimatePMD(l)
	}
	size += 2
	for _, c := range m.IKConstraints {
		size += c.estimatePMD(l)
	}
	size += 2
	for _, morph := range m.Morphs {
		size += morph.estimatePMD(l)
	}
	size += estimatePMDLabels(m.Labels)

	size++
	if m.HasEnglish {
		size += pmdNameSize + pmdCommentSize + pmdNameSize*len(m.Bones)
		if len(m.Morphs) > 1 {
			size += pmdNameSize * (len(m.Morphs) - 1)
		}
		size += pmdBoneCategoryNameSize * len(pmdBoneCategories(m.Labels))
	}
	size += pmdToonTextureCount * pmdToonTextureNameSize

	size += 4
	for _, rb := range m.RigidBodies {
		size += rb.estimatePMD(l)
	}
	size += 4
	for _, j := range m.Joints {
		size += j.estimatePMD(l)
	}
	return size
}

func (m *Model) writePMD(w *writer) {
	w.Write([]byte(pmdSignature))
	w.PutF32(pmdVersion)
	w.putFixedText(m.Name, pmdNameSize)
	w.putFixedText(m.Comment, pmdCommentSize)

	w.PutU32(uint32(len(m.Vertices)))
	for _, v := range m.Vertices {
		v.writePMD(w)
	}
	w.PutU32(uint32(len(m.Indices)))
	for _, i := range m.Indices {
		w.PutU16(uint16(i))
	}
	w.PutU32(uint32(len(m.Materials)))
	for _, mat := range m.Materials {
		mat.writePMD(w, m.enc)
	}
	w.PutU16(uint16(len(m.Bones)))
	for _, b := range m.Bones {
		b.writePMD(w)
	}
	w.PutU16(uint16(len(m.IKConstraints)))
	for _, c := range m.IKConstraints {
		c.writePMD(w)
	}
	w.PutU16(uint16(len(m.Morphs)))
	for _, morph := range m.Morphs {
		morph.writePMD(w)
	}
	writePMDLabels(w, m.Labels)

	w.PutU8(boolByte(m.HasEnglish))
	if m.HasEnglish {
		w.putFixedText(m.EnglishName, pmdNameSize)
		w.putFixedText(m.EnglishComment, pmdCommentSize)
		for _, b := range m.Bones {
			w.putFixedText(b.EnglishName, pmdNameSize)
		}
		for i := 1; i < len(m.Morphs); i++ {
			w.putFixedText(m.Morphs[i].EnglishName, pmdNameSize)
		}
		for _, l := range pmdBoneCategories(m.Labels) {
			w.putFixedText(l.EnglishName, pmdBoneCategoryNameSize)
		}
	}
	for _, name := range m.CustomToonTextures {
		w.putFixedText(name, pmdToonTextureNameSize)
	}

	w.PutU32(uint32(len(m.RigidBodies)))
	for _, rb := range m.RigidBodies {
		rb.writePMD(w)
	}
	w.PutU32(uint32(len(m.Joints)))
	for _, j := range m.Joints {
		j.writePMD(w)
	}
}

// pmx

func (m *Model) estimatePMX(l *layout) int {
	size := len(pmxSignature) + 4 + 1 + pmxFlagsSize
	for _, s := range []string{m.Name, m.EnglishName, m.Comment, m.EnglishComment} {
		size += l.textSize(s)
	}
	size += 4
	for _, v := range m.Vertices {
		size += v.estimatePMX(l)
	}
	size += 4 + l.info.VertexIndexSize*len(m.Indices)
	size += 4
	for _, t := range m.Textures {
		size += l.textSize(t)
	}
	size += 4
	for _, mat := range m.Materials {
		size += mat.estimatePMX(l)
	}
	size += 4
	for _, b := range m.Bones {
		size += b.estimatePMX(l)
	}
	size += 4
	for _, morph := range m.Morphs {
		size += morph.estimatePMX(l)
	}
	size += 4
	for _, label := range m.Labels {
		size += label.estimatePMX(l)
	}
	size += 4
	for _, rb := range m.RigidBodies {
		size += rb.estimatePMX(l)
	}
	size += 4
	for _, j := range m.Joints {
		size += j.estimatePMX(l)
	}
	return size
}

func (m *Model) writePMX(w *writer) {
	info := w.info
	w.Write([]byte(pmxSignature))
	w.PutF32(pmxVersion)
	w.PutU8(pmxFlagsSize)
	w.PutU8(uint8(info.Codec))
	w.PutU8(uint8(info.AdditionalUVSize))
	for _, size := range info.indexSizes() {
		w.PutU8(uint8(*size))
	}
	for _, s := range []string{m.Name, m.EnglishName, m.Comment, m.EnglishComment} {
		w.putText(s)
	}

	w.PutI32(int32(len(m.Vertices)))
	for _, v := range m.Vertices {
		v.writePMX(w)
	}
	w.PutI32(int32(len(m.Indices)))
	for _, i := range m.Indices {
		w.putVertexIndex(i)
	}
	w.PutI32(int32(len(m.Textures)))
	for _, t := range m.Textures {
		w.putText(t)
	}
	w.PutI32(int32(len(m.Materials)))
	for _, mat := range m.Materials {
		mat.writePMX(w)
	}
	w.PutI32(int32(len(m.Bones)))
	for _, b := range m.Bones {
		b.writePMX(w)
	}
	w.PutI32(int32(len(m.Morphs)))
	for _, morph := range m.Morphs {
		morph.writePMX(w)
	}
	w.PutI32(int32(len(m.Labels)))
	for _, l := range m.Labels {
		l.writePMX(w)
	}
	w.PutI32(int32(len(m.RigidBodies)))
	for _, rb := range m.RigidBodies {
		rb.writePMX(w)
	}
	w.PutI32(int32(len(m.Joints)))
	for _, j := range m.Joints {
		j.writePMX(w)
	}
}
