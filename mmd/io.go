package mmd

import (
	"bytes"

	"github.com/mogaika/mmd_browser/config"
	"github.com/mogaika/mmd_browser/utils"
)

type textCodec struct {
	enc   config.Encoding
	codec config.Codec
	err   error

	// source bytes of texts that do not survive decode and encode
	raw map[string][]byte
}

func (t *textCodec) decode(raw []byte) string {
	if t.codec == config.CodecShiftJIS {
		if n := bytes.IndexByte(raw, 0); n >= 0 {
			raw = raw[:n]
		}
	}
	s, err := t.enc.Decode(t.codec, raw)
	if err != nil {
		utils.Logger("mmd").Debugf("Failed to decode %q: %v", utils.DumpToOneLineString(raw), err)
		s = string(raw)
	}
	if t.codec != config.CodecUTF8 {
		if b, err := t.enc.Encode(t.codec, s); err != nil || !bytes.Equal(b, raw) {
			t.keepRaw(s, raw)
		}
	}
	return s
}

func (t *textCodec) keepRaw(s string, raw []byte) {
	if t.raw == nil {
		t.raw = make(map[string][]byte)
	}
	if _, exists := t.raw[s]; !exists {
		t.raw[s] = append([]byte(nil), raw...)
	}
}

// encode failures are sticky and reported by save
func (t *textCodec) encode(s string) []byte {
	if b, ok := t.raw[s]; ok {
		return b
	}
	b, err := t.enc.Encode(t.codec, s)
	if err != nil {
		if t.err == nil {
			t.err = err
		}
		return nil
	}
	return b
}

// encodeFixed drops trailing characters until text fits size bytes
func (t *textCodec) encodeFixed(s string, size int) []byte {
	b := t.encode(s)
	if len(b) <= size {
		return b
	}
	if _, ok := t.raw[s]; ok {
		return b[:size]
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if b = t.encode(string(runes)); len(b) <= size {
			return b
		}
	}
	return nil
}

// layout carries everything record size calculation depends on
type layout struct {
	info *DataInfo
	text *textCodec
}

func (l *layout) textSize(s string) int {
	return 4 + len(l.text.encode(s))
}

type reader struct {
	*utils.Cursor
	layout
}

func newReader(data []byte, info *DataInfo, text *textCodec) *reader {
	return &reader{Cursor: utils.NewCursor(data), layout: layout{info: info, text: text}}
}

func (r *reader) readText() (string, bool) {
	raw, ok := r.ReadSizedText()
	if !ok {
		return "", false
	}
	return r.text.decode(raw), true
}

func (r *reader) readFixedText(size int) (string, bool) {
	raw, ok := r.ReadFixedText(size)
	if !ok {
		return "", false
	}
	return r.text.decode(raw), true
}

func (r *reader) readVertexIndex() (int, bool) {
	return r.ReadUnsignedIndex(r.info.VertexIndexSize)
}

func (r *reader) readTextureIndex() (int, bool) {
	return r.ReadSignedIndex(r.info.TextureIndexSize)
}

func (r *reader) readMaterialIndex() (int, bool) {
	return r.ReadSignedIndex(r.info.MaterialIndexSize)
}

func (r *reader) readBoneIndex() (int, bool) {
	return r.ReadSignedIndex(r.info.BoneIndexSize)
}

func (r *reader) readMorphIndex() (int, bool) {
	return r.ReadSignedIndex(r.info.MorphIndexSize)
}

func (r *reader) readRigidBodyIndex() (int, bool) {
	return r.ReadSignedIndex(r.info.RigidBodyIndexSize)
}

// pmd stores absent references as 0xffff
func (r *reader) readPMDIndex() (int, bool) {
	v, ok := r.ReadU16()
	if v == 0xffff {
		return -1, ok
	}
	return int(v), ok
}

type writer struct {
	*utils.Writer
	layout
}

func newWriter(l *layout, capacity int) *writer {
	return &writer{Writer: utils.NewWriter(capacity), layout: *l}
}

func (w *writer) putText(s string) {
	w.PutSizedText(w.text.encode(s))
}

func (w *writer) putFixedText(s string, size int) {
	w.PutFixedText(w.text.encodeFixed(s, size), size)
}

func (w *writer) putVertexIndex(i int) {
	w.PutUnsignedIndex(i, w.info.VertexIndexSize)
}

func (w *writer) putTextureIndex(i int) {
	w.PutSignedIndex(i, w.info.TextureIndexSize)
}

func (w *writer) putMaterialIndex(i int) {
	w.PutSignedIndex(i, w.info.MaterialIndexSize)
}

func (w *writer) putBoneIndex(i int) {
	w.PutSignedIndex(i, w.info.BoneIndexSize)
}

func (w *writer) putMorphIndex(i int) {
	w.PutSignedIndex(i, w.info.MorphIndexSize)
}

func (w *writer) putRigidBodyIndex(i int) {
	w.PutSignedIndex(i, w.info.RigidBodyIndexSize)
}

func (w *writer) putPMDIndex(i int) {
	if i < 0 {
		w.PutU16(0xffff)
	} else {
		w.PutU16(uint16(i))
	}
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
