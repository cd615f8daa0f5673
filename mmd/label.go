package mmd

type LabelElementKind uint8

const (
	LabelBone LabelElementKind = iota
	LabelMorph
)

type LabelElement struct {
	Kind  LabelElementKind
	Index int
}

// Label is display frame grouping bones or morphs
type Label struct {
	Index       int
	Name        string
	EnglishName string
	Special     bool
	Elements    []LabelElement
}

func (l *Label) validate(boneCount, morphCount int) bool {
	for _, e := range l.Elements {
		switch e.Kind {
		case LabelBone:
			if e.Index < 0 || e.Index >= boneCount {
				return false
			}
		case LabelMorph:
			if e.Index < 0 || e.Index >= morphCount {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// pmd labels are assembled from morph label, bone category and bone label tables

const (
	pmdBoneCategoryNameSize = 50
	pmdBoneLabelSize        = 3
)

func preparsePMDLabels(r *reader, info *DataInfo) bool {
	morphLabels, ok := r.ReadU8()
	if !ok {
		return false
	}
	info.MorphLabels = Section{Offset: r.Pos(), Count: int(morphLabels)}
	if !r.SkipRecords(int(morphLabels), 2) {
		return false
	}
	categories, ok := r.ReadU8()
	if !ok {
		return false
	}
	info.BoneCategoryNames = Section{Offset: r.Pos(), Count: int(categories)}
	if !r.SkipRecords(int(categories), pmdBoneCategoryNameSize) {
		return false
	}
	boneLabels, ok := r.ReadU32()
	if !ok {
		return false
	}
	info.BoneLabels = Section{Offset: r.Pos(), Count: int(boneLabels)}
	return r.SkipRecords(int(boneLabels), pmdBoneLabelSize)
}

// readPMDLabels returns morph label followed by one label per bone category
func readPMDLabels(r *reader, morphLabelName string) ([]*Label, bool) {
	info := r.info
	if !r.Seek(info.MorphLabels.Offset) {
		return nil, false
	}
	morphLabel := &Label{Name: morphLabelName, Special: true}
	for i := 0; i < info.MorphLabels.Count; i++ {
		idx, ok := r.ReadU16()
		if !ok {
			return nil, false
		}
		morphLabel.Elements = append(morphLabel.Elements, LabelElement{Kind: LabelMorph, Index: int(idx)})
	}
	labels := []*Label{morphLabel}

	if !r.Seek(info.BoneCategoryNames.Offset) {
		return nil, false
	}
	for i := 0; i < info.BoneCategoryNames.Count; i++ {
		name, ok := r.readFixedText(pmdBoneCategoryNameSize)
		if !ok {
			return nil, false
		}
		labels = append(labels, &Label{Name: name})
	}

	if !r.Seek(info.BoneLabels.Offset) {
		return nil, false
	}
	for i := 0; i < info.BoneLabels.Count; i++ {
		bone, ok := r.ReadU16()
		if !ok {
			return nil, false
		}
		category, ok := r.ReadU8()
		if !ok {
			return nil, false
		}
		// categories are numbered from 1
		if category == 0 || int(category) >= len(labels) {
			return nil, false
		}
		l := labels[category]
		l.Elements = append(l.Elements, LabelElement{Kind: LabelBone, Index: int(bone)})
	}
	for i, l := range labels {
		l.Index = i
	}
	return labels, true
}

func pmdMorphLabel(labels []*Label) *Label {
	if len(labels) == 0 {
		return &Label{}
	}
	return labels[0]
}

func pmdBoneCategories(labels []*Label) []*Label {
	if len(labels) < 2 {
		return nil
	}
	return labels[1:]
}

func writePMDLabels(w *writer, labels []*Label) {
	morphLabel := pmdMorphLabel(labels)
	w.PutU8(uint8(len(morphLabel.Elements)))
	for _, e := range morphLabel.Elements {
		w.PutU16(uint16(e.Index))
	}

	categories := pmdBoneCategories(labels)
	w.PutU8(uint8(len(categories)))
	for _, l := range categories {
		w.putFixedText(l.Name, pmdBoneCategoryNameSize)
	}

	count := 0
	for _, l := range categories {
		count += len(l.Elements)
	}
	w.PutU32(uint32(count))
	for i, l := range categories {
		for _, e := range l.Elements {
			w.PutU16(uint16(e.Index))
			w.PutU8(uint8(i + 1))
		}
	}
}

func estimatePMDLabels(labels []*Label) int {
	size := 1 + 2*len(pmdMorphLabel(labels).Elements) + 1 + 4
	for _, l := range pmdBoneCategories(labels) {
		size += pmdBoneCategoryNameSize + pmdBoneLabelSize*len(l.Elements)
	}
	return size
}

// pmx

func preparsePMXLabels(r *reader, info *DataInfo) bool {
	count, ok := r.ReadI32()
	if !ok || count < 0 {
		return false
	}
	info.Labels = Section{Offset: r.Pos(), Count: int(count)}
	for i := 0; i < int(count); i++ {
		if !r.SkipSizedText() || !r.SkipSizedText() || !r.Skip(1) {
			return false
		}
		n, ok := r.ReadI32()
		if !ok || n < 0 {
			return false
		}
		for j := 0; j < int(n); j++ {
			kind, ok := r.ReadU8()
			if !ok {
				return false
			}
			size := info.BoneIndexSize
			if LabelElementKind(kind) == LabelMorph {
				size = info.MorphIndexSize
			}
			if !r.Skip(size) {
				return false
			}
		}
	}
	return true
}

func (l *Label) readPMX(r *reader) bool {
	var ok bool
	if l.Name, ok = r.readText(); !ok {
		return false
	}
	if l.EnglishName, ok = r.readText(); !ok {
		return false
	}
	special, ok := r.ReadU8()
	if !ok {
		return false
	}
	l.Special = special != 0
	n, ok := r.ReadI32()
	if !ok || n < 0 || int(n) > r.Rest() {
		return false
	}
	l.Elements = make([]LabelElement, n)
	for i := range l.Elements {
		kind, ok := r.ReadU8()
		if !ok {
			return false
		}
		e := &l.Elements[i]
		e.Kind = LabelElementKind(kind)
		if e.Kind == LabelMorph {
			e.Index, ok = r.readMorphIndex()
		} else {
			e.Index, ok = r.readBoneIndex()
		}
		if !ok {
			return false
		}
	}
	return true
}

func (l *Label) writePMX(w *writer) {
	w.putText(l.Name)
	w.putText(l.EnglishName)
	w.PutU8(boolByte(l.Special))
	w.PutI32(int32(len(l.Elements)))
	for _, e := range l.Elements {
		w.PutU8(uint8(e.Kind))
		if e.Kind == LabelMorph {
			w.putMorphIndex(e.Index)
		} else {
			w.putBoneIndex(e.Index)
		}
	}
}

func (l *Label) estimatePMX(lay *layout) int {
	size := lay.textSize(l.Name) + lay.textSize(l.EnglishName) + 1 + 4
	for _, e := range l.Elements {
		if e.Kind == LabelMorph {
			size += 1 + lay.info.MorphIndexSize
		} else {
			size += 1 + lay.info.BoneIndexSize
		}
	}
	return size
}
