package mmd

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/utils"
)

// nested group morphs deeper than this are ignored
const maxMorphDepth = 16

// ImpulseApplier is optional World extension receiving impulse morphs
type ImpulseApplier interface {
	ApplyImpulse(body *RigidBody, velocity, torque mgl32.Vec3, local bool)
}

func (m *Model) resetMorphTargets() {
	for _, mat := range m.Materials {
		mat.ResetMorphs()
	}
	for _, b := range m.Bones {
		b.resetMorph()
	}
}

func (m *Model) applyMorphs() {
	for i, morph := range m.Morphs {
		// pmd base morph holds bind positions
		if m.format == FormatPMD && i == 0 {
			continue
		}
		if morph.weight != 0 {
			m.applyMorph(morph, morph.weight, 0)
		}
	}
	for _, mat := range m.Materials {
		mat.calculate()
	}
}

func (m *Model) applyMorph(morph *Morph, weight float32, depth int) {
	if depth > maxMorphDepth || weight == 0 {
		return
	}

	for _, vm := range morph.Vertices {
		idx := vm.Vertex
		if m.format == FormatPMD {
			idx = vm.target
		}
		if v := m.vertex(idx); v != nil {
			v.MorphDelta = v.MorphDelta.Add(vm.Position.Mul(weight))
		}
	}

	if morph.Kind.isUV() {
		layer := int(morph.Kind - MorphTexCoord)
		for _, uv := range morph.UVs {
			if v := m.vertex(uv.Vertex); v != nil {
				v.UVDeltas[layer] = v.UVDeltas[layer].Add(uv.Offset.Mul(weight))
			}
		}
	}

	for _, bm := range morph.Bones {
		if b := m.Bone(bm.Bone); b != nil {
			b.morphTranslation = b.morphTranslation.Add(bm.Translation.Mul(weight))
			r := mgl32.QuatSlerp(mgl32.QuatIdent(), bm.Rotation.Normalize(), weight)
			b.morphRotation = r.Mul(b.morphRotation).Normalize()
		}
	}

	for i := range morph.Materials {
		mm := &morph.Materials[i]
		if mm.Material < 0 {
			for _, mat := range m.Materials {
				mat.applyMorph(mm, weight)
			}
		} else if mat := m.Material(mm.Material); mat != nil {
			mat.applyMorph(mm, weight)
		}
	}

	for _, g := range morph.Groups {
		if child := m.Morph(g.Morph); child != nil && child != morph {
			m.applyMorph(child, weight*g.Weight, depth+1)
		}
	}

	if n := len(morph.Flips); n > 0 {
		selected := utils.Clamp(int(weight*float32(n)), 0, n-1)
		g := morph.Flips[selected]
		if child := m.Morph(g.Morph); child != nil && child != morph {
			m.applyMorph(child, g.Weight, depth+1)
		}
	}

	if applier, ok := m.world.(ImpulseApplier); ok && m.physicsEnabled {
		for _, im := range morph.Impulses {
			if rb := m.RigidBody(im.RigidBody); rb != nil {
				applier.ApplyImpulse(rb, im.Velocity.Mul(weight), im.Torque.Mul(weight), im.Local)
			}
		}
	}
}

func (m *Model) vertex(i int) *Vertex {
	if i < 0 || i >= len(m.Vertices) {
		return nil
	}
	return m.Vertices[i]
}

func (mat *Material) applyMorph(mm *MaterialMorph, weight float32) {
	type layer struct {
		color *Color
		value mgl32.Vec4
	}
	layers := []layer{
		{&mat.Diffuse, mm.Diffuse},
		{&mat.Specular, mm.Specular.Vec4(1)},
		{&mat.Ambient, mm.Ambient.Vec4(1)},
		{&mat.EdgeColor, mm.EdgeColor},
		{&mat.MainTextureBlend, mm.Texture},
		{&mat.SphereTextureBlend, mm.Sphere},
		{&mat.ToonTextureBlend, mm.Toon},
	}
	switch mm.Operation {
	case MaterialMorphMultiply:
		for _, l := range layers {
			l.color.CalculateMulWeight(l.value, weight)
		}
		mat.Shininess.CalculateMulWeight(mm.Shininess, weight)
		mat.EdgeSize.CalculateMulWeight(mm.EdgeSize, weight)
	case MaterialMorphAdd:
		for _, l := range layers {
			// vec3 colors keep alpha
			if l.color == &mat.Specular || l.color == &mat.Ambient {
				l.value[3] = 0
			}
			l.color.CalculateAddWeight(l.value, weight)
		}
		mat.Shininess.CalculateAddWeight(mm.Shininess, weight)
		mat.EdgeSize.CalculateAddWeight(mm.EdgeSize, weight)
	}
}
