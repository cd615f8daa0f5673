package web

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mmd_browser/mmd"
	"github.com/mogaika/mmd_browser/utils"
)

type EntryView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Format   string `json:"format"`
	Title    string `json:"title"`
	Error    string `json:"error,omitempty"`
	Vertices int    `json:"vertices"`
	Bones    int    `json:"bones"`
	Morphs   int    `json:"morphs"`
}

type BoneView struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	English   string     `json:"english,omitempty"`
	Parent    int        `json:"parent"`
	Origin    mgl32.Vec3 `json:"origin"`
	Position  mgl32.Vec3 `json:"position"`
	Rotation  mgl32.Vec3 `json:"rotation"`
	IK        bool       `json:"ik,omitempty"`
	Simulated bool       `json:"simulated,omitempty"`
	Movable   bool       `json:"movable"`
	Visible   bool       `json:"visible"`
}

type MaterialView struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Diffuse       string  `json:"diffuse"`
	Specular      string  `json:"specular"`
	Ambient       string  `json:"ambient"`
	Edge          string  `json:"edge"`
	Shininess     float32 `json:"shininess"`
	MainTexture   string  `json:"main_texture,omitempty"`
	SphereTexture string  `json:"sphere_texture,omitempty"`
	ToonTexture   string  `json:"toon_texture,omitempty"`
	Indices       int     `json:"indices"`
	DoubleSided   bool    `json:"double_sided"`
}

type MorphView struct {
	Index    int     `json:"index"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Category int     `json:"category"`
	Weight   float32 `json:"weight"`
}

type LabelView struct {
	Name     string `json:"name"`
	Special  bool   `json:"special,omitempty"`
	Elements int    `json:"elements"`
}

type RigidBodyView struct {
	Index   int        `json:"index"`
	Name    string     `json:"name"`
	Bone    int        `json:"bone"`
	Dynamic bool       `json:"dynamic"`
	World   mgl32.Vec3 `json:"world"`
}

type ModelView struct {
	EntryView
	Comment     string          `json:"comment"`
	Textures    []string        `json:"textures"`
	Materials   []MaterialView  `json:"materials"`
	Bones       []BoneView      `json:"bones"`
	Morphs      []MorphView     `json:"morphs"`
	Labels      []LabelView     `json:"labels"`
	RigidBodies []RigidBodyView `json:"rigid_bodies"`
	Joints      int             `json:"joints"`
	AABB        mmd.AABB        `json:"aabb"`
}

// PoseView is result of pose action
type PoseView struct {
	Bones []BoneView `json:"bones"`
	AABB  mmd.AABB   `json:"aabb"`
}

func color(c mmd.Color) string {
	return utils.NewColorFloatV4(c.Result).Hex()
}

func newEntryView(e *Entry) EntryView {
	v := EntryView{ID: e.ID.String(), Name: e.Name(), Path: e.Path}
	if e.LoadErr != nil {
		v.Error = e.LoadErr.Error()
	}
	if m := e.Model; m != nil && m.State() == mmd.StateReady {
		v.Format = m.Format().String()
		v.Title = m.Name
		v.Vertices = len(m.Vertices)
		v.Bones = len(m.Bones)
		v.Morphs = len(m.Morphs)
	}
	return v
}

func newBoneViews(m *mmd.Model) []BoneView {
	views := make([]BoneView, len(m.Bones))
	for i, b := range m.Bones {
		views[i] = BoneView{
			Index:     b.Index,
			Name:      b.Name,
			English:   b.EnglishName,
			Parent:    b.Parent,
			Origin:    b.Origin,
			Position:  b.WorldPosition(),
			Rotation:  utils.RadiansToDegreeV3(utils.EulerZYX(b.LocalRotation.Mat4().Mat3())),
			IK:        b.HasIK(),
			Simulated: b.IsSimulated(),
			Movable:   b.IsMovable(),
			Visible:   b.IsVisible(),
		}
	}
	return views
}

func newModelView(e *Entry) *ModelView {
	m := e.Model
	v := &ModelView{
		EntryView: newEntryView(e),
		Comment:   m.Comment,
		Textures:  m.Textures,
		Bones:     newBoneViews(m),
		Joints:    len(m.Joints),
		AABB:      m.AABB(),
	}
	for _, mat := range m.Materials {
		v.Materials = append(v.Materials, MaterialView{
			Index:         mat.Index,
			Name:          mat.Name,
			Diffuse:       color(mat.Diffuse),
			Specular:      color(mat.Specular),
			Ambient:       color(mat.Ambient),
			Edge:          color(mat.EdgeColor),
			Shininess:     mat.Shininess.Result,
			MainTexture:   mat.MainTexture,
			SphereTexture: mat.SphereTexture,
			ToonTexture:   mat.ToonTexture,
			Indices:       mat.IndexRange.Count,
			DoubleSided:   mat.IsCullingDisabled(),
		})
	}
	for _, morph := range m.Morphs {
		v.Morphs = append(v.Morphs, MorphView{
			Index:    morph.Index,
			Name:     morph.Name,
			Kind:     morph.Kind.String(),
			Category: int(morph.Category),
			Weight:   morph.Weight(),
		})
	}
	for _, l := range m.Labels {
		v.Labels = append(v.Labels, LabelView{Name: l.Name, Special: l.Special, Elements: len(l.Elements)})
	}
	for _, rb := range m.RigidBodies {
		v.RigidBodies = append(v.RigidBodies, RigidBodyView{
			Index:   rb.Index,
			Name:    rb.Name,
			Bone:    rb.BoundBone(),
			Dynamic: rb.IsDynamic(),
			World:   rb.WorldTransform().Col(3).Vec3(),
		})
	}
	return v
}
