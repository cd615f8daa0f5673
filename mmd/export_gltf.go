package mmd

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/mmd_browser/utils"
	"github.com/mogaika/mmd_browser/utils/gltfutils"
)

// ExportGLTF builds document with skinned mesh in current pose and
// bone hierarchy as node tree
func (m *Model) ExportGLTF() (*gltf.Document, error) {
	if len(m.Vertices) == 0 {
		return nil, fmt.Errorf("model '%s' has no vertices", m.Name)
	}
	doc := gltfutils.NewDocument()

	verticesCount := len(m.Vertices)
	positions := make([][3]float32, verticesCount)
	normals := make([][3]float32, verticesCount)
	uvs := make([][2]float32, verticesCount)
	for i, v := range m.Vertices {
		position, normal := v.PerformSkinning(m.Bones)
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		positions[i] = position
		normals[i] = normal
		uvs[i] = v.MorphedTexCoord()
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, positions),
		"NORMAL":     modeler.WriteNormal(doc, normals),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, uvs),
	}

	mesh := &gltf.Mesh{Name: m.Name}
	for iMaterial, mat := range m.Materials {
		if mat.IndexRange.Count == 0 {
			continue
		}
		indices := make([]uint32, mat.IndexRange.Count)
		for i := range indices {
			indices[i] = uint32(m.Indices[mat.IndexRange.Start+i])
		}

		doc.Materials = append(doc.Materials, &gltf.Material{
			Name:        mat.Name,
			DoubleSided: mat.IsCullingDisabled(),
		})
		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(doc, indices)),
			Attributes: attributes,
			Material:   gltf.Index(uint32(len(doc.Materials) - 1)),
		})
		utils.Logger("mmd").Debugf("Exported material %d %q: %d indices", iMaterial, mat.Name, len(indices))
	}
	doc.Meshes = append(doc.Meshes, mesh)

	gltfutils.AddRoot(doc, uint32(len(doc.Nodes)))
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: m.Name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})

	m.exportSkeleton(doc)
	return doc, nil
}

func (m *Model) exportSkeleton(doc *gltf.Document) {
	base := uint32(len(doc.Nodes))
	for _, b := range m.Bones {
		local := b.worldTransform
		if parent := m.ParentBone(b); parent != nil {
			local = parent.worldTransform.Inv().Mul4(local)
		}
		doc.Nodes = append(doc.Nodes, gltfutils.NodeFromTransform(b.Name, local))
	}
	for _, b := range m.Bones {
		if parent := m.ParentBone(b); parent != nil {
			node := doc.Nodes[base+uint32(parent.Index)]
			node.Children = append(node.Children, base+uint32(b.Index))
		} else {
			gltfutils.AddRoot(doc, base+uint32(b.Index))
		}
	}
}
