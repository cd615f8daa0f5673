package gltfutils

import (
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

// AddRoot places node into default scene
func AddRoot(doc *gltf.Document, node uint32) {
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, node)
}

// NodeFromTransform decomposes rigid transform into node TRS
func NodeFromTransform(name string, local mgl32.Mat4) *gltf.Node {
	rotation := mgl32.Mat4ToQuat(local).Normalize()
	return &gltf.Node{
		Name:        name,
		Translation: local.Col(3).Vec3(),
		Rotation:    rotation.V.Vec4(rotation.W),
		Scale:       [3]float32{1, 1, 1},
	}
}

func Export(w io.Writer, doc *gltf.Document, binary bool) error {
	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = binary
	return encoder.Encode(doc)
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	return Export(w, doc, true)
}
