package web

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// largest side of scaled texture preview
const maxPreviewSize = 2048

// DecodeTexture decodes model texture by file extension.
// Sphere maps (sph, spa) are bitmaps.
func DecodeTexture(name string, r io.Reader) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bmp", ".sph", ".spa":
		return bmp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}

// ScaleTexture fits image into size x size box keeping aspect
func ScaleTexture(img image.Image, size int) image.Image {
	b := img.Bounds()
	if size <= 0 || (b.Dx() <= size && b.Dy() <= size) {
		return img
	}
	w, h := size, size
	if b.Dx() > b.Dy() {
		h = max(1, b.Dy()*size/b.Dx())
	} else {
		w = max(1, b.Dx()*size/b.Dy())
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// textureFile resolves texture name of model relative to its directory.
// Names escaping directory are refused.
func textureFile(e *Entry, name string) (string, error) {
	if e.Path == "" {
		return "", errors.Errorf("Model %q has no directory for textures", e.Name())
	}
	clean := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("Texture path %q is outside of model directory", name)
	}
	return filepath.Join(filepath.Dir(e.Path), clean), nil
}

// TextureWebp converts texture file to webp preview
func TextureWebp(path string, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open texture")
	}
	defer f.Close()

	img, err := DecodeTexture(path, f)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode texture %q", path)
	}
	if size <= 0 || size > maxPreviewSize {
		size = maxPreviewSize
	}

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, ScaleTexture(img, size), nil); err != nil {
		return nil, errors.Wrapf(err, "Failed to encode texture %q", path)
	}
	return buf.Bytes(), nil
}
