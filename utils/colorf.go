package utils

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

type ColorFloat [4]float32

func (c *ColorFloat) RGBA() (r, g, b, a uint32) {
	const mf = float32(256*256 - 1)
	r = uint32(Clamp(c[0], 0, 1) * mf)
	g = uint32(Clamp(c[1], 0, 1) * mf)
	b = uint32(Clamp(c[2], 0, 1) * mf)
	a = uint32(Clamp(c[3], 0, 1) * mf)
	return
}

// Hex returns css style #rrggbbaa representation
func (c ColorFloat) Hex() string {
	r, g, b, a := c.RGBA()
	return fmt.Sprintf("#%.2x%.2x%.2x%.2x", r>>8, g>>8, b>>8, a>>8)
}

func NewColorFloatV4(v mgl32.Vec4) ColorFloat {
	return ColorFloat{v[0], v[1], v[2], v[3]}
}

func NewColorFloatV3(v mgl32.Vec3) ColorFloat {
	return ColorFloat{v[0], v[1], v[2], 1.0}
}
