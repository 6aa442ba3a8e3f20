package canvas

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// paintOver рисует цвет c через маску в режиме source-over.
func paintOver(dst *image.RGBA, mask *image.Alpha, c color.Color) {
	if mask == nil {
		return
	}
	r := mask.Bounds().Intersect(dst.Bounds())
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, r.Min, draw.Over)
}

// punchOut режим destination-out: любой пиксель, которого касается маска,
// становится полностью прозрачным независимо от цвета и степени покрытия.
func punchOut(dst *image.RGBA, mask *image.Alpha) {
	if mask == nil {
		return
	}
	r := mask.Bounds().Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if mask.AlphaAt(x, y).A == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			clear(dst.Pix[i : i+4 : i+4])
		}
	}
}

// multiplyOver накладывает src на dst в режиме multiply с прозрачностью opacity:
// тёмные пиксели src затемняют снимок, а не закрывают его.
// src должен совпадать по размеру с dst.
func multiplyOver(dst *image.RGBA, src image.Image, opacity float64) {
	r := src.Bounds().Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sr, sg, sb, sa := src.At(x, y).RGBA()
			if sa == 0 {
				continue
			}
			as := float64(sa) / 0xffff * opacity
			cs := [3]float64{
				float64(sr) / 0xffff * opacity,
				float64(sg) / 0xffff * opacity,
				float64(sb) / 0xffff * opacity,
			}

			i := dst.PixOffset(x, y)
			px := dst.Pix[i : i+4 : i+4]
			ab := float64(px[3]) / 255

			for c := 0; c < 3; c++ {
				cb := float64(px[c]) / 255
				// premultiplied: co = cs*(1-ab) + cb*(1-as) + cs*cb
				px[c] = toByte(cs[c]*(1-ab) + cb*(1-as) + cs[c]*cb)
			}
			px[3] = toByte(as + ab - as*ab)
		}
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// fitTo приводит изображение к размеру size. Изображение нужного размера
// копируется в RGBA без масштабирования.
func fitTo(src image.Image, size image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(size)
	if src.Bounds().Size() == size.Size() {
		draw.Draw(dst, size, src, src.Bounds().Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, size, src, src.Bounds(), draw.Src, nil)
	return dst
}
