// Package canvas рисует поверх снимка: отметки модели, маску, разметку врача,
// и сводит слои в одно изображение для отчёта.
package canvas

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"xray-review/internal/domain/geometry"
)

// arcSteps число отрезков, которыми приближается полуокружность.
const arcSteps = 24

// polygon замкнутый контур.
type polygon []geometry.Point

// circlePolygon окружность как многоугольник. clockwise задаёт направление обхода:
// встречные контуры вычитаются при растеризации, так получается кольцо.
func circlePolygon(c geometry.Point, r float64, clockwise bool) polygon {
	n := 2 * arcSteps
	pts := make(polygon, 0, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		if !clockwise {
			a = -a
		}
		pts = append(pts, geometry.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)})
	}
	return pts
}

// capsulePolygon отрезок a-b толщиной 2r с круглыми концами.
// Нулевой отрезок превращается в точку-круг.
func capsulePolygon(a, b geometry.Point, r float64) polygon {
	length := a.Distance(b)
	if length < 1e-9 {
		return circlePolygon(a, r, true)
	}

	ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length
	normal := math.Atan2(ux, -uy) // угол нормали (-uy, ux)

	pts := make(polygon, 0, 2*arcSteps+2)
	pts = appendArc(pts, b, r, normal, normal-math.Pi)
	pts = appendArc(pts, a, r, normal-math.Pi, normal-2*math.Pi)
	return pts
}

func appendArc(pts polygon, c geometry.Point, r, from, to float64) polygon {
	for i := 0; i <= arcSteps; i++ {
		a := from + (to-from)*float64(i)/arcSteps
		pts = append(pts, geometry.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)})
	}
	return pts
}

// bounds описывающий прямоугольник контуров с запасом в пиксель, обрезанный по clip.
func bounds(clip image.Rectangle, polys ...polygon) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range polys {
		for _, pt := range p {
			minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
			minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
		}
	}
	if math.IsInf(minX, 0) || math.IsNaN(minX) || math.IsNaN(minY) || math.IsNaN(maxX) || math.IsNaN(maxY) {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(math.Floor(minX))-1, int(math.Floor(minY))-1,
		int(math.Ceil(maxX))+1, int(math.Ceil(maxY))+1,
	)
	return r.Intersect(clip)
}

// rasterize строит альфа-маску покрытия контуров в пределах clip.
// Возвращает nil, если контуры не пересекают clip.
func rasterize(clip image.Rectangle, polys ...polygon) *image.Alpha {
	r := bounds(clip, polys...)
	if r.Empty() {
		return nil
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.DrawOp = draw.Src
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	for _, p := range polys {
		if len(p) < 3 {
			continue
		}
		z.MoveTo(float32(p[0].X-ox), float32(p[0].Y-oy))
		for _, pt := range p[1:] {
			z.LineTo(float32(pt.X-ox), float32(pt.Y-oy))
		}
		z.ClosePath()
	}

	mask := image.NewAlpha(r)
	z.Draw(mask, r, image.Opaque, image.Point{})
	return mask
}
