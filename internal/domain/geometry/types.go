// Package geometry переводит координаты модели (натуральные пиксели снимка)
// в координаты экрана и обратно.
package geometry

import "math"

// Point точка на плоскости.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub возвращает разность точек.
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// Distance евклидово расстояние до другой точки.
func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Size ширина и высота.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Positive true, если обе стороны конечны и больше нуля.
func (s Size) Positive() bool {
	return finite(s.Width) && finite(s.Height) && s.Width > 0 && s.Height > 0
}

// Rect прямоугольник: левый верхний угол и размеры.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center возвращает центр прямоугольника.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Valid false для NaN/Inf и отрицательных сторон.
func (r Rect) Valid() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height) &&
		r.Width >= 0 && r.Height >= 0
}

// Circle окружность с центром и радиусом.
type Circle struct {
	Center Point   `json:"center"`
	Radius float64 `json:"radius"`
}

// CirclePadding запас вокруг области поражения.
const CirclePadding = 1.2

// CircleAround строит окружность по центру прямоугольника:
// радиус = половина большей стороны с запасом 20%.
func CircleAround(r Rect) Circle {
	return Circle{
		Center: r.Center(),
		Radius: 0.5 * math.Max(r.Width, r.Height) * CirclePadding,
	}
}

// Top верхняя точка окружности, над ней ставится подпись.
func (c Circle) Top() Point {
	return Point{X: c.Center.X, Y: c.Center.Y - c.Radius}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
