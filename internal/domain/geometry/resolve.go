package geometry

import "errors"

// ErrMalformedRect прямоугольник с NaN/Inf или отрицательными сторонами.
var ErrMalformedRect = errors.New("malformed rectangle")

// Unit единицы, в которых пришёл прямоугольник.
type Unit string

const (
	UnitNormalized Unit = "normalized" // доли [0,1] от натурального размера
	UnitPixel      Unit = "pixel"      // натуральные пиксели
)

// Resolved прямоугольник в натуральных пикселях и исходные единицы.
type Resolved struct {
	Rect Rect `json:"rect"`
	Unit Unit `json:"unit"`
}

// DetectUnit определяет единицы по эвристике: если все четыре значения <= 1,
// прямоугольник считается нормализованным, иначе пиксельным.
// Пиксельный прямоугольник меньше 1x1 будет принят за нормализованный.
func DetectUnit(r Rect) Unit {
	if r.X <= 1 && r.Y <= 1 && r.Width <= 1 && r.Height <= 1 {
		return UnitNormalized
	}
	return UnitPixel
}

// ResolveRect приводит прямоугольник к натуральным пикселям.
// Это единственное место, где применяется эвристика единиц.
func ResolveRect(r Rect, natural Size) (Resolved, error) {
	if !r.Valid() {
		return Resolved{}, ErrMalformedRect
	}

	unit := DetectUnit(r)
	if unit == UnitPixel {
		return Resolved{Rect: r, Unit: unit}, nil
	}

	if !natural.Positive() {
		return Resolved{}, ErrNotLaidOut
	}
	return Resolved{
		Rect: Rect{
			X:      r.X * natural.Width,
			Y:      r.Y * natural.Height,
			Width:  r.Width * natural.Width,
			Height: r.Height * natural.Height,
		},
		Unit: unit,
	}, nil
}
