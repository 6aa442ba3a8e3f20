package entity

import (
	"fmt"
	"math"

	"xray-review/internal/domain/geometry"
)

// Detection найденная моделью область в натуральных пикселях снимка.
type Detection struct {
	BBox       [4]float64 `json:"bbox"`       // x1, y1, x2, y2
	Confidence float64    `json:"confidence"` // уверенность [0,1]
	Class      string     `json:"class"`      // имя класса
	ClassID    int        `json:"class_id"`   // номер класса
}

// Rect возвращает область детекции как прямоугольник.
func (d Detection) Rect() geometry.Rect {
	return geometry.Rect{
		X:      d.BBox[0],
		Y:      d.BBox[1],
		Width:  d.BBox[2] - d.BBox[0],
		Height: d.BBox[3] - d.BBox[1],
	}
}

// Valid false, если рамка перевёрнута или содержит NaN/Inf.
func (d Detection) Valid() bool {
	return d.Rect().Valid()
}

// Percent уверенность в процентах, округлённая до целого.
func (d Detection) Percent() int {
	return int(math.Round(d.Confidence * 100))
}

// Label подпись над отметкой: "класс (NN%)".
func (d Detection) Label() string {
	return fmt.Sprintf("%s (%d%%)", d.Class, d.Percent())
}

// DamageLocation область поражения из анализа. Единицы неоднозначны:
// доли [0,1] или пиксели, см. geometry.ResolveRect.
type DamageLocation struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect возвращает значения как есть, без приведения единиц.
func (l DamageLocation) Rect() geometry.Rect {
	return geometry.Rect{X: l.X, Y: l.Y, Width: l.Width, Height: l.Height}
}

// Segmentation ответ сервиса детекции/сегментации.
type Segmentation struct {
	Detections []Detection // в порядке ответа сервиса
	Mask       []byte      // PNG маски, nil если маски нет
	Method     string      // "U-Net", "YOLO+Heuristic" и т.п.
}

// HasResults true, если есть хотя бы одна детекция или маска.
func (s *Segmentation) HasResults() bool {
	return s != nil && (len(s.Detections) > 0 || len(s.Mask) > 0)
}
