package geometry

import "errors"

// ErrNotLaidOut изображение ещё не декодировано или не отрисовано (нулевой размер).
var ErrNotLaidOut = errors.New("image is not laid out")

// Transformer хранит соотношение натурального и отрисованного размера снимка.
// Масштабы по осям независимы.
type Transformer struct {
	natural  Size
	rendered Size
}

// NewTransformer создаёт преобразователь. Нулевые размеры дают ErrNotLaidOut:
// вызывающая сторона в этом случае ничего не рисует.
func NewTransformer(natural, rendered Size) (Transformer, error) {
	if !natural.Positive() || !rendered.Positive() {
		return Transformer{}, ErrNotLaidOut
	}
	return Transformer{natural: natural, rendered: rendered}, nil
}

// Natural натуральный размер снимка.
func (t Transformer) Natural() Size { return t.natural }

// Rendered текущий экранный размер снимка.
func (t Transformer) Rendered() Size { return t.rendered }

// Scale возвращает масштаб модель -> экран по каждой оси.
func (t Transformer) Scale() (sx, sy float64) {
	return t.rendered.Width / t.natural.Width, t.rendered.Height / t.natural.Height
}

// ToScreen переводит точку из натуральных пикселей в экранные.
func (t Transformer) ToScreen(p Point) Point {
	sx, sy := t.Scale()
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// RectToScreen переводит прямоугольник из натуральных пикселей в экранные.
func (t Transformer) RectToScreen(r Rect) Rect {
	sx, sy := t.Scale()
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// ToModel переводит позицию указателя в координаты буфера натурального размера.
// origin: левый верхний угол элемента на экране.
func (t Transformer) ToModel(pointer, origin Point) Point {
	d := pointer.Sub(origin)
	return Point{
		X: d.X * (t.natural.Width / t.rendered.Width),
		Y: d.Y * (t.natural.Height / t.rendered.Height),
	}
}
