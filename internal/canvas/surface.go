package canvas

import (
	"errors"
	"image"
	"image/color"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
)

var (
	// ErrToolLocked смена инструмента во время мазка запрещена.
	ErrToolLocked = errors.New("tool cannot be changed while drawing")
	// ErrUnknownTool неизвестный инструмент.
	ErrUnknownTool = errors.New("unknown tool")
)

// DefaultStrokeWidth толщина линии в единицах буфера, не зависит от масштаба экрана.
const DefaultStrokeWidth = 5

// PenColor цвет пера (#ef4444).
var PenColor = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}

// State состояние указателя.
type State int

const (
	StateIdle State = iota
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// PointerKind тип события указателя.
type PointerKind string

const (
	PointerDown  PointerKind = "down"
	PointerMove  PointerKind = "move"
	PointerUp    PointerKind = "up"
	PointerLeave PointerKind = "leave"
)

// PointerEvent событие указателя в экранных координатах. Element: положение
// и экранный размер элемента со снимком.
type PointerEvent struct {
	Kind    PointerKind   `json:"kind"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Element geometry.Rect `json:"element"`
}

// Surface слой разметки врача: один RGBA-буфер натурального размера снимка.
// Мазки растеризуются прямо в буфер, ластик пробивает прозрачность.
// История мазков хранится для детерминированного воспроизведения.
type Surface struct {
	buf     *image.RGBA
	tool    entity.Tool
	state   State
	width   float64
	color   color.RGBA
	last    geometry.Point
	strokes []entity.Stroke
}

// NewSurface создаёт пустой прозрачный слой.
func NewSurface(width, height int) *Surface {
	return &Surface{
		buf:   image.NewRGBA(image.Rect(0, 0, width, height)),
		tool:  entity.ToolPen,
		width: DefaultStrokeWidth,
		color: PenColor,
	}
}

// Replay восстанавливает слой по истории мазков.
func Replay(width, height int, strokes []entity.Stroke) *Surface {
	s := NewSurface(width, height)
	for _, st := range strokes {
		if len(st.Points) == 0 {
			continue
		}
		s.tool, s.width, s.color = st.Tool, st.Width, st.Color
		if s.width <= 0 {
			s.width = DefaultStrokeWidth
		}
		s.BeginStroke(st.Points[0])
		for _, p := range st.Points[1:] {
			s.ExtendStroke(p)
		}
		s.EndStroke()
	}
	s.tool, s.width, s.color = entity.ToolPen, DefaultStrokeWidth, PenColor
	return s
}

// Size натуральный размер буфера.
func (s *Surface) Size() geometry.Size {
	b := s.buf.Bounds()
	return geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

func (s *Surface) State() State { return s.state }

func (s *Surface) Tool() entity.Tool { return s.tool }

// SetTool меняет инструмент. Во время мазка возвращает ErrToolLocked.
func (s *Surface) SetTool(t entity.Tool) error {
	if !t.Valid() {
		return ErrUnknownTool
	}
	if s.state == StateDrawing {
		return ErrToolLocked
	}
	s.tool = t
	return nil
}

// BeginStroke Idle -> Drawing. Первая точка сразу рисуется, одиночный клик оставляет точку.
func (s *Surface) BeginStroke(p geometry.Point) {
	if s.state == StateDrawing {
		s.EndStroke()
	}
	s.state = StateDrawing
	s.strokes = append(s.strokes, entity.Stroke{
		Tool:   s.tool,
		Width:  s.width,
		Color:  s.color,
		Points: []geometry.Point{p},
	})
	s.segment(p, p)
	s.last = p
}

// ExtendStroke добавляет отрезок от предыдущей точки. В Idle игнорируется.
func (s *Surface) ExtendStroke(p geometry.Point) bool {
	if s.state != StateDrawing {
		return false
	}
	cur := &s.strokes[len(s.strokes)-1]
	cur.Points = append(cur.Points, p)
	s.segment(s.last, p)
	s.last = p
	return true
}

// EndStroke Drawing -> Idle.
func (s *Surface) EndStroke() {
	s.state = StateIdle
}

// HandlePointer принимает событие в экранных координатах и переводит его
// в координаты буфера. События при нулевом размере элемента отбрасываются.
func (s *Surface) HandlePointer(ev PointerEvent) bool {
	switch ev.Kind {
	case PointerUp, PointerLeave:
		if s.state != StateDrawing {
			return false
		}
		s.EndStroke()
		return true
	case PointerDown, PointerMove:
	default:
		return false
	}

	tr, err := geometry.NewTransformer(s.Size(), geometry.Size{Width: ev.Element.Width, Height: ev.Element.Height})
	if err != nil {
		return false
	}
	p := tr.ToModel(geometry.Point{X: ev.X, Y: ev.Y}, geometry.Point{X: ev.Element.X, Y: ev.Element.Y})

	if ev.Kind == PointerDown {
		s.BeginStroke(p)
		return true
	}
	return s.ExtendStroke(p)
}

// Clear очищает буфер и историю.
func (s *Surface) Clear() {
	s.buf = image.NewRGBA(s.buf.Bounds())
	s.strokes = nil
	s.state = StateIdle
}

// Layer буфер разметки. Вызывающий не должен его изменять.
func (s *Surface) Layer() *image.RGBA { return s.buf }

// Empty true, если мазков не было.
func (s *Surface) Empty() bool { return len(s.strokes) == 0 }

// Strokes копия истории мазков.
func (s *Surface) Strokes() []entity.Stroke {
	out := make([]entity.Stroke, len(s.strokes))
	for i, st := range s.strokes {
		st.Points = append([]geometry.Point(nil), st.Points...)
		out[i] = st
	}
	return out
}

func (s *Surface) segment(a, b geometry.Point) {
	mask := rasterize(s.buf.Bounds(), capsulePolygon(a, b, s.width/2))
	if s.tool == entity.ToolEraser {
		punchOut(s.buf, mask)
		return
	}
	paintOver(s.buf, mask, s.color)
}
