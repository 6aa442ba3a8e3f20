package canvas

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
	"xray-review/internal/log"
)

// MaskOpacity прозрачность маски сегментации.
const MaskOpacity = 0.6

var markerRed = color.RGBA{R: 0xff, A: 0xff}

// Style оформление отметки.
type Style struct {
	Color       color.RGBA
	StrokeWidth float64
	FillAlpha   uint8 // 0: без заливки
}

var (
	// DetectionStyle красное кольцо 3px с заливкой 10%.
	DetectionStyle = Style{Color: markerRed, StrokeWidth: 3, FillAlpha: 26}
	// DamageStyle красное кольцо 5px без заливки.
	DamageStyle = Style{Color: markerRed, StrokeWidth: 5}
)

// Scene данные для отрисовки поверх снимка. Любое поле, кроме Base, может отсутствовать.
type Scene struct {
	Base        image.Image
	Mask        image.Image
	Detections  []entity.Detection
	Damage      *entity.DamageLocation
	DamageLabel string
	Annotations image.Image
}

// Natural натуральный размер снимка, нулевой если снимка нет.
func (s Scene) Natural() geometry.Size {
	if s.Base == nil {
		return geometry.Size{}
	}
	b := s.Base.Bounds()
	return geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// ShapeKind тип отметки.
type ShapeKind string

const (
	ShapeDetection ShapeKind = "detection"
	ShapeDamage    ShapeKind = "damage"
)

// Shape отметка в экранных координатах.
type Shape struct {
	Kind    ShapeKind       `json:"kind"`
	Circle  geometry.Circle `json:"circle"`
	Label   string          `json:"label,omitempty"`
	LabelAt geometry.Point  `json:"label_at"`
}

// Renderer рисует отметки модели и маску поверх снимка. Данные сцены не меняет.
type Renderer struct {
	MaskOpacity float64
	Detection   Style
	Damage      Style
	Face        font.Face
	LabelGap    float64
}

// NewRenderer создаёт рендерер с оформлением по умолчанию.
func NewRenderer() *Renderer {
	return &Renderer{
		MaskOpacity: MaskOpacity,
		Detection:   DetectionStyle,
		Damage:      DamageStyle,
		Face:        basicfont.Face7x13,
		LabelGap:    4,
	}
}

// Layout раскладывает отметки в экранных координатах: сначала детекции в порядке
// ответа, затем область поражения. Некорректные отметки пропускаются.
func (r *Renderer) Layout(scene Scene, rendered geometry.Size) ([]Shape, error) {
	tr, err := geometry.NewTransformer(scene.Natural(), rendered)
	if err != nil {
		return nil, err
	}

	shapes := make([]Shape, 0, len(scene.Detections)+1)
	for i, d := range scene.Detections {
		if !d.Valid() {
			log.Debug("skip malformed detection", "index", i, "bbox", d.BBox)
			continue
		}
		c := geometry.CircleAround(tr.RectToScreen(d.Rect()))
		shapes = append(shapes, r.shape(ShapeDetection, c, d.Label()))
	}

	if scene.Damage != nil {
		res, err := geometry.ResolveRect(scene.Damage.Rect(), tr.Natural())
		if err != nil {
			log.Debug("skip malformed damage location", "error", err)
		} else {
			c := geometry.CircleAround(tr.RectToScreen(res.Rect))
			shapes = append(shapes, r.shape(ShapeDamage, c, scene.DamageLabel))
		}
	}

	return shapes, nil
}

func (r *Renderer) shape(kind ShapeKind, c geometry.Circle, label string) Shape {
	top := c.Top()
	return Shape{
		Kind:    kind,
		Circle:  c,
		Label:   label,
		LabelAt: geometry.Point{X: top.X, Y: top.Y - r.LabelGap},
	}
}

// Render рисует превью экранного размера: снимок, маска, разметка, отметки.
// До раскладки (нулевой размер) возвращает geometry.ErrNotLaidOut и ничего не рисует.
func (r *Renderer) Render(scene Scene, rendered geometry.Size) (*image.RGBA, error) {
	shapes, err := r.Layout(scene, rendered)
	if err != nil {
		return nil, err
	}

	size := image.Rect(0, 0, int(math.Round(rendered.Width)), int(math.Round(rendered.Height)))
	if size.Empty() {
		return nil, geometry.ErrNotLaidOut
	}

	out := fitTo(scene.Base, size)
	if scene.Mask != nil {
		multiplyOver(out, fitTo(scene.Mask, size), r.MaskOpacity)
	}
	if scene.Annotations != nil {
		draw.BiLinear.Scale(out, size, scene.Annotations, scene.Annotations.Bounds(), draw.Over, nil)
	}

	for _, s := range shapes {
		style := r.Detection
		if s.Kind == ShapeDamage {
			style = r.Damage
		}
		paintCircle(out, s.Circle, style)
	}
	for _, s := range shapes {
		if s.Label != "" {
			r.drawLabel(out, s.LabelAt, s.Label, markerRed)
		}
	}

	return out, nil
}

// paintCircle рисует заливку и кольцо окружности.
func paintCircle(dst *image.RGBA, c geometry.Circle, style Style) {
	if c.Radius <= 0 {
		return
	}
	if style.FillAlpha > 0 {
		fill := style.Color
		fill.R = uint8(uint32(fill.R) * uint32(style.FillAlpha) / 255)
		fill.G = uint8(uint32(fill.G) * uint32(style.FillAlpha) / 255)
		fill.B = uint8(uint32(fill.B) * uint32(style.FillAlpha) / 255)
		fill.A = style.FillAlpha
		paintOver(dst, rasterize(dst.Bounds(), circlePolygon(c.Center, c.Radius, true)), fill)
	}

	half := style.StrokeWidth / 2
	rings := []polygon{circlePolygon(c.Center, c.Radius+half, true)}
	if inner := c.Radius - half; inner > 0 {
		rings = append(rings, circlePolygon(c.Center, inner, false))
	}
	paintOver(dst, rasterize(dst.Bounds(), rings...), style.Color)
}

// drawLabel подпись на цветной плашке, по центру над точкой at.
func (r *Renderer) drawLabel(dst *image.RGBA, at geometry.Point, text string, bg color.RGBA) {
	width := font.MeasureString(r.Face, text).Ceil()
	m := r.Face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()

	x := int(math.Round(at.X)) - width/2
	baseline := int(math.Round(at.Y)) - descent - 2

	plate := image.Rect(x-3, baseline-ascent-2, x+width+3, baseline+descent+2)
	draw.Draw(dst, plate.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: r.Face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
