package canvas

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
)

func TestLayout_DetectionScenario(t *testing.T) {
	scene := Scene{
		Base: image.NewRGBA(image.Rect(0, 0, 1000, 500)),
		Detections: []entity.Detection{
			{BBox: [4]float64{100, 100, 300, 200}, Confidence: 0.9, Class: "fracture"},
		},
	}

	shapes, err := NewRenderer().Layout(scene, geometry.Size{Width: 500, Height: 250})
	require.NoError(t, err)
	require.Len(t, shapes, 1)

	s := shapes[0]
	require.Equal(t, ShapeDetection, s.Kind)
	require.InDelta(t, 60, s.Circle.Radius, 1e-9)
	require.InDelta(t, 100, s.Circle.Center.X, 1e-9)
	require.InDelta(t, 75, s.Circle.Center.Y, 1e-9)
	require.Equal(t, "fracture (90%)", s.Label)
	require.Less(t, s.LabelAt.Y, s.Circle.Center.Y-s.Circle.Radius)
}

func TestLayout_NonUniformScale(t *testing.T) {
	scene := Scene{
		Base:       image.NewRGBA(image.Rect(0, 0, 100, 100)),
		Detections: []entity.Detection{{BBox: [4]float64{0, 0, 10, 10}}},
	}

	shapes, err := NewRenderer().Layout(scene, geometry.Size{Width: 300, Height: 100})
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	require.InDelta(t, 0.5*30*1.2, shapes[0].Circle.Radius, 1e-9)
	require.Equal(t, geometry.Point{X: 15, Y: 5}, shapes[0].Circle.Center)
}

func TestLayout_DamageLocationNormalized(t *testing.T) {
	scene := Scene{
		Base:        image.NewRGBA(image.Rect(0, 0, 1000, 500)),
		Damage:      &entity.DamageLocation{X: 0.2, Y: 0.3, Width: 0.1, Height: 0.1},
		DamageLabel: "Fracture",
	}

	shapes, err := NewRenderer().Layout(scene, geometry.Size{Width: 1000, Height: 500})
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	require.Equal(t, ShapeDamage, shapes[0].Kind)
	require.InDelta(t, 250, shapes[0].Circle.Center.X, 1e-9)
	require.InDelta(t, 175, shapes[0].Circle.Center.Y, 1e-9)
	require.InDelta(t, 60, shapes[0].Circle.Radius, 1e-9)
	require.Equal(t, "Fracture", shapes[0].Label)
}

func TestLayout_SkipsMalformedKeepsOrder(t *testing.T) {
	scene := Scene{
		Base: image.NewRGBA(image.Rect(0, 0, 100, 100)),
		Detections: []entity.Detection{
			{BBox: [4]float64{10, 10, 20, 20}, Class: "a"},
			{BBox: [4]float64{50, 50, 40, 40}, Class: "broken"},
			{BBox: [4]float64{math.NaN(), 0, 1, 1}, Class: "nan"},
			{BBox: [4]float64{60, 60, 80, 90}, Class: "b"},
		},
		Damage: &entity.DamageLocation{X: 1, Y: 1, Width: -3, Height: 2},
	}

	shapes, err := NewRenderer().Layout(scene, geometry.Size{Width: 100, Height: 100})
	require.NoError(t, err)
	require.Len(t, shapes, 2)
	require.Equal(t, "a (0%)", shapes[0].Label)
	require.Equal(t, "b (0%)", shapes[1].Label)
}

func TestRender_BeforeDecodeIsNoop(t *testing.T) {
	r := NewRenderer()
	scene := Scene{Detections: []entity.Detection{{BBox: [4]float64{1, 1, 5, 5}}}}

	img, err := r.Render(scene, geometry.Size{Width: 500, Height: 250})
	require.ErrorIs(t, err, geometry.ErrNotLaidOut)
	require.Nil(t, img)

	shapes, err := r.Layout(scene, geometry.Size{Width: 500, Height: 250})
	require.ErrorIs(t, err, geometry.ErrNotLaidOut)
	require.Empty(t, shapes)
}

func TestRender_ZeroRenderedSizeIsNoop(t *testing.T) {
	scene := Scene{Base: image.NewRGBA(image.Rect(0, 0, 10, 10))}

	img, err := NewRenderer().Render(scene, geometry.Size{Width: 0, Height: 250})
	require.ErrorIs(t, err, geometry.ErrNotLaidOut)
	require.Nil(t, img)
}

func TestRender_BaseOnly(t *testing.T) {
	base := uniformRGBA(40, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := NewRenderer().Render(Scene{Base: base}, geometry.Size{Width: 40, Height: 20})
	require.NoError(t, err)
	require.Equal(t, base.Pix, img.Pix)
}

func TestRender_DrawsShapesAndMaskWithoutMutatingScene(t *testing.T) {
	base := uniformRGBA(200, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	mask := image.NewRGBA(image.Rect(0, 0, 200, 100))
	mask.SetRGBA(0, 99, color.RGBA{A: 255})
	mask.SetRGBA(1, 99, color.RGBA{A: 255})

	dets := []entity.Detection{{BBox: [4]float64{80, 30, 120, 70}, Confidence: 0.5, Class: "x"}}
	scene := Scene{Base: base, Mask: mask, Detections: dets}
	basePix := append([]byte(nil), base.Pix...)
	maskPix := append([]byte(nil), mask.Pix...)

	img, err := NewRenderer().Render(scene, geometry.Size{Width: 200, Height: 100})
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())

	// кольцо: радиус 24 вокруг (100,50)
	ring := img.RGBAAt(100+24, 50)
	require.Equal(t, uint8(255), ring.R)
	require.Less(t, ring.G, uint8(50))

	// маска затемняет снимок
	require.Equal(t, color.RGBA{R: 102, G: 102, B: 102, A: 255}, img.RGBAAt(0, 99))
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(199, 99))

	require.Equal(t, basePix, base.Pix)
	require.Equal(t, maskPix, mask.Pix)
	require.Equal(t, [4]float64{80, 30, 120, 70}, scene.Detections[0].BBox)
}

func TestRender_ScalesAnnotations(t *testing.T) {
	base := uniformRGBA(100, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	s := NewSurface(100, 100)
	s.BeginStroke(geometry.Point{X: 20, Y: 50})
	s.ExtendStroke(geometry.Point{X: 80, Y: 50})
	s.EndStroke()

	img, err := NewRenderer().Render(Scene{Base: base, Annotations: s.Layer()}, geometry.Size{Width: 50, Height: 50})
	require.NoError(t, err)

	px := img.RGBAAt(25, 25)
	require.Greater(t, px.R, px.G)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(25, 5))
}
