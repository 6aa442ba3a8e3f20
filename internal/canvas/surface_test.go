package canvas

import (
	"testing"

	"github.com/stretchr/testify/require"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
)

func alphaAt(s *Surface, x, y int) uint8 {
	return s.Layer().RGBAAt(x, y).A
}

func TestSurface_ClickLeavesDot(t *testing.T) {
	s := NewSurface(100, 100)
	s.BeginStroke(geometry.Point{X: 50, Y: 50})
	s.EndStroke()

	require.Equal(t, PenColor, s.Layer().RGBAAt(50, 50))
	require.Equal(t, uint8(0), alphaAt(s, 60, 60))
	require.Equal(t, StateIdle, s.State())
	require.False(t, s.Empty())
}

func TestSurface_EraserRestoresTransparency(t *testing.T) {
	cases := []struct {
		name     string
		from, to geometry.Point
	}{
		{"horizontal", geometry.Point{X: 10, Y: 50}, geometry.Point{X: 90, Y: 50}},
		{"diagonal", geometry.Point{X: 10, Y: 13}, geometry.Point{X: 87, Y: 91}},
		{"fractional", geometry.Point{X: 12.3, Y: 40.7}, geometry.Point{X: 71.9, Y: 22.1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSurface(100, 100)
			blank := append([]byte(nil), s.Layer().Pix...)

			s.BeginStroke(tc.from)
			s.ExtendStroke(tc.to)
			s.EndStroke()
			require.NotEqual(t, blank, s.Layer().Pix)
			mid := geometry.Point{X: (tc.from.X + tc.to.X) / 2, Y: (tc.from.Y + tc.to.Y) / 2}
			require.Equal(t, uint8(255), alphaAt(s, int(mid.X), int(mid.Y)))

			// весь след пера, включая сглаженный край, снова прозрачен
			require.NoError(t, s.SetTool(entity.ToolEraser))
			s.BeginStroke(tc.from)
			s.ExtendStroke(tc.to)
			s.EndStroke()
			require.Equal(t, blank, s.Layer().Pix)

			s.BeginStroke(tc.from)
			s.ExtendStroke(tc.to)
			s.EndStroke()
			require.Equal(t, blank, s.Layer().Pix)
		})
	}
}

func TestSurface_EraserKeepsUntouchedInk(t *testing.T) {
	s := NewSurface(100, 100)
	s.BeginStroke(geometry.Point{X: 10, Y: 20})
	s.ExtendStroke(geometry.Point{X: 90, Y: 20})
	s.EndStroke()
	s.BeginStroke(geometry.Point{X: 10, Y: 80})
	s.ExtendStroke(geometry.Point{X: 90, Y: 80})
	s.EndStroke()

	require.NoError(t, s.SetTool(entity.ToolEraser))
	s.BeginStroke(geometry.Point{X: 10, Y: 20})
	s.ExtendStroke(geometry.Point{X: 90, Y: 20})
	s.EndStroke()

	for x := 0; x < 100; x++ {
		for y := 10; y <= 30; y++ {
			require.Equal(t, uint8(0), alphaAt(s, x, y))
		}
	}
	require.Equal(t, PenColor, s.Layer().RGBAAt(50, 80))
}

func TestSurface_ToolLockedWhileDrawing(t *testing.T) {
	s := NewSurface(10, 10)
	s.BeginStroke(geometry.Point{X: 1, Y: 1})

	require.ErrorIs(t, s.SetTool(entity.ToolEraser), ErrToolLocked)
	require.Equal(t, entity.ToolPen, s.Tool())

	s.EndStroke()
	require.NoError(t, s.SetTool(entity.ToolEraser))
	require.Equal(t, entity.ToolEraser, s.Tool())

	require.ErrorIs(t, s.SetTool("marker"), ErrUnknownTool)
}

func TestSurface_HandlePointerConvertsToBufferSpace(t *testing.T) {
	s := NewSurface(100, 100)
	el := geometry.Rect{X: 10, Y: 20, Width: 50, Height: 50}

	require.True(t, s.HandlePointer(PointerEvent{Kind: PointerDown, X: 35, Y: 45, Element: el}))
	require.Equal(t, StateDrawing, s.State())
	require.True(t, s.HandlePointer(PointerEvent{Kind: PointerMove, X: 45, Y: 45, Element: el}))
	require.True(t, s.HandlePointer(PointerEvent{Kind: PointerLeave}))
	require.Equal(t, StateIdle, s.State())

	strokes := s.Strokes()
	require.Len(t, strokes, 1)
	require.Equal(t, []geometry.Point{{X: 50, Y: 50}, {X: 70, Y: 50}}, strokes[0].Points)
	require.Equal(t, float64(DefaultStrokeWidth), strokes[0].Width)
	require.Equal(t, uint8(255), alphaAt(s, 60, 50))
}

func TestSurface_WidthIndependentOfZoom(t *testing.T) {
	small := NewSurface(100, 100)
	large := NewSurface(100, 100)

	draw := func(s *Surface, el geometry.Rect) {
		tr, err := geometry.NewTransformer(s.Size(), geometry.Size{Width: el.Width, Height: el.Height})
		require.NoError(t, err)
		a := tr.ToScreen(geometry.Point{X: 20, Y: 50})
		b := tr.ToScreen(geometry.Point{X: 80, Y: 50})
		s.HandlePointer(PointerEvent{Kind: PointerDown, X: a.X, Y: a.Y, Element: el})
		s.HandlePointer(PointerEvent{Kind: PointerMove, X: b.X, Y: b.Y, Element: el})
		s.HandlePointer(PointerEvent{Kind: PointerUp})
	}
	draw(small, geometry.Rect{Width: 25, Height: 25})
	draw(large, geometry.Rect{Width: 400, Height: 400})

	require.Equal(t, small.Layer().Pix, large.Layer().Pix)
}

func TestSurface_DropsEventsWithoutLayout(t *testing.T) {
	s := NewSurface(100, 100)

	require.False(t, s.HandlePointer(PointerEvent{Kind: PointerDown, X: 5, Y: 5}))
	require.Equal(t, StateIdle, s.State())
	require.False(t, s.HandlePointer(PointerEvent{Kind: PointerMove, X: 5, Y: 5, Element: geometry.Rect{Width: 10, Height: 10}}))
	require.False(t, s.HandlePointer(PointerEvent{Kind: "wheel"}))
	require.True(t, s.Empty())
}

func TestReplay_PixelIdentical(t *testing.T) {
	s := NewSurface(64, 48)
	s.BeginStroke(geometry.Point{X: 5, Y: 5})
	s.ExtendStroke(geometry.Point{X: 40, Y: 30})
	s.ExtendStroke(geometry.Point{X: 60, Y: 10})
	s.EndStroke()
	require.NoError(t, s.SetTool(entity.ToolEraser))
	s.BeginStroke(geometry.Point{X: 30, Y: 0})
	s.ExtendStroke(geometry.Point{X: 30, Y: 47})
	s.EndStroke()
	s.BeginStroke(geometry.Point{X: 12.5, Y: 40.25})
	s.EndStroke()

	replayed := Replay(64, 48, s.Strokes())
	require.Equal(t, s.Layer().Pix, replayed.Layer().Pix)
	require.Equal(t, entity.ToolPen, replayed.Tool())
}

func TestSurface_Clear(t *testing.T) {
	s := NewSurface(20, 20)
	s.BeginStroke(geometry.Point{X: 10, Y: 10})
	s.Clear()

	require.True(t, s.Empty())
	require.Equal(t, StateIdle, s.State())
	require.Equal(t, uint8(0), alphaAt(s, 10, 10))
}
