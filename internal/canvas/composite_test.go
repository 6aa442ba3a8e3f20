package canvas

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func uniformRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestPunchOut_FullCoverageClears(t *testing.T) {
	dst := uniformRGBA(4, 4, color.RGBA{R: 200, G: 10, B: 30, A: 255})
	mask := image.NewAlpha(image.Rect(1, 1, 3, 3))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}

	punchOut(dst, mask)

	require.Equal(t, color.RGBA{}, dst.RGBAAt(1, 1))
	require.Equal(t, color.RGBA{}, dst.RGBAAt(2, 2))
	require.Equal(t, color.RGBA{R: 200, G: 10, B: 30, A: 255}, dst.RGBAAt(0, 0))
}

func TestPunchOut_PartialCoverageClearsToo(t *testing.T) {
	dst := uniformRGBA(3, 1, color.RGBA{R: 239, G: 68, B: 68, A: 255})
	mask := image.NewAlpha(image.Rect(0, 0, 3, 1))
	mask.Pix[0], mask.Pix[1] = 1, 128

	punchOut(dst, mask)
	punchOut(dst, mask)

	require.Equal(t, color.RGBA{}, dst.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{}, dst.RGBAAt(1, 0))
	require.Equal(t, color.RGBA{R: 239, G: 68, B: 68, A: 255}, dst.RGBAAt(2, 0))
}

func TestMultiplyOver_DarkensWithoutOccluding(t *testing.T) {
	dst := uniformRGBA(2, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	src := uniformRGBA(2, 2, color.RGBA{A: 255})

	multiplyOver(dst, src, MaskOpacity)

	require.Equal(t, color.RGBA{R: 102, G: 102, B: 102, A: 255}, dst.RGBAAt(0, 0))
}

func TestMultiplyOver_TransparentMaskKeepsBase(t *testing.T) {
	base := color.RGBA{R: 90, G: 120, B: 200, A: 255}
	dst := uniformRGBA(2, 2, base)

	multiplyOver(dst, image.NewRGBA(image.Rect(0, 0, 2, 2)), MaskOpacity)

	require.Equal(t, base, dst.RGBAAt(1, 1))
}

func TestMultiplyOver_RedMaskTintsTissue(t *testing.T) {
	dst := uniformRGBA(1, 1, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	src := uniformRGBA(1, 1, color.RGBA{R: 255, A: 255})

	multiplyOver(dst, src, 1)

	// multiply с красным сохраняет красный канал и гасит остальные
	require.Equal(t, color.RGBA{R: 200, G: 0, B: 0, A: 255}, dst.RGBAAt(0, 0))
}
