//go:build gocv
// +build gocv

package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"gocv.io/x/gocv"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// LocalSegmenter сегментация без внешнего сервиса: контуры на уменьшенном
// снимке дают рамки, внутри рамок адаптивный порог выделяет тёмные линии
// на светлой кости.
type LocalSegmenter struct {
	MinAreaRatio   float64
	MaxAspectRatio float64
	MinAspectRatio float64
	MaxSide        int
	MinImageSide   int
	MaskAlpha      uint8
}

// NewLocalSegmenter создаёт сегментатор с порогами по умолчанию.
func NewLocalSegmenter() *LocalSegmenter {
	return &LocalSegmenter{
		MinAreaRatio:   0.001,
		MinAspectRatio: 0.1,
		MaxAspectRatio: 10.0,
		MaxSide:        1024,
		MinImageSide:   64,
		MaskAlpha:      128,
	}
}

// Segment ищет области и строит маску натурального размера.
func (s *LocalSegmenter) Segment(ctx context.Context, creds entity.Credentials, img entity.ImagePayload) (*entity.Segmentation, error) {
	_ = creds
	mat, err := decodeToMat(img.Data)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if mat.Cols() < s.MinImageSide || mat.Rows() < s.MinImageSide {
		return nil, fmt.Errorf("image is too small (%dx%d)", mat.Cols(), mat.Rows())
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	detections := s.findRegions(gray)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mask, err := s.buildMask(gray, detections)
	if err != nil {
		return nil, err
	}

	return &entity.Segmentation{
		Detections: detections,
		Mask:       mask,
		Method:     "Contour+Heuristic",
	}, nil
}

// findRegions ищет контуры на уменьшенной копии и возвращает рамки
// в натуральных пикселях.
func (s *LocalSegmenter) findRegions(gray gocv.Mat) []entity.Detection {
	work := gray
	scale := 1.0
	if gray.Cols() > s.MaxSide || gray.Rows() > s.MaxSide {
		// Приводим изображение к стандартному размеру для стабильных порогов.
		scale = float64(s.MaxSide) / float64(max(gray.Cols(), gray.Rows()))
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(gray, &resized, image.Pt(int(float64(gray.Cols())*scale), int(float64(gray.Rows())*scale)), 0, 0, gocv.InterpolationArea)
		work = resized
	}

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(work, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blur, &edges, 50, 150)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := int(float64(work.Cols()*work.Rows()) * s.MinAreaRatio)
	detections := make([]entity.Detection, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		rect := gocv.BoundingRect(c)
		area := rect.Dx() * rect.Dy()
		if area < minArea || rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < s.MinAspectRatio || aspect > s.MaxAspectRatio {
			continue
		}

		// Доля контура в рамке как грубая уверенность
		conf := gocv.ContourArea(c) / float64(area)
		if conf > 1 {
			conf = 1
		}

		detections = append(detections, entity.Detection{
			BBox: [4]float64{
				float64(rect.Min.X) / scale,
				float64(rect.Min.Y) / scale,
				float64(rect.Max.X) / scale,
				float64(rect.Max.Y) / scale,
			},
			Confidence: conf,
			Class:      "lesion",
		})
	}
	return detections
}

// buildMask внутри каждой рамки выделяет тёмные линии адаптивным порогом
// и красит их полупрозрачным красным. Возвращает PNG.
func (s *LocalSegmenter) buildMask(gray gocv.Mat, detections []entity.Detection) ([]byte, error) {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	mask := image.NewNRGBA(bounds)
	red := color.NRGBA{R: 255, A: s.MaskAlpha}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	for _, d := range detections {
		roiRect := image.Rect(int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3])).Intersect(bounds)
		if roiRect.Dx() < 3 || roiRect.Dy() < 3 {
			continue
		}

		roi := gray.Region(roiRect)
		thresh := gocv.NewMat()
		opened := gocv.NewMat()
		gocv.AdaptiveThreshold(roi, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, 11, 2)
		gocv.MorphologyEx(thresh, &opened, gocv.MorphOpen, kernel)

		for y := 0; y < opened.Rows(); y++ {
			for x := 0; x < opened.Cols(); x++ {
				if opened.GetUCharAt(y, x) > 0 {
					mask.SetNRGBA(roiRect.Min.X+x, roiRect.Min.Y+y, red)
				}
			}
		}

		opened.Close()
		thresh.Close()
		roi.Close()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, mask); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}

var _ port.Segmenter = (*LocalSegmenter)(nil)
