//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// ErrNotAvailable сборка без тега gocv.
var ErrNotAvailable = errors.New("gocv build tag is not enabled")

// LocalSegmenter заглушка без OpenCV.
type LocalSegmenter struct {
	MinAreaRatio   float64
	MaxAspectRatio float64
	MinAspectRatio float64
	MaxSide        int
	MinImageSide   int
	MaskAlpha      uint8
}

// NewLocalSegmenter создаёт сегментатор-заглушку (без OpenCV).
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

// Segment возвращает ошибку, если сборка без тега gocv.
func (s *LocalSegmenter) Segment(context.Context, entity.Credentials, entity.ImagePayload) (*entity.Segmentation, error) {
	return nil, ErrNotAvailable
}

var _ port.Segmenter = (*LocalSegmenter)(nil)
