package port

import (
	"context"

	"xray-review/internal/domain/entity"
)

// Segmenter сервис детекции и сегментации
type Segmenter interface {
	// Segment возвращает найденные области и, если есть, маску поражения
	Segment(ctx context.Context, creds entity.Credentials, img entity.ImagePayload) (*entity.Segmentation, error)
}
