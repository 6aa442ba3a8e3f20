package port

import (
	"context"

	"xray-review/internal/domain/entity"
)

// Analyzer сервис анализа снимка
type Analyzer interface {
	// Analyze возвращает заключение по снимку
	Analyze(ctx context.Context, creds entity.Credentials, img entity.ImagePayload) (*entity.Analysis, error)
}
