package port

import (
	"context"

	"xray-review/internal/domain/entity"
)

// ReportService сервис отчётов
type ReportService interface {
	// Submit отправляет снимок и поля отчёта. В режиме download возвращает документ,
	// в режиме save подтверждение сохранения
	Submit(ctx context.Context, creds entity.Credentials, req entity.ReportRequest) (*entity.ReportResult, error)
}
