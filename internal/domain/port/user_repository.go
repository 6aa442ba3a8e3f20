package port

import (
	"context"

	"xray-review/internal/domain/entity"
)

// UserRepository хранилище врачей
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет пользователя
	Save(ctx context.Context, user *entity.User) error

	// UpdateState обновляет состояние пользователя
	UpdateState(ctx context.Context, userID int64, state entity.UserState) error

	// BindSession привязывает к пользователю сессию просмотра
	BindSession(ctx context.Context, userID int64, sessionID string) error
}
