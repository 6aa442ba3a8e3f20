package storage

import (
	"context"
	"sync"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// MemoryUserRepository in-memory хранилище пользователей
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[int64]*entity.User
	creds entity.Credentials
}

// NewMemoryUserRepository создаёт хранилище. creds выдаются каждому новому
// пользователю для вызова внешних сервисов.
func NewMemoryUserRepository(creds entity.Credentials) *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]*entity.User),
		creds: creds,
	}
}

// Get возвращает копию пользователя по ID, создаёт нового если не найден
func (r *MemoryUserRepository) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		u := *user
		return &u, nil
	}

	newUser := entity.NewUser(userID, chatID)
	newUser.Creds = r.creds
	r.users[userID] = newUser

	u := *newUser
	return &u, nil
}

// Save сохраняет пользователя
func (r *MemoryUserRepository) Save(ctx context.Context, user *entity.User) error {
	u := *user

	r.mu.Lock()
	r.users[user.ID] = &u
	r.mu.Unlock()

	return nil
}

// UpdateState обновляет состояние пользователя
func (r *MemoryUserRepository) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SetState(state)
	}

	return nil
}

// BindSession запоминает текущую сессию просмотра пользователя
func (r *MemoryUserRepository) BindSession(ctx context.Context, userID int64, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, exists := r.users[userID]; exists {
		user.SessionID = sessionID
	}

	return nil
}

// Проверка реализации интерфейса
var _ port.UserRepository = (*MemoryUserRepository)(nil)
