package app

import (
	"context"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateState(ctx, userID, state); err != nil {
		return nil, err
	}

	user.SetState(state)
	return user, nil
}

// Touch обновляет имя врача из профиля, если оно изменилось.
func (s *UserService) Touch(ctx context.Context, userID, chatID int64, username, fullName string) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if user.Username == username && user.FullName == fullName {
		return user, nil
	}

	user.Username = username
	user.FullName = fullName
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// StartReview привязывает сессию просмотра и переводит врача в режим просмотра.
func (s *UserService) StartReview(ctx context.Context, userID, chatID int64, sessionID string) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	user.SessionID = sessionID
	user.SetState(entity.StateReviewing)
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Cancel возвращает в главное меню и отвязывает сессию.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.BindSession(ctx, userID, ""); err != nil {
		return nil, err
	}
	user.SessionID = ""
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}
