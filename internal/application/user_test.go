package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"xray-review/internal/domain/entity"
	"xray-review/internal/infrastructure/storage"
)

func TestUserService_BeginCheckAndCancel(t *testing.T) {
	repo := storage.NewMemoryUserRepository(entity.Credentials{})
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, user.State)

	user, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

type stateRecorder struct {
	*storage.MemoryUserRepository
	updates []entity.UserState
	saves   int
}

func (r *stateRecorder) UpdateState(ctx context.Context, userID int64, state entity.UserState) error {
	r.updates = append(r.updates, state)
	return r.MemoryUserRepository.UpdateState(ctx, userID, state)
}

func (r *stateRecorder) Save(ctx context.Context, user *entity.User) error {
	r.saves++
	return r.MemoryUserRepository.Save(ctx, user)
}

func TestUserService_SetState(t *testing.T) {
	repo := &stateRecorder{MemoryUserRepository: storage.NewMemoryUserRepository(entity.Credentials{})}
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.SetState(ctx, 2, 20, entity.StateProcessing)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, user.State)
	require.Equal(t, []entity.UserState{entity.StateProcessing}, repo.updates)
	require.Zero(t, repo.saves)

	stored, err := svc.Get(ctx, 2, 20)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, stored.State)
}

func TestUserService_StartReviewBindsSession(t *testing.T) {
	repo := storage.NewMemoryUserRepository(entity.Credentials{Token: "tok"})
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.StartReview(ctx, 3, 30, "session-1")
	require.NoError(t, err)
	require.Equal(t, entity.StateReviewing, user.State)
	require.Equal(t, "session-1", user.SessionID)
	require.Equal(t, "tok", user.Creds.Token)

	user, err = svc.Cancel(ctx, 3, 30)
	require.NoError(t, err)
	require.Empty(t, user.SessionID)

	stored, err := svc.Get(ctx, 3, 30)
	require.NoError(t, err)
	require.Empty(t, stored.SessionID)
}

func TestUserService_TouchUpdatesDoctorName(t *testing.T) {
	repo := storage.NewMemoryUserRepository(entity.Credentials{})
	svc := NewUserService(repo)
	ctx := context.Background()

	_, err := svc.Touch(ctx, 4, 40, "house", "Грегори Хаус")
	require.NoError(t, err)

	user, err := svc.Get(ctx, 4, 40)
	require.NoError(t, err)
	require.Equal(t, "Грегори Хаус", user.DoctorName())
}
