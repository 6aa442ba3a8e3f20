package container

import (
	app "xray-review/internal/application"
	"xray-review/internal/domain/port"
)

type Container struct {
	UserService   *app.UserService
	ReviewService *app.ReviewService
}

// Deps внешние зависимости сервисов приложения.
type Deps struct {
	Users     port.UserRepository
	Segmenter port.Segmenter
	Analyzer  port.Analyzer
	Reports   port.ReportService
}

func New(deps Deps, review app.ReviewConfig) *Container {
	userService := app.NewUserService(deps.Users)
	reviewService := app.NewReviewService(deps.Segmenter, deps.Analyzer, deps.Reports, review)

	return &Container{
		UserService:   userService,
		ReviewService: reviewService,
	}
}
