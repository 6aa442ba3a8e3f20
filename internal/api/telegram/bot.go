package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "xray-review/internal/application"
	"xray-review/internal/canvas"
	"xray-review/internal/container"
	"xray-review/internal/domain/entity"
	"xray-review/internal/log"
)

const (
	msgStart = `👋 Здравствуйте! Я помогаю просматривать рентгеновские снимки.

📸 Отправьте снимок, и я отмечу найденные области.

📋 Команды:
/check — начать новый просмотр
/analyze — заключение по снимку
/report — получить отчёт (PDF)
/save — сохранить отчёт без скачивания
/help — справка
/cancel — закончить просмотр`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте снимок (фото или файлом без сжатия)
2️⃣ Бот пришлёт превью с отмеченными областями
3️⃣ /analyze — заключение модели и область поражения
4️⃣ /report или /save — отчёт с размеченным снимком

💡 Файлом снимок приходит в исходном разрешении, разметка будет точнее.`

	msgAwaitingPhoto   = "📸 Отправьте рентгеновский снимок."
	msgCancelled       = "❌ Просмотр завершён. Отправьте /check для нового снимка."
	msgSendPhoto       = "📸 Пожалуйста, отправьте снимок."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю снимок..."
	msgAnalyzing       = "⏳ Анализирую снимок..."
	msgReporting       = "⏳ Формирую отчёт..."
	msgNoFindings      = "✅ Подозрительных областей не найдено."
	msgProcessingError = "⚠️ Не удалось обработать снимок. Попробуйте другой файл."
	msgNoSession       = "📸 Сначала отправьте снимок."
	msgBusy            = "⏳ Предыдущий запрос ещё выполняется."
	msgNeedAnalysis    = "🩺 Сначала выполните /analyze."
	msgServiceDown     = "⚠️ Сервис анализа недоступен. Попробуйте позже."
	msgBadImage        = "⚠️ Файл не похож на изображение."
	msgNotConfigured   = "⚠️ Эта функция не подключена."
	msgStale           = "🔁 Снимок заменён, прежний результат отброшен."
)

// Bot представляет Telegram-бота
type Bot struct {
	api     *tgbotapi.BotAPI
	users   *app.UserService
	reviews *app.ReviewService
	timeout time.Duration
	http    *http.Client
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, timeout time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Info("telegram bot authorized", "account", api.Self.UserName)

	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Bot{
		api:     api,
		users:   c.UserService,
		reviews: c.ReviewService,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	user, err := b.users.Touch(ctx, from.ID, msg.Chat.ID, from.UserName, strings.TrimSpace(from.FirstName+" "+from.LastName))
	if err != nil {
		log.Error("get user failed", "user", from.ID, "error", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Снимок фото или документом
	if fileID, name, ok := imageFile(msg); ok {
		b.handleImage(ctx, msg, user, fileID, name)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// imageFile находит в сообщении изображение максимального размера.
func imageFile(msg *tgbotapi.Message) (fileID, name string, ok bool) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, "photo.jpg", true
	}
	if d := msg.Document; d != nil && strings.HasPrefix(d.MimeType, "image/") {
		return d.FileID, d.FileName, true
	}
	return "", "", false
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.setState(ctx, user, entity.StateMainMenu)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		b.closeSession(user)
		if _, err := b.users.Cancel(ctx, user.ID, chatID); err != nil {
			log.Error("reset session failed", "user", user.ID, "error", err)
		}
		if _, err := b.users.BeginCheck(ctx, user.ID, chatID); err != nil {
			log.Error("begin check failed", "user", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "analyze":
		b.handleAnalyze(ctx, chatID, user)

	case "report":
		b.handleReport(ctx, chatID, user, entity.ReportDownload, msg.CommandArguments())

	case "save":
		b.handleReport(ctx, chatID, user, entity.ReportSaveOnly, msg.CommandArguments())

	case "cancel":
		b.closeSession(user)
		if _, err := b.users.Cancel(ctx, user.ID, chatID); err != nil {
			log.Error("cancel failed", "user", user.ID, "error", err)
		}
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleImage загружает снимок в сессию, запускает сегментацию и присылает превью
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID, name string) {
	chatID := msg.Chat.ID
	b.setState(ctx, user, entity.StateProcessing)
	b.sendMessage(chatID, msgProcessing)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Error("download photo failed", "user", user.ID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
		b.setState(ctx, user, entity.StateMainMenu)
		return
	}

	sessionID, err := b.ensureSession(ctx, user)
	if err != nil {
		log.Error("open session failed", "user", user.ID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
		return
	}
	if _, err := b.users.StartReview(ctx, user.ID, chatID, sessionID); err != nil {
		log.Error("bind session failed", "user", user.ID, "error", err)
	}

	if _, err := b.reviews.Load(sessionID, name, data); err != nil {
		log.Warn("image rejected", "user", user.ID, "error", err)
		b.sendMessage(chatID, errorText(err))
		return
	}

	seg, err := b.reviews.Detect(ctx, sessionID, user.Creds)
	if err != nil {
		log.Error("segmentation failed", "user", user.ID, "error", err)
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.sendOverlay(chatID, sessionID, detectionCaption(seg))
}

func (b *Bot) handleAnalyze(ctx context.Context, chatID int64, user *entity.User) {
	if user.SessionID == "" {
		b.sendMessage(chatID, msgNoSession)
		return
	}
	b.sendMessage(chatID, msgAnalyzing)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.reviews.Analyze(ctx, user.SessionID, user.Creds)
	if err != nil {
		log.Error("analysis failed", "user", user.ID, "error", err)
		b.sendMessage(chatID, errorText(err))
		return
	}

	b.sendOverlay(chatID, user.SessionID, analysisCaption(res))
}

func (b *Bot) handleReport(ctx context.Context, chatID int64, user *entity.User, mode entity.ReportMode, patientID string) {
	if user.SessionID == "" {
		b.sendMessage(chatID, msgNoSession)
		return
	}
	b.sendMessage(chatID, msgReporting)

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.reviews.Report(ctx, user.SessionID, user.Creds, app.ReportInput{
		PatientID:  strings.TrimSpace(patientID),
		DoctorName: user.DoctorName(),
		Mode:       mode,
	})
	if err != nil {
		log.Error("report failed", "user", user.ID, "error", err)
		b.sendMessage(chatID, errorText(err))
		return
	}

	if mode == entity.ReportSaveOnly || len(res.Document) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("✅ Отчёт сохранён. Номер: %s", res.ReportID))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: res.Filename, Bytes: res.Document})
	if _, err := b.api.Send(doc); err != nil {
		log.Error("send report failed", "chat", chatID, "error", err)
	}
}

// ensureSession возвращает текущую сессию пользователя или открывает новую
func (b *Bot) ensureSession(ctx context.Context, user *entity.User) (string, error) {
	if user.SessionID != "" {
		if _, err := b.reviews.View(user.SessionID); err == nil {
			return user.SessionID, nil
		}
	}
	return b.reviews.Open(ctx, user.DoctorName())
}

func (b *Bot) closeSession(user *entity.User) {
	if user.SessionID == "" {
		return
	}
	b.reviews.Close(user.SessionID)
	user.SessionID = ""
}

func (b *Bot) setState(ctx context.Context, user *entity.User, state entity.UserState) {
	if _, err := b.users.SetState(ctx, user.ID, user.ChatID, state); err != nil {
		log.Error("set state failed", "user", user.ID, "error", err)
	}
}

// sendOverlay отправляет превью с отметками
func (b *Bot) sendOverlay(chatID int64, sessionID, caption string) {
	data, err := b.reviews.Overlay(sessionID)
	if err != nil {
		log.Error("render overlay failed", "session", sessionID, "error", err)
		b.sendMessage(chatID, caption)
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "overlay.png", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		log.Error("send overlay failed", "chat", chatID, "error", err)
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error("send message failed", "chat", chatID, "error", err)
	}
}

// errorText сообщение пользователю по ошибке сервиса
func errorText(err error) string {
	switch {
	case errors.Is(err, app.ErrBusy):
		return msgBusy
	case errors.Is(err, app.ErrNoAnalysis):
		return msgNeedAnalysis
	case errors.Is(err, app.ErrNotReady), errors.Is(err, app.ErrNoImage), errors.Is(err, app.ErrSessionNotFound):
		return msgNoSession
	case errors.Is(err, app.ErrNotConfigured):
		return msgNotConfigured
	case errors.Is(err, app.ErrStaleResult):
		return msgStale
	case errors.Is(err, canvas.ErrUnsupportedImage):
		return msgBadImage
	}
	return msgServiceDown
}

// detectionCaption подпись к превью после сегментации
func detectionCaption(seg *entity.Segmentation) string {
	if !seg.HasResults() {
		return msgNoFindings
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔎 Найдено областей: %d", len(seg.Detections))
	if seg.Method != "" {
		fmt.Fprintf(&sb, " (%s)", seg.Method)
	}
	for i, d := range seg.Detections {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, d.Label())
	}
	if len(seg.Mask) > 0 {
		sb.WriteString("\nМаска сегментации наложена.")
	}
	sb.WriteString("\n\n/analyze — заключение по снимку")
	return sb.String()
}

// analysisCaption подпись с заключением анализа
func analysisCaption(a *entity.Analysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🩺 %s\nУверенность: %d%%", a.Disorder, int(a.Confidence*100+0.5))
	if a.Severity != "" {
		fmt.Fprintf(&sb, "\nТяжесть: %s", a.Severity)
	}
	if a.Notes != "" {
		fmt.Fprintf(&sb, "\n\n%s", a.Notes)
	}
	for _, r := range a.Recommendations {
		fmt.Fprintf(&sb, "\n• %s", r)
	}
	sb.WriteString("\n\n/report — отчёт PDF, /save — сохранить отчёт")
	return sb.String()
}
