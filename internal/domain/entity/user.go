package entity

// UserState состояние пользователя в диалоге
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание снимка
	StateProcessing    UserState = "processing"     // Обработка снимка
	StateReviewing     UserState = "reviewing"      // Снимок загружен, идёт просмотр
)

// User врач, работающий с сервисом
type User struct {
	ID        int64       // Telegram User ID
	ChatID    int64       // Telegram Chat ID
	State     UserState   // Текущее состояние пользователя
	Username  string      // Логин
	FullName  string      // Полное имя для отчёта
	SessionID string      // Текущая сессия просмотра
	Creds     Credentials // Учётные данные для внешних сервисов
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// DoctorName имя врача для отчёта: полное имя или логин.
func (u *User) DoctorName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
