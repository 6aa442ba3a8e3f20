package entity

// Analysis заключение сервиса анализа снимка.
type Analysis struct {
	Disorder         string          `json:"disorder"`
	Confidence       float64         `json:"confidence"`
	Severity         string          `json:"severity"`
	Notes            string          `json:"notes"`
	DetailedAnalysis string          `json:"detailed_analysis,omitempty"`
	Recommendations  []string        `json:"recommendations,omitempty"`
	DamageLocation   *DamageLocation `json:"damage_location,omitempty"`
}

// ImagePayload изображение, отправляемое внешним сервисам.
type ImagePayload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Credentials учётные данные, передаваемые явно в каждый вызов сервисов.
type Credentials struct {
	Token string
}

// Bearer значение заголовка Authorization, пустое если токена нет.
func (c Credentials) Bearer() string {
	if c.Token == "" {
		return ""
	}
	return "Bearer " + c.Token
}
