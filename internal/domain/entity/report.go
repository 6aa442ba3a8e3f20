package entity

// ReportMode что сделать с отчётом: скачать документ или только сохранить.
type ReportMode string

const (
	ReportDownload ReportMode = "download"
	ReportSaveOnly ReportMode = "save"
)

// DefaultPatientID подставляется, если ID пациента не указан.
const DefaultPatientID = "Anonymous"

// ReportMetadata текстовые поля отчёта.
type ReportMetadata struct {
	PatientID        string
	DoctorName       string
	Disorder         string
	Confidence       float64
	Severity         string
	Notes            string
	IsAnnotated      bool
	DetailedAnalysis string
	Recommendations  []string
	DamageLocation   *DamageLocation
}

// ReportRequest запрос к сервису отчётов.
type ReportRequest struct {
	Image    ImagePayload
	Metadata ReportMetadata
	Mode     ReportMode
}

// ReportResult ответ сервиса отчётов. Для ReportDownload заполнен Document,
// для ReportSaveOnly ReportID и Message.
type ReportResult struct {
	Document    []byte
	ContentType string
	Filename    string
	ReportID    string
	Message     string
}
