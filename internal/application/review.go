package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/google/uuid"

	"xray-review/internal/canvas"
	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
	"xray-review/internal/domain/port"
	"xray-review/internal/log"
)

var (
	ErrSessionNotFound = errors.New("review session not found")
	// ErrNoImage файл ещё не выбран.
	ErrNoImage = errors.New("no image selected")
	// ErrNotReady снимок не декодирован или нет данных для операции.
	ErrNotReady = errors.New("image is not ready")
	// ErrBusy по этому действию уже идёт запрос.
	ErrBusy = errors.New("request already in progress")
	// ErrStaleResult ответ пришёл для уже заменённого снимка и отброшен.
	ErrStaleResult = errors.New("result belongs to a replaced image")
	// ErrNoAnalysis отчёт без заключения анализа не отправляется.
	ErrNoAnalysis = errors.New("analysis is required before report")
	// ErrNotConfigured внешний сервис не подключён.
	ErrNotConfigured = errors.New("service is not configured")
)

// Phase стадия сессии просмотра.
type Phase string

const (
	PhaseEmpty    Phase = "empty"
	PhaseDecoding Phase = "decoding"
	PhaseReady    Phase = "ready"
)

type control string

const (
	controlDetect  control = "detect"
	controlAnalyze control = "analyze"
	controlReport  control = "report"
)

// ReviewConfig настройки сервиса просмотра.
type ReviewConfig struct {
	// PreviewWidth ширина превью, если клиент не сообщил размер экрана.
	PreviewWidth int
	// SessionTTL время жизни неактивной сессии.
	SessionTTL time.Duration
}

// session состояние одного просмотра. Все поля под mu.
type session struct {
	mu sync.Mutex

	id         string
	doctor     string
	generation uint64
	phase      Phase
	touched    time.Time

	file     entity.ImagePayload
	base     image.Image
	rendered geometry.Size

	segmentation *entity.Segmentation
	mask         image.Image
	analysis     *entity.Analysis
	surface      *canvas.Surface

	// inflight поколение снимка, для которого по действию идёт запрос.
	// Новый снимок сразу освобождает все действия.
	inflight map[control]uint64
	pending  int
}

// SessionView снимок состояния сессии для внешних слоёв.
type SessionView struct {
	ID         string             `json:"id"`
	Phase      Phase              `json:"phase"`
	Filename   string             `json:"filename,omitempty"`
	Natural    geometry.Size      `json:"natural"`
	Rendered   geometry.Size      `json:"rendered"`
	Tool       entity.Tool        `json:"tool"`
	Drawing    bool               `json:"drawing"`
	Strokes    int                `json:"strokes"`
	Method     string             `json:"method,omitempty"`
	Detections []entity.Detection `json:"detections"`
	Analysis   *entity.Analysis   `json:"analysis,omitempty"`
	Busy       []string           `json:"busy,omitempty"`
}

// ShapesView раскладка отметок для клиента, который рисует сам.
type ShapesView struct {
	Rendered geometry.Size  `json:"rendered"`
	Shapes   []canvas.Shape `json:"shapes"`
	Summary  []string       `json:"summary"`
}

// ReportInput поля отчёта, которые заполняет врач.
type ReportInput struct {
	PatientID  string
	DoctorName string
	Notes      string
	Mode       entity.ReportMode
}

// ReviewService ведёт сессии просмотра снимков: загрузка, вызовы моделей,
// разметка, превью и отправка отчёта.
type ReviewService struct {
	segmenter port.Segmenter
	analyzer  port.Analyzer
	reports   port.ReportService
	renderer  *canvas.Renderer
	exporter  *canvas.Exporter
	cfg       ReviewConfig
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// NewReviewService создаёт сервис. Любой из портов может быть nil,
// тогда соответствующее действие вернёт ErrNotConfigured.
func NewReviewService(segmenter port.Segmenter, analyzer port.Analyzer, reports port.ReportService, cfg ReviewConfig) *ReviewService {
	if cfg.PreviewWidth <= 0 {
		cfg.PreviewWidth = 1024
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	return &ReviewService{
		segmenter: segmenter,
		analyzer:  analyzer,
		reports:   reports,
		renderer:  canvas.NewRenderer(),
		exporter:  canvas.NewExporter(),
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Open создаёт пустую сессию и возвращает её ID.
func (s *ReviewService) Open(ctx context.Context, doctor string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sess := &session{
		id:       uuid.NewString(),
		doctor:   doctor,
		phase:    PhaseEmpty,
		touched:  s.now(),
		inflight: make(map[control]uint64),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	log.Debug("review session opened", "session", sess.id)
	return sess.id, nil
}

// Close удаляет сессию.
func (s *ReviewService) Close(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *ReviewService) get(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// lock находит сессию, захватывает её и отмечает активность.
func (s *ReviewService) lock(id string) (*session, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	sess.touched = s.now()
	return sess, nil
}

// reset сбрасывает всё, что относится к текущему снимку, и открывает новое поколение.
func (sess *session) reset() {
	sess.generation++
	sess.file = entity.ImagePayload{}
	sess.base = nil
	sess.segmentation = nil
	sess.mask = nil
	sess.analysis = nil
	sess.surface = nil
	sess.rendered = geometry.Size{}
	sess.phase = PhaseEmpty
}

// SelectFile принимает новый файл. Прежние результаты и разметка сбрасываются,
// ответы на запросы по прежнему файлу будут отброшены.
func (s *ReviewService) SelectFile(id, filename string, data []byte) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if len(data) == 0 {
		return ErrNoImage
	}

	sess.reset()
	sess.file = entity.ImagePayload{Filename: filename, Data: data}
	sess.phase = PhaseDecoding
	return nil
}

// Decode декодирует выбранный файл и создаёт чистый слой разметки
// натурального размера. При ошибке сессия остаётся без снимка.
func (s *ReviewService) Decode(id string) (geometry.Size, error) {
	sess, err := s.lock(id)
	if err != nil {
		return geometry.Size{}, err
	}
	defer sess.mu.Unlock()

	if sess.phase == PhaseEmpty || len(sess.file.Data) == 0 {
		return geometry.Size{}, ErrNoImage
	}

	img, format, err := canvas.Decode(sess.file.Data)
	if err != nil {
		sess.phase = PhaseEmpty
		sess.file = entity.ImagePayload{}
		return geometry.Size{}, err
	}

	b := img.Bounds()
	sess.base = img
	sess.file.ContentType = "image/" + format
	sess.surface = canvas.NewSurface(b.Dx(), b.Dy())
	sess.phase = PhaseReady

	natural := geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	log.Debug("image decoded", "session", id, "format", format, "width", b.Dx(), "height", b.Dy())
	return natural, nil
}

// Load выбирает и сразу декодирует файл.
func (s *ReviewService) Load(id, filename string, data []byte) (geometry.Size, error) {
	if err := s.SelectFile(id, filename, data); err != nil {
		return geometry.Size{}, err
	}
	return s.Decode(id)
}

// Clear убирает снимок и все результаты.
func (s *ReviewService) Clear(id string) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	sess.reset()
	return nil
}

// SetViewport запоминает экранный размер снимка у клиента.
func (s *ReviewService) SetViewport(id string, width, height float64) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	size := geometry.Size{Width: width, Height: height}
	if !size.Positive() {
		return geometry.ErrNotLaidOut
	}
	sess.rendered = size
	return nil
}

// begin проверяет готовность, занимает действие и возвращает поколение и файл.
func (s *ReviewService) begin(id string, c control) (*session, uint64, entity.ImagePayload, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, 0, entity.ImagePayload{}, err
	}
	defer sess.mu.Unlock()

	if sess.phase != PhaseReady {
		return nil, 0, entity.ImagePayload{}, ErrNotReady
	}
	if sess.busy(c) {
		return nil, 0, entity.ImagePayload{}, ErrBusy
	}
	sess.acquire(c)
	return sess, sess.generation, sess.file, nil
}

// busy true, если по действию идёт запрос для текущего снимка.
func (sess *session) busy(c control) bool {
	gen, ok := sess.inflight[c]
	return ok && gen == sess.generation
}

func (sess *session) acquire(c control) {
	sess.inflight[c] = sess.generation
	sess.pending++
}

// finish освобождает действие. Вызывается под sess.mu.
func (sess *session) finish(c control, generation uint64) error {
	sess.pending--
	if gen, ok := sess.inflight[c]; ok && gen == generation {
		delete(sess.inflight, c)
	}
	if sess.generation != generation {
		return ErrStaleResult
	}
	return nil
}

// Detect отправляет снимок на сегментацию. Пока идёт запрос, сессия не
// заблокирована; результат применяется, только если снимок не сменился.
// При ошибке прежние результаты остаются.
func (s *ReviewService) Detect(ctx context.Context, id string, creds entity.Credentials) (*entity.Segmentation, error) {
	if s.segmenter == nil {
		return nil, ErrNotConfigured
	}

	sess, gen, file, err := s.begin(id, controlDetect)
	if err != nil {
		return nil, err
	}

	seg, callErr := s.segmenter.Segment(ctx, creds, file)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.finish(controlDetect, gen); err != nil {
		log.Info("segmentation result discarded", "session", id)
		return nil, err
	}
	if callErr != nil {
		return nil, fmt.Errorf("segment: %w", callErr)
	}
	if seg == nil {
		seg = &entity.Segmentation{}
	}

	sess.segmentation = seg
	sess.mask = nil
	if len(seg.Mask) > 0 {
		mask, _, err := canvas.Decode(seg.Mask)
		if err != nil {
			log.Warn("segmentation mask is not an image", "session", id, "error", err)
		} else {
			sess.mask = mask
		}
	}

	log.Info("segmentation applied", "session", id, "method", seg.Method, "detections", len(seg.Detections), "mask", sess.mask != nil)
	return seg, nil
}

// Analyze отправляет снимок на анализ. Правила те же, что у Detect.
func (s *ReviewService) Analyze(ctx context.Context, id string, creds entity.Credentials) (*entity.Analysis, error) {
	if s.analyzer == nil {
		return nil, ErrNotConfigured
	}

	sess, gen, file, err := s.begin(id, controlAnalyze)
	if err != nil {
		return nil, err
	}

	res, callErr := s.analyzer.Analyze(ctx, creds, file)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.finish(controlAnalyze, gen); err != nil {
		log.Info("analysis result discarded", "session", id)
		return nil, err
	}
	if callErr != nil {
		return nil, fmt.Errorf("analyze: %w", callErr)
	}
	if res == nil {
		return nil, errors.New("analyze: empty response")
	}

	sess.analysis = res
	log.Info("analysis applied", "session", id, "disorder", res.Disorder, "damage", res.DamageLocation != nil)
	return res, nil
}

// Pointer передаёт событие указателя слою разметки. До декодирования
// событие отбрасывается без ошибки.
func (s *ReviewService) Pointer(id string, ev canvas.PointerEvent) (bool, error) {
	sess, err := s.lock(id)
	if err != nil {
		return false, err
	}
	defer sess.mu.Unlock()

	if sess.surface == nil {
		return false, nil
	}
	return sess.surface.HandlePointer(ev), nil
}

// SetTool меняет инструмент разметки.
func (s *ReviewService) SetTool(id string, tool entity.Tool) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if sess.surface == nil {
		return ErrNotReady
	}
	return sess.surface.SetTool(tool)
}

// ClearAnnotations стирает разметку врача.
func (s *ReviewService) ClearAnnotations(id string) error {
	sess, err := s.lock(id)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	if sess.surface == nil {
		return ErrNotReady
	}
	sess.surface.Clear()
	return nil
}

// viewport экранный размер: сообщённый клиентом или ширина превью
// с сохранением пропорций (без увеличения).
func (s *ReviewService) viewport(sess *session) geometry.Size {
	if sess.rendered.Positive() {
		return sess.rendered
	}
	b := sess.base.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if limit := float64(s.cfg.PreviewWidth); w > limit {
		h = h * limit / w
		w = limit
	}
	return geometry.Size{Width: w, Height: h}
}

func (sess *session) scene() canvas.Scene {
	sc := canvas.Scene{Base: sess.base, Mask: sess.mask}
	if sess.segmentation != nil {
		sc.Detections = sess.segmentation.Detections
	}
	if sess.analysis != nil {
		sc.Damage = sess.analysis.DamageLocation
		sc.DamageLabel = sess.analysis.Disorder
	}
	if sess.surface != nil && !sess.surface.Empty() {
		sc.Annotations = sess.surface.Layer()
	}
	return sc
}

// Overlay рисует превью экранного размера и кодирует его в PNG.
func (s *ReviewService) Overlay(id string) ([]byte, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.phase != PhaseReady {
		return nil, ErrNotReady
	}

	img, err := s.renderer.Render(sess.scene(), s.viewport(sess))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// Shapes раскладка отметок и краткий список находок.
func (s *ReviewService) Shapes(id string) (*ShapesView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	if sess.phase != PhaseReady {
		return nil, ErrNotReady
	}

	rendered := s.viewport(sess)
	sc := sess.scene()
	shapes, err := s.renderer.Layout(sc, rendered)
	if err != nil {
		return nil, err
	}

	summary := make([]string, 0, len(sc.Detections))
	for _, d := range sc.Detections {
		summary = append(summary, d.Label())
	}
	return &ShapesView{Rendered: rendered, Shapes: shapes, Summary: summary}, nil
}

// View текущее состояние сессии.
func (s *ReviewService) View(id string) (*SessionView, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	v := &SessionView{
		ID:         sess.id,
		Phase:      sess.phase,
		Filename:   sess.file.Filename,
		Rendered:   sess.rendered,
		Tool:       entity.ToolPen,
		Detections: []entity.Detection{},
	}
	if sess.base != nil {
		b := sess.base.Bounds()
		v.Natural = geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}
	if sess.surface != nil {
		v.Tool = sess.surface.Tool()
		v.Drawing = sess.surface.State() == canvas.StateDrawing
		v.Strokes = len(sess.surface.Strokes())
	}
	if sess.segmentation != nil {
		v.Method = sess.segmentation.Method
		v.Detections = append(v.Detections, sess.segmentation.Detections...)
	}
	if sess.analysis != nil {
		a := *sess.analysis
		v.Analysis = &a
	}
	for _, c := range []control{controlDetect, controlAnalyze, controlReport} {
		if sess.busy(c) {
			v.Busy = append(v.Busy, string(c))
		}
	}
	return v, nil
}

// Report сводит снимок с разметкой и отправляет в сервис отчётов.
// Если свести не удалось, уходит исходный файл с IsAnnotated=false.
func (s *ReviewService) Report(ctx context.Context, id string, creds entity.Credentials, in ReportInput) (*entity.ReportResult, error) {
	if s.reports == nil {
		return nil, ErrNotConfigured
	}

	req, sess, gen, err := s.prepareReport(id, in)
	if err != nil {
		return nil, err
	}

	res, callErr := s.reports.Submit(ctx, creds, *req)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Отчёт по заменённому снимку всё равно уже отправлен, поэтому поколение
	// здесь не проверяется.
	_ = sess.finish(controlReport, gen)
	if callErr != nil {
		return nil, fmt.Errorf("report: %w", callErr)
	}
	if res == nil {
		res = &entity.ReportResult{}
	}

	log.Info("report submitted", "session", id, "mode", req.Mode, "annotated", req.Metadata.IsAnnotated, "report_id", res.ReportID)
	return res, nil
}

func (s *ReviewService) prepareReport(id string, in ReportInput) (*entity.ReportRequest, *session, uint64, error) {
	sess, err := s.lock(id)
	if err != nil {
		return nil, nil, 0, err
	}
	defer sess.mu.Unlock()

	if len(sess.file.Data) == 0 {
		return nil, nil, 0, ErrNoImage
	}
	if sess.analysis == nil {
		return nil, nil, 0, ErrNoAnalysis
	}
	if sess.busy(controlReport) {
		return nil, nil, 0, ErrBusy
	}

	layers := canvas.Layers{
		Base:   sess.base,
		Mask:   sess.mask,
		Damage: sess.analysis.DamageLocation,
	}
	if sess.surface != nil {
		layers.Annotations = sess.surface.Layer()
	}

	export, err := s.exporter.Export(layers, sess.file)
	if err != nil {
		return nil, nil, 0, err
	}

	a := sess.analysis
	meta := entity.ReportMetadata{
		PatientID:        in.PatientID,
		DoctorName:       in.DoctorName,
		Disorder:         a.Disorder,
		Confidence:       a.Confidence,
		Severity:         a.Severity,
		Notes:            a.Notes,
		IsAnnotated:      export.IsAnnotated,
		DetailedAnalysis: a.DetailedAnalysis,
		Recommendations:  a.Recommendations,
		DamageLocation:   a.DamageLocation,
	}
	if meta.PatientID == "" {
		meta.PatientID = entity.DefaultPatientID
	}
	if meta.DoctorName == "" {
		meta.DoctorName = sess.doctor
	}
	if in.Notes != "" {
		meta.Notes = in.Notes
	}

	mode := in.Mode
	if mode == "" {
		mode = entity.ReportDownload
	}

	sess.acquire(controlReport)
	return &entity.ReportRequest{Image: export.Payload, Metadata: meta, Mode: mode}, sess, sess.generation, nil
}

// Run удаляет неактивные сессии, пока не отменён ctx.
func (s *ReviewService) Run(ctx context.Context) {
	interval := s.cfg.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.expire(s.now()); n > 0 {
				log.Info("review sessions expired", "count", n)
			}
		}
	}
}

// expire удаляет сессии старше TTL, кроме тех, где идёт запрос.
func (s *ReviewService) expire(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.touched) > s.cfg.SessionTTL && sess.pending == 0
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Sessions число открытых сессий.
func (s *ReviewService) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
