package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/geometry"
	"xray-review/internal/log"
)

var (
	// ErrNoBase нет декодированного снимка.
	ErrNoBase = errors.New("base image is not decoded")
	// ErrNothingToExport нет ни снимка, ни исходного файла.
	ErrNothingToExport = errors.New("nothing to export")
)

// AnnotatedFilename имя файла сведённого изображения.
const AnnotatedFilename = "annotated_image.png"

// Layers слои для сведения. Отметки детекций сюда не входят.
type Layers struct {
	Base        image.Image
	Mask        image.Image
	Damage      *entity.DamageLocation
	Annotations image.Image
}

// Export результат экспорта для сервиса отчётов.
type Export struct {
	Payload     entity.ImagePayload
	IsAnnotated bool
}

// Exporter сводит слои в одно изображение натурального размера.
type Exporter struct {
	MaskOpacity float64
	Damage      Style
	// WithDamage рисовать область поражения (как на холсте разметки).
	WithDamage bool
	Encoder    png.Encoder
}

// NewExporter создаёт экспортёр с настройками по умолчанию.
func NewExporter() *Exporter {
	return &Exporter{
		MaskOpacity: MaskOpacity,
		Damage:      DamageStyle,
		WithDamage:  true,
		Encoder:     png.Encoder{CompressionLevel: png.DefaultCompression},
	}
}

// Flatten сводит слои в фиксированном порядке: снимок, маска,
// область поражения, разметка врача сверху.
func (e *Exporter) Flatten(l Layers) (*image.RGBA, error) {
	if l.Base == nil {
		return nil, ErrNoBase
	}
	size := image.Rect(0, 0, l.Base.Bounds().Dx(), l.Base.Bounds().Dy())
	if size.Empty() {
		return nil, ErrNoBase
	}

	out := fitTo(l.Base, size)
	if l.Mask != nil {
		multiplyOver(out, fitTo(l.Mask, size), e.MaskOpacity)
	}

	if e.WithDamage && l.Damage != nil {
		natural := geometry.Size{Width: float64(size.Dx()), Height: float64(size.Dy())}
		res, err := geometry.ResolveRect(l.Damage.Rect(), natural)
		if err != nil {
			log.Debug("skip malformed damage location in export", "error", err)
		} else {
			paintCircle(out, geometry.CircleAround(res.Rect), e.Damage)
		}
	}

	if l.Annotations != nil {
		a := l.Annotations
		if a.Bounds().Size() != size.Size() {
			return nil, fmt.Errorf("annotation layer %v does not match image %v", a.Bounds().Size(), size.Size())
		}
		draw.Draw(out, size, a, a.Bounds().Min, draw.Over)
	}

	return out, nil
}

// Export сводит слои и кодирует PNG. Если свести не удалось, отдаёт исходный файл
// с IsAnnotated=false, чтобы отчёт всё равно можно было отправить.
func (e *Exporter) Export(l Layers, original entity.ImagePayload) (Export, error) {
	data, err := e.encode(l)
	if err == nil {
		return Export{
			Payload: entity.ImagePayload{
				Filename:    AnnotatedFilename,
				ContentType: "image/png",
				Data:        data,
			},
			IsAnnotated: true,
		}, nil
	}

	if len(original.Data) == 0 {
		return Export{}, fmt.Errorf("%w: %v", ErrNothingToExport, err)
	}

	log.Warn("flatten failed, sending original image", "error", err)
	return Export{Payload: original, IsAnnotated: false}, nil
}

func (e *Exporter) encode(l Layers) ([]byte, error) {
	img, err := e.Flatten(l)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := e.Encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
