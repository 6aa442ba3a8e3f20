package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"strconv"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// Submit вызывает /report. В режиме save добавляет ?save_only=true.
func (c *Client) Submit(ctx context.Context, creds entity.Credentials, req entity.ReportRequest) (*entity.ReportResult, error) {
	f, err := newForm(req.Image)
	if err != nil {
		return nil, err
	}
	if err := writeMetadata(f, req.Metadata); err != nil {
		return nil, err
	}

	path := "/report"
	if req.Mode == entity.ReportSaveOnly {
		path += "?save_only=true"
	}

	resp, err := c.post(ctx, creds, path, f)
	if err != nil {
		return nil, err
	}

	if req.Mode == entity.ReportSaveOnly {
		var body struct {
			Message  string `json:"message"`
			ReportID string `json:"report_id"`
		}
		if err := decodeJSON(resp, &body); err != nil {
			return nil, err
		}
		return &entity.ReportResult{ReportID: body.ReportID, Message: body.Message}, nil
	}

	defer resp.Body.Close()
	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	filename := "medical_report.pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}

	return &entity.ReportResult{
		Document:    doc,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    filename,
	}, nil
}

// writeMetadata текстовые поля отчёта; рекомендации и область поражения JSON-строкой.
func writeMetadata(f *form, m entity.ReportMetadata) error {
	patientID := m.PatientID
	if patientID == "" {
		patientID = entity.DefaultPatientID
	}

	fields := [][2]string{
		{"patient_id", patientID},
		{"doctor_name", m.DoctorName},
		{"disorder", m.Disorder},
		{"confidence", strconv.FormatFloat(m.Confidence, 'f', -1, 64)},
		{"severity", m.Severity},
		{"notes", m.Notes},
		{"is_annotated_image", strconv.FormatBool(m.IsAnnotated)},
	}
	if m.DetailedAnalysis != "" {
		fields = append(fields, [2]string{"detailed_analysis", m.DetailedAnalysis})
	}
	if len(m.Recommendations) > 0 {
		data, err := json.Marshal(m.Recommendations)
		if err != nil {
			return fmt.Errorf("encode recommendations: %w", err)
		}
		fields = append(fields, [2]string{"recommendations", string(data)})
	}
	if m.DamageLocation != nil {
		data, err := json.Marshal(m.DamageLocation)
		if err != nil {
			return fmt.Errorf("encode damage location: %w", err)
		}
		fields = append(fields, [2]string{"damage_location", string(data)})
	}

	for _, kv := range fields {
		if err := f.field(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

var _ port.ReportService = (*Client)(nil)
