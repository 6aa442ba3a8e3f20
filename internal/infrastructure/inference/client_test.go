package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"xray-review/internal/domain/entity"
)

var scan = entity.ImagePayload{Filename: "scan.png", ContentType: "image/png", Data: []byte("png-bytes")}

func TestClient_SegmentDecodesMaskDataURL(t *testing.T) {
	mask := []byte("mask-png")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/segment", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		require.Equal(t, "scan.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))
		require.Equal(t, scan.Data, data)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"detections": []map[string]any{
				{"bbox": []float64{1, 2, 3, 4}, "confidence": 0.8, "class": "fracture", "class_id": 0},
				{"bbox": []float64{5, 6, 7, 8}, "confidence": 0.4, "class": "fracture", "class_id": 0},
			},
			"mask":   "data:image/png;base64," + base64.StdEncoding.EncodeToString(mask),
			"method": "YOLO+Heuristic",
		})
	}))
	defer srv.Close()

	seg, err := NewClient(srv.URL, 0).Segment(context.Background(), entity.Credentials{Token: "tok"}, scan)
	require.NoError(t, err)
	require.Len(t, seg.Detections, 2)
	require.Equal(t, [4]float64{1, 2, 3, 4}, seg.Detections[0].BBox)
	require.Equal(t, [4]float64{5, 6, 7, 8}, seg.Detections[1].BBox)
	require.Equal(t, mask, seg.Mask)
	require.Equal(t, "YOLO+Heuristic", seg.Method)
}

func TestClient_SegmentWithoutMask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"detections": []}`))
	}))
	defer srv.Close()

	seg, err := NewClient(srv.URL, 0).Segment(context.Background(), entity.Credentials{}, scan)
	require.NoError(t, err)
	require.Empty(t, seg.Detections)
	require.Nil(t, seg.Mask)
	require.False(t, seg.HasResults())
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "YOLOv8 model not loaded"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Analyze(context.Background(), entity.Credentials{}, scan)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusInternalServerError, se.Code)
	require.Equal(t, "YOLOv8 model not loaded", se.Detail)
}

func TestClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"disorder": "Fracture", "confidence": 0.93, "severity": "Moderate",
			"notes": "Distal radius.", "recommendations": ["Cast", "X-ray in 2 weeks"],
			"damage_location": {"x": 0.2, "y": 0.3, "width": 0.1, "height": 0.1}
		}`))
	}))
	defer srv.Close()

	a, err := NewClient(srv.URL+"/", 0).Analyze(context.Background(), entity.Credentials{}, scan)
	require.NoError(t, err)
	require.Equal(t, "Fracture", a.Disorder)
	require.Equal(t, []string{"Cast", "X-ray in 2 weeks"}, a.Recommendations)
	require.Equal(t, &entity.DamageLocation{X: 0.2, Y: 0.3, Width: 0.1, Height: 0.1}, a.DamageLocation)
}

func TestClient_SubmitSaveOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/report", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("save_only"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		require.Equal(t, entity.DefaultPatientID, r.FormValue("patient_id"))
		require.Equal(t, "Dr. Who", r.FormValue("doctor_name"))
		require.Equal(t, "0.93", r.FormValue("confidence"))
		require.Equal(t, "true", r.FormValue("is_annotated_image"))
		require.Equal(t, `["Cast"]`, r.FormValue("recommendations"))
		require.Equal(t, `{"x":0.2,"y":0.3,"width":0.1,"height":0.1}`, r.FormValue("damage_location"))
		_, hasDetailed := r.MultipartForm.Value["detailed_analysis"]
		require.False(t, hasDetailed)

		_, _ = w.Write([]byte(`{"message": "Report saved successfully", "report_id": "r-1"}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, 0).Submit(context.Background(), entity.Credentials{}, entity.ReportRequest{
		Image: scan,
		Mode:  entity.ReportSaveOnly,
		Metadata: entity.ReportMetadata{
			DoctorName:      "Dr. Who",
			Disorder:        "Fracture",
			Confidence:      0.93,
			IsAnnotated:     true,
			Recommendations: []string{"Cast"},
			DamageLocation:  &entity.DamageLocation{X: 0.2, Y: 0.3, Width: 0.1, Height: 0.1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "r-1", res.ReportID)
	require.Equal(t, "Report saved successfully", res.Message)
}

func TestClient_SubmitDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.Query().Get("save_only"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=report.pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, 0).Submit(context.Background(), entity.Credentials{}, entity.ReportRequest{
		Image: scan,
		Mode:  entity.ReportDownload,
	})
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), res.Document)
	require.Equal(t, "application/pdf", res.ContentType)
	require.Equal(t, "report.pdf", res.Filename)
}

func TestDecodeDataURL(t *testing.T) {
	data, err := decodeDataURL(base64.StdEncoding.EncodeToString([]byte("raw")))
	require.NoError(t, err)
	require.Equal(t, []byte("raw"), data)

	_, err = decodeDataURL("data:image/png,notbase64")
	require.ErrorIs(t, err, ErrBadMask)

	_, err = decodeDataURL("%%%")
	require.ErrorIs(t, err, ErrBadMask)
}
