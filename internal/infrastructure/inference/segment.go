package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// ErrBadMask маска пришла не в base64.
var ErrBadMask = errors.New("mask is not valid base64 image data")

type segmentResponse struct {
	Detections []entity.Detection `json:"detections"`
	Mask       string             `json:"mask"`
	Method     string             `json:"method"`
}

// Segment вызывает /segment: детекции и маска поражения
func (c *Client) Segment(ctx context.Context, creds entity.Credentials, img entity.ImagePayload) (*entity.Segmentation, error) {
	f, err := newForm(img)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, creds, "/segment", f)
	if err != nil {
		return nil, err
	}

	var body segmentResponse
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}

	var mask []byte
	if body.Mask != "" {
		mask, err = decodeDataURL(body.Mask)
		if err != nil {
			return nil, err
		}
	}

	return &entity.Segmentation{
		Detections: body.Detections,
		Mask:       mask,
		Method:     body.Method,
	}, nil
}

// decodeDataURL принимает "data:image/png;base64,..." или голый base64.
func decodeDataURL(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return nil, ErrBadMask
		}
		s = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMask, err)
	}
	return data, nil
}

var _ port.Segmenter = (*Client)(nil)
