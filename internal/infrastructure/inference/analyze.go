package inference

import (
	"context"

	"xray-review/internal/domain/entity"
	"xray-review/internal/domain/port"
)

// Analyze вызывает /analyze: заключение по снимку
func (c *Client) Analyze(ctx context.Context, creds entity.Credentials, img entity.ImagePayload) (*entity.Analysis, error) {
	f, err := newForm(img)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, creds, "/analyze", f)
	if err != nil {
		return nil, err
	}

	var a entity.Analysis
	if err := decodeJSON(resp, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

var _ port.Analyzer = (*Client)(nil)
