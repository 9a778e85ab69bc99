package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"

	"thermaleye-service/internal/domain/thermal"
)

// ErrUnavailable marks the recognizer as unreachable or unconfigured.
// Callers treat it as a missing reading, never as a pipeline fault.
var ErrUnavailable = errors.New("text recognizer unavailable")

// Recognizer turns an image into raw text detections. The production
// implementation talks to an inference sidecar; tests substitute fakes.
type Recognizer interface {
	ReadText(ctx context.Context, img image.Image) ([]thermal.TextDetection, error)
}

// HTTPRecognizer calls an OCR inference service over HTTP. The service
// accepts a PNG body and answers with detection quads, text and
// confidence per token.
type HTTPRecognizer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRecognizer(baseURL string, timeout time.Duration) *HTTPRecognizer {
	return &HTTPRecognizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type readTextResponse struct {
	Detections []struct {
		BBox       [4][2]float64 `json:"bbox"`
		Text       string        `json:"text"`
		Confidence float64       `json:"confidence"`
	} `json:"detections"`
}

func (r *HTTPRecognizer) ReadText(ctx context.Context, img image.Image) ([]thermal.TextDetection, error) {
	if r.baseURL == "" {
		return nil, ErrUnavailable
	}

	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/readtext", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed readTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	detections := make([]thermal.TextDetection, 0, len(parsed.Detections))
	for _, d := range parsed.Detections {
		det := thermal.TextDetection{
			Text:       d.Text,
			Confidence: d.Confidence,
		}
		for i, p := range d.BBox {
			det.BBox[i] = thermal.Point{X: p[0], Y: p[1]}
		}
		detections = append(detections, det)
	}
	return detections, nil
}
