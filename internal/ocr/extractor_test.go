package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/rs/zerolog"

	"thermaleye-service/internal/config"
	"thermaleye-service/internal/domain/thermal"
)

type fakeRecognizer struct {
	responses [][]thermal.TextDetection
	err       error
	calls     int
}

func (f *fakeRecognizer) ReadText(_ context.Context, _ image.Image) ([]thermal.TextDetection, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func testOCRConfig() config.OCRConfig {
	return config.OCRConfig{
		Region:              config.RegionTopLeft,
		TopFraction:         0.4,
		SideFraction:        0.5,
		ConfidenceThreshold: 0.4,
		TempMin:             20,
		TempMax:             80,
		ScaleFactor:         1.5,
		SharpnessFactor:     1.2,
	}
}

func detectionAt(x, y float64, text string, conf float64) thermal.TextDetection {
	return thermal.TextDetection{
		BBox: [4]thermal.Point{
			{X: x, Y: y},
			{X: x + 20, Y: y},
			{X: x + 20, Y: y + 10},
			{X: x, Y: y + 10},
		},
		Text:       text,
		Confidence: conf,
	}
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func extract(t *testing.T, cfg config.OCRConfig, detections []thermal.TextDetection) *float64 {
	t.Helper()
	rec := &fakeRecognizer{responses: [][]thermal.TextDetection{detections}}
	e := NewExtractor(rec, cfg, zerolog.Nop())
	v, _, err := e.Extract(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return v
}

func TestExtractUnitMarkedValues(t *testing.T) {
	for _, want := range []float64{20, 39.2, 55.75, 80} {
		t.Run(fmt.Sprintf("%v", want), func(t *testing.T) {
			v := extract(t, testOCRConfig(), []thermal.TextDetection{
				detectionAt(10, 5, fmt.Sprintf("%v°C", want), 0.9),
			})
			if v == nil || *v != want {
				t.Fatalf("Extract = %v, want %v", v, want)
			}
		})
	}
}

func TestExtractPrefersLabelProximity(t *testing.T) {
	detections := []thermal.TextDetection{
		detectionAt(5, 10, "Max", 0.8),
		detectionAt(40, 10, "42.5", 0.5),  // right of the label, same row
		detectionAt(40, 35, "77.0°C", 0.95), // higher confidence, different row
	}
	v := extract(t, testOCRConfig(), detections)
	if v == nil || *v != 42.5 {
		t.Fatalf("Extract = %v, want 42.5 (label-proximity stage)", v)
	}
}

func TestExtractEmbeddedMaxValue(t *testing.T) {
	v := extract(t, testOCRConfig(), []thermal.TextDetection{
		detectionAt(10, 5, "Max: 48.3", 0.6),
	})
	if v == nil || *v != 48.3 {
		t.Fatalf("Extract = %v, want 48.3", v)
	}
}

func TestExtractUnitMarkBeatsBareNumber(t *testing.T) {
	detections := []thermal.TextDetection{
		detectionAt(10, 5, "31", 0.95),    // bare digits, no mark
		detectionAt(60, 25, "45.5°", 0.6), // degree mark
	}
	v := extract(t, testOCRConfig(), detections)
	if v == nil || *v != 45.5 {
		t.Fatalf("Extract = %v, want 45.5 (unit-marked stage)", v)
	}
}

func TestExtractSidePreference(t *testing.T) {
	cfg := testOCRConfig()
	cfg.Region = config.RegionTopRight

	// No labels, no unit marks: side preference decides before global
	// confidence. ROI is 100px wide, so x >= 50 is the favored half.
	detections := []thermal.TextDetection{
		detectionAt(5, 5, "66", 0.95),
		detectionAt(70, 5, "44", 0.5),
	}
	v := extract(t, cfg, detections)
	if v == nil || *v != 44 {
		t.Fatalf("Extract = %v, want 44 (favored-side stage)", v)
	}
}

func TestExtractGlobalBestFallback(t *testing.T) {
	cfg := testOCRConfig()
	cfg.Region = config.RegionFull

	detections := []thermal.TextDetection{
		detectionAt(10, 5, "33", 0.5),
		detectionAt(60, 25, "61", 0.7),
	}
	v := extract(t, cfg, detections)
	if v == nil || *v != 61 {
		t.Fatalf("Extract = %v, want 61 (highest confidence)", v)
	}
}

func TestExtractFiltersDetections(t *testing.T) {
	tests := []struct {
		name       string
		detections []thermal.TextDetection
	}{
		{
			name:       "below confidence threshold",
			detections: []thermal.TextDetection{detectionAt(10, 5, "45.0°C", 0.2)},
		},
		{
			name:       "empty text",
			detections: []thermal.TextDetection{detectionAt(10, 5, "   ", 0.9)},
		},
		{
			name: "out of plausible range",
			detections: []thermal.TextDetection{
				detectionAt(10, 5, "150°C", 0.9),
				detectionAt(40, 5, "5°C", 0.9),
			},
		},
		{
			name:       "no numeric content",
			detections: []thermal.TextDetection{detectionAt(10, 5, "FLIR", 0.9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := extract(t, testOCRConfig(), tt.detections); v != nil {
				t.Fatalf("Extract = %v, want no reading", *v)
			}
		})
	}
}

func TestExtractDeduplicatesNearbyValues(t *testing.T) {
	// The same value seen by the max-label and bare-number families must
	// keep the boosted candidate only.
	detections := []thermal.TextDetection{
		detectionAt(10, 5, "Max: 39.2", 0.5),
		detectionAt(60, 25, "39.25", 0.9),
	}
	rec := &fakeRecognizer{responses: [][]thermal.TextDetection{detections}}
	e := NewExtractor(rec, testOCRConfig(), zerolog.Nop())

	candidates, _ := e.collectCandidates(detections)
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1: %+v", len(candidates), candidates)
	}
	if candidates[0].Value != 39.2 {
		t.Errorf("kept value = %v, want 39.2", candidates[0].Value)
	}
	if c := candidates[0].Confidence; c < 0.69 || c > 0.71 {
		t.Errorf("kept confidence = %v, want 0.7 (0.5 + max bonus)", c)
	}
}

func TestExtractRecognizerError(t *testing.T) {
	rec := &fakeRecognizer{err: ErrUnavailable}
	e := NewExtractor(rec, testOCRConfig(), zerolog.Nop())

	v, _, err := e.Extract(context.Background(), testImage())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if v != nil {
		t.Fatalf("reading must be absent on recognizer failure, got %v", *v)
	}
}

func TestExtractEnhancedFallsBackToRawCrop(t *testing.T) {
	cfg := testOCRConfig()
	cfg.EnhancedPreprocess = true

	rec := &fakeRecognizer{responses: [][]thermal.TextDetection{
		{}, // enhanced pass: nothing
		{detectionAt(10, 5, "52.0°C", 0.9)}, // raw crop pass
	}}
	e := NewExtractor(rec, cfg, zerolog.Nop())

	v, _, err := e.Extract(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v == nil || *v != 52.0 {
		t.Fatalf("Extract = %v, want 52.0 from the fallback pass", v)
	}
	if rec.calls != 2 {
		t.Errorf("recognizer called %d times, want 2", rec.calls)
	}
}

func TestCropROIVariants(t *testing.T) {
	img := testImage() // 200x100

	tests := []struct {
		region config.OCRRegion
		wantW  int
		wantH  int
	}{
		{config.RegionTopLeft, 100, 40},
		{config.RegionTopRight, 100, 40},
		{config.RegionFull, 200, 40},
	}
	for _, tt := range tests {
		t.Run(string(tt.region), func(t *testing.T) {
			cfg := testOCRConfig()
			cfg.Region = tt.region
			e := NewExtractor(nil, cfg, zerolog.Nop())
			roi := e.cropROI(img)
			if roi.Bounds().Dx() != tt.wantW || roi.Bounds().Dy() != tt.wantH {
				t.Errorf("ROI = %dx%d, want %dx%d",
					roi.Bounds().Dx(), roi.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}
