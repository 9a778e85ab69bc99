package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thermaleye-service/internal/domain/thermal"
	"thermaleye-service/internal/registry"
)

type stubExtractor struct {
	temp *float64
	err  error
}

func (s *stubExtractor) Extract(context.Context, image.Image) (*float64, []thermal.TextDetection, error) {
	return s.temp, nil, s.err
}

type stubMatcher struct {
	match *registry.Match
}

func (s *stubMatcher) Nearest(lat, lon float64) (*registry.Match, bool) {
	return s.match, s.match != nil
}

type stubAmbient struct {
	temp float64
}

func (s *stubAmbient) AmbientTemperature(context.Context) float64 {
	return s.temp
}

type memoryStore struct {
	created   []*thermal.Report
	lastLimit int
}

func (m *memoryStore) Create(_ context.Context, r *thermal.Report) error {
	m.created = append(m.created, r)
	return nil
}

func (m *memoryStore) GetByID(context.Context, uuid.UUID) (*thermal.Report, error) {
	return nil, errors.New("not implemented")
}

func (m *memoryStore) List(_ context.Context, limit, _ int) ([]thermal.Report, error) {
	m.lastLimit = limit
	return nil, nil
}

func (m *memoryStore) DeleteByID(context.Context, uuid.UUID) error { return nil }

func (m *memoryStore) DeleteBatch(context.Context, []uuid.UUID) (int64, error) { return 0, nil }

func (m *memoryStore) FaultProgression(context.Context, uuid.UUID) ([]thermal.ProgressionPoint, error) {
	return nil, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 10, 10))); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

func floatPtr(v float64) *float64 { return &v }

func newService(extractor TemperatureExtractor, matcher AssetMatcher, ambient float64, store ReportStore) *ReportService {
	return NewReportService(extractor, matcher, &stubAmbient{temp: ambient}, store, nil, 2024, zerolog.Nop())
}

func TestClassifySuccess(t *testing.T) {
	s := newService(nil, nil, 0, nil)

	match := &registry.Match{
		Tower:      registry.Tower{ID: 42, Name: "Loc. 42", CampName: "Trombay"},
		DistanceKM: 0.12,
		Metadata: registry.Metadata{
			VoltageKV:         220,
			CapacityAmps:      1200,
			CommissioningYear: 2000,
			Priority:          thermal.PriorityCritical,
			CampName:          "Trombay",
			Matched:           true,
		},
	}

	report := s.classify(floatPtr(45), 28, match)

	if report.AnalysisStatus != thermal.StatusSuccess {
		t.Errorf("status = %s, want success", report.AnalysisStatus)
	}
	if math.Abs(*report.ThresholdUsed-4.8) > 1e-9 {
		t.Errorf("threshold = %v, want 4.8", *report.ThresholdUsed)
	}
	if *report.DeltaT != 17 {
		t.Errorf("delta = %v, want 17", *report.DeltaT)
	}
	if report.FaultLevel != thermal.FaultCritical {
		t.Errorf("fault = %s, want CRITICAL", report.FaultLevel)
	}
	if report.Priority != thermal.PriorityCritical {
		t.Errorf("priority = %s, want CRITICAL", report.Priority)
	}
	if report.TowerID == nil || *report.TowerID != 42 {
		t.Errorf("tower id not carried over: %+v", report.TowerID)
	}
}

func TestClassifyNormalScenario(t *testing.T) {
	s := newService(nil, nil, 0, nil)

	match := &registry.Match{
		Tower: registry.Tower{ID: 7, Name: "Loc. 7"},
		Metadata: registry.Metadata{
			VoltageKV:         110,
			CapacityAmps:      500,
			CommissioningYear: 2015,
			Priority:          thermal.PriorityMedium,
		},
	}

	report := s.classify(floatPtr(30), 28, match)

	if math.Abs(*report.ThresholdUsed-3.6) > 1e-9 {
		t.Errorf("threshold = %v, want 3.6", *report.ThresholdUsed)
	}
	if report.FaultLevel != thermal.FaultNormal {
		t.Errorf("fault = %s, want NORMAL", report.FaultLevel)
	}
}

func TestClassifyPartialWithoutMatch(t *testing.T) {
	s := newService(nil, nil, 0, nil)

	cases := []struct {
		name      string
		measured  float64
		ambient   float64
		wantFault thermal.FaultLevel
	}{
		// delta 12 exceeds twice the default threshold, so even without
		// asset context the reading escalates past WARNING.
		{"delta beyond twice threshold", 40, 28, thermal.FaultCritical},
		{"delta within warning band", 35, 28, thermal.FaultWarning},
		{"delta under threshold", 31, 28, thermal.FaultNormal},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			report := s.classify(floatPtr(tt.measured), tt.ambient, nil)

			if report.AnalysisStatus != thermal.StatusPartial {
				t.Errorf("status = %s, want partial", report.AnalysisStatus)
			}
			if *report.ThresholdUsed != 5.0 {
				t.Errorf("threshold = %v, want default 5.0", *report.ThresholdUsed)
			}
			if report.FaultLevel != tt.wantFault {
				t.Errorf("fault = %s, want %s", report.FaultLevel, tt.wantFault)
			}
			if report.Priority != thermal.PriorityMedium {
				t.Errorf("priority = %s, want MEDIUM", report.Priority)
			}
		})
	}
}

func TestClassifyFailedWithoutReading(t *testing.T) {
	s := newService(nil, nil, 0, nil)

	report := s.classify(nil, 28, nil)

	if report.AnalysisStatus != thermal.StatusFailed {
		t.Errorf("status = %s, want failed", report.AnalysisStatus)
	}
	if report.FaultLevel != thermal.FaultNormal || report.Priority != thermal.PriorityMedium {
		t.Errorf("defaults not applied: %s/%s", report.FaultLevel, report.Priority)
	}
	if report.ImageTemp != nil {
		t.Error("missing reading must stay absent, not fabricated")
	}
}

func TestProcessImageStoresDegradedReport(t *testing.T) {
	store := &memoryStore{}
	s := newService(&stubExtractor{temp: floatPtr(40)}, &stubMatcher{}, 28, store)

	report, err := s.ProcessImage(context.Background(), pngBytes(t), "inspection.png")
	if err != nil {
		t.Fatalf("ProcessImage: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("stored %d reports, want 1", len(store.created))
	}
	// A plain PNG has no EXIF coordinates, so matching is skipped.
	if report.AnalysisStatus != thermal.StatusPartial {
		t.Errorf("status = %s, want partial", report.AnalysisStatus)
	}
	if report.Latitude != nil {
		t.Error("coordinates must be absent for an image without EXIF")
	}
	if report.ID == uuid.Nil {
		t.Error("report must get an id")
	}
}

func TestProcessImageRecognizerFailure(t *testing.T) {
	store := &memoryStore{}
	s := newService(&stubExtractor{err: errors.New("sidecar down")}, &stubMatcher{}, 28, store)

	report, err := s.ProcessImage(context.Background(), pngBytes(t), "inspection.png")
	if err != nil {
		t.Fatalf("recognizer failure must not fail the pipeline: %v", err)
	}
	if report.AnalysisStatus != thermal.StatusFailed {
		t.Errorf("status = %s, want failed", report.AnalysisStatus)
	}
	if report.ImageTemp != nil {
		t.Error("no fabricated reading on recognizer failure")
	}
}

func TestProcessImageRejectsNonImage(t *testing.T) {
	s := newService(&stubExtractor{}, &stubMatcher{}, 28, &memoryStore{})

	_, err := s.ProcessImage(context.Background(), []byte("not an image"), "junk.jpg")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestProcessBatchCollectsErrors(t *testing.T) {
	store := &memoryStore{}
	s := newService(&stubExtractor{temp: floatPtr(35)}, &stubMatcher{}, 28, store)

	result := s.ProcessBatch(context.Background(), []UploadFile{
		{Name: "good.png", Data: pngBytes(t)},
		{Name: "bad.png", Data: []byte("garbage")},
	})

	if len(result.Processed) != 1 {
		t.Errorf("processed = %d, want 1", len(result.Processed))
	}
	if len(result.Errors) != 1 || result.Errors[0].Filename != "bad.png" {
		t.Errorf("unexpected errors: %+v", result.Errors)
	}
}

func TestListReportsClampsLimit(t *testing.T) {
	store := &memoryStore{}
	s := newService(nil, nil, 0, store)

	cases := []struct {
		limit int
		want  int
	}{
		{0, 50},
		{-5, 50},
		{30, 30},
		{500, 100},
	}
	for _, tt := range cases {
		if _, err := s.ListReports(context.Background(), tt.limit, 0); err != nil {
			t.Fatalf("ListReports: %v", err)
		}
		if store.lastLimit != tt.want {
			t.Errorf("limit %d clamped to %d, want %d", tt.limit, store.lastLimit, tt.want)
		}
	}
}
