package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"thermaleye-service/internal/analysis"
	"thermaleye-service/internal/domain/thermal"
	"thermaleye-service/internal/exif"
	"thermaleye-service/internal/registry"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// TemperatureExtractor reads the overlay temperature out of an image.
type TemperatureExtractor interface {
	Extract(ctx context.Context, img image.Image) (*float64, []thermal.TextDetection, error)
}

// AssetMatcher finds the nearest registered asset for a coordinate pair.
type AssetMatcher interface {
	Nearest(lat, lon float64) (*registry.Match, bool)
}

// AmbientSource supplies the baseline temperature for the delta.
type AmbientSource interface {
	AmbientTemperature(ctx context.Context) float64
}

// ReportStore persists classified readings.
type ReportStore interface {
	Create(ctx context.Context, report *thermal.Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*thermal.Report, error)
	List(ctx context.Context, limit, offset int) ([]thermal.Report, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error)
	FaultProgression(ctx context.Context, id uuid.UUID) ([]thermal.ProgressionPoint, error)
}

// SnapshotStore keeps the analyzed image bytes; optional.
type SnapshotStore interface {
	UploadSnapshot(ctx context.Context, reportID uuid.UUID, filename string, data []byte) (string, error)
}

type ReportService struct {
	extractor     TemperatureExtractor
	matcher       AssetMatcher
	ambient       AmbientSource
	store         ReportStore
	snapshots     SnapshotStore
	referenceYear int
	log           zerolog.Logger
}

func NewReportService(
	extractor TemperatureExtractor,
	matcher AssetMatcher,
	ambient AmbientSource,
	store ReportStore,
	snapshots SnapshotStore,
	referenceYear int,
	log zerolog.Logger,
) *ReportService {
	return &ReportService{
		extractor:     extractor,
		matcher:       matcher,
		ambient:       ambient,
		store:         store,
		snapshots:     snapshots,
		referenceYear: referenceYear,
		log:           log,
	}
}

// ProcessImage runs the full pipeline over one uploaded photo: decode,
// EXIF coordinates, temperature extraction and asset matching in
// parallel, dynamic threshold, classification, persistence. Missing
// readings and missing matches degrade the result, they never fail it.
func (s *ReportService) ProcessImage(ctx context.Context, imageBytes []byte, filename string) (*thermal.Report, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: not a decodable image: %v", ErrInvalidInput, err)
	}

	coords, hasCoords := exif.Coordinates(imageBytes)

	var (
		imageTemp  *float64
		detections []thermal.TextDetection
		match      *registry.Match
		ambientC   float64
	)

	// Extraction, matching and the weather lookup are independent.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		temp, dets, err := s.extractor.Extract(gctx, img)
		if err != nil {
			// Recognizer failure degrades to a missing reading.
			s.log.Warn().Err(err).Str("filename", filename).Msg("temperature extraction failed")
			return nil
		}
		imageTemp = temp
		detections = dets
		return nil
	})
	g.Go(func() error {
		if !hasCoords {
			return nil
		}
		if m, ok := s.matcher.Nearest(coords.Latitude, coords.Longitude); ok {
			match = m
		}
		return nil
	})
	g.Go(func() error {
		ambientC = s.ambient.AmbientTemperature(gctx)
		return nil
	})
	_ = g.Wait()

	report := s.classify(imageTemp, ambientC, match)
	report.ID = uuid.New()
	report.Timestamp = time.Now()
	report.Detections = detections
	if hasCoords {
		report.Latitude = &coords.Latitude
		report.Longitude = &coords.Longitude
	}

	if s.snapshots != nil {
		url, err := s.snapshots.UploadSnapshot(ctx, report.ID, filename, imageBytes)
		if err != nil {
			s.log.Warn().Err(err).Str("report_id", report.ID.String()).Msg("snapshot upload failed")
		} else {
			report.SnapshotURL = &url
		}
	}

	if err := s.store.Create(ctx, report); err != nil {
		s.log.Error().Err(err).Str("filename", filename).Msg("failed to store report")
		return nil, fmt.Errorf("store report: %w", err)
	}

	logEvent := s.log.Info().
		Str("report_id", report.ID.String()).
		Str("fault_level", string(report.FaultLevel)).
		Str("priority", string(report.Priority)).
		Str("status", string(report.AnalysisStatus))
	if report.ImageTemp != nil {
		logEvent = logEvent.Float64("image_temp", *report.ImageTemp)
	}
	if report.TowerName != nil {
		logEvent = logEvent.Str("tower", *report.TowerName)
	}
	logEvent.Msg("processed inspection image")

	return report, nil
}

// classify combines the pipeline outputs into a report, applying defaults
// per stage: no match uses the default threshold and MEDIUM priority, no
// reading caps the result at NORMAL and marks the analysis failed.
func (s *ReportService) classify(imageTemp *float64, ambientC float64, match *registry.Match) *thermal.Report {
	report := &thermal.Report{
		FaultLevel:     thermal.FaultNormal,
		Priority:       thermal.PriorityMedium,
		AnalysisStatus: thermal.StatusFailed,
	}

	if match != nil {
		report.TowerID = &match.Tower.ID
		report.TowerName = &match.Tower.Name
		report.CampName = &match.Metadata.CampName
		report.DistanceKM = &match.DistanceKM
		report.VoltageKV = &match.Metadata.VoltageKV
		report.CapacityAmps = &match.Metadata.CapacityAmps
		report.CommissioningYear = &match.Metadata.CommissioningYear
		report.Priority = match.Metadata.Priority
	}

	threshold := analysis.DefaultThreshold
	if imageTemp == nil {
		report.ThresholdUsed = &threshold
		return report
	}

	delta := *imageTemp - ambientC
	report.ImageTemp = imageTemp
	report.AmbientTemp = &ambientC
	report.DeltaT = &delta

	if match != nil {
		threshold = analysis.DynamicThreshold(
			match.Metadata.VoltageKV,
			match.Metadata.CapacityAmps,
			match.Metadata.CommissioningYear,
			s.referenceYear,
		)
		report.FaultLevel = analysis.ClassifyFault(delta, threshold, report.Priority)
		report.AnalysisStatus = thermal.StatusSuccess
	} else {
		// No asset context: the default threshold still drives the full
		// classification, under the default MEDIUM priority.
		report.FaultLevel = analysis.ClassifyFault(delta, threshold, thermal.PriorityMedium)
		report.AnalysisStatus = thermal.StatusPartial
	}
	report.ThresholdUsed = &threshold

	return report
}

// UploadFile is one member of a batch upload.
type UploadFile struct {
	Name string
	Data []byte
}

// BatchResult summarizes a batch run; one bad file never aborts the rest.
type BatchResult struct {
	Processed []thermal.Report `json:"processed"`
	Errors    []BatchError     `json:"errors,omitempty"`
}

type BatchError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

func (s *ReportService) ProcessBatch(ctx context.Context, files []UploadFile) BatchResult {
	var result BatchResult
	for _, f := range files {
		report, err := s.ProcessImage(ctx, f.Data, f.Name)
		if err != nil {
			result.Errors = append(result.Errors, BatchError{Filename: f.Name, Error: err.Error()})
			continue
		}
		result.Processed = append(result.Processed, *report)
	}
	return result
}

func (s *ReportService) GetReport(ctx context.Context, id uuid.UUID) (*thermal.Report, error) {
	report, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

func (s *ReportService) ListReports(ctx context.Context, limit, offset int) ([]thermal.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.List(ctx, limit, offset)
}

func (s *ReportService) DeleteReport(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete report: %w", err)
	}
	s.log.Info().Str("report_id", id.String()).Msg("deleted report")
	return nil
}

func (s *ReportService) DeleteReports(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no report ids given", ErrInvalidInput)
	}
	deleted, err := s.store.DeleteBatch(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete reports: %w", err)
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted_count", deleted).Msg("deleted reports")
	}
	return deleted, nil
}

func (s *ReportService) FaultProgression(ctx context.Context, id uuid.UUID) ([]thermal.ProgressionPoint, error) {
	points, err := s.store.FaultProgression(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("fault progression: %w", err)
	}
	return points, nil
}
