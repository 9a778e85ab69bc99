package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"thermaleye-service/internal/domain/thermal"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (ThermalReport) TableName() string {
	return "thermal_reports"
}

type ThermalReport struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	TowerID           *int
	TowerName         *string
	CampName          *string
	Latitude          *float64
	Longitude         *float64
	ImageTemp         *float64
	AmbientTemp       *float64
	DeltaT            *float64
	ThresholdUsed     *float64
	FaultLevel        string `gorm:"not null"`
	Priority          string `gorm:"not null"`
	VoltageKV         *int
	CapacityAmps      *int
	CommissioningYear *int
	DistanceKM        *float64
	SnapshotURL       *string
	Detections        datatypes.JSON `gorm:"type:jsonb"`
	AnalysisStatus    string         `gorm:"not null"`
	Timestamp         time.Time      `gorm:"not null"`
	CreatedAt         time.Time
}

func (r *ReportRepository) Create(ctx context.Context, report *thermal.Report) error {
	row := toRow(report)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create thermal report: %w", err)
	}
	report.ID = row.ID
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*thermal.Report, error) {
	var row ThermalReport
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return fromRow(&row), nil
}

func (r *ReportRepository) List(ctx context.Context, limit, offset int) ([]thermal.Report, error) {
	var rows []ThermalReport
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list thermal reports: %w", err)
	}

	reports := make([]thermal.Report, 0, len(rows))
	for i := range rows {
		reports = append(reports, *fromRow(&rows[i]))
	}
	return reports, nil
}

func (r *ReportRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&ThermalReport{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("delete thermal report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReportRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&ThermalReport{}, "id IN ?", ids)
	if result.Error != nil {
		return 0, fmt.Errorf("delete thermal reports: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FaultProgression returns the history of reports on the same tower with
// the same fault level, oldest first.
func (r *ReportRepository) FaultProgression(ctx context.Context, id uuid.UUID) ([]thermal.ProgressionPoint, error) {
	report, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.TowerID == nil {
		return []thermal.ProgressionPoint{}, nil
	}

	var rows []ThermalReport
	err = r.db.WithContext(ctx).
		Where("tower_id = ? AND fault_level = ?", *report.TowerID, report.FaultLevel).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fault progression: %w", err)
	}

	points := make([]thermal.ProgressionPoint, 0, len(rows))
	for _, row := range rows {
		p := thermal.ProgressionPoint{
			Date:      row.Timestamp,
			Threshold: 5.0,
		}
		if row.ImageTemp != nil {
			p.Temperature = *row.ImageTemp
		}
		if row.ThresholdUsed != nil {
			p.Threshold = *row.ThresholdUsed
		}
		if row.DeltaT != nil {
			p.DeltaT = *row.DeltaT
		}
		points = append(points, p)
	}
	return points, nil
}

func toRow(report *thermal.Report) *ThermalReport {
	row := &ThermalReport{
		ID:                report.ID,
		TowerID:           report.TowerID,
		TowerName:         report.TowerName,
		CampName:          report.CampName,
		Latitude:          report.Latitude,
		Longitude:         report.Longitude,
		ImageTemp:         report.ImageTemp,
		AmbientTemp:       report.AmbientTemp,
		DeltaT:            report.DeltaT,
		ThresholdUsed:     report.ThresholdUsed,
		FaultLevel:        string(report.FaultLevel),
		Priority:          string(report.Priority),
		VoltageKV:         report.VoltageKV,
		CapacityAmps:      report.CapacityAmps,
		CommissioningYear: report.CommissioningYear,
		DistanceKM:        report.DistanceKM,
		SnapshotURL:       report.SnapshotURL,
		AnalysisStatus:    string(report.AnalysisStatus),
		Timestamp:         report.Timestamp,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	if len(report.Detections) > 0 {
		if raw, err := json.Marshal(report.Detections); err == nil {
			row.Detections = datatypes.JSON(raw)
		}
	}
	return row
}

func fromRow(row *ThermalReport) *thermal.Report {
	report := &thermal.Report{
		ID:                row.ID,
		TowerID:           row.TowerID,
		TowerName:         row.TowerName,
		CampName:          row.CampName,
		Latitude:          row.Latitude,
		Longitude:         row.Longitude,
		ImageTemp:         row.ImageTemp,
		AmbientTemp:       row.AmbientTemp,
		DeltaT:            row.DeltaT,
		ThresholdUsed:     row.ThresholdUsed,
		FaultLevel:        thermal.FaultLevel(row.FaultLevel),
		Priority:          thermal.Priority(row.Priority),
		VoltageKV:         row.VoltageKV,
		CapacityAmps:      row.CapacityAmps,
		CommissioningYear: row.CommissioningYear,
		DistanceKM:        row.DistanceKM,
		SnapshotURL:       row.SnapshotURL,
		AnalysisStatus:    thermal.AnalysisStatus(row.AnalysisStatus),
		Timestamp:         row.Timestamp,
	}
	if len(row.Detections) > 0 {
		_ = json.Unmarshal(row.Detections, &report.Detections)
	}
	return report
}
