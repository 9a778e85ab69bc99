package thermal

import (
	"time"

	"github.com/google/uuid"
)

type FaultLevel string

const (
	FaultNormal   FaultLevel = "NORMAL"
	FaultWarning  FaultLevel = "WARNING"
	FaultCritical FaultLevel = "CRITICAL"
)

type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
)

// AnalysisStatus reports how much of the pipeline produced usable data
// for a given image.
type AnalysisStatus string

const (
	StatusSuccess AnalysisStatus = "success" // reading + asset match
	StatusPartial AnalysisStatus = "partial" // reading only, defaults applied
	StatusFailed  AnalysisStatus = "failed"  // no reading
)

// Point is a pixel coordinate inside the analyzed region of interest.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextDetection is one raw result from the optical recognizer: the
// bounding quad of the text, the recognized string and its confidence.
type TextDetection struct {
	BBox       [4]Point `json:"bbox"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
}

// Center returns the centroid of the detection's bounding quad.
func (d TextDetection) Center() (float64, float64) {
	var sx, sy float64
	for _, p := range d.BBox {
		sx += p.X
		sy += p.Y
	}
	return sx / 4.0, sy / 4.0
}

// TemperatureCandidate is a numeric value pulled out of a detection by
// pattern matching, carrying an adjusted confidence and its provenance.
type TemperatureCandidate struct {
	Value      float64
	Confidence float64
	BBox       [4]Point
	Text       string
	UnitMarked bool
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Report is one classified inspection reading. Fault level and priority
// always carry a value; everything else is absent when the corresponding
// pipeline stage produced nothing.
type Report struct {
	ID                uuid.UUID       `json:"id"`
	TowerID           *int            `json:"tower_id,omitempty"`
	TowerName         *string         `json:"tower_name,omitempty"`
	CampName          *string         `json:"camp_name,omitempty"`
	Latitude          *float64        `json:"latitude,omitempty"`
	Longitude         *float64        `json:"longitude,omitempty"`
	ImageTemp         *float64        `json:"image_temp,omitempty"`
	AmbientTemp       *float64        `json:"ambient_temp,omitempty"`
	DeltaT            *float64        `json:"delta_t,omitempty"`
	ThresholdUsed     *float64        `json:"threshold_used,omitempty"`
	FaultLevel        FaultLevel      `json:"fault_level"`
	Priority          Priority        `json:"priority"`
	VoltageKV         *int            `json:"voltage_kv,omitempty"`
	CapacityAmps      *int            `json:"capacity_amps,omitempty"`
	CommissioningYear *int            `json:"commissioning_year,omitempty"`
	DistanceKM        *float64        `json:"distance_km,omitempty"`
	SnapshotURL       *string         `json:"snapshot_url,omitempty"`
	Detections        []TextDetection `json:"detections,omitempty"`
	AnalysisStatus    AnalysisStatus  `json:"analysis_status"`
	Timestamp         time.Time       `json:"timestamp"`
}

// ProgressionPoint is one sample in the fault history of a tower, used
// by the progression chart.
type ProgressionPoint struct {
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
	Threshold   float64   `json:"threshold"`
	DeltaT      float64   `json:"delta_t"`
}
