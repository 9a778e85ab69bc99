package analysis

import "thermaleye-service/internal/domain/thermal"

// ClassifyFault maps a temperature excess onto a fault level. A delta at
// or below the threshold is NORMAL even when negative. Above it, critical
// assets and deltas beyond twice the threshold escalate to CRITICAL.
func ClassifyFault(deltaT, threshold float64, priority thermal.Priority) thermal.FaultLevel {
	if deltaT <= threshold {
		return thermal.FaultNormal
	}
	if priority == thermal.PriorityCritical || deltaT > threshold*2 {
		return thermal.FaultCritical
	}
	return thermal.FaultWarning
}

// DerivePriority ranks an asset by its electrical characteristics.
func DerivePriority(voltageKV, capacityAmps int) thermal.Priority {
	if voltageKV >= 220 {
		return thermal.PriorityCritical
	}
	if capacityAmps > 1000 {
		return thermal.PriorityHigh
	}
	return thermal.PriorityMedium
}
