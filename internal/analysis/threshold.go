package analysis

// DefaultThreshold is applied when no registry metadata exists for the
// inspected asset.
const DefaultThreshold = 5.0

// minThreshold is the floor below which the dynamic threshold never drops.
const minThreshold = 2.0

// DynamicThreshold computes the per-asset alert threshold in degrees C.
// Higher voltage classes start from a larger base, while equipment age and
// current capacity both tighten it. Pure; recomputed on every call.
func DynamicThreshold(voltageKV, capacityAmps, commissioningYear, referenceYear int) float64 {
	base := 5.0
	if voltageKV >= 220 {
		base = 8.0
	}

	ageAdjustment := float64(referenceYear-commissioningYear) * 0.1
	if ageAdjustment > 2.0 {
		ageAdjustment = 2.0
	}

	capacityAdjustment := float64(capacityAmps) / 1000.0

	threshold := base - ageAdjustment - capacityAdjustment
	if threshold < minThreshold {
		return minThreshold
	}
	return threshold
}
