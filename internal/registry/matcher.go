package registry

import "math"

const earthRadiusKM = 6371

// Haversine returns the great-circle distance between two points in
// kilometers, using the mean Earth radius.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlon1 := lon1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rlon2 := lon2 * math.Pi / 180

	dlat := rlat2 - rlat1
	dlon := rlon2 - rlon1

	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Asin(math.Sqrt(a))
	return c * earthRadiusKM
}

// Nearest scans the registry for the tower closest to the given
// coordinates and enriches it with line metadata. Distance ties keep the
// first-registered tower. Returns false when the registry is empty.
func (r *Registry) Nearest(lat, lon float64) (*Match, bool) {
	if len(r.towers) == 0 {
		return nil, false
	}

	minDistance := math.Inf(1)
	var nearest *Tower

	for i := range r.towers {
		distance := Haversine(lat, lon, r.towers[i].Latitude, r.towers[i].Longitude)
		if distance < minDistance {
			minDistance = distance
			nearest = &r.towers[i]
		}
	}

	return &Match{
		Tower:      *nearest,
		DistanceKM: math.Round(minDistance*1000) / 1000,
		Metadata:   r.Metadata(nearest.Name, nearest.CampName),
	}, true
}
