package exif

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"

	"thermaleye-service/internal/domain/thermal"
)

// Coordinates pulls the GPS position out of an image's EXIF block.
// Photos without location metadata return ok=false; that is the common
// case for exported thermal stills, not an error.
func Coordinates(imageBytes []byte) (*thermal.Coordinates, bool) {
	meta, err := exif.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, false
	}

	lat, lon, err := meta.LatLong()
	if err != nil {
		return nil, false
	}

	return &thermal.Coordinates{Latitude: lat, Longitude: lon}, true
}
