package ocr

import (
	"context"
	"image"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"thermaleye-service/internal/config"
	"thermaleye-service/internal/domain/thermal"
)

var (
	maxLabelPattern = regexp.MustCompile(`(?i)max\s*:?\s*(\d{1,3}(?:\.\d{1,2})?)`)
	unitPattern     = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,2})?)\s*(?:°\s*[CcFf]?|[CcFf]\b)`)
	numberPattern   = regexp.MustCompile(`\d{1,3}(?:\.\d{1,2})?`)
)

// Extractor reads the overlay temperature out of an inspection photo. It
// crops the configured region of interest, optionally preprocesses it,
// runs the recognizer and scores the numeric candidates.
type Extractor struct {
	recognizer Recognizer
	cfg        config.OCRConfig
	log        zerolog.Logger
}

func NewExtractor(recognizer Recognizer, cfg config.OCRConfig, log zerolog.Logger) *Extractor {
	return &Extractor{
		recognizer: recognizer,
		cfg:        cfg,
		log:        log,
	}
}

// Extract returns the measured temperature, or nil when no plausible
// reading exists. An error means the recognizer itself failed; callers
// degrade to a missing reading either way. The returned detections are
// the raw recognizer output kept for audit.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*float64, []thermal.TextDetection, error) {
	roi := e.cropROI(img)

	detections, scanned, err := e.recognize(ctx, roi)
	if err != nil {
		return nil, nil, err
	}

	candidates, labels := e.collectCandidates(detections)
	if len(candidates) == 0 {
		e.log.Debug().Int("detections", len(detections)).Msg("no temperature candidates in ROI")
		return nil, detections, nil
	}

	roiW := float64(scanned.Bounds().Dx())
	roiH := float64(scanned.Bounds().Dy())

	pickers := []func() *float64{
		func() *float64 { return pickNearLabel(candidates, labels, roiH) },
		func() *float64 { return pickUnitMarked(candidates) },
	}
	if e.cfg.Region == config.RegionTopLeft || e.cfg.Region == config.RegionTopRight {
		favorRight := e.cfg.Region == config.RegionTopRight
		pickers = append(pickers, func() *float64 { return pickFavoredSide(candidates, roiW, favorRight) })
	}
	pickers = append(pickers, func() *float64 { return pickHighestConfidence(candidates) })

	for _, pick := range pickers {
		if v := pick(); v != nil {
			return v, detections, nil
		}
	}
	return nil, detections, nil
}

// recognize runs the recognizer over the (optionally enhanced) crop. An
// enhanced pass that yields nothing falls back to the raw crop rather
// than failing outright. The image actually scanned is returned so
// geometric scoring uses matching dimensions.
func (e *Extractor) recognize(ctx context.Context, roi image.Image) ([]thermal.TextDetection, image.Image, error) {
	if e.cfg.EnhancedPreprocess {
		enhanced := e.preprocess(roi)
		detections, err := e.recognizer.ReadText(ctx, enhanced)
		if err == nil && len(detections) > 0 {
			return detections, enhanced, nil
		}
		if err != nil {
			e.log.Warn().Err(err).Msg("enhanced OCR pass failed, retrying on raw crop")
		}
	}

	detections, err := e.recognizer.ReadText(ctx, roi)
	if err != nil {
		return nil, roi, err
	}
	return detections, roi, nil
}

func (e *Extractor) cropROI(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	roiH := int(float64(height) * e.cfg.TopFraction)
	if roiH < 1 {
		roiH = 1
	}
	if roiH > height {
		roiH = height
	}

	var rect image.Rectangle
	switch e.cfg.Region {
	case config.RegionTopRight:
		roiW := int(float64(width) * e.cfg.SideFraction)
		rect = image.Rect(width-roiW, 0, width, roiH)
	case config.RegionFull:
		rect = image.Rect(0, 0, width, roiH)
	default: // top_left
		roiW := int(float64(width) * e.cfg.SideFraction)
		rect = image.Rect(0, 0, roiW, roiH)
	}

	return imaging.Crop(img, rect)
}

// collectCandidates applies the three pattern families in priority order.
// A value within 0.1 of one already registered by a higher-priority
// pattern is not re-added.
func (e *Extractor) collectCandidates(detections []thermal.TextDetection) ([]thermal.TemperatureCandidate, []thermal.TextDetection) {
	var candidates []thermal.TemperatureCandidate
	var labels []thermal.TextDetection

	registered := func(val float64) bool {
		for _, c := range candidates {
			if diff := c.Value - val; diff < 0.1 && diff > -0.1 {
				return true
			}
		}
		return false
	}

	for _, det := range detections {
		if det.Confidence < e.cfg.ConfidenceThreshold || strings.TrimSpace(det.Text) == "" {
			continue
		}
		text := strings.TrimSpace(det.Text)

		// The token anchors the row even when the numeric part fails to
		// parse out of it.
		if strings.Contains(strings.ToLower(text), "max") {
			labels = append(labels, det)
			for _, m := range maxLabelPattern.FindAllStringSubmatch(text, -1) {
				if val, ok := e.parseInRange(m[1]); ok && !registered(val) {
					candidates = append(candidates, thermal.TemperatureCandidate{
						Value:      val,
						Confidence: det.Confidence + 0.2,
						BBox:       det.BBox,
						Text:       text,
						UnitMarked: true,
					})
				}
			}
		}

		for _, m := range unitPattern.FindAllStringSubmatch(text, -1) {
			if val, ok := e.parseInRange(m[1]); ok && !registered(val) {
				candidates = append(candidates, thermal.TemperatureCandidate{
					Value:      val,
					Confidence: det.Confidence + 0.1,
					BBox:       det.BBox,
					Text:       text,
					UnitMarked: true,
				})
			}
		}

		for _, m := range numberPattern.FindAllString(text, -1) {
			if val, ok := e.parseInRange(m); ok && !registered(val) {
				candidates = append(candidates, thermal.TemperatureCandidate{
					Value:      val,
					Confidence: det.Confidence,
					BBox:       det.BBox,
					Text:       text,
					UnitMarked: hasUnitMark(text),
				})
			}
		}
	}

	return candidates, labels
}

func (e *Extractor) parseInRange(raw string) (float64, bool) {
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if val < e.cfg.TempMin || val > e.cfg.TempMax {
		return 0, false
	}
	return val, true
}

func hasUnitMark(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "°") || strings.Contains(lower, "c") || strings.Contains(lower, "f")
}

// pickNearLabel prefers the number sitting on the same row as a label
// anchor, to its right, scoring by confidence against distance in
// row-heights.
func pickNearLabel(candidates []thermal.TemperatureCandidate, labels []thermal.TextDetection, roiH float64) *float64 {
	if roiH <= 0 {
		roiH = 1
	}
	var best *float64
	bestScore := 0.0

	for _, label := range labels {
		lx, ly := label.Center()
		lyMin, lyMax := label.BBox[0].Y, label.BBox[0].Y
		for _, p := range label.BBox {
			if p.Y < lyMin {
				lyMin = p.Y
			}
			if p.Y > lyMax {
				lyMax = p.Y
			}
		}

		for _, c := range candidates {
			nx, ny := candidateCenter(c)
			sameRow := ny >= lyMin-roiH*0.05 && ny <= lyMax+roiH*0.05
			toRight := nx > lx
			if !sameRow || !toRight {
				continue
			}

			dist := ny - ly
			if dist < 0 {
				dist = -dist
			}
			if dx := nx - lx; dx > 0 {
				dist += dx
			}

			score := c.Confidence*2.0 - dist/roiH
			if best == nil || score > bestScore {
				v := c.Value
				best = &v
				bestScore = score
			}
		}
	}
	return best
}

func pickUnitMarked(candidates []thermal.TemperatureCandidate) *float64 {
	var best *thermal.TemperatureCandidate
	for i := range candidates {
		if !candidates[i].UnitMarked {
			continue
		}
		if best == nil || candidates[i].Confidence > best.Confidence {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil
	}
	v := best.Value
	return &v
}

// pickFavoredSide keeps candidates in the half of the ROI matching the
// configured region variant.
func pickFavoredSide(candidates []thermal.TemperatureCandidate, roiW float64, favorRight bool) *float64 {
	var best *thermal.TemperatureCandidate
	for i := range candidates {
		nx, _ := candidateCenter(candidates[i])
		inFavoredHalf := nx < roiW/2
		if favorRight {
			inFavoredHalf = nx >= roiW/2
		}
		if !inFavoredHalf {
			continue
		}
		if best == nil || candidates[i].Confidence > best.Confidence {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil
	}
	v := best.Value
	return &v
}

func pickHighestConfidence(candidates []thermal.TemperatureCandidate) *float64 {
	var best *thermal.TemperatureCandidate
	for i := range candidates {
		if best == nil || candidates[i].Confidence > best.Confidence {
			best = &candidates[i]
		}
	}
	if best == nil {
		return nil
	}
	v := best.Value
	return &v
}

func candidateCenter(c thermal.TemperatureCandidate) (float64, float64) {
	var sx, sy float64
	for _, p := range c.BBox {
		sx += p.X
		sy += p.Y
	}
	return sx / 4.0, sy / 4.0
}
