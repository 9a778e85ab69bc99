package ocr

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// preprocess runs the enhanced chain: grayscale, histogram equalization,
// sharpening and Lanczos upscaling, plus the optional morphology and
// adaptive-threshold passes.
func (e *Extractor) preprocess(src image.Image) image.Image {
	gray := toGray(imaging.Grayscale(src))
	gray = equalize(gray)

	var img image.Image = imaging.Sharpen(gray, e.cfg.SharpnessFactor)

	bounds := img.Bounds()
	newW := int(float64(bounds.Dx()) * e.cfg.ScaleFactor)
	newH := int(float64(bounds.Dy()) * e.cfg.ScaleFactor)
	if newW > 0 && newH > 0 {
		img = imaging.Resize(img, newW, newH, imaging.Lanczos)
	}

	if e.cfg.UseMorphology {
		g := toGray(img)
		g = morphClose(g)
		img = morphOpen(g)
	}
	if e.cfg.UseAdaptiveThreshold {
		img = adaptiveThreshold(toGray(img), 11, 2)
	}

	return img
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)
	return gray
}

// equalize spreads the luminance histogram over the full 8-bit range.
func equalize(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return src
	}

	var hist [256]int
	for _, v := range src.Pix {
		hist[v]++
	}

	var lut [256]uint8
	cum := 0
	for i := 0; i < 256; i++ {
		cum += hist[i]
		lut[i] = uint8(cum * 255 / total)
	}

	out := image.NewGray(bounds)
	for i, v := range src.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// morphClose runs dilation followed by erosion with a 2x2 kernel.
func morphClose(src *image.Gray) *image.Gray {
	return erode(dilate(src))
}

// morphOpen runs erosion followed by dilation with a 2x2 kernel.
func morphOpen(src *image.Gray) *image.Gray {
	return dilate(erode(src))
}

func dilate(src *image.Gray) *image.Gray {
	return neighborhood(src, func(a, b, c, d uint8) uint8 {
		return max4(a, b, c, d)
	})
}

func erode(src *image.Gray) *image.Gray {
	return neighborhood(src, func(a, b, c, d uint8) uint8 {
		return min4(a, b, c, d)
	})
}

func neighborhood(src *image.Gray, combine func(a, b, c, d uint8) uint8) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)

	at := func(x, y int) uint8 {
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return src.Pix[y*src.Stride+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = combine(at(x, y), at(x+1, y), at(x, y+1), at(x+1, y+1))
		}
	}
	return out
}

// adaptiveThreshold binarizes against a Gaussian-weighted local mean,
// block x block window, offset by c.
func adaptiveThreshold(src *image.Gray, block int, c float64) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(bounds)
	if w == 0 || h == 0 {
		return out
	}

	kernel := gaussianKernel(block)
	half := block / 2

	// Separable convolution: rows then columns.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -half; k <= half; k++ {
				xi := clamp(x+k, 0, w-1)
				sum += kernel[k+half] * float64(src.Pix[y*src.Stride+xi])
			}
			tmp[y*w+x] = sum
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for k := -half; k <= half; k++ {
				yi := clamp(y+k, 0, h-1)
				mean += kernel[k+half] * tmp[yi*w+x]
			}
			if float64(src.Pix[y*src.Stride+x]) > mean-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	kernel := make([]float64, size)
	half := size / 2
	var sum float64
	for i := 0; i < size; i++ {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max4(a, b, c, d uint8) uint8 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}

func min4(a, b, c, d uint8) uint8 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	if d < m {
		m = d
	}
	return m
}
