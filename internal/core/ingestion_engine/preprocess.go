package ingestion_engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImagePreprocessor prepares an image for recognition. Failures are not fatal:
// the caller falls back to the original bytes.
type ImagePreprocessor interface {
	Preprocess(data []byte) ([]byte, error)
}

// OcrPreprocessor applies grayscale, a percentile contrast stretch, sharpening
// and a median denoise, and re-encodes the result as PNG.
type OcrPreprocessor struct {
	LowClip      float64
	HighClip     float64
	SharpenSigma float64
	MedianRadius int
}

func DefaultOcrPreprocessor() OcrPreprocessor {
	return OcrPreprocessor{LowClip: 0.05, HighClip: 0.95, SharpenSigma: 1.5, MedianRadius: 1}
}

func (p OcrPreprocessor) Preprocess(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	gray := toGray(imaging.Grayscale(img))
	gray = normalizeContrast(gray, p.LowClip, p.HighClip)
	sharp := toGray(imaging.Sharpen(gray, p.SharpenSigma))
	clean := medianFilter(sharp, p.MedianRadius)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, clean, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// normalizeContrast stretches the intensities between the low and high
// percentiles to the full range, clipping both tails.
func normalizeContrast(src *image.Gray, low, high float64) *image.Gray {
	var hist [256]int
	for _, v := range src.Pix {
		hist[v]++
	}
	total := len(src.Pix)
	lo, hi := percentile(hist, total, low), percentile(hist, total, high)
	dst := image.NewGray(src.Rect)
	if hi <= lo {
		copy(dst.Pix, src.Pix)
		return dst
	}
	scale := 255.0 / float64(hi-lo)
	for i, v := range src.Pix {
		switch {
		case int(v) <= lo:
			dst.Pix[i] = 0
		case int(v) >= hi:
			dst.Pix[i] = 255
		default:
			dst.Pix[i] = uint8(float64(int(v)-lo)*scale + 0.5)
		}
	}
	return dst
}

func percentile(hist [256]int, total int, q float64) int {
	target := int(float64(total) * q)
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > target {
			return v
		}
	}
	return 255
}

// medianFilter replaces every pixel with the median of its (2r+1)^2 window,
// clamping at the borders.
func medianFilter(src *image.Gray, r int) *image.Gray {
	if r <= 0 {
		return src
	}
	b := src.Bounds()
	dst := image.NewGray(b)
	window := make([]uint8, 0, (2*r+1)*(2*r+1))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				yy := clamp(y+dy, b.Min.Y, b.Max.Y-1)
				for dx := -r; dx <= r; dx++ {
					xx := clamp(x+dx, b.Min.X, b.Max.X-1)
					window = append(window, src.GrayAt(xx, yy).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			dst.SetGray(x, y, color.Gray{Y: window[len(window)/2]})
		}
	}
	return dst
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
