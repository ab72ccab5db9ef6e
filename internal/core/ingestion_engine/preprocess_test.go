package ingestion_engine

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOcrPreprocessor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			src.Set(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := DefaultOcrPreprocessor().Preprocess(buf.Bytes())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestOcrPreprocessorRejectsGarbage(t *testing.T) {
	_, err := DefaultOcrPreprocessor().Preprocess([]byte("not an image"))
	assert.Error(t, err)
}

func TestNormalizeContrastStretchesRange(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 51, 1))
	for x := 0; x <= 50; x++ {
		src.SetGray(x, 0, color.Gray{Y: uint8(100 + x)})
	}
	out := normalizeContrast(src, 0.05, 0.95)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(50, 0).Y)
	assert.Less(t, out.GrayAt(20, 0).Y, out.GrayAt(30, 0).Y)
}

func TestMedianFilterRemovesSpeckles(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range src.Pix {
		src.Pix[i] = 50
	}
	src.SetGray(2, 2, color.Gray{Y: 255})

	out := medianFilter(src, 1)
	assert.Equal(t, uint8(50), out.GrayAt(2, 2).Y)
}
