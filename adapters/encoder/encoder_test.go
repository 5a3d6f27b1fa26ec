package encoder_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/adapters/decoder"
	"github.com/Skryldev/imagesizer/adapters/encoder"
	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

func checker(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 240, G: 30, B: 30, A: 255}
			if (x/4+y/4)%2 == 0 {
				c = color.NRGBA{R: 20, G: 20, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		format core.Format
		enc    core.Encoder
		dec    core.Decoder
	}{
		{core.FormatJPEG, encoder.NewJPEG(0), decoder.NewJPEG()},
		{core.FormatPNG, encoder.NewPNG(), decoder.NewPNG()},
		{core.FormatBMP, encoder.NewBMP(), decoder.NewBMP()},
		{core.FormatTIFF, encoder.NewTIFF(), decoder.NewTIFF()},
	}
	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			assert.True(t, tc.enc.CanEncode(tc.format))
			assert.True(t, tc.dec.CanDecode(tc.format))

			data, err := tc.enc.Encode(ctx, &core.ImageData{Image: checker(24, 16), Format: tc.format}, core.EncodeOptions{Quality: 90, Lossless: true})
			require.NoError(t, err)
			require.NotEmpty(t, data)

			out, err := tc.dec.Decode(ctx, bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tc.format, out.Format)
			assert.Equal(t, 24, out.Meta.Width)
			assert.Equal(t, 16, out.Meta.Height)
		})
	}
}

func TestJPEG_QualityChangesSize(t *testing.T) {
	enc := encoder.NewJPEG(85)
	img := &core.ImageData{Image: checker(96, 96), Format: core.FormatJPEG}

	hi, err := enc.Encode(context.Background(), img, core.EncodeOptions{Quality: 95})
	require.NoError(t, err)
	lo, err := enc.Encode(context.Background(), img, core.EncodeOptions{Quality: 10})
	require.NoError(t, err)
	def, err := enc.Encode(context.Background(), img, core.EncodeOptions{})
	require.NoError(t, err)

	assert.Less(t, len(lo), len(def))
	assert.Less(t, len(def), len(hi))
}

func TestEncode_EmptyInput(t *testing.T) {
	for _, enc := range []core.Encoder{encoder.NewJPEG(0), encoder.NewPNG(), encoder.NewBMP(), encoder.NewTIFF()} {
		_, err := enc.Encode(context.Background(), &core.ImageData{}, core.EncodeOptions{})
		assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryEncode))
	}
}
