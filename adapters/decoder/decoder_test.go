package decoder_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imagesizer/adapters/decoder"
	"github.com/Skryldev/imagesizer/core"
	apperrors "github.com/Skryldev/imagesizer/errors"
)

func TestDecode_Garbage(t *testing.T) {
	decoders := []core.Decoder{decoder.NewJPEG(), decoder.NewPNG(), decoder.NewWebP(), decoder.NewBMP(), decoder.NewTIFF()}
	for _, d := range decoders {
		_, err := d.Decode(context.Background(), strings.NewReader("not an image"))
		assert.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDecode))
	}
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := decoder.NewPNG().Decode(ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanDecode(t *testing.T) {
	assert.True(t, decoder.NewWebP().CanDecode(core.FormatWebP))
	assert.False(t, decoder.NewWebP().CanDecode(core.FormatPNG))
	assert.False(t, decoder.NewJPEG().CanDecode(core.FormatGIF))
}

func TestDecode_PNGMetadata(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 7, 3))
	src.Set(1, 1, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := decoder.NewPNG().Decode(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, out.Format)
	assert.Equal(t, 7, out.Meta.Width)
	assert.Equal(t, 3, out.Meta.Height)
	assert.True(t, out.Meta.HasAlpha)
	assert.Equal(t, core.ColorSpaceRGBA, out.Meta.ColorSpace)
	assert.IsType(t, &image.NRGBA{}, out.Image)
}
