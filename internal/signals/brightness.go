// Package signals extracts numeric signals from the image and pressure sources.
package signals

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lox/kitecast/internal/models"
)

func decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decode: empty body: %w", models.ErrImageUnavailable)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode: %v: %w", err, models.ErrImageUnavailable)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("decode: zero-size %s image: %w", format, models.ErrImageUnavailable)
	}
	return img, format, nil
}

// Brightness returns the mean luminance of the image on a 0-255 scale.
func Brightness(data []byte) (float64, error) {
	img, _, err := decode(data)
	if err != nil {
		return 0, err
	}

	b := img.Bounds()
	var sum uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += uint64(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y)
		}
	}
	return float64(sum) / float64(b.Dx()*b.Dy()), nil
}

// BrightnessSignal never fails; decode errors become an absent signal.
func BrightnessSignal(data []byte) models.Signal {
	v, err := Brightness(data)
	if err != nil {
		return models.AbsentSignal(err.Error())
	}
	return models.PresentSignal(v)
}
