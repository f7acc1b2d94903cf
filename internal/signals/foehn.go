package signals

import (
	"fmt"
	"image"
	"math"

	"github.com/lox/kitecast/internal/models"
)

// MaskMode selects how pixels of the marked line are recognised.
type MaskMode string

const (
	MaskHSV MaskMode = "hsv"
	MaskRGB MaskMode = "rgb"
)

// DiagramCalibration describes the fixed pixel layout of the foehn chart.
// The y bands are measured from the top of the image.
type DiagramCalibration struct {
	Mask MaskMode

	// HSV double band on OpenCV's 0-179 hue scale.
	HueLowMax     float64
	HueHighMin    float64
	MinSaturation uint8
	MinValue      uint8

	// Plain RGB threshold.
	MinRed   uint8
	MaxGreen uint8
	MaxBlue  uint8

	// Width of the present-day region, counted from the leftmost marked column.
	PresentColumns int

	StrongSouthBelow float64
	LightSouthBelow  float64
	StrongNorthAbove float64
	LightNorthAbove  float64
}

func DefaultDiagramCalibration() DiagramCalibration {
	return DiagramCalibration{
		Mask:             MaskHSV,
		HueLowMax:        10,
		HueHighMin:       160,
		MinSaturation:    100,
		MinValue:         100,
		MinRed:           150,
		MaxGreen:         100,
		MaxBlue:          100,
		PresentColumns:   100,
		StrongSouthBelow: 180,
		LightSouthBelow:  220,
		StrongNorthAbove: 260,
		LightNorthAbove:  240,
	}
}

// LineReading is the raw result of reading the chart.
type LineReading struct {
	MeanY  float64
	Pixels int
	Score  int
}

// FoehnLine finds the marked line in the chart and scores its position in
// the present-day region. It returns ErrNoSignalDetected when no pixel
// matches the mask.
func FoehnLine(data []byte, cal DiagramCalibration) (LineReading, error) {
	img, _, err := decode(data)
	if err != nil {
		return LineReading{}, err
	}

	b := img.Bounds()
	minX := -1
	type point struct{ x, y int }
	var points []point
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if !cal.matches(img, x, y) {
				continue
			}
			if minX < 0 {
				minX = x
			}
			points = append(points, point{x - b.Min.X, y - b.Min.Y})
		}
	}
	if len(points) == 0 {
		return LineReading{}, fmt.Errorf("foehn diagram: %w", models.ErrNoSignalDetected)
	}

	limit := minX - b.Min.X + cal.PresentColumns
	var sum float64
	var n int
	for _, p := range points {
		if p.x >= limit {
			break // points are ordered by column
		}
		sum += float64(p.y)
		n++
	}
	meanY := sum / float64(n)

	return LineReading{MeanY: meanY, Pixels: n, Score: cal.Score(meanY)}, nil
}

// Score maps a y position to the signed foehn score. Lower y is south.
func (c DiagramCalibration) Score(y float64) int {
	switch {
	case y < c.StrongSouthBelow:
		return 2
	case y < c.LightSouthBelow:
		return 1
	case y > c.StrongNorthAbove:
		return -2
	case y > c.LightNorthAbove:
		return -1
	default:
		return 0
	}
}

func (c DiagramCalibration) matches(img image.Image, x, y int) bool {
	r16, g16, b16, _ := img.At(x, y).RGBA()
	r, g, b := uint8(r16>>8), uint8(g16>>8), uint8(b16>>8)

	if c.Mask == MaskRGB {
		return r > c.MinRed && g < c.MaxGreen && b < c.MaxBlue
	}

	h, s, v := hsv(r, g, b)
	if s < c.MinSaturation || v < c.MinValue {
		return false
	}
	return h <= c.HueLowMax || h >= c.HueHighMin
}

// hsv converts to OpenCV's 8-bit convention: hue 0-179, saturation and value 0-255.
func hsv(r, g, b uint8) (float64, uint8, uint8) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	var s float64
	if maxC > 0 {
		s = 255 * delta / maxC
	}

	var h float64
	switch {
	case delta == 0:
		h = 0
	case maxC == rf:
		h = 60 * (gf - bf) / delta
	case maxC == gf:
		h = 120 + 60*(bf-rf)/delta
	default:
		h = 240 + 60*(rf-gf)/delta
	}
	if h < 0 {
		h += 360
	}
	return h / 2, uint8(math.Round(s)), uint8(maxC)
}

// FoehnFromDiagram never fails; any problem becomes an absent reading.
func FoehnFromDiagram(data []byte, cal DiagramCalibration) models.FoehnReading {
	line, err := FoehnLine(data, cal)
	if err != nil {
		return models.AbsentFoehn(err.Error())
	}
	state := models.FoehnStateForScore(line.Score)
	return models.FoehnReading{
		Score:  line.Score,
		State:  state,
		Source: models.FoehnSourceDiagram,
		Detail: fmt.Sprintf("line at y=%.0f (%d px)", line.MeanY, line.Pixels),
		Valid:  true,
	}
}
