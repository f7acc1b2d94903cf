// Package imagegen renders the shareable advisory banner.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Open Graph image dimensions.
const (
	BannerWidth  = 1200
	BannerHeight = 630
)

const (
	margin   = 60
	tileTop  = 190
	tileBot  = 540
	tileGap  = 30
	maxTiles = 7
)

type BannerDay struct {
	Label     string // "Today", "Tomorrow", weekday
	Total     int
	MaxTotal  int
	Tier      string // go, maybe, no-go
	TierLabel string
}

type BannerData struct {
	Site  string
	Foehn string
	Days  []BannerDay
}

var (
	colorGo      = color.RGBA{46, 160, 67, 255}
	colorMaybe   = color.RGBA{219, 160, 40, 255}
	colorNoGo    = color.RGBA{190, 60, 60, 255}
	colorUnknown = color.RGBA{90, 90, 100, 255}
	white        = color.RGBA{255, 255, 255, 255}
	lightGray    = color.RGBA{200, 200, 210, 255}
)

// TierColor is the tile colour for a tier name.
func TierColor(tier string) color.RGBA {
	switch tier {
	case "go":
		return colorGo
	case "maybe":
		return colorMaybe
	case "no-go":
		return colorNoGo
	default:
		return colorUnknown
	}
}

// TileRect returns the rectangle of day tile i out of n.
func TileRect(i, n int) image.Rectangle {
	if n <= 0 {
		return image.Rectangle{}
	}
	w := (BannerWidth - 2*margin - (n-1)*tileGap) / n
	x0 := margin + i*(w+tileGap)
	return image.Rect(x0, tileTop, x0+w, tileBot)
}

// RenderBanner draws one coloured tile per day with its score and tier.
func RenderBanner(data BannerData) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, BannerWidth, BannerHeight))

	for y := 0; y < BannerHeight; y++ {
		progress := float64(y) / float64(BannerHeight)
		c := color.RGBA{uint8(20 + progress*10), uint8(28 + progress*20), uint8(48 + progress*30), 255}
		for x := 0; x < BannerWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	drawText(img, data.Site, margin, 50, 5, white)
	if data.Foehn != "" {
		drawText(img, "Foehn: "+data.Foehn, margin, 130, 3, lightGray)
	}

	days := data.Days
	if len(days) > maxTiles {
		days = days[:maxTiles]
	}
	for i, d := range days {
		r := TileRect(i, len(days))
		fillRect(img, r, TierColor(d.Tier))

		cx := r.Min.X + r.Dx()/2
		drawCentered(img, d.Label, cx, r.Min.Y+30, 3, white)
		drawCentered(img, fmt.Sprintf("%d/%d", d.Total, d.MaxTotal), cx, r.Min.Y+130, 6, white)
		drawCentered(img, d.TierLabel, cx, r.Max.Y-80, 3, white)
	}

	if len(days) == 0 {
		drawText(img, "No forecast available", margin, tileTop+100, 4, lightGray)
	}

	drawText(img, "kitecast", margin, BannerHeight-60, 3, lightGray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode banner: %w", err)
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func textWidth(text string, scale int) int {
	return font.MeasureString(basicfont.Face7x13, text).Ceil() * scale
}

func drawCentered(img *image.RGBA, text string, cx, y, scale int, col color.RGBA) {
	drawText(img, text, cx-textWidth(text, scale)/2, y, scale, col)
}

// drawText renders text with the 7x13 bitmap face into a scratch image and
// copies it scaled up by nearest neighbour. (x, y) is the top-left corner.
func drawText(img *image.RGBA, text string, x, y, scale int, col color.RGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: face.Metrics().Ascent},
	}
	d.DrawString(text)

	bounds := img.Bounds()
	for sy := 0; sy < h*scale; sy++ {
		for sx := 0; sx < w*scale; sx++ {
			c := small.RGBAAt(sx/scale, sy/scale)
			if c.A == 0 {
				continue
			}
			p := image.Pt(x+sx, y+sy)
			if p.In(bounds) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

// BannerCache holds the last rendered banner for one report.
type BannerCache struct {
	mu        sync.RWMutex
	key       string
	data      []byte
	expiresAt time.Time
	ttl       time.Duration
	clock     clockwork.Clock
}

func NewBannerCache(ttl time.Duration, clock clockwork.Clock) *BannerCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BannerCache{ttl: ttl, clock: clock}
}

// Get returns the cached banner if it was rendered for key and has not expired.
func (c *BannerCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.data == nil || c.key != key || c.clock.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *BannerCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.key = key
	c.data = data
	c.expiresAt = c.clock.Now().Add(c.ttl)
}
