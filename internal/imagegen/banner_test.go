package imagegen

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRenderBanner(t *testing.T) {
	data := BannerData{
		Site:  "Walchensee",
		Foehn: "none",
		Days: []BannerDay{
			{Label: "Today", Total: 9, MaxTotal: 12, Tier: "go", TierLabel: "Kiteable"},
			{Label: "Tomorrow", Total: 5, MaxTotal: 12, Tier: "maybe", TierLabel: "Possible"},
			{Label: "Thursday", Total: -2, MaxTotal: 12, Tier: "no-go", TierLabel: "Not recommended"},
		},
	}

	out, err := RenderBanner(data)
	if err != nil {
		t.Fatalf("RenderBanner: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, BannerWidth, BannerHeight) {
		t.Fatalf("bounds = %v", img.Bounds())
	}

	for i, d := range data.Days {
		r := TileRect(i, len(data.Days))
		r32, g32, b32, _ := img.At(r.Min.X+4, r.Min.Y+4).RGBA()
		want := TierColor(d.Tier)
		if uint8(r32>>8) != want.R || uint8(g32>>8) != want.G || uint8(b32>>8) != want.B {
			t.Errorf("tile %d colour = %d,%d,%d, want %v", i, r32>>8, g32>>8, b32>>8, want)
		}
	}
}

func TestRenderBanner_NoDays(t *testing.T) {
	out, err := RenderBanner(BannerData{Site: "Walchensee"})
	if err != nil {
		t.Fatalf("RenderBanner: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestTileRect(t *testing.T) {
	for n := 1; n <= maxTiles; n++ {
		prev := image.Rectangle{}
		for i := 0; i < n; i++ {
			r := TileRect(i, n)
			if r.Empty() {
				t.Fatalf("TileRect(%d, %d) is empty", i, n)
			}
			if r.Max.X > BannerWidth-margin {
				t.Errorf("TileRect(%d, %d) = %v overflows the right margin", i, n, r)
			}
			if i > 0 && r.Min.X < prev.Max.X {
				t.Errorf("TileRect(%d, %d) overlaps the previous tile", i, n)
			}
			prev = r
		}
	}
	if !TileRect(0, 0).Empty() {
		t.Error("TileRect with no tiles should be empty")
	}
}

func TestBannerCache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := NewBannerCache(5*time.Minute, clock)

	if _, ok := cache.Get("a"); ok {
		t.Fatal("empty cache returned a hit")
	}

	cache.Set("a", []byte("png"))
	if got, ok := cache.Get("a"); !ok || string(got) != "png" {
		t.Fatalf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("Get(b) should miss for a different report")
	}

	clock.Advance(6 * time.Minute)
	if _, ok := cache.Get("a"); ok {
		t.Error("entry should have expired")
	}
}
