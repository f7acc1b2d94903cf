package api

import (
	"net/http"

	"github.com/lox/kitecast/internal/imagegen"
	"github.com/lox/kitecast/internal/narrative"
)

// handleBanner serves the share image for the current advisory. When the
// forecast is unavailable a banner without day tiles is returned with 503.
func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	report, err := s.evaluator.Evaluate(r.Context())
	if err != nil {
		s.logger.Error("evaluate for banner", "error", err)
		png, rerr := imagegen.RenderBanner(imagegen.BannerData{Site: "Forecast unavailable"})
		if rerr != nil {
			http.Error(w, "banner unavailable", http.StatusServiceUnavailable)
			return
		}
		writePNG(w, http.StatusServiceUnavailable, png, "no-store")
		return
	}

	key := report.Fingerprint()
	if png, ok := s.banners.Get(key); ok {
		writePNG(w, http.StatusOK, png, "public, max-age=300")
		return
	}

	data := imagegen.BannerData{Site: report.Site}
	if report.Foehn.Valid {
		data.Foehn = report.Foehn.Label()
	}
	for _, d := range report.Days {
		data.Days = append(data.Days, imagegen.BannerDay{
			Label:     narrative.DayLabel(d.Offset, d.Date),
			Total:     d.Total,
			MaxTotal:  report.MaxTotal,
			Tier:      d.Tier.Name,
			TierLabel: d.Tier.Label,
		})
	}

	png, err := imagegen.RenderBanner(data)
	if err != nil {
		s.logger.Error("render banner", "error", err)
		http.Error(w, "banner unavailable", http.StatusInternalServerError)
		return
	}
	s.banners.Set(key, png)
	writePNG(w, http.StatusOK, png, "public, max-age=300")
}

func writePNG(w http.ResponseWriter, status int, png []byte, cacheControl string) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	w.Write(png)
}
