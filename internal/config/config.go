// Package config holds the command line and environment settings.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/scoring"
	"github.com/lox/kitecast/internal/signals"
)

// Config is embedded into the kong CLI. Every flag can also be set through
// its KITECAST_* environment variable.
type Config struct {
	LogFormat string `help:"Log output format." enum:"text,json" default:"text" env:"KITECAST_LOG_FORMAT"`
	LogLevel  string `help:"Minimum log level." enum:"debug,info,warn,error" default:"info" env:"KITECAST_LOG_LEVEL"`
	DB        string `help:"Path to the SQLite database." default:"data/kitecast.db" env:"KITECAST_DB"`

	SiteName     string  `help:"Name of the spot." default:"Reschensee" env:"KITECAST_SITE_NAME"`
	Latitude     float64 `help:"Spot latitude." default:"46.836" env:"KITECAST_LATITUDE"`
	Longitude    float64 `help:"Spot longitude." default:"10.508" env:"KITECAST_LONGITUDE"`
	Timezone     string  `help:"IANA timezone of the spot." default:"Europe/Berlin" env:"KITECAST_TIMEZONE"`
	RefLatitude  float64 `help:"Latitude of an elevated reference point such as a nearby summit. Unset uses the 800 hPa temperature above the spot." env:"KITECAST_REF_LATITUDE"`
	RefLongitude float64 `help:"Longitude of the elevated reference point." env:"KITECAST_REF_LONGITUDE"`
	RefElevation float64 `help:"Elevation of the reference point in metres, 0 for the terrain height." env:"KITECAST_REF_ELEVATION"`

	ForecastURL string        `help:"Open-Meteo forecast endpoint." default:"https://api.open-meteo.com/v1/forecast" env:"KITECAST_FORECAST_URL"`
	WebcamURL   string        `help:"Webcam image URL (http, https or ftp). Empty disables the webcam." default:"https://images-webcams.windy.com/48/1652791148/current/full/1652791148.jpg" env:"KITECAST_WEBCAM_URL"`
	DiagramURL  string        `help:"Foehn diagram image URL. Empty disables the diagram." env:"KITECAST_DIAGRAM_URL"`
	Timeout     time.Duration `help:"Timeout for each upstream source." default:"10s" env:"KITECAST_TIMEOUT"`
	Retries     int           `help:"Retries for rate limited forecast requests." default:"0" env:"KITECAST_RETRIES"`
	RetryWait   time.Duration `help:"Initial wait between forecast retries." default:"2s" env:"KITECAST_RETRY_WAIT"`

	Days        int    `help:"Days to score, including today." default:"3" env:"KITECAST_DAYS"`
	Policy      string `help:"Scoring policy." enum:"compact,classic" default:"compact" env:"KITECAST_POLICY"`
	StoreScores bool   `help:"Store every day score for feedback correlation." env:"KITECAST_STORE_SCORES"`

	PressureSouth     float64 `help:"Pressure at the south station in hPa, 0 when unknown." env:"KITECAST_PRESSURE_SOUTH"`
	PressureNorth     float64 `help:"Pressure at the north station in hPa, 0 when unknown." env:"KITECAST_PRESSURE_NORTH"`
	PressureSouthName string  `help:"South station name." default:"Bozen" env:"KITECAST_PRESSURE_SOUTH_NAME"`
	PressureNorthName string  `help:"North station name." default:"Innsbruck" env:"KITECAST_PRESSURE_NORTH_NAME"`
	PressureLight     float64 `help:"Differential in hPa for light foehn." default:"4" env:"KITECAST_PRESSURE_LIGHT"`
	PressureStrong    float64 `help:"Differential in hPa for strong foehn." default:"6" env:"KITECAST_PRESSURE_STRONG"`

	DiagramMask           string `help:"Pixel mask for the diagram line." enum:"hsv,rgb" default:"hsv" env:"KITECAST_DIAGRAM_MASK"`
	DiagramPresentColumns int    `help:"Width in pixels of the present-day region of the diagram." default:"100" env:"KITECAST_DIAGRAM_PRESENT_COLUMNS"`

	OpenAIKey   string `help:"OpenAI API key for written summaries." env:"OPENAI_API_KEY"`
	OpenAIModel string `help:"OpenAI chat model." default:"gpt-4o-mini" env:"KITECAST_OPENAI_MODEL"`
}

// Validate is called by kong after parsing.
func (c *Config) Validate() error {
	var errs []error
	if c.Days < 1 || c.Days > 14 {
		errs = append(errs, fmt.Errorf("days must be between 1 and 14, got %d", c.Days))
	}
	if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
		errs = append(errs, fmt.Errorf("invalid coordinates %.3f,%.3f", c.Latitude, c.Longitude))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Retries < 0 {
		errs = append(errs, errors.New("retries must not be negative"))
	}
	if c.PressureLight <= 0 || c.PressureStrong < c.PressureLight {
		errs = append(errs, fmt.Errorf("pressure bands must satisfy 0 < light <= strong, got %.1f and %.1f", c.PressureLight, c.PressureStrong))
	}
	if (c.RefLatitude == 0) != (c.RefLongitude == 0) {
		errs = append(errs, errors.New("set both ref-latitude and ref-longitude, or neither"))
	}
	if (c.PressureSouth == 0) != (c.PressureNorth == 0) {
		errs = append(errs, errors.New("set both pressure-south and pressure-north, or neither"))
	}
	if c.DiagramPresentColumns <= 0 {
		errs = append(errs, errors.New("diagram-present-columns must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	return errors.Join(errs...)
}

func (c *Config) Site() models.Site {
	return models.Site{
		Name:         c.SiteName,
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		Timezone:     c.Timezone,
		RefLatitude:  c.RefLatitude,
		RefLongitude: c.RefLongitude,
		RefElevation: c.RefElevation,
	}
}

// PressurePair returns nil when no pressures are configured.
func (c *Config) PressurePair() *models.PressurePair {
	if c.PressureSouth == 0 || c.PressureNorth == 0 {
		return nil
	}
	return &models.PressurePair{
		South:     c.PressureSouth,
		North:     c.PressureNorth,
		SouthName: c.PressureSouthName,
		NorthName: c.PressureNorthName,
	}
}

func (c *Config) Calibration() signals.DiagramCalibration {
	cal := signals.DefaultDiagramCalibration()
	cal.Mask = signals.MaskMode(c.DiagramMask)
	cal.PresentColumns = c.DiagramPresentColumns
	return cal
}

// Advisory builds the evaluator configuration.
func (c *Config) Advisory() (advisory.Config, error) {
	policy, err := scoring.PolicyByName(c.Policy)
	if err != nil {
		return advisory.Config{}, err
	}
	return advisory.Config{
		Site:          c.Site(),
		Days:          c.Days,
		WebcamURL:     c.WebcamURL,
		DiagramURL:    c.DiagramURL,
		Timeout:       c.Timeout,
		Policy:        policy,
		Calibration:   c.Calibration(),
		PressureBands: signals.PressureBands{Light: c.PressureLight, Strong: c.PressureStrong},
		Pressure:      c.PressurePair(),
	}, nil
}
