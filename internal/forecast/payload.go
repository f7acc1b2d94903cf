package forecast

// Payload mirrors the Open-Meteo forecast response. Arrays are parallel to
// their Time array; elements may be null.
type Payload struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Elevation float64      `json:"elevation"`
	Timezone  string       `json:"timezone"`
	Hourly    *HourlyArray `json:"hourly"`
	Daily     *DailyArray  `json:"daily"`
}

type HourlyArray struct {
	Time              []string   `json:"time"`
	WindSpeed         []*float64 `json:"wind_speed_10m"`
	WindDirection     []*float64 `json:"wind_direction_10m"`
	WindGust          []*float64 `json:"wind_gusts_10m"`
	CloudCover        []*float64 `json:"cloud_cover"`
	Temperature       []*float64 `json:"temperature_2m"`
	PrecipProbability []*float64 `json:"precipitation_probability"`
	UVIndex           []*float64 `json:"uv_index"`

	// Free-atmosphere temperature above the spot, the default thermal reference.
	UpperTemperature []*float64 `json:"temperature_800hPa"`
}

type DailyArray struct {
	Time             []string   `json:"time"`
	UVIndexMax       []*float64 `json:"uv_index_max"`
	SunshineDuration []*float64 `json:"sunshine_duration"`
}

// Variables requested from the provider.
var (
	HourlyVariables = []string{
		"wind_speed_10m",
		"wind_direction_10m",
		"wind_gusts_10m",
		"cloud_cover",
		"temperature_2m",
		"precipitation_probability",
		"uv_index",
		"temperature_800hPa",
	}
	DailyVariables = []string{
		"uv_index_max",
		"sunshine_duration",
	}
	ReferenceHourlyVariables = []string{
		"temperature_2m",
	}
)
