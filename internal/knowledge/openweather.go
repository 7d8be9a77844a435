package knowledge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// openWeatherBaseURL is the OpenWeatherMap current-weather endpoint.
const openWeatherBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeather retrieves current weather readings from OpenWeatherMap.
// It stays disabled until an API key is configured.
type OpenWeather struct {
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	enabled    bool
	httpClient *http.Client
}

// NewOpenWeather creates the OpenWeatherMap source. A non-empty apiKey
// enables it immediately; otherwise it reports LookupDisabled until
// configured.
func NewOpenWeather(logger *slog.Logger, apiKey string) *OpenWeather {
	return &OpenWeather{
		logger:  logger,
		baseURL: openWeatherBaseURL,
		apiKey:  apiKey,
		enabled: apiKey != "",
		httpClient: &http.Client{
			Timeout: lookupTimeout,
		},
	}
}

func (o *OpenWeather) Name() string { return "openweather" }

// owmResponse is the subset of the current-weather response we keep.
type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Current fetches the current weather for a city in metric units.
// Transport and decode failures degrade to LookupNotFound.
func (o *OpenWeather) Current(ctx context.Context, city string) (map[string]any, LookupStatus) {
	if !o.enabled || o.apiKey == "" {
		return nil, LookupDisabled
	}

	params := url.Values{
		"q":     {city},
		"appid": {o.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		o.logger.Warn("openweather: build request", "city", city, "error", err)
		return nil, LookupNotFound
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("openweather: request failed", "city", city, "error", err)
		return nil, LookupNotFound
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, LookupNotFound
	}

	var body owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		o.logger.Warn("openweather: decode response", "city", city, "error", err)
		return nil, LookupNotFound
	}

	description := ""
	if len(body.Weather) > 0 {
		description = body.Weather[0].Description
	}

	return map[string]any{
		"city":        body.Name,
		"temperature": body.Main.Temp,
		"description": description,
		"humidity":    body.Main.Humidity,
		"timestamp":   time.Now().Format(time.RFC3339),
	}, LookupSuccess
}

func (o *OpenWeather) configure(opts SourceOptions) {
	if opts.APIKey != nil {
		o.apiKey = *opts.APIKey
	}
	if opts.Enabled != nil {
		o.enabled = *opts.Enabled
	} else if opts.APIKey != nil {
		o.enabled = *opts.APIKey != ""
	}
}
