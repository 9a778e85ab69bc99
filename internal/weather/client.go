package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"thermaleye-service/internal/config"
)

const apiURL = "https://api.openweathermap.org/data/2.5/weather"

// Source supplies the ambient temperature used as the baseline for the
// delta computation.
type Source interface {
	AmbientTemperature(ctx context.Context) float64
}

// Client fetches the current temperature for the configured service area.
// Lookup failures fall back to the configured value so classification can
// always proceed.
type Client struct {
	cfg        config.WeatherConfig
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg config.WeatherConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type weatherResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

func (c *Client) AmbientTemperature(ctx context.Context) float64 {
	if c.cfg.APIKey == "" {
		return c.cfg.FallbackC
	}

	temp, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn().Err(err).Float64("fallback_c", c.cfg.FallbackC).Msg("weather lookup failed")
		return c.cfg.FallbackC
	}
	return temp
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", c.cfg.Latitude))
	q.Set("lon", fmt.Sprintf("%f", c.cfg.Longitude))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("weather api status %d", resp.StatusCode)
	}

	var parsed weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}

	return math.Round(parsed.Main.Temp*10) / 10, nil
}
