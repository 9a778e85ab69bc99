package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type OCRRegion string

const (
	RegionTopLeft  OCRRegion = "top_left"
	RegionTopRight OCRRegion = "top_right"
	RegionFull     OCRRegion = "full"
)

type OCRConfig struct {
	ServiceURL           string
	ServiceTimeout       time.Duration
	Region               OCRRegion
	TopFraction          float64
	SideFraction         float64
	ConfidenceThreshold  float64
	TempMin              float64
	TempMax              float64
	ScaleFactor          float64
	SharpnessFactor      float64
	EnhancedPreprocess   bool
	UseMorphology        bool
	UseAdaptiveThreshold bool
}

type RegistryConfig struct {
	TowersCSV     string
	SchedulePaths []string
}

type WeatherConfig struct {
	APIKey    string
	Latitude  float64
	Longitude float64
	FallbackC float64
}

type RateLimitConfig struct {
	Calls  int
	Period time.Duration
}

type ThresholdConfig struct {
	ReferenceYear int
}

type Config struct {
	Environment     string
	HTTP            HTTPConfig
	DB              DBConfig
	Auth            AuthConfig
	OCR             OCRConfig
	Registry        RegistryConfig
	Weather         WeatherConfig
	Threshold       ThresholdConfig
	GeneralLimit    RateLimitConfig
	UploadLimit     RateLimitConfig
	MaxUploadSize   int64
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		OCR: OCRConfig{
			ServiceURL:           v.GetString("OCR_SERVICE_URL"),
			ServiceTimeout:       v.GetDuration("OCR_SERVICE_TIMEOUT"),
			Region:               OCRRegion(v.GetString("OCR_REGION")),
			TopFraction:          v.GetFloat64("OCR_TOP_FRACTION"),
			SideFraction:         v.GetFloat64("OCR_SIDE_FRACTION"),
			ConfidenceThreshold:  v.GetFloat64("OCR_CONFIDENCE_THRESHOLD"),
			TempMin:              v.GetFloat64("OCR_TEMP_MIN"),
			TempMax:              v.GetFloat64("OCR_TEMP_MAX"),
			ScaleFactor:          v.GetFloat64("OCR_SCALE_FACTOR"),
			SharpnessFactor:      v.GetFloat64("OCR_SHARPNESS_FACTOR"),
			EnhancedPreprocess:   v.GetBool("OCR_USE_ENHANCED_PREPROCESSING"),
			UseMorphology:        v.GetBool("OCR_USE_MORPHOLOGY"),
			UseAdaptiveThreshold: v.GetBool("OCR_USE_ADAPTIVE_THRESHOLD"),
		},
		Registry: RegistryConfig{
			TowersCSV:     v.GetString("REGISTRY_TOWERS_CSV"),
			SchedulePaths: splitPaths(v.GetString("REGISTRY_SCHEDULE_PATHS")),
		},
		Weather: WeatherConfig{
			APIKey:    v.GetString("WEATHER_API_KEY"),
			Latitude:  v.GetFloat64("WEATHER_LAT"),
			Longitude: v.GetFloat64("WEATHER_LON"),
			FallbackC: v.GetFloat64("WEATHER_FALLBACK_C"),
		},
		Threshold: ThresholdConfig{
			ReferenceYear: v.GetInt("THRESHOLD_REFERENCE_YEAR"),
		},
		GeneralLimit: RateLimitConfig{
			Calls:  v.GetInt("RATE_LIMIT_CALLS"),
			Period: time.Duration(v.GetInt("RATE_LIMIT_PERIOD")) * time.Second,
		},
		UploadLimit: RateLimitConfig{
			Calls:  v.GetInt("UPLOAD_RATE_LIMIT_CALLS"),
			Period: time.Duration(v.GetInt("UPLOAD_RATE_LIMIT_PERIOD")) * time.Second,
		},
		MaxUploadSize: v.GetInt64("MAX_UPLOAD_SIZE"),
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.OCR.ServiceTimeout == 0 {
		cfg.OCR.ServiceTimeout = 30 * time.Second
	}
	if cfg.OCR.Region == "" {
		cfg.OCR.Region = RegionTopLeft
	}
	if cfg.OCR.TopFraction == 0 {
		cfg.OCR.TopFraction = 0.4
	}
	if cfg.OCR.SideFraction == 0 {
		cfg.OCR.SideFraction = 0.5
	}
	if cfg.OCR.ConfidenceThreshold == 0 {
		cfg.OCR.ConfidenceThreshold = 0.4
	}
	if cfg.OCR.TempMin == 0 {
		cfg.OCR.TempMin = 20
	}
	if cfg.OCR.TempMax == 0 {
		cfg.OCR.TempMax = 80
	}
	if cfg.OCR.ScaleFactor == 0 {
		cfg.OCR.ScaleFactor = 1.5
	}
	if cfg.OCR.SharpnessFactor == 0 {
		cfg.OCR.SharpnessFactor = 1.2
	}
	if cfg.Registry.TowersCSV == "" {
		cfg.Registry.TowersCSV = "data/towers.csv"
	}
	if len(cfg.Registry.SchedulePaths) == 0 {
		cfg.Registry.SchedulePaths = []string{
			"data/Updated_Common_Data.xlsx",
			"data/110kV_Line_Schedule.xlsx",
			"data/220kV_Line_Schedule.xlsx",
		}
	}
	if cfg.Weather.Latitude == 0 && cfg.Weather.Longitude == 0 {
		// Mumbai, the inspected grid's service area.
		cfg.Weather.Latitude = 19.07611
		cfg.Weather.Longitude = 72.87750
	}
	if cfg.Weather.FallbackC == 0 {
		cfg.Weather.FallbackC = 28.5
	}
	if cfg.Threshold.ReferenceYear == 0 {
		cfg.Threshold.ReferenceYear = 2024
	}
	if cfg.GeneralLimit.Calls == 0 {
		cfg.GeneralLimit.Calls = 60
	}
	if cfg.GeneralLimit.Period == 0 {
		cfg.GeneralLimit.Period = 60 * time.Second
	}
	if cfg.UploadLimit.Calls == 0 {
		cfg.UploadLimit.Calls = 10
	}
	if cfg.UploadLimit.Period == 0 {
		cfg.UploadLimit.Period = 60 * time.Second
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 10 << 20
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.OCR.Region {
	case RegionTopLeft, RegionTopRight, RegionFull:
	default:
		return fmt.Errorf("OCR_REGION must be one of top_left, top_right, full")
	}
	if cfg.OCR.TopFraction <= 0 || cfg.OCR.TopFraction > 1 {
		return fmt.Errorf("OCR_TOP_FRACTION must be in (0,1]")
	}
	if cfg.OCR.SideFraction <= 0 || cfg.OCR.SideFraction > 1 {
		return fmt.Errorf("OCR_SIDE_FRACTION must be in (0,1]")
	}
	if cfg.OCR.ConfidenceThreshold < 0 || cfg.OCR.ConfidenceThreshold > 1 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be in [0,1]")
	}
	if cfg.OCR.TempMin >= cfg.OCR.TempMax {
		return fmt.Errorf("OCR_TEMP_MIN must be below OCR_TEMP_MAX")
	}
	return nil
}

func splitPaths(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	paths := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
