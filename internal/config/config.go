package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/spf13/viper"
)

// Config is the typed application configuration.
type Config struct {
	Telegram TelegramConfig
	Amadeus  AmadeusConfig
	Database DatabaseConfig
	Metrics  MetricsConfig
	Photos   PhotosConfig
	Retry    RetryConfig
	Cache    CacheConfig
}

// TelegramConfig configures the Bot API gateway.
type TelegramConfig struct {
	Token                string
	BaseURL              string
	SearchingPlaceholder string
	NotFoundPlaceholder  string
	PollTimeout          time.Duration
}

// AmadeusConfig configures the travel data provider.
type AmadeusConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
	RateLimit    int
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string
}

// PhotosConfig tunes hotel image search.
type PhotosConfig struct {
	BaseURL         string
	MaxImages       int
	MinWidth        int
	MinHeight       int
	LivenessTimeout time.Duration
}

// RetryConfig tunes the provider retry policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

// CacheConfig tunes response caching.
type CacheConfig struct {
	LongTTL          time.Duration
	OffersTTL        time.Duration
	PhotosTTL        time.Duration
	PurgeProbability float64
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath())

	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout", 30*time.Second)
	v.SetDefault("telegram.searching_placeholder", "https://placehold.co/600x400/png?text=Searching+photos")
	v.SetDefault("telegram.not_found_placeholder", "https://placehold.co/600x400/png?text=No+photos")

	v.SetDefault("amadeus.base_url", "https://test.api.amadeus.com")
	v.SetDefault("amadeus.timeout", 10*time.Second)
	v.SetDefault("amadeus.rate_limit", 10)

	v.SetDefault("retry.max_attempts", common.DefaultMaxAttempts)
	v.SetDefault("retry.base_delay", common.DefaultBaseDelay)
	v.SetDefault("retry.jitter", common.DefaultJitter)

	v.SetDefault("cache.long_ttl", 720*time.Hour)
	v.SetDefault("cache.offers_ttl", time.Hour)
	v.SetDefault("cache.photos_ttl", 720*time.Hour)
	v.SetDefault("cache.purge_probability", 0.01)

	v.SetDefault("photos.base_url", "https://duckduckgo.com")
	v.SetDefault("photos.max_images", 50)
	v.SetDefault("photos.min_width", 600)
	v.SetDefault("photos.min_height", 400)
	v.SetDefault("photos.liveness_timeout", 3*time.Second)
}

// BindEnv wires environment variables, including the legacy names used by deployments.
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("telegram.token", strings.ToUpper(prefix)+"_TELEGRAM_TOKEN", "BOT_TOKEN")
	_ = v.BindEnv("amadeus.client_id", strings.ToUpper(prefix)+"_AMADEUS_CLIENT_ID", "AMADEUS_API_KEY")
	_ = v.BindEnv("amadeus.client_secret", strings.ToUpper(prefix)+"_AMADEUS_CLIENT_SECRET", "AMADEUS_API_SECRET")
}

// Load materializes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token:                v.GetString("telegram.token"),
			BaseURL:              v.GetString("telegram.base_url"),
			PollTimeout:          v.GetDuration("telegram.poll_timeout"),
			SearchingPlaceholder: v.GetString("telegram.searching_placeholder"),
			NotFoundPlaceholder:  v.GetString("telegram.not_found_placeholder"),
		},
		Amadeus: AmadeusConfig{
			ClientID:     v.GetString("amadeus.client_id"),
			ClientSecret: v.GetString("amadeus.client_secret"),
			BaseURL:      strings.TrimRight(v.GetString("amadeus.base_url"), "/"),
			Timeout:      v.GetDuration("amadeus.timeout"),
			RateLimit:    v.GetInt("amadeus.rate_limit"),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		Photos: PhotosConfig{
			BaseURL:         strings.TrimRight(v.GetString("photos.base_url"), "/"),
			MaxImages:       v.GetInt("photos.max_images"),
			MinWidth:        v.GetInt("photos.min_width"),
			MinHeight:       v.GetInt("photos.min_height"),
			LivenessTimeout: v.GetDuration("photos.liveness_timeout"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
			Jitter:      v.GetDuration("retry.jitter"),
		},
		Cache: CacheConfig{
			LongTTL:          v.GetDuration("cache.long_ttl"),
			OffersTTL:        v.GetDuration("cache.offers_ttl"),
			PhotosTTL:        v.GetDuration("cache.photos_ttl"),
			PurgeProbability: v.GetFloat64("cache.purge_probability"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that every command depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("%w: database.path", common.ErrMissingConfig))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("%w: retry.max_attempts must be at least 1", common.ErrInvalidConfig))
	}
	if c.Cache.PurgeProbability < 0 || c.Cache.PurgeProbability > 1 {
		errs = append(errs, fmt.Errorf("%w: cache.purge_probability must be within [0,1]", common.ErrInvalidConfig))
	}
	if c.Photos.MaxImages < 1 {
		errs = append(errs, fmt.Errorf("%w: photos.max_images must be positive", common.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// RequireAmadeus checks that provider credentials are present.
func (c *Config) RequireAmadeus() error {
	if c.Amadeus.ClientID == "" || c.Amadeus.ClientSecret == "" {
		return fmt.Errorf("%w: amadeus.client_id and amadeus.client_secret (or AMADEUS_API_KEY/AMADEUS_API_SECRET)", common.ErrMissingConfig)
	}
	if c.Amadeus.RateLimit < 1 {
		return fmt.Errorf("%w: amadeus.rate_limit must be positive", common.ErrInvalidConfig)
	}
	return nil
}

// RequireTelegram checks that a bot token is present.
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token (or BOT_TOKEN)", common.ErrMissingConfig)
	}
	return nil
}

// RetryPolicy builds the provider retry policy from configuration.
func (c *Config) RetryPolicy(name string) common.RetryPolicy {
	return common.RetryPolicy{
		Name:        name,
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		Jitter:      c.Retry.Jitter,
	}
}
