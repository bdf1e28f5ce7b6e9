package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Image host providers.
const (
	ProviderCloudinary = "cloudinary"
	ProviderLocal      = "local"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	ImageHost ImageHostConfig `mapstructure:"imagehost"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener and the session cookie.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Env          string `mapstructure:"env"`
	BaseURL      string `mapstructure:"base_url"`
	CookieSecret string `mapstructure:"cookie_secret"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
	RequireLogin bool   `mapstructure:"require_login"`
}

// DatabaseConfig selects the store. URI and Name apply to mongo, Path to sqlite.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	URI            string        `mapstructure:"uri"`
	Name           string        `mapstructure:"name"`
	Path           string        `mapstructure:"path"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ImageHostConfig selects the image host and bounds its network calls.
type ImageHostConfig struct {
	Provider      string           `mapstructure:"provider"`
	UploadTimeout time.Duration    `mapstructure:"upload_timeout"`
	ProbeTimeout  time.Duration    `mapstructure:"probe_timeout"`
	Cloudinary    CloudinaryConfig `mapstructure:"cloudinary"`
	Local         LocalHostConfig  `mapstructure:"local"`
}

// CloudinaryConfig holds the account credentials.
type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// LocalHostConfig is where the local provider writes renditions and their JPEG quality.
type LocalHostConfig struct {
	Dir     string `mapstructure:"dir"`
	Quality int    `mapstructure:"quality"`
}

// UploadsConfig is the staging area for multipart uploads.
type UploadsConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

// LogConfig picks the zap preset and the minimum level.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

// Load reads configuration from defaults, an optional config file, a .env file
// and the environment, in increasing order of precedence. An empty path looks for
// config.yaml in the working directory.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CAIDAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                     "PORT",
		"server.cookie_secret":            "COOKIE_SECRET",
		"database.uri":                    "MONGODB_URI",
		"imagehost.cloudinary.cloud_name": "CLOUDINARY_CLOUD_NAME",
		"imagehost.cloudinary.api_key":    "CLOUDINARY_API_KEY",
		"imagehost.cloudinary.api_secret": "CLOUDINARY_API_SECRET",
	}
	for key, env := range bindings {
		// The prefixed name stays first so it wins over the conventional one.
		prefixed := "CAIDAS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Server.BaseURL = cfg.GetBaseURL()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.require_login", false)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.name", "proyecto_vid")
	v.SetDefault("database.path", "./data/caidas.db")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.timeout", "10s")

	v.SetDefault("imagehost.provider", ProviderLocal)
	v.SetDefault("imagehost.upload_timeout", "60s")
	v.SetDefault("imagehost.probe_timeout", "10s")
	v.SetDefault("imagehost.local.dir", "./data/media")
	v.SetDefault("imagehost.local.quality", 85)

	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_upload_mb", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", true)
}

// GetBaseURL returns the public base URL without a trailing slash.
func (c *Config) GetBaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// IsProduction reports whether the server runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks the port, the driver and provider choices and the settings
// each of them needs.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}

	if c.Server.CookieSecret == "" && c.IsProduction() {
		return errors.New("server.cookie_secret (COOKIE_SECRET) is required in production")
	}

	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.URI == "" {
			return errors.New("database.uri (MONGODB_URI) is required for the mongo driver")
		}
		if c.Database.Name == "" {
			return errors.New("database.name is required for the mongo driver")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q (want %q or %q)", c.Database.Driver, DriverMongo, DriverSQLite)
	}

	switch c.ImageHost.Provider {
	case ProviderCloudinary:
		cl := c.ImageHost.Cloudinary
		if cl.CloudName == "" || cl.APIKey == "" || cl.APISecret == "" {
			return errors.New("cloudinary provider needs cloud_name, api_key and api_secret")
		}
	case ProviderLocal:
		if c.ImageHost.Local.Dir == "" {
			return errors.New("imagehost.local.dir is required for the local provider")
		}
		if c.ImageHost.Local.Quality < 1 || c.ImageHost.Local.Quality > 100 {
			return fmt.Errorf("imagehost.local.quality must be within 1..100, got %d", c.ImageHost.Local.Quality)
		}
	default:
		return fmt.Errorf("unknown imagehost.provider %q (want %q or %q)", c.ImageHost.Provider, ProviderCloudinary, ProviderLocal)
	}

	if c.Uploads.Dir == "" {
		return errors.New("uploads.dir is required")
	}
	if c.Uploads.MaxUploadMB <= 0 {
		return fmt.Errorf("uploads.max_upload_mb must be positive, got %d", c.Uploads.MaxUploadMB)
	}
	return nil
}
