package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config contains server configuration parameters, all sourced from the
// environment.
type Config struct {
	Port      string `env:"PORT" envDefault:"8085" validate:"required,numeric"`
	BooksDir  string `env:"BOOKS_DIR" envDefault:"/ebooks" validate:"required"`
	UsersFile string `env:"USERS_FILE" envDefault:"users.json" validate:"required"`
	PublicURL string `env:"PUBLIC_URL" validate:"omitempty,url"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Auth   Auth
	Covers Covers `envPrefix:"COVER_"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"268435456" validate:"gt=0"`
	WatchEnabled   bool  `env:"WATCH_ENABLED" envDefault:"true"`
	WebDAVEnabled  bool  `env:"WEBDAV_ENABLED" envDefault:"false"`
}

// Auth contains session and password hashing parameters.
type Auth struct {
	JWTSecret    string  `env:"JWT_SECRET,required,notEmpty" validate:"min=32"`
	CookieSecure bool    `env:"COOKIE_SECURE" envDefault:"true"`
	BcryptCost   int     `env:"BCRYPT_COST" envDefault:"12" validate:"min=4,max=14"`
	LoginRate    float64 `env:"LOGIN_RATE" envDefault:"0.2" validate:"gt=0"`
	LoginBurst   float64 `env:"LOGIN_BURST" envDefault:"10" validate:"gte=1"`
}

// Covers controls cover extraction.
type Covers struct {
	DPI             float64 `env:"DPI" envDefault:"72" validate:"gt=0,lte=600"`
	MaxEdge         int     `env:"MAX_EDGE" envDefault:"0" validate:"gte=0"`
	CacheDir        string  `env:"CACHE_DIR"`
	PlaceholderPath string  `env:"PLACEHOLDER_PATH,expand"`
}

var validate = validator.New()

// NewConfig loads configuration from environment variables and validates it.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, formatValidationError(err)
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("invalid config: %s failed on '%s' (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}
