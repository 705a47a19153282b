package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSessionSecret is only suitable for local development.
const DefaultSessionSecret = "terra-scenik-dev-secret"

type Config struct {
	Server   Server
	Database Database
	Session  Session
	Auth     Auth
	Unsplash Unsplash
	Uploads  Uploads
	Log      Log
}

type Server struct {
	Port           string
	APIPrefix      string   `mapstructure:"api_prefix"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s Server) Address() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

type Database struct {
	// Driver is one of mongo, postgres or sqlite.
	Driver       string
	URL          string
	Name         string
	Timeout      time.Duration
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

type Session struct {
	Name     string
	Secret   string
	MaxAge   time.Duration `mapstructure:"max_age"`
	RedisURL string        `mapstructure:"redis_url"`
	Dir      string
}

type Auth struct {
	HashPasswords bool `mapstructure:"hash_passwords"`
}

type Unsplash struct {
	AccessKey string `mapstructure:"access_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type Uploads struct {
	Dir        string
	MaxSize    int64  `mapstructure:"max_size"`
	PublicPath string `mapstructure:"public_path"`
}

type Log struct {
	Development bool
	Level       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.url", "mongodb://localhost:27017")
	v.SetDefault("database.name", "terrascenik")
	v.SetDefault("database.timeout", 10*time.Second)
	v.SetDefault("database.max_open_conns", 25)

	v.SetDefault("session.name", "terrascenik.sid")
	v.SetDefault("session.secret", DefaultSessionSecret)
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.dir", "")

	v.SetDefault("auth.hash_passwords", false)

	v.SetDefault("unsplash.access_key", "")
	v.SetDefault("unsplash.base_url", "https://api.unsplash.com")

	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_size", 15<<20)
	v.SetDefault("uploads.public_path", "/uploads/")

	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "info")
}

// Load reads configuration from defaults, an optional app.yaml in the
// working directory or under ./config, a .env file and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("app")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by earlier deployments.
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("database.url", "DATABASE_URL", "MONGODB_URI", "DB_URL")
	_ = v.BindEnv("session.secret", "SESSION_SECRET")
	_ = v.BindEnv("unsplash.access_key", "UNSPLASH_ACCESS_KEY", "UNSPLASH_KEY")

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mongo", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Session.Secret == "" {
		return errors.New("session secret must not be empty")
	}
	if c.Uploads.MaxSize <= 0 {
		return errors.New("uploads max size must be positive")
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		c.Server.APIPrefix = "/" + c.Server.APIPrefix
	}
	return nil
}
