// Package config carga la configuración del servicio desde YAML con
// overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceEntry describe un servicio HTTP saliente registrado por ID.
// Equivale a la entrada del service registry que el pipeline resuelve
// antes de cada llamada.
type ServiceEntry struct {
	ID         string   `yaml:"id"`
	URL        string   `yaml:"url"`
	Credential string   `yaml:"credential"`
	Mock       bool     `yaml:"mock"`
	Timeout    string   `yaml:"timeout"`
	FilterKeys []string `yaml:"filter_keys"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Site agrupa los flags a nivel de sitio. Se copia a un valor
	// inmutable por request; la lógica de resolución nunca lee config
	// global directamente.
	Site struct {
		EnableMergeExternalAccounts bool   `yaml:"enable_merge_external_accounts"`
		DefaultDestination          string `yaml:"default_destination"`
	} `yaml:"site"`

	Services []ServiceEntry `yaml:"services"`

	OAuth struct {
		ProviderID    string        `yaml:"provider_id"`
		TokenEndpoint string        `yaml:"token_endpoint"`
		ClientID      string        `yaml:"client_id"`
		ClientSecret  string        `yaml:"client_secret"`
		RedirectURL   string        `yaml:"redirect_url"`
		StateSecret   string        `yaml:"state_secret"`
		StateTTL      time.Duration `yaml:"state_ttl"`
	} `yaml:"oauth"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	RateLimit struct {
		Enabled bool   `yaml:"enabled"`
		Max     int    `yaml:"max"`
		Window  string `yaml:"window"`
	} `yaml:"rate_limit"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	SMTP struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`
}

// Service resuelve una entrada del registry por ID.
func (c *Config) Service(id string) (ServiceEntry, bool) {
	for _, s := range c.Services {
		if s.ID == id {
			return s, true
		}
	}
	return ServiceEntry{}, false
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sid"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.Site.DefaultDestination == "" {
		c.Site.DefaultDestination = "/account"
	}
	if c.OAuth.StateTTL == 0 {
		c.OAuth.StateTTL = 10 * time.Minute
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = 30
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}

	// validate string durations
	for _, d := range []string{
		c.Cache.Memory.DefaultTTL,
		c.Session.TTL,
		c.Storage.Postgres.ConnMaxLifetime,
		c.RateLimit.Window,
	} {
		if d != "" {
			if _, err := time.ParseDuration(d); err != nil {
				return nil, err
			}
		}
	}
	for _, s := range c.Services {
		if s.Timeout != "" {
			if _, err := time.ParseDuration(s.Timeout); err != nil {
				return nil, fmt.Errorf("service %s: %w", s.ID, err)
			}
		}
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate verifica la configuración mínima para arrancar.
func (c *Config) Validate() error {
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("storage.dsn required for driver postgres")
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("cache.redis.addr required for kind redis")
	}
	if c.OAuth.ProviderID != "" && strings.TrimSpace(c.OAuth.StateSecret) == "" {
		return fmt.Errorf("oauth.state_secret required when oauth.provider_id is set")
	}
	return nil
}

// applyEnvOverrides aplica overrides de entorno sobre lo cargado del YAML.
// Los secretos normalmente llegan por env, nunca commiteados en el YAML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v := os.Getenv("OAUTH_CLIENT_SECRET"); v != "" {
		c.OAuth.ClientSecret = v
	}
	if v := os.Getenv("OAUTH_STATE_SECRET"); v != "" {
		c.OAuth.StateSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
