// Package config loads settings for the client and the development backend.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file in the working directory, then process environment variables.
// Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names the data service variant the client talks to.
type Backend string

const (
	BackendREST     Backend = "rest"
	BackendSupabase Backend = "supabase"
)

type Config struct {
	Backend   Backend         `yaml:"backend"`
	API       APIConfig       `yaml:"api"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// APIConfig configures the REST variant.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`

	// Timeout bounds every request. Zero means no timeout.
	Timeout Duration `yaml:"timeout"`
}

type SupabaseConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

type UIConfig struct {
	// ConfirmationDelay is how long the success panel stays up before the
	// flow returns to the catalog.
	ConfirmationDelay Duration `yaml:"confirmation_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type DevServerConfig struct {
	Addr       string   `yaml:"addr"`
	JWTSecret  string   `yaml:"jwt_secret"`
	TokenTTL   Duration `yaml:"token_ttl"`
	BcryptCost int      `yaml:"bcrypt_cost"`
	MySQLDSN   string   `yaml:"mysql_dsn"`
	Seed       bool     `yaml:"seed"`
}

// Duration is a time.Duration that reads "30s"-style strings from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Backend: BackendREST,
		API: APIConfig{
			BaseURL: "http://localhost:5000/api",
		},
		UI: UIConfig{
			ConfirmationDelay: Duration(3 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		DevServer: DevServerConfig{
			Addr:       ":5000",
			JWTSecret:  "dev-secret-change-me",
			TokenTTL:   Duration(30 * 24 * time.Hour),
			BcryptCost: 10,
			Seed:       true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// SHOWTIMEDB_CONFIG is consulted; a missing file named by either is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SHOWTIMEDB_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}

	if v, ok := lookup("SHOWTIMEDB_BACKEND"); ok && v != "" {
		c.Backend = Backend(strings.ToLower(v))
	}
	str("SHOWTIMEDB_API_URL", &c.API.BaseURL)
	dur("SHOWTIMEDB_HTTP_TIMEOUT", &c.API.Timeout)
	str("SUPABASE_URL", &c.Supabase.URL)
	str("SUPABASE_ANON_KEY", &c.Supabase.AnonKey)
	dur("SHOWTIMEDB_CONFIRM_DELAY", &c.UI.ConfirmationDelay)
	str("SHOWTIMEDB_LOG_LEVEL", &c.Log.Level)
	str("SHOWTIMEDB_LOG_FORMAT", &c.Log.Format)
	str("SHOWTIMEDB_LOG_FILE", &c.Log.File)

	str("DEVSERVER_ADDR", &c.DevServer.Addr)
	str("JWT_SECRET", &c.DevServer.JWTSecret)
	dur("DEVSERVER_TOKEN_TTL", &c.DevServer.TokenTTL)
	str("MYSQL_DSN", &c.DevServer.MySQLDSN)
	if v, ok := lookup("BCRYPT_COST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BCRYPT_COST: invalid int %q", v))
		} else {
			c.DevServer.BcryptCost = n
		}
	}
	if v, ok := lookup("DEVSERVER_SEED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DEVSERVER_SEED: invalid bool %q", v))
		} else {
			c.DevServer.Seed = b
		}
	}

	return errors.Join(errs...)
}

// Validate checks the client settings.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendREST:
		if err := checkURL("api.base_url", c.API.BaseURL); err != nil {
			errs = append(errs, err)
		}
	case BackendSupabase:
		if err := checkURL("supabase.url", c.Supabase.URL); err != nil {
			errs = append(errs, err)
		}
		if c.Supabase.AnonKey == "" {
			errs = append(errs, errors.New("supabase.anon_key is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want rest or supabase)", c.Backend))
	}

	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}
	if c.UI.ConfirmationDelay < 0 {
		errs = append(errs, errors.New("ui.confirmation_delay must not be negative"))
	}

	return errors.Join(errs...)
}

// ValidateDevServer checks the development backend settings.
func (c *Config) ValidateDevServer() error {
	var errs []error
	if c.DevServer.Addr == "" {
		errs = append(errs, errors.New("devserver.addr is required"))
	}
	if c.DevServer.JWTSecret == "" {
		errs = append(errs, errors.New("devserver.jwt_secret is required"))
	}
	if c.DevServer.TokenTTL <= 0 {
		errs = append(errs, errors.New("devserver.token_ttl must be positive"))
	}
	if c.DevServer.BcryptCost < 4 || c.DevServer.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("devserver.bcrypt_cost %d out of range 4-31", c.DevServer.BcryptCost))
	}
	return errors.Join(errs...)
}

func checkURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
