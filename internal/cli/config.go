package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = "weatherctl.yaml"
	envPrefix         = "WEATHERCTL_"
)

// Config is the terminal client configuration.
type Config struct {
	APIBaseURL string        `koanf:"api_base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	Output     string        `koanf:"output"`
	ExportDir  string        `koanf:"export_dir"`
	LogFile    string        `koanf:"log_file"`

	PageSize      int           `koanf:"page_size"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	Geolocation        string        `koanf:"geolocation"`
	GeolocationAddress string        `koanf:"geolocation_address"`
	GeolocationIPURL   string        `koanf:"geolocation_ip_url"`
	GeolocationTimeout time.Duration `koanf:"geolocation_timeout"`
	GoogleGeocodingKey string        `koanf:"google_geocoding_api_key"`
}

// Output modes.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

var defaults = map[string]interface{}{
	"api_base_url":        "http://localhost:8000",
	"timeout":             "0s",
	"output":              OutputTable,
	"export_dir":          ".",
	"log_file":            "weatherctl.log",
	"page_size":           20,
	"retry_attempts":      4,
	"retry_delay":         "2s",
	"geolocation":         "ip",
	"geolocation_ip_url":  "http://ip-api.com/json/",
	"geolocation_timeout": "10s",
}

// LoadConfig layers defaults, the YAML file, WEATHERCTL_ env vars and
// explicitly set flags, in increasing precedence.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// WEATHERCTL_API_BASE_URL -> api_base_url
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Output {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q (want table or json)", c.Output)
	}
	switch c.Geolocation {
	case "ip", "address", "none":
	default:
		return fmt.Errorf("invalid geolocation provider %q", c.Geolocation)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry_attempts must be positive")
	}
	return nil
}
