package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"smartcollections/internal/catalog"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Probe       ProbeConfig       `yaml:"probe"`
	Collections CollectionsConfig `yaml:"collections"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty     bool   `yaml:"pretty"`
	File       string `yaml:"file"`         // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`  // megabytes before rotation
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ProbeConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type CollectionsConfig struct {
	MarkerTag        string             `yaml:"marker_tag" validate:"required"`
	RefreshInterval  time.Duration      `yaml:"refresh_interval" validate:"gte=0"` // 0 disables periodic runs
	EpisodeCacheSize int                `yaml:"episode_cache_size" validate:"gte=0"`
	Definitions      []DefinitionConfig `yaml:"definitions" validate:"dive"`
	Discovery        DiscoveryConfig    `yaml:"discovery"`
}

// DefinitionConfig describes one managed collection. Exactly one of
// Expression or Match is set.
type DefinitionConfig struct {
	Name          string       `yaml:"name" validate:"required"`
	Expression    string       `yaml:"expression"`
	Match         *MatchConfig `yaml:"match"`
	CaseSensitive bool         `yaml:"case_sensitive"`
	MediaKinds    []string     `yaml:"media_kinds" validate:"dive,mediakind"`
}

// MatchConfig selects every entity carrying any of the listed values.
type MatchConfig struct {
	Tags    []string `yaml:"tags"`
	Genres  []string `yaml:"genres"`
	Studios []string `yaml:"studios"`
	People  []string `yaml:"people"`
}

func (m *MatchConfig) empty() bool {
	return len(m.Tags) == 0 && len(m.Genres) == 0 && len(m.Studios) == 0 && len(m.People) == 0
}

type DiscoveryConfig struct {
	Enabled                bool   `yaml:"enabled"`
	MinSize                int    `yaml:"min_size" validate:"gte=2"`
	IncludeUnnumberedFirst bool   `yaml:"include_unnumbered_first"`
	IncludeSpinoffs        bool   `yaml:"include_spinoffs"`
	NameSuffix             string `yaml:"name_suffix"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("mediakind", func(fl validator.FieldLevel) bool {
		_, ok := catalog.ParseKind(fl.Field().String())
		return ok
	})
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         6541,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/smartcollections.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Pretty:     true,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Probe: ProbeConfig{
			FFprobePath: "ffprobe",
		},
		Collections: CollectionsConfig{
			MarkerTag:        "smartcollection",
			EpisodeCacheSize: 256,
			Discovery: DiscoveryConfig{
				MinSize:                2,
				IncludeUnnumberedFirst: true,
				NameSuffix:             " Collection",
			},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	names := make(map[string]bool, len(c.Collections.Definitions))
	for i, d := range c.Collections.Definitions {
		hasExpr := strings.TrimSpace(d.Expression) != ""
		hasMatch := d.Match != nil && !d.Match.empty()
		if hasExpr == hasMatch {
			return fmt.Errorf("definition %d (%s): set exactly one of expression or match", i, d.Name)
		}
		key := strings.ToLower(strings.TrimSpace(d.Name))
		if names[key] {
			return fmt.Errorf("definition %d: duplicate name %q", i, d.Name)
		}
		names[key] = true
	}

	return nil
}
