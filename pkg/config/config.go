package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request    RequestConfig    `yaml:"request"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Sources    SourcesConfig    `yaml:"sources"`
	Output     OutputConfig     `yaml:"output"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries    int           `yaml:"retries"`
	Timeout    Duration      `yaml:"timeout"`
	Politeness Duration      `yaml:"politeness"`
	Backoff    BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds retry backoff settings.
// Strategy is one of "fixed", "linear", "exponential"; deployments of this
// tool have historically run all three.
type BackoffConfig struct {
	Strategy  string   `yaml:"strategy"`
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// SourcesConfig holds the remote endpoints and the region file location.
type SourcesConfig struct {
	SPARQLEndpoint   string `yaml:"sparql_endpoint"`
	OverpassEndpoint string `yaml:"overpass_endpoint"`
	RegionsFile      string `yaml:"regions_file"`
	LabelLanguage    string `yaml:"label_language"`
}

// OutputConfig holds output artifact locations.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	CombinedKey  string `yaml:"combined_key"`
	MetadataFile string `yaml:"metadata_file"`
}

// ClassifierConfig drives the broad-status override of the reconciler.
// BroadClasses is a set of class QIDs (e.g. mountain range, watercourse)
// whose members always get status "broad"; when UseParentCount is set,
// items located in more than ParentThreshold parent regions are treated
// the same way.
type ClassifierConfig struct {
	BroadClasses    []string `yaml:"broad_classes"`
	UseParentCount  bool     `yaml:"use_parent_count"`
	ParentThreshold int      `yaml:"parent_threshold"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries:    3,
			Timeout:    Duration(120 * time.Second),
			Politeness: Duration(1 * time.Second),
			Backoff: BackoffConfig{
				Strategy:  "linear",
				BaseDelay: Duration(5 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Log: LogConfig{
			Path:  "./logs/wikimap.log",
			Level: "INFO",
		},
		DB: DBConfig{
			Path: "./data/wikimap.db",
		},
		Sources: SourcesConfig{
			SPARQLEndpoint:   "https://query.wikidata.org/sparql",
			OverpassEndpoint: "https://overpass-api.de/api/interpreter",
			RegionsFile:      "configs/regions.yaml",
			LabelLanguage:    "it",
		},
		Output: OutputConfig{
			Dir:          "./public/data",
			CombinedKey:  "italia",
			MetadataFile: "./public/data/metadata.json",
		},
		Classifier: ClassifierConfig{
			// Glossary examples: mountain range, watercourse, traffic
			// route, lake. Deployments override this list freely.
			BroadClasses:    []string{"Q46831", "Q355304", "Q83620", "Q23397"},
			UseParentCount:  true,
			ParentThreshold: 1,
		},
	}
}

// Load reads the config file at path, overlaying it onto the defaults.
// A missing file is not an error; defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Request.Backoff.Strategy {
	case "fixed", "linear", "exponential":
	default:
		return fmt.Errorf("unknown backoff strategy %q", c.Request.Backoff.Strategy)
	}
	if c.Request.Retries < 1 {
		return fmt.Errorf("request.retries must be >= 1, got %d", c.Request.Retries)
	}
	return nil
}

// Save writes the config to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GenerateDefault writes the default config to path unless it already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
