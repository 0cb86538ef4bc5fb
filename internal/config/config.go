package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/icdiss/internal/codetable"
	"github.com/gyeh/icdiss/internal/model"
)

// EnvPrefix prefixes every environment variable read by LoadEnv.
const EnvPrefix = "ICDISS"

// Config holds all runtime configuration for an icdiss run.
type Config struct {
	DSN              string
	InputPath        string
	TablesDir        string
	PredictorURL     string
	PredictorTimeout time.Duration
	LogFormat        string // "text" or "json"
	LogLevel         string
	Layout           string
	Policy           string
	Family           string
	RCSLayout        string
	ISS              bool
	MAIS             bool
	ChapterMax       bool
	NoProgress       bool
}

// Options are the enumerations of a validated Config.
type Options struct {
	Layout    model.Layout
	Policy    model.Policy
	Family    model.Family
	RCSLayout model.RCSLayout
	Outputs   model.Outputs
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		TablesDir:        "tables",
		PredictorURL:     "http://localhost:8501",
		PredictorTimeout: 60 * time.Second,
		LogFormat:        "text",
		LogLevel:         "info",
		Layout:           string(model.LayoutCodePerRow),
		Policy:           string(model.PolicyClosest),
		Family:           string(model.FamilyIndirectFFNN),
		RCSLayout:        model.SeverityFirst.Name,
		ISS:              true,
	}
}

// Changed reports whether a value was set explicitly on the command line,
// keyed by flag name. Explicit flags are never overridden.
type Changed func(flag string) bool

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Layout           *string        `yaml:"layout"`
	UnknownPolicy    *string        `yaml:"unknown_policy"`
	Family           *string        `yaml:"family"`
	RCSLayout        *string        `yaml:"rcs_layout"`
	TablesDir        *string        `yaml:"tables_dir"`
	PredictorURL     *string        `yaml:"predictor_url"`
	PredictorTimeout *time.Duration `yaml:"predictor_timeout"`
	Outputs          *struct {
		ISS        bool `yaml:"iss"`
		MAIS       bool `yaml:"mais"`
		ChapterMax bool `yaml:"max_chapter_severity"`
	} `yaml:"outputs"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Relative table directories resolve against the file's directory.
func (c *Config) LoadFromFile(path string, changed Changed) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Layout, yc.Layout, "layout", changed)
	setString(&c.Policy, yc.UnknownPolicy, "unknown-policy", changed)
	setString(&c.Family, yc.Family, "family", changed)
	setString(&c.RCSLayout, yc.RCSLayout, "rcs-layout", changed)
	setString(&c.PredictorURL, yc.PredictorURL, "predictor-url", changed)
	if yc.TablesDir != nil && !changed("tables") {
		dir := *yc.TablesDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(path), dir)
		}
		c.TablesDir = dir
	}
	if yc.PredictorTimeout != nil && !changed("predictor-timeout") {
		c.PredictorTimeout = *yc.PredictorTimeout
	}
	if o := yc.Outputs; o != nil && !changed("iss") && !changed("mais") && !changed("max-chapter-severity") {
		c.ISS, c.MAIS, c.ChapterMax = o.ISS, o.MAIS, o.ChapterMax
	}
	return nil
}

func setString(dst *string, v *string, flag string, changed Changed) {
	if v != nil && !changed(flag) {
		*dst = *v
	}
}

// envConfig is the environment surface, e.g. ICDISS_DSN.
type envConfig struct {
	DSN          string `mapstructure:"DSN"`
	LogFormat    string `mapstructure:"LOG_FORMAT"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
	TablesDir    string `mapstructure:"TABLES_DIR"`
	PredictorURL string `mapstructure:"PREDICTOR_URL"`
}

// LoadEnv merges ICDISS_* environment variables into Config.
func (c *Config) LoadEnv(changed Changed) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"DSN", "LOG_FORMAT", "LOG_LEVEL", "TABLES_DIR", "PREDICTOR_URL"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s_%s: %w", EnvPrefix, key, err)
		}
	}

	var ec envConfig
	if err := v.Unmarshal(&ec); err != nil {
		return fmt.Errorf("unmarshal env: %w", err)
	}
	for _, f := range []struct {
		dst  *string
		val  string
		flag string
	}{
		{&c.DSN, ec.DSN, "dsn"},
		{&c.LogFormat, ec.LogFormat, "log-format"},
		{&c.LogLevel, ec.LogLevel, "log-level"},
		{&c.TablesDir, ec.TablesDir, "tables"},
		{&c.PredictorURL, ec.PredictorURL, "predictor-url"},
	} {
		if f.val != "" && !changed(f.flag) {
			*f.dst = f.val
		}
	}
	return nil
}

// Validate checks the input and table files exist and parses the
// enumerations.
func (c *Config) Validate() (*Options, error) {
	if c.InputPath == "" {
		return nil, fmt.Errorf("--input is required")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return nil, fmt.Errorf("input file not accessible: %w", err)
	}

	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	for _, name := range codetable.Files(opts.Family) {
		if _, err := os.Stat(filepath.Join(c.TablesDir, name)); err != nil {
			return nil, fmt.Errorf("code table not accessible: %w", err)
		}
	}
	return opts, nil
}

// Options parses the enumerations without touching the filesystem.
func (c *Config) Options() (*Options, error) {
	layout, err := model.ParseLayout(c.Layout)
	if err != nil {
		return nil, err
	}
	policy, err := model.ParsePolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	family, err := model.ParseFamily(c.Family)
	if err != nil {
		return nil, err
	}
	rcs, err := model.ParseRCSLayout(c.RCSLayout)
	if err != nil {
		return nil, err
	}

	outputs := model.Outputs{ISS: c.ISS, MAIS: c.MAIS, ChapterMax: c.ChapterMax}
	if !family.Direct() {
		if err := outputs.Validate(); err != nil {
			return nil, err
		}
	}
	return &Options{
		Layout:    layout,
		Policy:    policy,
		Family:    family,
		RCSLayout: rcs,
		Outputs:   outputs.For(family),
	}, nil
}

// ValidateWithDSN additionally requires a database connection string.
func (c *Config) ValidateWithDSN() (*Options, error) {
	opts, err := c.Validate()
	if err != nil {
		return nil, err
	}
	if c.DSN == "" {
		return nil, fmt.Errorf("--dsn or %s_DSN is required", EnvPrefix)
	}
	return opts, nil
}
