package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abhisek/predinator/internal/cart"
	"github.com/abhisek/predinator/internal/store"
)

// Config holds the complete application configuration.
type Config struct {
	Data   DataConfig   `mapstructure:"data"`
	Model  ModelConfig  `mapstructure:"model"`
	Tree   TreeConfig   `mapstructure:"tree"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// DataConfig locates the question catalog and the SQLite database.
// Relative file names are resolved against Dir.
type DataConfig struct {
	Dir           string `mapstructure:"dir"`
	QuestionsFile string `mapstructure:"questions_file"`
	DBPath        string `mapstructure:"db_path"`
}

// ModelConfig locates the persisted tree artifacts.
type ModelConfig struct {
	Dir string `mapstructure:"dir"`
}

// TreeConfig holds the fitting hyperparameters.
type TreeConfig struct {
	CCPAlpha        float64 `mapstructure:"ccp_alpha"`
	MaxDepth        int     `mapstructure:"max_depth"` // 0 = unbounded
	MinSamplesLeaf  int     `mapstructure:"min_samples_leaf"`
	MinSamplesSplit int     `mapstructure:"min_samples_split"`
	Seed            uint64  `mapstructure:"seed"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns a new configuration with default values. Data lives
// under the XDG data directory.
func DefaultConfig() *Config {
	dir, err := store.DataDir()
	if err != nil {
		dir = "."
	}
	p := cart.DefaultParams()
	return &Config{
		Data: DataConfig{
			Dir:           dir,
			QuestionsFile: "questions.txt",
			DBPath:        "predinator.db",
		},
		Model: ModelConfig{
			Dir: "model",
		},
		Tree: TreeConfig{
			CCPAlpha:        p.CCPAlpha,
			MaxDepth:        p.MaxDepth,
			MinSamplesLeaf:  p.MinSamplesLeaf,
			MinSamplesSplit: p.MinSamplesSplit,
			Seed:            p.Seed,
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			SessionTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file, and
// PREDINATOR_* environment variables, in increasing priority. An explicit
// configPath must exist; otherwise ./predinator.yaml and
// $XDG_CONFIG_HOME/predinator/predinator.yaml are tried.
func Load(configPath string) (*Config, error) {
	v := New()
	if err := ReadFile(v, configPath); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PREDINATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases shared with the store's path resolution.
	v.BindEnv("data.dir", "PREDINATOR_DATA_DIR")
	v.BindEnv("data.db_path", "PREDINATOR_DB", "PREDINATOR_DATA_DB_PATH")
	return v
}

// ReadFile loads the config file into v, ignoring a missing default file.
func ReadFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("predinator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(configHome(), "predinator"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// FromViper unmarshals and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Tree.Params().Validate(); err != nil {
		return err
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_ttl must be >= 0, got %s", c.Server.SessionTTL)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Log.Format)
	}
	return nil
}

// Params converts the tree section to fitting parameters.
func (t TreeConfig) Params() cart.Params {
	return cart.Params{
		CCPAlpha:        t.CCPAlpha,
		MaxDepth:        t.MaxDepth,
		MinSamplesLeaf:  t.MinSamplesLeaf,
		MinSamplesSplit: t.MinSamplesSplit,
		Seed:            t.Seed,
	}
}

// QuestionsPath returns the catalog file path.
func (c *Config) QuestionsPath() string {
	return c.resolve(c.Data.QuestionsFile)
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return c.resolve(c.Data.DBPath)
}

// ModelDir returns the directory holding tree artifacts.
func (c *Config) ModelDir() string {
	return c.resolve(c.Model.Dir)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Data.Dir, p)
}

func configHome() string {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("data.dir", defaults.Data.Dir)
	v.SetDefault("data.questions_file", defaults.Data.QuestionsFile)
	v.SetDefault("data.db_path", defaults.Data.DBPath)
	v.SetDefault("model.dir", defaults.Model.Dir)
	v.SetDefault("tree.ccp_alpha", defaults.Tree.CCPAlpha)
	v.SetDefault("tree.max_depth", defaults.Tree.MaxDepth)
	v.SetDefault("tree.min_samples_leaf", defaults.Tree.MinSamplesLeaf)
	v.SetDefault("tree.min_samples_split", defaults.Tree.MinSamplesSplit)
	v.SetDefault("tree.seed", defaults.Tree.Seed)
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.session_ttl", defaults.Server.SessionTTL)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
}
