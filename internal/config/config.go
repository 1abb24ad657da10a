package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"liveserve/internal/model"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Root           string        `mapstructure:"root"`
	File           string        `mapstructure:"file"`
	FallbackStatus int           `mapstructure:"fallback_status"`
	Wait           time.Duration `mapstructure:"wait"`
	IgnoreList     []string      `mapstructure:"ignore_list"`
	Inject         bool          `mapstructure:"inject"`
	CSSInject      bool          `mapstructure:"css_inject"`
	CORS           bool          `mapstructure:"cors"`
	BufferSize     int           `mapstructure:"buffer_size"`
	History        bool          `mapstructure:"history"`
	DBPath         string        `mapstructure:"db_path"`
}

var Default = Config{
	Host:           "0.0.0.0",
	Port:           8080,
	Root:           ".",
	FallbackStatus: 200,
	Wait:           100 * time.Millisecond,
	IgnoreList:     []string{".git", "node_modules", ".DS_Store", "*.tmp", "*.swp", "*~"},
	Inject:         true,
	CSSInject:      true,
	BufferSize:     100,
	History:        true,
	DBPath:         "history.db",
}

// Dir is the per-user directory holding .liveserve.yaml and the history database.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	return filepath.Join(home, ".liveserve"), nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName(".liveserve")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(configDir)

	SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("LIVESERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DBPath != "" && !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(configDir, cfg.DBPath)
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", Default.Host)
	v.SetDefault("port", Default.Port)
	v.SetDefault("root", Default.Root)
	v.SetDefault("file", Default.File)
	v.SetDefault("fallback_status", Default.FallbackStatus)
	v.SetDefault("wait", Default.Wait)
	v.SetDefault("ignore_list", Default.IgnoreList)
	v.SetDefault("inject", Default.Inject)
	v.SetDefault("css_inject", Default.CSSInject)
	v.SetDefault("cors", Default.CORS)
	v.SetDefault("buffer_size", Default.BufferSize)
	v.SetDefault("history", Default.History)
	v.SetDefault("db_path", Default.DBPath)
}

// Marshal renders the effective settings of v as YAML suitable for a
// .liveserve.yaml file.
func Marshal(v *viper.Viper) ([]byte, error) {
	settings := v.AllSettings()
	for key, value := range settings {
		if d, ok := value.(time.Duration); ok {
			settings[key] = d.String()
		}
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return data, nil
}

// Validate resolves Root to an absolute path and enforces the startup
// invariants. The config must not be modified afterwards.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}

	if c.FallbackStatus != 200 && c.FallbackStatus != 404 {
		return fmt.Errorf("fallback_status must be 200 or 404, got %d", c.FallbackStatus)
	}

	if c.Root == "" {
		c.Root = "."
	}

	absRoot, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidRoot, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", model.ErrInvalidRoot, absRoot)
	}
	c.Root = absRoot

	if c.File != "" {
		fallback := filepath.Join(absRoot, filepath.FromSlash(c.File))
		rel, err := filepath.Rel(absRoot, fallback)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("fallback file %q must be inside root", c.File)
		}
	}

	if c.Wait < 0 {
		c.Wait = 0
	}
	if c.BufferSize <= 0 {
		c.BufferSize = Default.BufferSize
	}

	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL is the address browsers and the client commands should use.
func (c *Config) URL(path string) string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port)) + path
}
