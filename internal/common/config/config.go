package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/medlinkx/medlinkx/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file name looked up by helper.GetCfgPath.
const DefaultFile = "medlinkx.yaml"

type (
	// Config is the root configuration shared by the CLI and the API server
	Config struct {
		Logger    LoggerConfig    `yaml:"logger"`
		Storage   StorageConfig   `yaml:"storage"`
		Access    AccessConfig    `yaml:"access"`
		APIServer APIServerConfig `yaml:"apiserver"`
		Metrics   MetricsConfig   `yaml:"metrics"`
		Tracing   TracingConfig   `yaml:"tracing"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// AccessConfig tunes the access rule store
	AccessConfig struct {
		// NormalizeUserIDs lower-cases and trims user identifiers on every entry point.
		NormalizeUserIDs bool `yaml:"normalize_user_ids"`
		// PruneOnSiteDelete removes a deleted site from every explicit grant.
		PruneOnSiteDelete bool `yaml:"prune_on_site_delete"`
		// SuperAdmins receive a global wildcard rule at startup when they have none.
		SuperAdmins StringList `yaml:"super_admins"`
		// MaxWriteRetries bounds reload-and-reapply attempts after a revision conflict.
		MaxWriteRetries int `yaml:"max_write_retries"`
	}
)

// StringList accepts either a YAML sequence or a comma separated string.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = compact(items)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*l = compact(strings.Split(raw, ","))
	return nil
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}
	cfg.applyDefaults()

	return &cfg, cfgPath, nil
}

// Default returns a configuration usable without any file: in-memory storage and stdout logging.
func Default() *Config {
	cfg := &Config{Storage: StorageConfig{Type: "memory"}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.Type == "" {
		c.Storage.Type = "disk"
	}
	if c.Storage.Disk.Path == "" {
		c.Storage.Disk.Path = "./data"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "medlinkx"
	}
	if c.Access.MaxWriteRetries <= 0 {
		c.Access.MaxWriteRetries = 3
	}
	if c.APIServer.Port == 0 {
		c.APIServer.Port = 5235
	}
	if c.APIServer.JWT.Duration <= 0 {
		c.APIServer.JWT.Duration = 24 * time.Hour
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "medlinkx"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "medlinkx"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
