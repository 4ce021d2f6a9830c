package app

import (
	"flag"
	"fmt"
	"os"

	"github.com/drone/envsubst"
	dslog "github.com/grafana/dskit/log"
	"gopkg.in/yaml.v2"

	"github.com/grafana/kvcache/pkg/cache"
	"github.com/grafana/kvcache/pkg/kv"
	"github.com/grafana/kvcache/pkg/pagecache"
	"github.com/grafana/kvcache/pkg/util"
)

// Config is the root config for App.
type Config struct {
	LogLevel  dslog.Level `yaml:"log_level"`
	LogFormat string      `yaml:"log_format"`

	Redis     kv.Config        `yaml:"redis"`
	Cache     cache.Config     `yaml:"cache"`
	PageCache pagecache.Config `yaml:"page_cache"`
}

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	c := &Config{}
	c.RegisterFlagsAndApplyDefaults("", flag.NewFlagSet("", flag.ContinueOnError))
	return c
}

// RegisterFlagsAndApplyDefaults registers flag.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	_ = c.LogLevel.Set("info")
	f.Var(&c.LogLevel, util.PrefixConfig(prefix, "log.level"), "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
	f.StringVar(&c.LogFormat, util.PrefixConfig(prefix, "log.format"), "logfmt", "Output log messages in the given format. Valid formats: [logfmt, json]")

	c.Redis.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "redis"), f)
	c.Cache.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "cache"), f)
	c.PageCache.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "page-cache"), f)
}

// Validate returns the first invalid section.
func (c *Config) Validate() error {
	if c.LogFormat != "logfmt" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("invalid redis config: %w", err)
	}
	if err := c.PageCache.Validate(); err != nil {
		return fmt.Errorf("invalid page cache config: %w", err)
	}
	return nil
}

// ConfigWarning bundles message and explanation strings in one structure.
type ConfigWarning struct {
	Message string
	Explain string
}

var (
	warnFlushOnStart = ConfigWarning{
		Message: "cache.flush_on_start is enabled",
		Explain: "Every key in the redis db, including call history and page counters, is deleted on start",
	}
	warnNoFetchTimeout = ConfigWarning{
		Message: "page_cache.fetch.timeout is 0",
		Explain: "A page fetch that never answers blocks the caller indefinitely",
	}
	warnNoRedisTimeout = ConfigWarning{
		Message: "redis.timeout is 0",
		Explain: "The redis client falls back to its own default timeouts",
	}
)

// CheckConfig checks if config values are suspect and returns a bundled list of warnings and explanation.
func (c *Config) CheckConfig() []ConfigWarning {
	var warnings []ConfigWarning

	if c.Cache.FlushOnStart {
		warnings = append(warnings, warnFlushOnStart)
	}
	if c.PageCache.Fetch.Timeout == 0 {
		warnings = append(warnings, warnNoFetchTimeout)
	}
	if c.Redis.Timeout == 0 {
		warnings = append(warnings, warnNoRedisTimeout)
	}

	return warnings
}

// LoadFile overlays the YAML file at path on top of c. With expandEnv,
// ${VAR} references are substituted from the environment first.
func (c *Config) LoadFile(path string, expandEnv bool) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configFile %s: %w", path, err)
	}

	if expandEnv {
		s, err := envsubst.EvalEnv(string(buff))
		if err != nil {
			return fmt.Errorf("failed to expand env vars from configFile %s: %w", path, err)
		}
		buff = []byte(s)
	}

	if err := yaml.UnmarshalStrict(buff, c); err != nil {
		return fmt.Errorf("failed to parse configFile %s: %w", path, err)
	}
	return nil
}
