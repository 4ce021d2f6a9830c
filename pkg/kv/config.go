package kv

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"

	"github.com/grafana/kvcache/pkg/util"
)

// Config is the redis client configuration.
type Config struct {
	Endpoint    string         `yaml:"endpoint"`
	Username    string         `yaml:"username"`
	Password    flagext.Secret `yaml:"password"`
	DB          int            `yaml:"db"`
	Timeout     time.Duration  `yaml:"timeout"`
	PoolSize    int            `yaml:"pool_size"`
	IdleTimeout time.Duration  `yaml:"idle_timeout"`
	TLSEnabled  bool           `yaml:"tls_enabled"`
	TLSInsecure bool           `yaml:"tls_insecure_skip_verify"`
	MaxRetries  int            `yaml:"max_retries"`
}

// RegisterFlagsAndApplyDefaults registers flags and applies defaults
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Endpoint, util.PrefixConfig(prefix, "endpoint"), "localhost:6379", "Redis endpoint to use.")
	f.StringVar(&cfg.Username, util.PrefixConfig(prefix, "username"), "", "Username to use when connecting to redis.")
	f.Var(&cfg.Password, util.PrefixConfig(prefix, "password"), "Password to use when connecting to redis.")
	f.IntVar(&cfg.DB, util.PrefixConfig(prefix, "db"), 0, "Database index.")
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), 500*time.Millisecond, "Maximum time to wait before giving up on redis requests.")
	f.IntVar(&cfg.PoolSize, util.PrefixConfig(prefix, "pool-size"), 0, "Maximum number of connections in the pool. 0 uses the client default.")
	f.DurationVar(&cfg.IdleTimeout, util.PrefixConfig(prefix, "idle-timeout"), 0, "Close connections after remaining idle for this duration. 0 disables.")
	f.BoolVar(&cfg.TLSEnabled, util.PrefixConfig(prefix, "tls-enabled"), false, "Enable connecting to redis with TLS.")
	f.BoolVar(&cfg.TLSInsecure, util.PrefixConfig(prefix, "tls-insecure-skip-verify"), false, "Skip validating server certificate.")
	f.IntVar(&cfg.MaxRetries, util.PrefixConfig(prefix, "max-retries"), 0, "Maximum number of retries before giving up. 0 disables retries.")
}

func (cfg *Config) Validate() error {
	if cfg.Endpoint == "" {
		return errors.New("redis endpoint is empty")
	}
	if cfg.DB < 0 {
		return errors.New("redis db must be >= 0")
	}
	if cfg.Timeout < 0 {
		return errors.New("redis timeout must be >= 0")
	}
	return nil
}
