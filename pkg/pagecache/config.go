package pagecache

import (
	"flag"
	"time"

	"github.com/pkg/errors"

	"github.com/grafana/kvcache/pkg/util"
)

// DefaultTTL is how long a fetched page is served from the store.
const DefaultTTL = 10 * time.Second

type Config struct {
	TTL   time.Duration `yaml:"ttl"`
	Fetch FetchConfig   `yaml:"fetch"`
}

// RegisterFlagsAndApplyDefaults registers flags and applies defaults
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.TTL, util.PrefixConfig(prefix, "ttl"), DefaultTTL, "How long a fetched page is cached.")

	cfg.Fetch.RegisterFlagsAndApplyDefaults(util.PrefixConfig(prefix, "fetch"), f)
}

func (cfg *Config) Validate() error {
	if cfg.TTL <= 0 {
		return errors.New("page cache ttl must be > 0")
	}
	return cfg.Fetch.Validate()
}

// FetchConfig configures the HTTP client pages are fetched with.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"user_agent"`
	HedgeRequestsAt   time.Duration `yaml:"hedge_requests_at"`
	HedgeRequestsUpTo int           `yaml:"hedge_requests_up_to"`
	BreakerFailures   int           `yaml:"breaker_consecutive_failures"`
	BreakerOpenFor    time.Duration `yaml:"breaker_open_timeout"`
}

// RegisterFlagsAndApplyDefaults registers flags and applies defaults
func (cfg *FetchConfig) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.DurationVar(&cfg.Timeout, util.PrefixConfig(prefix, "timeout"), 0, "Timeout for fetching a page. 0 means no timeout.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "kvcache", "User-Agent header sent when fetching pages.")
	f.DurationVar(&cfg.HedgeRequestsAt, util.PrefixConfig(prefix, "hedge-requests-at"), 0, "If set to a non-zero value a second request will be issued at the provided duration. 0 disables hedging.")
	f.IntVar(&cfg.HedgeRequestsUpTo, util.PrefixConfig(prefix, "hedge-requests-up-to"), 2, "The maximum number of requests to execute when hedging. Requires hedge-requests-at to be set.")
	f.IntVar(&cfg.BreakerFailures, util.PrefixConfig(prefix, "breaker-consecutive-failures"), 0, "Consecutive failed fetches that open the circuit breaker. 0 disables the breaker.")
	f.DurationVar(&cfg.BreakerOpenFor, util.PrefixConfig(prefix, "breaker-open-timeout"), 30*time.Second, "How long the circuit breaker stays open before letting a fetch through.")
}

func (cfg *FetchConfig) Validate() error {
	if cfg.Timeout < 0 {
		return errors.New("fetch timeout must be >= 0")
	}
	if cfg.HedgeRequestsAt > 0 && cfg.HedgeRequestsUpTo < 2 {
		return errors.New("hedge_requests_up_to must be >= 2 when hedging is enabled")
	}
	if cfg.BreakerFailures < 0 {
		return errors.New("breaker_consecutive_failures must be >= 0")
	}
	return nil
}
