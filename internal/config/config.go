package config

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a setting is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Host            string        `env:"BGROLLOUT_HOST" envDefault:"localhost"`
	Port            int           `env:"BGROLLOUT_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"BGROLLOUT_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"BGROLLOUT_WRITE_TIMEOUT" envDefault:"5m"`
	IdleTimeout     time.Duration `env:"BGROLLOUT_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"BGROLLOUT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxFastWorkers  int           `env:"BGROLLOUT_MAX_FAST_WORKERS" envDefault:"100"`
	MaxSlowWorkers  int           `env:"BGROLLOUT_MAX_SLOW_WORKERS" envDefault:"4"`
	CacheSize       int           `env:"BGROLLOUT_CACHE_SIZE" envDefault:"16384"`
	MaxTrials       int           `env:"BGROLLOUT_MAX_TRIALS" envDefault:"100000"`
	Rollout         RolloutConfig
}

// RolloutConfig holds rollout defaults shared by the CLI and the server.
type RolloutConfig struct {
	Trials  int   `env:"BGROLLOUT_TRIALS" envDefault:"1000"`
	Workers int   `env:"BGROLLOUT_WORKERS" envDefault:"0"`
	Seed    int64 `env:"BGROLLOUT_SEED" envDefault:"0"`
}

// RegisterFlags adds rollout flags to fs, defaulting to the current values.
func (c *RolloutConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Trials, "trials", c.Trials, "Number of games to simulate")
	fs.IntVar(&c.Workers, "workers", c.Workers, "Parallel workers (0 = all CPUs)")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed (0 = random)")
}

// Validate checks the rollout settings.
func (c RolloutConfig) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", ErrInvalidConfig, c.Trials)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Validate checks the server settings.
func (c ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.MaxFastWorkers <= 0 || c.MaxSlowWorkers <= 0 {
		return fmt.Errorf("%w: worker limits must be positive", ErrInvalidConfig)
	}
	if c.MaxTrials <= 0 {
		return fmt.Errorf("%w: max trials must be positive, got %d", ErrInvalidConfig, c.MaxTrials)
	}
	return c.Rollout.Validate()
}

// ParseServerConfig loads the environment and then parses flags from args.
func ParseServerConfig(fs *flag.FlagSet, args []string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host to bind to (use 0.0.0.0 for all interfaces)")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "HTTP write timeout")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "HTTP idle timeout")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Grace period for in-flight requests")
	fs.IntVar(&cfg.MaxFastWorkers, "fast-workers", cfg.MaxFastWorkers, "Max concurrent move requests")
	fs.IntVar(&cfg.MaxSlowWorkers, "slow-workers", cfg.MaxSlowWorkers, "Max concurrent rollouts")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Move cache entries (negative disables)")
	fs.IntVar(&cfg.MaxTrials, "max-trials", cfg.MaxTrials, "Largest rollout a request may ask for")
	cfg.Rollout.RegisterFlags(fs)
	if err := parseArgs(fs, args); err != nil {
		return ServerConfig{}, err
	}
	return cfg, cfg.Validate()
}

// ParseRolloutConfig loads rollout defaults from the environment and
// registers their flags on fs. The caller parses fs.
func ParseRolloutConfig(fs *flag.FlagSet) (*RolloutConfig, error) {
	var cfg RolloutConfig
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.RegisterFlags(fs)
	return &cfg, nil
}

func parseArgs(fs *flag.FlagSet, args []string) error {
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}
