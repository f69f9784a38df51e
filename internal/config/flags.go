package config

import (
	"time"

	"github.com/spf13/pflag"
)

// RegisterFlags binds cfg's fields to fs so command-line flags override
// whatever Load produced, matching the pack's flag-overlay-on-top-of-file
// idiom. Call fs.Parse after this and after Load.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.KeyPath, "key-path", cfg.KeyPath, "path to the local identity key file")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for persisted neighbour state and default key storage")
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "daemon-to-daemon TCP bind address")
	fs.StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "local IPC socket path")
	fs.IntVar(&cfg.NeighbourBudget, "neighbour-budget", cfg.NeighbourBudget, "maximum neighbour store size (N)")
	fs.Float64Var(&cfg.Alpha, "alpha", cfg.Alpha, "neighbour score distance weight")
	fs.Float64Var(&cfg.Beta, "beta", cfg.Beta, "neighbour score angular-spread weight")
	fs.IntVar(&cfg.KReturn, "k-return", cfg.KReturn, "nodes returned by query, and the search closure k")
	fs.IntVar(&cfg.KSeed, "k-seed", cfg.KSeed, "stored neighbours seeding a search frontier")
	fs.IntVar(&cfg.MaxSearchThreads, "max-search-threads", cfg.MaxSearchThreads, "concurrent probes per search")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, or error")

	fs.Var(durationValue{cfg: cfg, get: func(c *Config) *Duration { return &c.ProbeTimeout }}, "probe-timeout", "timeout for a single search probe")
	fs.Var(durationValue{cfg: cfg, get: func(c *Config) *Duration { return &c.SearchDeadline }}, "search-deadline", "timeout for an entire search")
}

// durationValue adapts Config's Duration fields to pflag.Value directly,
// so -probe-timeout=5s writes straight into cfg without a post-parse copy.
type durationValue struct {
	cfg *Config
	get func(*Config) *Duration
}

func (d durationValue) String() string {
	if d.cfg == nil {
		return "0s"
	}
	return d.get(d.cfg).Get().String()
}

func (d durationValue) Set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d.get(d.cfg) = Duration(parsed)
	return nil
}

func (d durationValue) Type() string { return "duration" }
