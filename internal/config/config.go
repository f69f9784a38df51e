// Package config loads daemon configuration from a JSON file, overridable
// by command-line flags, following the pack's LoadConfig-from-file idiom
// (arobie1992-go-clarinet's config.LoadConfig) with an additional flag
// overlay layered on with github.com/spf13/pflag.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kipa/internal/wire"
)

// Config is everything a daemon needs to start: its identity, where it
// listens, the neighbour store's budget, and the search engine's defaults.
type Config struct {
	// KeyPath is the path to the local identity's hex-encoded 32-byte
	// seed file, created on first start if absent. Empty means
	// DataDir/identity.seed.
	KeyPath string `json:"key_path"`

	// DataDir holds the bbolt neighbour-persistence file and, by
	// default, the key file.
	DataDir string `json:"data_dir"`

	// ListenAddr is the daemon-to-daemon TCP bind address, e.g. ":7400".
	ListenAddr string `json:"listen_addr"`

	// SocketPath is the local Unix-domain IPC socket the CLI dials.
	SocketPath string `json:"socket_path"`

	// NeighbourBudget is N, the neighbour store's maximum size.
	NeighbourBudget int `json:"neighbour_budget"`

	// Alpha and Beta weight the neighbour selection score:
	// score(x) = alpha*distance(local,x) - beta*angular_spread(x, others).
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`

	// KReturn bounds how many nodes a Query response carries and is the k
	// of a search's closure check (ListNeighbours always returns the whole
	// set); KSeed bounds how many stored neighbours seed a search's
	// initial frontier.
	KReturn int `json:"k_return"`
	KSeed   int `json:"k_seed"`

	// MaxSearchThreads bounds concurrent probes within one search.
	MaxSearchThreads int `json:"max_search_threads"`

	// ProbeTimeout bounds a single probe; SearchDeadline bounds a whole
	// search. Both are parsed from Go duration strings (e.g. "5s").
	ProbeTimeout   Duration `json:"probe_timeout"`
	SearchDeadline Duration `json:"search_deadline"`

	// DefaultMode is the wire security mode used for outgoing requests
	// when a peer's preferred mode is not otherwise known.
	DefaultMode wire.Mode `json:"default_mode"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"log_level"`
}

// Duration is a time.Duration that unmarshals from a Go duration string
// rather than a number of nanoseconds, since a JSON config file is meant
// to be hand-edited.
type Duration time.Duration

func (d Duration) Get() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default matches typical small-overlay defaults; every value is meant to
// be overridden by a config file or flags.
var Default = Config{
	DataDir:          "./data",
	ListenAddr:       ":7400",
	SocketPath:       "./data/kipa.sock",
	NeighbourBudget:  20,
	Alpha:            1.0,
	Beta:             0.3,
	KReturn:          20,
	KSeed:            3,
	MaxSearchThreads: 3,
	ProbeTimeout:     Duration(5 * time.Second),
	SearchDeadline:   Duration(30 * time.Second),
	DefaultMode:      wire.ModePrivate,
	LogLevel:         "info",
}

// Load reads path as JSON over a copy of Default, so any field the file
// omits keeps its default value. An empty path is not an error: Default
// is returned unchanged, matching the pack's "missing config file starts
// empty, not fatal" persistence idiom.
func Load(path string) (Config, error) {
	cfg := Default
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := json.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
