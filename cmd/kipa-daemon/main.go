// Command kipa-daemon runs one KIPA node: it listens for daemon-to-daemon
// lookup traffic and for local IPC traffic from kipa-cli.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"kipa/internal/config"
	"kipa/internal/daemon"
	"kipa/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kipa-daemon:", err)
		os.Exit(1)
	}
}

func run() error {
	// -config is parsed ahead of the rest so Load can supply the
	// defaults every other flag overlays; a lone unknown-flag-tolerant
	// pass picks it out without disturbing the full parse below.
	preScan := pflag.NewFlagSet("kipa-daemon", pflag.ContinueOnError)
	preScan.ParseErrorsWhitelist.UnknownFlags = true
	configPath := preScan.String("config", "", "path to a JSON config file")
	if err := preScan.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	fs := pflag.CommandLine
	fs.String("config", *configPath, "path to a JSON config file")
	config.RegisterFlags(fs, &cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	log.Infow("daemon started", "key", d.LocalKey().Fingerprint, "listen", cfg.ListenAddr, "socket", cfg.SocketPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infow("shutting down")
	return d.Shutdown()
}
