// Package daemon is the process composition root: it owns the local
// identity, the listening transports, the neighbour store, and drives
// graceful shutdown. Adapted from the teacher repo's internal/park-node
// app.go, which plays the same role for the Node/UI pairing there.
package daemon

import (
	"context"
	"fmt"
	"net"
	"sync"

	"kipa/internal/config"
	"kipa/internal/envelope"
	"kipa/internal/handler"
	"kipa/internal/identity"
	"kipa/internal/logging"
	"kipa/internal/neighbourstore"
	"kipa/internal/neighbourstore/persist"
	"kipa/internal/pipeline"
	"kipa/internal/search"
	"kipa/internal/transport"
	"kipa/internal/transport/tcp"
	"kipa/internal/transport/unix"
	"kipa/internal/wire"
	"kipa/internal/wirecodec/jsoncodec"
)

// Daemon is one running KIPA node: it answers daemon-to-daemon requests and
// local IPC requests against the same neighbour store and handler.
type Daemon struct {
	cfg  config.Config
	log  *logging.Logger
	key  wire.Key
	port uint16

	neighbours *neighbourstore.Store
	db         *persist.DB
	debouncer  *persist.Debouncer

	tcpListener  transport.Listener
	unixListener transport.Listener

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New assembles a Daemon from cfg: loads or creates the local identity,
// opens neighbour persistence and restores any prior state, and builds the
// request pipelines, then binds the TCP and Unix listeners and starts
// serving them and the persistence flush loop before it returns.
func New(cfg config.Config, log *logging.Logger) (*Daemon, error) {
	if log == nil {
		log = logging.Nop()
	}

	keyPath := cfg.KeyPath
	if keyPath == "" {
		keyPath = cfg.DataDir + "/identity.seed"
	}
	provider, err := identity.LoadOrCreate(keyPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: load identity: %w", err)
	}
	pub := provider.LocalPublicKey()
	localKey := wire.Key{Fingerprint: provider.Fingerprint(pub), Raw: pub.Raw}

	_, portStr, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("daemon: invalid listen address %q: %w", cfg.ListenAddr, err)
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return nil, fmt.Errorf("daemon: invalid listen port %q: %w", portStr, err)
	}

	neighbours := neighbourstore.New(localKey, neighbourstore.Policy{
		MaxSize: cfg.NeighbourBudget,
		Alpha:   cfg.Alpha,
		Beta:    cfg.Beta,
	})

	db, err := persist.Open(cfg.DataDir + "/neighbours.db")
	if err != nil {
		return nil, fmt.Errorf("daemon: open neighbour persistence: %w", err)
	}
	snapshot, err := db.Load()
	if err != nil {
		log.Warnw("neighbour persistence load failed, starting empty", "err", err)
	} else {
		neighbours.Restore(snapshot)
	}
	debouncer := persist.NewDebouncer(neighbours, db, persist.DefaultInterval)

	env := envelope.New(provider, jsoncodec.New())
	outgoing := pipeline.NewOutgoing(localKey, port, tcp.New(), env, cfg.DefaultMode, log)
	prober := pipeline.NewProber(outgoing)

	hcfg := handler.Config{
		KReturn: cfg.KReturn,
		KSeed:   cfg.KSeed,
		Search: search.Config{
			MaxThreads:   cfg.MaxSearchThreads,
			ProbeTimeout: cfg.ProbeTimeout.Get(),
			Deadline:     cfg.SearchDeadline.Get(),
		},
	}
	h := handler.New(localKey, neighbours, prober, hcfg, log)
	incoming := pipeline.NewIncoming(env, h, neighbours, outgoing, log)

	localIncoming := pipeline.NewIncoming(env, h, neighbours, nil, log)

	d := &Daemon{
		cfg:        cfg,
		log:        log,
		key:        localKey,
		port:       port,
		neighbours: neighbours,
		db:         db,
		debouncer:  debouncer,
	}

	tcpListener, err := tcp.New().Listen(transport.Addr(cfg.ListenAddr))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("daemon: listen tcp %s: %w", cfg.ListenAddr, err)
	}
	d.tcpListener = tcpListener

	unixListener, err := unix.New().Listen(transport.Addr(cfg.SocketPath))
	if err != nil {
		_ = tcpListener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("daemon: listen unix %s: %w", cfg.SocketPath, err)
	}
	d.unixListener = unixListener

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.wg.Add(3)
	go d.serve(ctx, tcpListener, incoming)
	go d.serve(ctx, unixListener, localIncoming)
	go func() {
		defer d.wg.Done()
		debouncer.Run()
	}()

	return d, nil
}

// LocalKey returns the daemon's identity key.
func (d *Daemon) LocalKey() wire.Key { return d.key }

// Neighbours returns the daemon's neighbour store, for diagnostics or an
// in-process caller (e.g. a test harness) that wants direct access.
func (d *Daemon) Neighbours() *neighbourstore.Store { return d.neighbours }

func (d *Daemon) serve(ctx context.Context, l transport.Listener, in *pipeline.Incoming) {
	defer d.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer conn.Close()
			if err := in.HandleConn(ctx, conn); err != nil {
				d.log.Debugw("request handling failed", "err", err)
			}
		}()
	}
}

// Shutdown stops accepting new connections, cancels in-flight searches,
// flushes the neighbour store to disk, and waits for all handler
// goroutines to finish.
func (d *Daemon) Shutdown() error {
	d.cancel()
	_ = d.tcpListener.Close()
	_ = d.unixListener.Close()

	var flushErr error
	if err := d.debouncer.Close(); err != nil {
		flushErr = fmt.Errorf("daemon: final neighbour flush: %w", err)
	}

	d.wg.Wait()

	if err := d.db.Close(); err != nil && flushErr == nil {
		flushErr = fmt.Errorf("daemon: close neighbour db: %w", err)
	}
	return flushErr
}
