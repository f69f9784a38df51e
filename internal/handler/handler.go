// Package handler dispatches decoded request payloads to the neighbour
// store and search engine and produces response payloads, grounded on the
// teacher repo's internal/dht dispatch table (handler.go's PING/FIND_NODE/
// STORE/FIND_VALUE switch) generalized to this overlay's five payload
// kinds.
package handler

import (
	"context"

	"kipa/internal/keyspace"
	"kipa/internal/logging"
	"kipa/internal/neighbourstore"
	"kipa/internal/search"
	"kipa/internal/wire"
)

// Config bounds the search engine invocations a handler makes on behalf of
// Search and Connect requests.
type Config struct {
	// KReturn is k_return: how many nodes Query may return, also used as
	// the k of the Search/Connect closure check. ListNeighbours is not
	// bounded by it.
	KReturn int
	// KSeed is k_seed: how many stored neighbours seed a Search's initial
	// frontier.
	KSeed int
	Search search.Config
}

// DefaultConfig matches typical small-overlay defaults; every value is
// meant to be overridden from daemon configuration.
var DefaultConfig = Config{KReturn: 20, KSeed: 3, Search: search.Config{MaxThreads: 3}}

// Handler answers decoded requests against one daemon's local state.
type Handler struct {
	localKey   wire.Key
	neighbours *neighbourstore.Store
	prober     search.Prober
	cfg        Config
	log        *logging.Logger
}

// New builds a Handler. prober is how the handler's Search/Connect
// operations reach out to other daemons; it is expected to be backed by
// the outgoing message pipeline. A nil log is replaced with a no-op logger.
func New(localKey wire.Key, neighbours *neighbourstore.Store, prober search.Prober, cfg Config, log *logging.Logger) *Handler {
	if cfg.KReturn <= 0 {
		cfg.KReturn = DefaultConfig.KReturn
	}
	if cfg.KSeed <= 0 {
		cfg.KSeed = DefaultConfig.KSeed
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{localKey: localKey, neighbours: neighbours, prober: prober, cfg: cfg, log: log}
}

// Handle dispatches one decoded request and returns the response body to
// seal and send back. It never returns a Go error: every failure mode is
// represented as an ApiError in the response, per the wire contract.
func (h *Handler) Handle(ctx context.Context, req wire.RequestBody) wire.ResponseBody {
	resp := wire.ResponseBody{MessageID: req.MessageID, Version: req.Version, Kind: req.Kind}

	switch req.Kind {
	case wire.KindQuery:
		if req.Target == nil {
			return withError(resp, wire.ErrorParse, "query requires a target key")
		}
		resp.Nodes = h.neighbours.ClosestTo(*req.Target, h.cfg.KReturn)
		return resp

	case wire.KindSearch:
		if req.Target == nil {
			return withError(resp, wire.ErrorParse, "search requires a target key")
		}
		found := h.search(ctx, *req.Target)
		if !found.Key.IsZero() {
			resp.Found = &found
			h.log.Debugw("search resolved", "target", req.Target.Fingerprint, "found", found.Key.Fingerprint)
		} else {
			h.log.Debugw("search exhausted", "target", req.Target.Fingerprint)
		}
		return resp

	case wire.KindConnect:
		if req.Connect == nil {
			return withError(resp, wire.ErrorParse, "connect requires a bootstrap node")
		}
		h.connect(ctx, *req.Connect)
		h.log.Infow("connect complete", "bootstrap", req.Connect.Key.Fingerprint, "neighbours", len(h.neighbours.List()))
		return resp

	case wire.KindListNeighbours:
		resp.Neighbours = h.neighbours.List()
		return resp

	case wire.KindVerify:
		// A correctly signed, message-id-matching reply is itself the
		// verification; there is nothing else to do.
		return resp

	default:
		return withError(resp, wire.ErrorParse, "unknown request kind")
	}
}

func withError(resp wire.ResponseBody, kind wire.ApiErrorKind, message string) wire.ResponseBody {
	resp.Error = &wire.ApiError{Kind: kind, Message: message}
	return resp
}

// search runs the Search Engine toward target and returns the matching
// Node, or the zero Node if it was not found. With an empty neighbour set
// there is nothing to seed a frontier with, so the search is skipped
// entirely rather than handed an empty frontier.
func (h *Handler) search(ctx context.Context, target wire.Key) wire.Node {
	frontier := h.neighbours.ClosestTo(target, h.cfg.KSeed)
	if len(frontier) == 0 {
		return wire.Node{}
	}

	destination := keyspace.CoordinateOf(target.Raw)
	found, err := search.Run(ctx, h.prober, destination, frontier, target, search.ForSearch(target, h.cfg.KReturn), h.cfg.Search)
	if err != nil {
		return wire.Node{}
	}
	return found
}

// connect offers bootstrap to the neighbour store and runs the Search
// Engine toward the local key, absorbing every node discovered along the
// way into the neighbour store.
func (h *Handler) connect(ctx context.Context, bootstrap wire.Node) {
	h.neighbours.Consider(bootstrap)

	destination := keyspace.CoordinateOf(h.localKey.Raw)
	base := search.ForConnect(h.cfg.KReturn)
	cb := search.Callbacks{
		OnFound: func(n wire.Node, p search.Progress) search.Outcome {
			h.neighbours.Consider(n)
			return base.OnFound(n, p)
		},
		OnExplored: base.OnExplored,
	}

	_, _ = search.Run(ctx, h.prober, destination, wire.Nodes{bootstrap}, h.localKey, cb, h.cfg.Search)
}
