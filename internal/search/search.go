// Package search implements the parallel greedy best-first search that
// backs both the Search and Connect operations, adapted from the teacher
// repo's internal/dht iterative lookup (its unqueried/querying/done/failed
// candidate state machine and channel-driven worker completion) down to a
// callback-terminated walk over an arbitrary key-space destination rather
// than Kademlia's FIND_NODE/FIND_VALUE RPCs.
package search

import (
	"context"
	"sort"
	"time"

	"kipa/internal/keyspace"
	"kipa/internal/wire"
)

// Verdict is a callback's decision after observing one node.
type Verdict int

const (
	// Continue keeps the search running.
	Continue Verdict = iota
	// Finish terminates the search immediately with the attached result.
	Finish
	// Fail terminates the search immediately with the attached error.
	Fail
)

// Outcome is a callback's return value.
type Outcome struct {
	Verdict Verdict
	Found   wire.Node
	Err     error
}

// Progress is the read-only view into the search's internal bookkeeping,
// available to callbacks so higher-level termination rules (closure on the
// k nearest found nodes) can be expressed without reaching into the
// engine's private state.
type Progress interface {
	// ClosestFound returns at most k nodes from the found set, nearest
	// first to the search's destination, ties broken by fingerprint.
	ClosestFound(k int) wire.Nodes
	// Explored reports whether key has already been probed (successfully
	// or not) in this search.
	Explored(key wire.Key) bool
}

// OnFound is invoked once per node the first time it is observed, whether
// from the initial frontier or from another node's reported neighbours.
type OnFound func(node wire.Node, progress Progress) Outcome

// OnExplored is invoked once a probe against a node completes or fails.
type OnExplored func(node wire.Node, progress Progress) Outcome

// Callbacks bundles the two termination-deciding callbacks for one run.
type Callbacks struct {
	OnFound    OnFound
	OnExplored OnExplored
}

// Prober sends a Query(target) probe to candidate and reports the nodes it
// claims are close to target, or an error on transport/envelope failure.
// Implementations are expected to apply their own per-call timeout from
// ctx; the engine additionally enforces Config.ProbeTimeout around every
// call.
type Prober interface {
	Probe(ctx context.Context, candidate wire.Node, target wire.Key) (wire.Nodes, error)
}

// Config bounds a single Run's concurrency and timing.
type Config struct {
	// MaxThreads is the maximum number of probes in flight at once.
	MaxThreads int
	// ProbeTimeout bounds a single probe; expiry counts as a probe
	// failure, not a search failure.
	ProbeTimeout time.Duration
	// Deadline bounds the whole search; expiry yields a "not found"
	// result, not an error.
	Deadline time.Duration
}

type candidateState int

const (
	stUnqueried candidateState = iota
	stQuerying
	stExplored
)

type candidateEntry struct {
	node  wire.Node
	dist  float64
	state candidateState
}

type event struct {
	node       wire.Node
	neighbours wire.Nodes
}

// engine holds one Run's private state. It is only ever touched from the
// single goroutine driving the event loop, so no locking is needed despite
// workers running concurrently: workers only ever post events, never
// mutate engine state directly.
type engine struct {
	destination keyspace.Coordinate
	cand        map[string]*candidateEntry
}

func (e *engine) distanceTo(key wire.Key) float64 {
	return keyspace.Distance(keyspace.CoordinateOf(key.Raw), e.destination)
}

// ClosestFound implements Progress.
func (e *engine) ClosestFound(k int) wire.Nodes {
	out := make([]*candidateEntry, 0, len(e.cand))
	for _, c := range e.cand {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessCandidate(out[i], out[j]) })
	if k > len(out) || k < 0 {
		k = len(out)
	}
	nodes := make(wire.Nodes, k)
	for i := 0; i < k; i++ {
		nodes[i] = out[i].node
	}
	return nodes
}

// Explored implements Progress.
func (e *engine) Explored(key wire.Key) bool {
	c, ok := e.cand[key.Fingerprint]
	return ok && c.state == stExplored
}

func lessCandidate(a, b *candidateEntry) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.node.Key.Fingerprint < b.node.Key.Fingerprint
}

// popClosestUnqueried returns the closest candidate still in stUnqueried,
// transitioning it to stQuerying, or nil if none remain.
func (e *engine) popClosestUnqueried() *candidateEntry {
	var best *candidateEntry
	for _, c := range e.cand {
		if c.state != stUnqueried {
			continue
		}
		if best == nil || lessCandidate(c, best) {
			best = c
		}
	}
	if best != nil {
		best.state = stQuerying
	}
	return best
}

func (e *engine) pendingCount() int {
	n := 0
	for _, c := range e.cand {
		if c.state == stUnqueried {
			n++
		}
	}
	return n
}

// Run drives the search to completion and returns the node a Finish
// verdict carried, the zero Node for an exhausted ("not found") search, or
// a non-nil error if a callback returned Fail.
func Run(ctx context.Context, prober Prober, destination keyspace.Coordinate, frontier wire.Nodes, target wire.Key, cb Callbacks, cfg Config) (wire.Node, error) {
	if cfg.MaxThreads < 1 {
		cfg.MaxThreads = 1
	}

	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := &engine{destination: destination, cand: make(map[string]*candidateEntry)}

	for _, n := range frontier {
		if _, ok := e.cand[n.Key.Fingerprint]; ok {
			continue
		}
		e.cand[n.Key.Fingerprint] = &candidateEntry{node: n, dist: e.distanceTo(n.Key), state: stUnqueried}
		if out := cb.OnFound(n, e); out.Verdict != Continue {
			return finish(out)
		}
	}

	if len(e.cand) == 0 {
		return wire.Node{}, nil
	}

	events := make(chan event, cfg.MaxThreads)
	inflight := 0

	for {
		if inflight == 0 && e.pendingCount() == 0 {
			return wire.Node{}, nil
		}

		if e.pendingCount() == 0 || inflight >= cfg.MaxThreads {
			select {
			case ev := <-events:
				inflight--
				if out, done := e.processEvent(ev, cb); done {
					return finish(out)
				}
			case <-ctx.Done():
				return wire.Node{}, nil
			}
			continue
		}

		c := e.popClosestUnqueried()
		if c == nil {
			// Defensive only: pendingCount > 0 guarantees an unqueried
			// candidate, since only this goroutine changes states.
			continue
		}

		inflight++
		go func(c *candidateEntry) {
			probeCtx := ctx
			if cfg.ProbeTimeout > 0 {
				var cancel context.CancelFunc
				probeCtx, cancel = context.WithTimeout(ctx, cfg.ProbeTimeout)
				defer cancel()
			}
			neighbours, err := prober.Probe(probeCtx, c.node, target)
			if err != nil {
				neighbours = nil
			}
			select {
			case events <- event{node: c.node, neighbours: neighbours}:
			case <-ctx.Done():
			}
		}(c)
	}
}

// processEvent merges a completed probe's reported neighbours into the
// found set before evaluating on_explored, not after: the closure
// condition ("the k nearest found nodes are all explored") is only a
// meaningful stopping signal once whatever X just reported has had a
// chance to join the candidate pool. Evaluating on_explored first would
// make a single-neighbour frontier close out the search on its very first
// probe, before a closer node it just learned about was ever considered.
func (e *engine) processEvent(ev event, cb Callbacks) (Outcome, bool) {
	if c, ok := e.cand[ev.node.Key.Fingerprint]; ok {
		c.state = stExplored
	}

	for _, y := range ev.neighbours {
		if _, ok := e.cand[y.Key.Fingerprint]; ok {
			continue
		}
		e.cand[y.Key.Fingerprint] = &candidateEntry{node: y, dist: e.distanceTo(y.Key), state: stUnqueried}
		if out := cb.OnFound(y, e); out.Verdict != Continue {
			return out, true
		}
	}

	if out := cb.OnExplored(ev.node, e); out.Verdict != Continue {
		return out, true
	}

	return Outcome{}, false
}

func finish(out Outcome) (wire.Node, error) {
	if out.Verdict == Fail {
		return wire.Node{}, out.Err
	}
	return out.Found, nil
}
