package pipeline

import (
	"context"
	"fmt"

	"kipa/internal/transport"
	"kipa/internal/wire"
)

// Prober adapts an Outgoing pipeline to the search engine's narrow Prober
// interface: a Query(target) request to one candidate, reporting the nodes
// it claims are close.
type Prober struct {
	out *Outgoing
}

// NewProber wraps out as a search.Prober.
func NewProber(out *Outgoing) Prober {
	return Prober{out: out}
}

// Probe sends Query(target) to candidate and returns the nodes it reports.
func (p Prober) Probe(ctx context.Context, candidate wire.Node, target wire.Key) (wire.Nodes, error) {
	body := wire.RequestBody{Version: "1", Kind: wire.KindQuery, Target: &target}
	resp, err := p.out.Send(ctx, transport.Addr(candidate.Addr.String()), candidate.Key, body)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("pipeline: peer reported %s: %s", resp.Error.Kind, resp.Error.Message)
	}
	return resp.Nodes, nil
}
