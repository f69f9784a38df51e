package pipeline_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kipa/internal/cryptoprovider/noisebox"
	"kipa/internal/envelope"
	"kipa/internal/handler"
	"kipa/internal/logging"
	"kipa/internal/neighbourstore"
	"kipa/internal/pipeline"
	"kipa/internal/transport"
	"kipa/internal/transport/inmem"
	"kipa/internal/wire"
	"kipa/internal/wirecodec/jsoncodec"
)

type testDaemon struct {
	key        wire.Key
	addr       wire.Address
	neighbours *neighbourstore.Store
	outgoing   *pipeline.Outgoing
	listener   transport.Listener
}

func newDaemon(t *testing.T, network *inmem.Network, port uint16, mode wire.Mode) *testDaemon {
	t.Helper()

	provider, err := noisebox.Generate()
	require.NoError(t, err)
	pub := provider.LocalPublicKey()
	key := wire.Key{Fingerprint: provider.Fingerprint(pub), Raw: pub.Raw}
	addr := wire.Address{IP: net.ParseIP("127.0.0.1"), Port: port}

	env := envelope.New(provider, jsoncodec.New())
	stream := inmem.NewStream(network, transport.Addr(addr.String()))

	listener, err := stream.Listen(transport.Addr(addr.String()))
	require.NoError(t, err)

	neighbours := neighbourstore.New(key, neighbourstore.DefaultPolicy)
	outgoing := pipeline.NewOutgoing(key, port, stream, env, mode, logging.Nop())
	prober := pipeline.NewProber(outgoing)
	h := handler.New(key, neighbours, prober, handler.DefaultConfig, logging.Nop())
	incoming := pipeline.NewIncoming(env, h, neighbours, outgoing, logging.Nop())

	d := &testDaemon{key: key, addr: addr, neighbours: neighbours, outgoing: outgoing, listener: listener}

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = incoming.HandleConn(context.Background(), conn)
			}()
		}
	}()

	return d
}

func nodeOf(d *testDaemon) wire.Node {
	return wire.Node{Key: d.key, Addr: d.addr}
}

func TestOneHopSearchFindsTargetThroughIntermediary(t *testing.T) {
	network := inmem.NewNetwork()
	target := newDaemon(t, network, 9101, wire.ModePrivate)
	b := newDaemon(t, network, 9102, wire.ModePrivate)
	a := newDaemon(t, network, 9103, wire.ModePrivate)

	// A's neighbours = {B}; B's neighbours = {target}.
	a.neighbours.Consider(nodeOf(b))
	b.neighbours.Consider(nodeOf(target))

	prober := pipeline.NewProber(a.outgoing)
	h := handler.New(a.key, a.neighbours, prober, handler.DefaultConfig, logging.Nop())

	resp := h.Handle(context.Background(), wire.RequestBody{MessageID: 1, Version: "1", Kind: wire.KindSearch, Target: &target.key})

	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Found)
	assert.Equal(t, target.key.Fingerprint, resp.Found.Key.Fingerprint)
}

func TestLocalQueryWithEmptyNeighboursReturnsEmptyList(t *testing.T) {
	network := inmem.NewNetwork()
	a := newDaemon(t, network, 9201, wire.ModeFast)

	prober := pipeline.NewProber(a.outgoing)
	h := handler.New(a.key, a.neighbours, prober, handler.DefaultConfig, logging.Nop())

	target := wire.Key{Fingerprint: "does-not-matter", Raw: []byte("does-not-matter")}
	resp := h.Handle(context.Background(), wire.RequestBody{MessageID: 1, Version: "1", Kind: wire.KindQuery, Target: &target})

	assert.Nil(t, resp.Error)
	assert.Empty(t, resp.Nodes)
}

func TestConnectAbsorbsBootstrapAndItsNeighbours(t *testing.T) {
	network := inmem.NewNetwork()
	x := newDaemon(t, network, 9301, wire.ModePrivate)
	bootstrap := newDaemon(t, network, 9302, wire.ModePrivate)
	a := newDaemon(t, network, 9303, wire.ModePrivate)

	bootstrap.neighbours.Consider(nodeOf(x))

	prober := pipeline.NewProber(a.outgoing)
	h := handler.New(a.key, a.neighbours, prober, handler.DefaultConfig, logging.Nop())

	resp := h.Handle(context.Background(), wire.RequestBody{
		MessageID: 1, Version: "1", Kind: wire.KindConnect, Connect: ptrNode(nodeOf(bootstrap)),
	})

	require.Nil(t, resp.Error)

	fingerprints := map[string]bool{}
	for _, n := range a.neighbours.List() {
		fingerprints[n.Key.Fingerprint] = true
	}
	assert.True(t, fingerprints[bootstrap.key.Fingerprint])
	assert.True(t, fingerprints[x.key.Fingerprint])
}

func TestSealRequestRejectsUnsupportedModeBeforeAnyBytesLeave(t *testing.T) {
	provider, err := noisebox.Generate()
	require.NoError(t, err)
	env := envelope.New(provider, jsoncodec.New())
	pub := provider.LocalPublicKey()
	callerKey := wire.Key{Fingerprint: provider.Fingerprint(pub), Raw: pub.Raw}

	_, err = env.SealRequest(wire.Mode("nonsense"), wire.SenderNode{Key: callerKey, Port: 1}, callerKey, wire.RequestBody{Kind: wire.KindQuery})
	assert.ErrorIs(t, err, envelope.ErrUnsupportedMode)
}

func TestFastModeRequestIsAnsweredInFastMode(t *testing.T) {
	network := inmem.NewNetwork()
	target := newDaemon(t, network, 9401, wire.ModeFast)
	a := newDaemon(t, network, 9402, wire.ModeFast)

	prober := pipeline.NewProber(a.outgoing)
	resp, err := prober.Probe(ctxWithTimeout(t), nodeOf(target), target.key)
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func ptrNode(n wire.Node) *wire.Node { return &n }

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
