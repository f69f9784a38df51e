package neighbourstore_test

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kipa/internal/neighbourstore"
	"kipa/internal/wire"
)

func keyFor(label string) wire.Key {
	raw := sha256.Sum256([]byte(label))
	return wire.Key{Fingerprint: fmt.Sprintf("%x", raw[:8]), Raw: raw[:]}
}

func nodeFor(label string) wire.Node {
	return wire.Node{Key: keyFor(label), Addr: wire.Address{Port: 1}}
}

func TestConsiderRejectsLocalAndDuplicate(t *testing.T) {
	local := keyFor("local")
	s := neighbourstore.New(local, neighbourstore.DefaultPolicy)

	assert.False(t, s.Consider(wire.Node{Key: local}))

	peer := nodeFor("peer-a")
	assert.True(t, s.Consider(peer))
	assert.False(t, s.Consider(peer))

	assert.Len(t, s.List(), 1)
}

func TestConsiderNeverExceedsMaxSize(t *testing.T) {
	local := keyFor("local")
	s := neighbourstore.New(local, neighbourstore.Policy{MaxSize: 3, Alpha: 1, Beta: 0.3})

	for i := 0; i < 20; i++ {
		s.Consider(nodeFor(fmt.Sprintf("peer-%d", i)))
	}

	list := s.List()
	assert.LessOrEqual(t, len(list), 3)

	seen := map[string]bool{}
	for _, n := range list {
		require.False(t, seen[n.Key.Fingerprint], "duplicate key in neighbour set")
		seen[n.Key.Fingerprint] = true
		assert.NotEqual(t, local.Fingerprint, n.Key.Fingerprint)
	}
}

func TestClosestToOrdersByDistance(t *testing.T) {
	local := keyFor("local")
	s := neighbourstore.New(local, neighbourstore.Policy{MaxSize: 50, Alpha: 1, Beta: 0.3})

	for i := 0; i < 10; i++ {
		s.Consider(nodeFor(fmt.Sprintf("peer-%d", i)))
	}

	target := keyFor("peer-3")
	closest := s.ClosestTo(target, 3)
	require.Len(t, closest, 3)
	assert.Equal(t, target.Fingerprint, closest[0].Key.Fingerprint)
}

func TestMarkVerifiedReflectsInSnapshot(t *testing.T) {
	local := keyFor("local")
	s := neighbourstore.New(local, neighbourstore.DefaultPolicy)

	peer := nodeFor("peer-a")
	s.Consider(peer)
	s.MarkVerified(peer.Key)

	snap := s.SnapshotAll()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Verified)
}

func TestRestoreRebuildsFromSnapshotUnderPolicy(t *testing.T) {
	local := keyFor("local")
	original := neighbourstore.New(local, neighbourstore.Policy{MaxSize: 5, Alpha: 1, Beta: 0.3})
	for i := 0; i < 5; i++ {
		original.Consider(nodeFor(fmt.Sprintf("peer-%d", i)))
	}
	snap := original.SnapshotAll()

	restored := neighbourstore.New(local, neighbourstore.Policy{MaxSize: 5, Alpha: 1, Beta: 0.3})
	restored.Restore(snap)

	assert.Len(t, restored.List(), len(snap))
}
