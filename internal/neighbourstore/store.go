// Package neighbourstore holds the bounded, directionally-biased set of
// known peers that routes every search, adapted from the teacher repo's
// internal/dht RoutingTable down to the flat scored set this key-space
// overlay calls for in place of Kademlia buckets.
package neighbourstore

import (
	"sort"
	"sync"
	"time"

	"kipa/internal/keyspace"
	"kipa/internal/wire"
)

// Policy configures the selection policy's weights and the set's capacity.
type Policy struct {
	// MaxSize is N: the maximum number of neighbours retained.
	MaxSize int
	// Alpha weights predictability (closeness to the local key).
	Alpha float64
	// Beta weights directional spread (reward for occupying empty
	// angular gaps around the local node).
	Beta float64
}

// DefaultPolicy matches the rationale in the selection policy: alpha
// dominates so predictability holds, beta is just large enough to reward
// directional diversity.
var DefaultPolicy = Policy{MaxSize: 20, Alpha: 1.0, Beta: 0.3}

type entry struct {
	node     wire.Node
	coord    keyspace.Coordinate
	verified bool
	lastSeen time.Time
}

// Store is the neighbour set for one local identity. It is safe for
// concurrent use; consider is single-writer, list/closestTo take a
// read lock only.
type Store struct {
	mu       sync.RWMutex
	policy   Policy
	localKey wire.Key
	local    keyspace.Coordinate
	entries  []entry
}

// New creates an empty neighbour store for localKey under policy.
func New(localKey wire.Key, policy Policy) *Store {
	if policy.MaxSize <= 0 {
		policy.MaxSize = DefaultPolicy.MaxSize
	}
	return &Store{
		policy:   policy,
		localKey: localKey,
		local:    keyspace.CoordinateOf(localKey.Raw),
	}
}

// Consider offers candidate for admission. It may insert the candidate and
// may evict an existing neighbour, per the selection policy in 4.2. A
// candidate equal to the local node or already present is rejected; newly
// admitted candidates start unverified. It reports whether the candidate
// was admitted.
func (s *Store) Consider(candidate wire.Node) bool {
	if candidate.Key.Equal(s.localKey) || candidate.Key.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.node.Key.Equal(candidate.Key) {
			return false
		}
	}

	hypothetical := make([]entry, 0, len(s.entries)+1)
	hypothetical = append(hypothetical, s.entries...)
	hypothetical = append(hypothetical, entry{
		node:     candidate,
		coord:    keyspace.CoordinateOf(candidate.Key.Raw),
		lastSeen: s.now(),
	})

	for len(hypothetical) > s.policy.MaxSize {
		worst := s.worstScoreIndex(hypothetical)
		hypothetical = append(hypothetical[:worst], hypothetical[worst+1:]...)
	}

	admitted := false
	for _, e := range hypothetical {
		if e.node.Key.Equal(candidate.Key) {
			admitted = true
			break
		}
	}

	s.entries = hypothetical
	return admitted
}

// now is the single source of LastSeen timestamps: wall-clock time.
func (s *Store) now() time.Time { return time.Now() }

// worstScoreIndex returns the index of the set element with the largest
// score(x) = alpha*distance(local,x) - beta*angular_spread(x, others):
// farthest from local and most angularly redundant with everything else.
func (s *Store) worstScoreIndex(set []entry) int {
	worst := -1
	var worstScore float64
	for i, x := range set {
		others := make([]keyspace.Coordinate, 0, len(set)-1)
		for j, y := range set {
			if j != i {
				others = append(others, y.coord)
			}
		}
		score := s.policy.Alpha*keyspace.Distance(s.local, x.coord) - s.policy.Beta*angularSpread(s.local, x.coord, others)
		if worst == -1 || score > worstScore {
			worst = i
			worstScore = score
		}
	}
	return worst
}

// angularSpread is the nearest-other angular gap around the local node: the
// smallest angle(local; x, y) over all y in others. Zero-length vectors
// (x or y coincides with local) are skipped since the angle is undefined;
// a candidate with no other comparable point has infinite spread, rewarding
// it rather than penalizing it.
func angularSpread(local, x keyspace.Coordinate, others []keyspace.Coordinate) float64 {
	min := -1.0
	for _, y := range others {
		a := keyspace.Angle(local, x, y)
		if a != a { // NaN: undefined angle, skip
			continue
		}
		if min < 0 || a < min {
			min = a
		}
	}
	if min < 0 {
		return 1 << 20 // no comparable point: treat as maximally spread
	}
	return min
}

// MarkVerified tags key's entry as having answered a Verify probe at its
// declared (key, port). It is a no-op if key is not present.
func (s *Store) MarkVerified(key wire.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].node.Key.Equal(key) {
			s.entries[i].verified = true
			s.entries[i].lastSeen = s.now()
			return
		}
	}
}

// List returns every currently stored neighbour.
func (s *Store) List() wire.Nodes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(wire.Nodes, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.node
	}
	return out
}

// ClosestTo returns at most k stored neighbours closest in key space to
// key, nearest first.
func (s *Store) ClosestTo(key wire.Key, k int) wire.Nodes {
	target := keyspace.CoordinateOf(key.Raw)

	s.mu.RLock()
	candidates := make([]entry, len(s.entries))
	copy(candidates, s.entries)
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return keyspace.Distance(target, candidates[i].coord) < keyspace.Distance(target, candidates[j].coord)
	})

	if k > len(candidates) || k < 0 {
		k = len(candidates)
	}
	out := make(wire.Nodes, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].node
	}
	return out
}

// Snapshot is an entry suitable for persistence: a Node plus the store
// bookkeeping that isn't part of the selection-policy score.
type Snapshot struct {
	Node     wire.Node
	Verified bool
	LastSeen time.Time
}

// SnapshotAll returns the full store state for persistence.
func (s *Store) SnapshotAll() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, len(s.entries))
	for i, e := range s.entries {
		out[i] = Snapshot{Node: e.node, Verified: e.verified, LastSeen: e.lastSeen}
	}
	return out
}

// Restore offers every entry of a previously persisted snapshot to the
// store, alongside any entries it already holds. Entries equal to the local
// key are dropped defensively; the remainder is truncated to MaxSize by
// repeated Consider so the selection policy, not raw restoration order,
// decides what survives. A restored entry's LastSeen is the restore time,
// not the persisted value.
func (s *Store) Restore(snapshot []Snapshot) {
	for _, sn := range snapshot {
		if sn.Node.Key.Equal(s.localKey) {
			continue
		}
		if s.Consider(sn.Node) && sn.Verified {
			s.MarkVerified(sn.Node.Key)
		}
	}
}
