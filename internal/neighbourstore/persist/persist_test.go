package persist_test

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kipa/internal/neighbourstore"
	"kipa/internal/neighbourstore/persist"
	"kipa/internal/wire"
)

func keyFor(label string) wire.Key {
	raw := sha256.Sum256([]byte(label))
	return wire.Key{Fingerprint: fmt.Sprintf("%x", raw[:8]), Raw: raw[:]}
}

func TestLoadOnMissingFileYieldsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	db, err := persist.Open(filepath.Join(dir, "neighbours.db"))
	require.NoError(t, err)
	defer db.Close()

	snapshot, err := db.Load()
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	db, err := persist.Open(filepath.Join(dir, "neighbours.db"))
	require.NoError(t, err)
	defer db.Close()

	want := []neighbourstore.Snapshot{
		{Node: wire.Node{Key: keyFor("peer-a"), Addr: wire.Address{Port: 1}}, Verified: true, LastSeen: time.Unix(100, 0).UTC()},
		{Node: wire.Node{Key: keyFor("peer-b"), Addr: wire.Address{Port: 2}}},
	}
	require.NoError(t, db.Save(want))

	got, err := db.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDebouncerFlushWritesCurrentSnapshot(t *testing.T) {
	dir := t.TempDir()
	db, err := persist.Open(filepath.Join(dir, "neighbours.db"))
	require.NoError(t, err)
	defer db.Close()

	local := keyFor("local")
	store := neighbourstore.New(local, neighbourstore.DefaultPolicy)
	store.Consider(wire.Node{Key: keyFor("peer-a"), Addr: wire.Address{Port: 1}})

	deb := persist.NewDebouncer(store, db, time.Hour)
	require.NoError(t, deb.Flush())

	got, err := db.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keyFor("peer-a").Fingerprint, got[0].Node.Key.Fingerprint)
}

func TestDebouncerCloseFlushesOnce(t *testing.T) {
	dir := t.TempDir()
	db, err := persist.Open(filepath.Join(dir, "neighbours.db"))
	require.NoError(t, err)
	defer db.Close()

	local := keyFor("local")
	store := neighbourstore.New(local, neighbourstore.DefaultPolicy)

	deb := persist.NewDebouncer(store, db, time.Hour)
	go deb.Run()

	store.Consider(wire.Node{Key: keyFor("peer-a"), Addr: wire.Address{Port: 1}})
	require.NoError(t, deb.Close())

	got, err := db.Load()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
