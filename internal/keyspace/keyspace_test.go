package keyspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateOfIsDeterministic(t *testing.T) {
	raw := []byte("some-public-key-bytes")
	a := CoordinateOf(raw)
	b := CoordinateOf(raw)
	assert.Equal(t, a, b)
}

func TestCoordinateOfDistinguishesInputs(t *testing.T) {
	a := CoordinateOf([]byte("alice"))
	b := CoordinateOf([]byte("bob"))
	assert.NotEqual(t, a, b)
}

func TestCoordinateOfStaysInCube(t *testing.T) {
	c := CoordinateOf([]byte("whatever"))
	for i, v := range c {
		assert.GreaterOrEqualf(t, v, -1.0, "component %d below range", i)
		assert.LessOrEqualf(t, v, 1.0, "component %d above range", i)
	}
}

func TestDistanceSymmetricAndZeroForSelf(t *testing.T) {
	a := CoordinateOf([]byte("alice"))
	b := CoordinateOf([]byte("bob"))
	assert.Equal(t, Distance(a, b), Distance(b, a))
	assert.Equal(t, 0.0, Distance(a, a))
}

func TestAngleBoundsAndUndefinedAtOrigin(t *testing.T) {
	origin := CoordinateOf([]byte("origin"))
	a := CoordinateOf([]byte("a"))
	b := CoordinateOf([]byte("b"))

	angle := Angle(origin, a, b)
	assert.GreaterOrEqual(t, angle, 0.0)
	assert.LessOrEqual(t, angle, math.Pi)

	// Zero-length vector from origin is undefined, not a panic.
	assert.True(t, math.IsNaN(Angle(origin, origin, b)))
}
