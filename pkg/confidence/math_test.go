package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(nil))
	assert.Equal(t, 0.0, Aggregate([]float64{0.9, 0}))
	assert.InDelta(t, 0.6, Aggregate([]float64{0.9, 0.4}), 1e-9)
}

func TestDecay(t *testing.T) {
	assert.Equal(t, 0.9, Decay(0.9, 0))
	assert.InDelta(t, 0.729, Decay(0.9, 2), 1e-9)
}

func TestFromResidual(t *testing.T) {
	assert.Equal(t, 1.0, FromResidual(0, 0.05))
	assert.InDelta(t, 0.5, FromResidual(0.05, 0.05), 1e-9)
	assert.InDelta(t, 0.5, FromResidual(-0.05, 0.05), 1e-9)
	assert.Less(t, FromResidual(1, 0.05), 0.05)
	assert.Equal(t, 1.0, FromResidual(0, 0))
	assert.Equal(t, 0.0, FromResidual(0.1, 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.2))
	assert.Equal(t, 1.0, Clamp(1.3))
	assert.Equal(t, 0.4, Clamp(0.4))
}
