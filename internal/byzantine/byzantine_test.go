package byzantine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryDefaultsToNone(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, None, r.Get())
}

func TestSetRejectsUnknownBehavior(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Set(Behavior("NOT_A_REAL_MODE")))
	assert.Equal(t, None, r.Get())
}

func TestSetAcceptsKnownBehavior(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Set(DropAll))
	assert.Equal(t, DropAll, r.Get())
}
