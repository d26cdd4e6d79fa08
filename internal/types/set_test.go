package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOps(t *testing.T) {
	a := NewSet(1, 2, 3)
	b := NewSet(2, 3, 4)

	assert.True(t, a.Contains(1))
	assert.False(t, a.Contains(4))
	assert.ElementsMatch(t, []NodeID{2, 3}, a.Intersect(b).Sorted())
	assert.ElementsMatch(t, []NodeID{1, 2, 3, 4}, a.Union(b).Sorted())
	assert.True(t, NewSet(1, 2).Subset(a))
	assert.False(t, b.Subset(a))
	assert.True(t, a.Equal(NewSet(3, 2, 1)))
}

func TestSetJSONRoundTrip(t *testing.T) {
	s := NewSet(3, 1, 2)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2,3]", string(data))

	var out Set
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, s.Equal(out))
}

func TestConfigValueKinds(t *testing.T) {
	assert.True(t, BottomValue().IsBottom())
	assert.True(t, RealValue(NewSet()).IsEmpty())
	assert.False(t, NotParticipantValue().IsReal())

	real := RealValue(NewSet(1, 5))
	data, err := json.Marshal(real)
	require.NoError(t, err)
	assert.JSONEq(t, "[1,5]", string(data))

	var decoded ConfigValue
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, real.Equal(decoded))

	var np ConfigValue
	require.NoError(t, json.Unmarshal([]byte(`"NOT_PARTICIPANT"`), &np))
	assert.True(t, np.Equal(NotParticipantValue()))
}

func TestNotificationDefault(t *testing.T) {
	n := DfltNtf()
	assert.True(t, n.IsDefault())
	assert.Equal(t, PhaseQuiescent, n.Phase)
	assert.True(t, n.Set.IsBottom())

	data, err := json.Marshal(Notification{Phase: PhaseProposed, Set: RealValue(NewSet(1, 2))})
	require.NoError(t, err)

	var decoded Notification
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, PhaseProposed, decoded.Phase)
	assert.True(t, decoded.Set.Equal(RealValue(NewSet(1, 2))))
}
