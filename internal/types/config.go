package types

import (
	"encoding/json"
	"fmt"

	"github.com/vitaliisemenov/recsa-core/internal/check"
)

// ConfigKind tags the three shapes a config[k] entry can take.
type ConfigKind uint8

const (
	// Real means the value is an actual processor-id set.
	Real ConfigKind = iota
	// NotParticipant means k is not currently a participant.
	NotParticipant
	// Bottom means "reset in progress" — no config value is trusted.
	Bottom
)

const (
	notParticipantWire = "NOT_PARTICIPANT"
	bottomWire         = "BOTTOM"
)

// ConfigValue is either a configuration set, NOT_PARTICIPANT, or BOTTOM.
type ConfigValue struct {
	Kind ConfigKind
	Set  Set
}

// NotParticipantValue constructs the NOT_PARTICIPANT sentinel.
func NotParticipantValue() ConfigValue {
	return ConfigValue{Kind: NotParticipant}
}

// BottomValue constructs the BOTTOM sentinel.
func BottomValue() ConfigValue {
	return ConfigValue{Kind: Bottom}
}

// RealValue constructs a real configuration from the given set.
func RealValue(s Set) ConfigValue {
	return ConfigValue{Kind: Real, Set: s}
}

// IsReal reports whether v holds an actual id set (possibly empty).
func (v ConfigValue) IsReal() bool {
	return v.Kind == Real
}

// IsBottom reports whether v is the BOTTOM sentinel.
func (v ConfigValue) IsBottom() bool {
	return v.Kind == Bottom
}

// IsEmpty reports whether v is Real and has no members.
func (v ConfigValue) IsEmpty() bool {
	return v.Kind == Real && len(v.Set) == 0
}

// Equal reports whether v and other denote the same value.
func (v ConfigValue) Equal(other ConfigValue) bool {
	if v.Kind != other.Kind {
		return false
	}
	if v.Kind != Real {
		return true
	}
	return v.Set.Equal(other.Set)
}

func (v ConfigValue) String() string {
	switch v.Kind {
	case NotParticipant:
		return notParticipantWire
	case Bottom:
		return bottomWire
	case Real:
		return fmt.Sprintf("%v", v.Set.Sorted())
	default:
		check.Assertf(false, "unknown config kind %d", v.Kind)
		return ""
	}
}

// MarshalJSON encodes the sentinel strings or a sorted id array, matching
// the wire shape in spec.md §6.3.
func (v ConfigValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case NotParticipant:
		return json.Marshal(notParticipantWire)
	case Bottom:
		return json.Marshal(bottomWire)
	case Real:
		return json.Marshal(v.Set)
	default:
		check.Assertf(false, "unknown config kind %d", v.Kind)
		return nil, nil
	}
}

// UnmarshalJSON decodes either sentinel string or an id array.
func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	var sentinel string
	if err := json.Unmarshal(data, &sentinel); err == nil {
		switch sentinel {
		case notParticipantWire:
			*v = NotParticipantValue()
			return nil
		case bottomWire:
			*v = BottomValue()
			return nil
		default:
			return fmt.Errorf("types: unknown config sentinel %q", sentinel)
		}
	}
	var s Set
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("types: decode config value: %w", err)
	}
	*v = RealValue(s)
	return nil
}
