package types

// Phase is a notification's stage: 0 (quiescent), 1 (proposal), or 2
// (commitment).
type Phase uint8

const (
	PhaseQuiescent Phase = 0
	PhaseProposed  Phase = 1
	PhaseCommitted Phase = 2
)

// Notification is a reconfiguration proposal in flight. The phase-0
// sentinel DfltNtf means "no proposal".
type Notification struct {
	Phase Phase       `json:"phase"`
	Set   ConfigValue `json:"set"`
}

// DfltNtf is the default "no proposal" notification: (0, BOTTOM).
func DfltNtf() Notification {
	return Notification{Phase: PhaseQuiescent, Set: BottomValue()}
}

// Equal reports whether n and other carry the same phase and set.
func (n Notification) Equal(other Notification) bool {
	return n.Phase == other.Phase && n.Set.Equal(other.Set)
}

// IsDefault reports whether n is the quiescent (0, BOTTOM) sentinel.
func (n Notification) IsDefault() bool {
	return n.Equal(DfltNtf())
}

// MarshalJSON encodes the notification as the [phase, set] tuple the wire
// protocol expects (spec.md §6.3: prp:[phase,set]).
func (n Notification) MarshalJSON() ([]byte, error) {
	return marshalTuple(n.Phase, n.Set)
}

// UnmarshalJSON decodes the [phase, set] tuple form.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var phase Phase
	var set ConfigValue
	if err := unmarshalTuple(data, &phase, &set); err != nil {
		return err
	}
	n.Phase = phase
	n.Set = set
	return nil
}

// AckStatus is the ABD module's per-peer communicate() bookkeeping state.
type AckStatus uint8

const (
	NotSent AckStatus = iota
	NotAcked
	Acked
)

// Bot is the ABD "no info yet" sentinel label/value.
const Bot = -1
