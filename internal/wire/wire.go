// Package wire defines the inter-node message envelope and the tagged
// payload shapes in spec.md §6.3.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/vitaliisemenov/recsa-core/internal/types"
)

// MessageType tags the payload shape carried in a Message's Data field.
type MessageType int

const (
	RecmaMessage MessageType = iota + 1
	RecsaMessage
	FailureDetectorMessage
	JoiningMechanismMessage
	ABDMessage
)

func (t MessageType) String() string {
	switch t {
	case RecmaMessage:
		return "RECMA_MESSAGE"
	case RecsaMessage:
		return "RECSA_MESSAGE"
	case FailureDetectorMessage:
		return "FAILURE_DETECTOR_MESSAGE"
	case JoiningMechanismMessage:
		return "JOINING_MECHANISM_MESSAGE"
	case ABDMessage:
		return "ABD_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// Message is the self-describing record every module sends: a type tag,
// the sending processor, and an opaque payload decoded by the receiving
// module according to the tag.
type Message struct {
	Type   MessageType     `json:"type"`
	Sender types.NodeID    `json:"sender"`
	Data   json.RawMessage `json:"data"`
}

// Encode marshals payload into a Message of the given type from sender.
func Encode(t MessageType, sender types.NodeID, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("wire: encode %s payload: %w", t, err)
	}
	return Message{Type: t, Sender: sender, Data: data}, nil
}

// Decode unmarshals a message's payload into out.
func Decode(m Message, out any) error {
	if err := json.Unmarshal(m.Data, out); err != nil {
		return fmt.Errorf("wire: decode %s payload: %w", m.Type, err)
	}
	return nil
}

// RecsaPayload is the RECSA_MESSAGE data shape.
type RecsaPayload struct {
	FD          types.Set          `json:"fd"`
	FDPart      types.Set          `json:"fd_part"`
	Config      types.ConfigValue  `json:"config"`
	Prp         types.Notification `json:"prp"`
	All         bool               `json:"alll"`
	EchoFDPart  types.Set          `json:"echo_fd_part"`
	EchoPrp     types.Notification `json:"echo_prp"`
	EchoAll     bool               `json:"echo_all"`
}

// RecmaPayload is the RECMA_MESSAGE data shape.
type RecmaPayload struct {
	NoMaj      bool `json:"no_maj"`
	NeedReconf bool `json:"need_reconf"`
}

// JoinRequest is the JOINING_MECHANISM_MESSAGE "JOIN" request payload.
type JoinRequest struct {
	Join bool `json:"join"`
}

// JoinResponse is the JOINING_MECHANISM_MESSAGE response payload.
type JoinResponse struct {
	Pass  bool            `json:"pass"`
	State json.RawMessage `json:"state"`
}

// ABDMessageType tags an ABD payload's sub-kind.
type ABDMessageType string

const (
	ReadRequest     ABDMessageType = "READ_REQUEST"
	ReadRequestAck  ABDMessageType = "READ_REQUEST_ACK"
	ReadConfirm     ABDMessageType = "READ_CONFIRM"
	ReadConfirmAck  ABDMessageType = "READ_CONFIRM_ACK"
	Write           ABDMessageType = "WRITE"
	WriteAck        ABDMessageType = "WRITE_ACK"
)

// ABDPayload is the ABD_MESSAGE data shape. Value carries the register's
// application payload on WRITE and the write-back half of READ_CONFIRM,
// and the observed value on READ_REQUEST_ACK.
type ABDPayload struct {
	Type  ABDMessageType  `json:"type"`
	Label int             `json:"label,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}
