package log

import (
	"time"
)

// Event represents a lifecycle log event captured at any stage.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Stage of the lifecycle where the event was captured.
	Stage Stage `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// BridgeID is the bridge identifier, when known.
	BridgeID string `cbor:"4,keyasint,omitempty"`

	// RemoteAddr is the bridge address, when known.
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// SessionID identifies the live session handle, when one exists.
	SessionID string `cbor:"6,keyasint,omitempty"`

	// Detail carries a short human-readable note. Never credentials.
	Detail string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these may be set).
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"`
}

// Stage indicates which lifecycle stage captured the event.
type Stage uint8

const (
	// StagePreferences is preference loading and validation.
	StagePreferences Stage = 0
	// StageStorage is the persisted configuration slot.
	StageStorage Stage = 1
	// StageDiscovery covers registry and local discovery.
	StageDiscovery Stage = 2
	// StageLinking is the pairing exchange.
	StageLinking Stage = 3
	// StageSession is TLS session establishment and the credential check.
	StageSession Stage = 4
	// StageLifecycle is the orchestrating state machine itself.
	StageLifecycle Stage = 5
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StagePreferences:
		return "PREFERENCES"
	case StageStorage:
		return "STORAGE"
	case StageDiscovery:
		return "DISCOVERY"
	case StageLinking:
		return "LINKING"
	case StageSession:
		return "SESSION"
	case StageLifecycle:
		return "LIFECYCLE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a state transition.
	CategoryState Category = 0
	// CategoryOutcome indicates an operation result (success or typed failure).
	CategoryOutcome Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryOutcome:
		return "OUTCOME"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a lifecycle state transition.
type StateChangeEvent struct {
	// OldState is the state being left.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state being entered.
	NewState string `cbor:"2,keyasint"`

	// Reason is the event or outcome that triggered the transition.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any stage.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"2,keyasint,omitempty"`
}

// NewStateChange builds a state transition event.
func NewStateChange(oldState, newState, reason string) Event {
	return Event{
		Timestamp: time.Now(),
		Stage:     StageLifecycle,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewOutcome builds an operation outcome event.
func NewOutcome(stage Stage, bridgeID, detail string) Event {
	return Event{
		Timestamp: time.Now(),
		Stage:     stage,
		Category:  CategoryOutcome,
		BridgeID:  bridgeID,
		Detail:    detail,
	}
}

// NewError builds an error event. The error text must not contain
// credentials; lifecycle errors never do.
func NewError(stage Stage, context string, err error) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Event{
		Timestamp: time.Now(),
		Stage:     stage,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Message: msg,
			Context: context,
		},
	}
}
