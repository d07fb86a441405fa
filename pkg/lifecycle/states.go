package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// State is one position in the bridge lifecycle machine.
type State uint8

const (
	// StateLoadingPreferences is the initial state: user preferences are
	// read and the optional address override is validated.
	StateLoadingPreferences State = iota

	// StateFailedToLoadPreferences is terminal: the preferences file or
	// its address override is malformed and no remedial event applies.
	StateFailedToLoadPreferences

	// StateLoadingConfiguration reads the persisted configuration slot
	// and merges preference overrides into it.
	StateLoadingConfiguration

	// StateConnecting establishes the authenticated session. Entering it
	// invalidates whatever session handle previously existed.
	StateConnecting

	// StateConnected holds a live session handle.
	StateConnected

	// StateFailedToConnect awaits retry after a connection failure.
	StateFailedToConnect

	// StateDiscoveringRegistry queries the public registry endpoint.
	StateDiscoveringRegistry

	// StateDiscoveringLocal listens for local service announcements
	// after registry discovery failed.
	StateDiscoveringLocal

	// StateNoBridgeFound awaits retry after both strategies failed.
	StateNoBridgeFound

	// StateAwaitingLinkConfirmation waits for the caller to confirm the
	// bridge's link button has been pressed.
	StateAwaitingLinkConfirmation

	// StateLinking performs the pairing exchange.
	StateLinking

	// StateFailedToLink awaits retry after a pairing failure.
	StateFailedToLink

	// StateLinked persists the freshly assembled configuration.
	StateLinked

	// StateUnlinking clears persisted storage and discovered state,
	// preserving preference overrides.
	StateUnlinking
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoadingPreferences:
		return "loadingPreferences"
	case StateFailedToLoadPreferences:
		return "failedToLoadPreferences"
	case StateLoadingConfiguration:
		return "loadingConfiguration"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailedToConnect:
		return "failedToConnect"
	case StateDiscoveringRegistry:
		return "discoveringRegistry"
	case StateDiscoveringLocal:
		return "discoveringLocal"
	case StateNoBridgeFound:
		return "noBridgeFound"
	case StateAwaitingLinkConfirmation:
		return "awaitingLinkConfirmation"
	case StateLinking:
		return "linking"
	case StateFailedToLink:
		return "failedToLink"
	case StateLinked:
		return "linked"
	case StateUnlinking:
		return "unlinking"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether the machine cannot leave this state.
func (s State) Terminal() bool {
	return s == StateFailedToLoadPreferences
}

// waiting reports whether the state makes no progress on its own and
// blocks until an external event arrives.
func (s State) waiting() bool {
	switch s {
	case StateConnected, StateFailedToConnect, StateNoBridgeFound,
		StateAwaitingLinkConfirmation, StateFailedToLink,
		StateFailedToLoadPreferences:
		return true
	}
	return false
}

// Event is one of the three external messages the machine accepts.
type Event string

const (
	// EventRetry restarts the stage a failure state guards.
	EventRetry Event = "retry"

	// EventLink confirms the bridge's link button has been pressed.
	EventLink Event = "link"

	// EventUnlink discards the stored credential and configuration.
	EventUnlink Event = "unlink"
)

// ErrUnknownEvent is returned for dispatches outside the event
// vocabulary.
var ErrUnknownEvent = errors.New("unknown lifecycle event")

// ParseEvent normalizes a raw event name. Matching is case-insensitive
// and surrounding whitespace is ignored.
func ParseEvent(raw string) (Event, error) {
	switch Event(strings.ToLower(strings.TrimSpace(raw))) {
	case EventRetry:
		return EventRetry, nil
	case EventLink:
		return EventLink, nil
	case EventUnlink:
		return EventUnlink, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, raw)
}

// outcome is the result of one invoked operation, consumed by the
// transition table.
type outcome string

const (
	outcomeSuccess          outcome = "success"
	outcomeFailure          outcome = "failure"
	outcomeConfigFound      outcome = "configFound"
	outcomeOverrideKnown    outcome = "overrideKnown"
	outcomeNotConfigured    outcome = "notConfigured"
	outcomeCredentialKnown  outcome = "credentialKnown"
	outcomeCredentialNeeded outcome = "credentialNeeded"
)

// trigger keys the transition tables.
type trigger struct {
	state State
	cause string
}

// outcomeTransitions maps an operation's outcome in an active state to
// the next state.
var outcomeTransitions = map[trigger]State{
	{StateLoadingPreferences, string(outcomeSuccess)}: StateLoadingConfiguration,
	{StateLoadingPreferences, string(outcomeFailure)}: StateFailedToLoadPreferences,

	{StateLoadingConfiguration, string(outcomeConfigFound)}:   StateConnecting,
	{StateLoadingConfiguration, string(outcomeOverrideKnown)}: StateLinking,
	{StateLoadingConfiguration, string(outcomeNotConfigured)}: StateDiscoveringRegistry,

	{StateConnecting, string(outcomeSuccess)}: StateConnected,
	{StateConnecting, string(outcomeFailure)}: StateFailedToConnect,

	{StateDiscoveringRegistry, string(outcomeCredentialKnown)}:  StateLinking,
	{StateDiscoveringRegistry, string(outcomeCredentialNeeded)}: StateAwaitingLinkConfirmation,
	{StateDiscoveringRegistry, string(outcomeFailure)}:          StateDiscoveringLocal,

	{StateDiscoveringLocal, string(outcomeCredentialKnown)}:  StateLinking,
	{StateDiscoveringLocal, string(outcomeCredentialNeeded)}: StateAwaitingLinkConfirmation,
	{StateDiscoveringLocal, string(outcomeFailure)}:          StateNoBridgeFound,

	{StateLinking, string(outcomeSuccess)}: StateLinked,
	{StateLinking, string(outcomeFailure)}: StateFailedToLink,

	{StateLinked, string(outcomeSuccess)}: StateConnecting,

	{StateUnlinking, string(outcomeOverrideKnown)}: StateLinking,
	{StateUnlinking, string(outcomeNotConfigured)}: StateDiscoveringRegistry,
}

// eventTransitions maps an accepted external event in a waiting state
// to the next state. Unlink is handled globally, not here.
var eventTransitions = map[trigger]State{
	{StateFailedToConnect, string(EventRetry)}:         StateConnecting,
	{StateNoBridgeFound, string(EventRetry)}:           StateDiscoveringRegistry,
	{StateFailedToLink, string(EventRetry)}:            StateLinking,
	{StateAwaitingLinkConfirmation, string(EventLink)}: StateLinking,
}
