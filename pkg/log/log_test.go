package log

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEvent(t *testing.T) {
	want := Event{
		Timestamp:  time.Now().UTC(),
		Stage:      StageSession,
		Category:   CategoryState,
		BridgeID:   "001788FFFE23AB12",
		RemoteAddr: "10.0.0.5:443",
		SessionID:  "3b1c0b2e-0000-0000-0000-000000000000",
		StateChange: &StateChangeEvent{
			OldState: "connecting",
			NewState: "connected",
			Reason:   "succeeded",
		},
	}

	data, err := EncodeEvent(want)
	require.NoError(t, err)

	got, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, want.Stage, got.Stage)
	assert.Equal(t, want.Category, got.Category)
	assert.Equal(t, want.BridgeID, got.BridgeID)
	require.NotNil(t, got.StateChange)
	assert.Equal(t, "connected", got.StateChange.NewState)
	assert.WithinDuration(t, want.Timestamp, got.Timestamp, time.Millisecond)
}

func TestFileLoggerAndReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.hlog")

	l, err := NewFileLogger(path)
	require.NoError(t, err)

	l.Log(NewStateChange("loadingPreferences", "loadingConfiguration", "succeeded"))
	l.Log(NewOutcome(StageDiscovery, "001788FFFE23AB12", "registry hit"))
	l.Log(NewError(StageLinking, "pairing", errors.New("link button not pressed")))
	require.NoError(t, l.Close())

	// Logging after close is a no-op, not a panic.
	l.Log(NewOutcome(StageSession, "", "dropped"))

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, StageLifecycle, events[0].Stage)
	assert.Equal(t, CategoryOutcome, events[1].Category)
	require.NotNil(t, events[2].Error)
	assert.Equal(t, "link button not pressed", events[2].Error.Message)
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.hlog")

	l, err := NewFileLogger(path)
	require.NoError(t, err)
	l.Log(NewOutcome(StageDiscovery, "AAAAAAAAAAAAAAAA", "registry"))
	l.Log(NewOutcome(StageSession, "BBBBBBBBBBBBBBBB", "connected"))
	l.Log(NewError(StageSession, "credential check", errors.New("forbidden")))
	require.NoError(t, l.Close())

	stage := StageSession
	r, err := NewFilteredReader(path, Filter{Stage: &stage})
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, StageSession, ev.Stage)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestMultiLogger(t *testing.T) {
	var a, b capture
	m := NewMultiLogger(&a, &b)
	m.Log(NewOutcome(StageStorage, "", "saved"))

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestOrNoop(t *testing.T) {
	assert.NotNil(t, OrNoop(nil))
	var c capture
	assert.Equal(t, Logger(&c), OrNoop(&c))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "DISCOVERY", StageDiscovery.String())
	assert.Equal(t, "LIFECYCLE", StageLifecycle.String())
	assert.Equal(t, "UNKNOWN", Stage(99).String())
	assert.Equal(t, "STATE", CategoryState.String())
	assert.Equal(t, "UNKNOWN", Category(99).String())
}

// capture is a test logger that records events in memory.
type capture struct {
	events []Event
}

func (c *capture) Log(event Event) { c.events = append(c.events, event) }
