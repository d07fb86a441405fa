package lifecycle

import (
	"context"
	"sync"

	"github.com/huelink/huelink-go/pkg/bridge"
	"github.com/huelink/huelink-go/pkg/discovery"
	"github.com/huelink/huelink-go/pkg/log"
	"github.com/huelink/huelink-go/pkg/prefs"
	"github.com/huelink/huelink-go/pkg/session"
)

// Discoverer is one discovery strategy. Implemented by
// discovery.RegistryDiscoverer and discovery.LocalDiscoverer.
type Discoverer interface {
	Discover(ctx context.Context) (*discovery.Result, error)
}

// Linker performs the pairing exchange. Implemented by
// linking.Protocol.
type Linker interface {
	Link(ctx context.Context, ipAddress, bridgeID, existingUsername string) (*bridge.Config, error)
}

// SessionConnector opens and tears down authenticated sessions.
// Implemented by session.Manager.
type SessionConnector interface {
	Connect(ctx context.Context, cfg *bridge.Config) (*session.Handle, error)
	Invalidate(bridgeID string)
}

// ConfigStore persists the bridge configuration slot. Implemented by
// store.Store.
type ConfigStore interface {
	Load() (*bridge.Config, error)
	Save(cfg *bridge.Config) error
	Clear() error
}

// Config wires the lifecycle's collaborators.
type Config struct {
	// Preferences loads user preferences. Nil means no preferences
	// file and all defaults.
	Preferences func() (*prefs.Preferences, error)

	// Store is the persisted configuration slot.
	Store ConfigStore

	// Registry is the public registry discovery strategy, tried first.
	Registry Discoverer

	// Local is the local-network discovery strategy, tried after the
	// registry fails.
	Local Discoverer

	// Linker performs the pairing exchange.
	Linker Linker

	// Sessions opens authenticated sessions.
	Sessions SessionConnector

	// Logger receives state changes and stage errors. Nil disables
	// logging.
	Logger log.Logger
}

// Snapshot is a point-in-time view of the machine. Values are copies;
// callers never share the machine's working state.
type Snapshot struct {
	// State is the current lifecycle state.
	State State

	// BridgeID is the bridge id, when known.
	BridgeID string

	// BridgeAddress is the bridge address in play, when known.
	BridgeAddress string

	// Handle is the live session. Non-nil only in StateConnected.
	Handle *session.Handle

	// Err is the failure that led to the current state, when the state
	// is a failure state.
	Err error
}

// lifecycleContext is the machine's working state, owned exclusively
// by the run goroutine.
type lifecycleContext struct {
	overrideAddress  string
	overrideUsername string
	discoveredIP     string
	discoveredID     string
	config           *bridge.Config
	handle           *session.Handle
	lastErr          error
}

// merged folds preference overrides into a stored configuration,
// replacing it wholesale.
func (lc *lifecycleContext) merged(cfg *bridge.Config) *bridge.Config {
	out := *cfg
	if lc.overrideAddress != "" {
		out.IPAddress = lc.overrideAddress
	}
	if lc.overrideUsername != "" {
		out.Username = lc.overrideUsername
	}
	return &out
}

// Lifecycle is the orchestrating state machine. Create with New, drive
// with Start/Dispatch, observe with Snapshot/OnChange.
type Lifecycle struct {
	config Config
	events chan Event

	mu        sync.RWMutex
	snap      Snapshot
	observers []func(Snapshot)

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a lifecycle machine. It does not run until Start.
func New(cfg Config) *Lifecycle {
	cfg.Logger = log.OrNoop(cfg.Logger)
	return &Lifecycle{
		config: cfg,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
}

// Start launches the machine in its own goroutine, beginning at
// preference loading. Start is idempotent.
func (l *Lifecycle) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		ctx, l.cancel = context.WithCancel(ctx)
		go l.run(ctx)
	})
}

// Stop halts the machine and waits for the run goroutine to exit.
func (l *Lifecycle) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}

// Dispatch queues an external event. Fire-and-forget: it never blocks,
// and events that the current state does not accept are dropped. Only
// an unknown event name is an error.
func (l *Lifecycle) Dispatch(raw string) error {
	ev, err := ParseEvent(raw)
	if err != nil {
		return err
	}
	select {
	case l.events <- ev:
	default:
		// Queue full; the machine is wedged on a slow operation and the
		// event would be stale by the time it drained.
	}
	return nil
}

// Snapshot returns the current state view.
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}

// OnChange registers an observer called with a snapshot after every
// transition. Observers run on the machine's goroutine and must not
// block. Register before Start to see every transition.
func (l *Lifecycle) OnChange(fn func(Snapshot)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

func (l *Lifecycle) run(ctx context.Context) {
	defer close(l.done)

	lc := &lifecycleContext{}
	state := StateLoadingPreferences
	l.publish(state, lc, "start")

	for {
		if ctx.Err() != nil {
			return
		}

		// Invoke boundary: queued events are handled before the next
		// operation starts.
		select {
		case ev := <-l.events:
			if next, ok := l.applyEvent(state, ev); ok {
				state = next
				l.publish(state, lc, string(ev))
			}
			continue
		default:
		}

		if state.waiting() {
			select {
			case ev := <-l.events:
				if next, ok := l.applyEvent(state, ev); ok {
					state = next
					l.publish(state, lc, string(ev))
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		cause := l.invoke(ctx, state, lc)
		next, ok := outcomeTransitions[trigger{state, string(cause)}]
		if !ok {
			// The outcome table is total for active states.
			return
		}
		state = next
		l.publish(state, lc, string(cause))
	}
}

// applyEvent resolves an external event against the current state.
// Unlink is accepted from every state except the terminal preference
// failure and unlinking itself.
func (l *Lifecycle) applyEvent(state State, ev Event) (State, bool) {
	if ev == EventUnlink {
		if state.Terminal() || state == StateUnlinking {
			return state, false
		}
		return StateUnlinking, true
	}
	next, ok := eventTransitions[trigger{state, string(ev)}]
	return next, ok
}

// invoke runs the operation an active state stands for and reports its
// outcome.
func (l *Lifecycle) invoke(ctx context.Context, state State, lc *lifecycleContext) outcome {
	switch state {
	case StateLoadingPreferences:
		return l.loadPreferences(lc)
	case StateLoadingConfiguration:
		return l.loadConfiguration(lc)
	case StateConnecting:
		return l.connect(ctx, lc)
	case StateDiscoveringRegistry:
		return l.discover(ctx, l.config.Registry, lc)
	case StateDiscoveringLocal:
		return l.discover(ctx, l.config.Local, lc)
	case StateLinking:
		return l.link(ctx, lc)
	case StateLinked:
		return l.persist(lc)
	case StateUnlinking:
		return l.unlink(lc)
	}
	return outcomeFailure
}

func (l *Lifecycle) loadPreferences(lc *lifecycleContext) outcome {
	if l.config.Preferences == nil {
		return outcomeSuccess
	}
	p, err := l.config.Preferences()
	if err != nil {
		lc.lastErr = err
		l.config.Logger.Log(log.NewError(log.StagePreferences, "load preferences", err))
		return outcomeFailure
	}
	lc.overrideAddress = p.BridgeAddress
	lc.overrideUsername = p.BridgeUsername
	return outcomeSuccess
}

func (l *Lifecycle) loadConfiguration(lc *lifecycleContext) outcome {
	cfg, err := l.config.Store.Load()
	if err != nil {
		// An unreadable slot degrades to a fresh discovery run.
		l.config.Logger.Log(log.NewError(log.StageStorage, "load configuration", err))
	}
	if cfg != nil {
		lc.config = lc.merged(cfg)
		return outcomeConfigFound
	}
	if lc.overrideAddress != "" {
		return outcomeOverrideKnown
	}
	return outcomeNotConfigured
}

func (l *Lifecycle) connect(ctx context.Context, lc *lifecycleContext) outcome {
	// Entering connecting always invalidates the prior handle.
	if lc.config != nil {
		l.config.Sessions.Invalidate(lc.config.ID)
	}
	lc.handle = nil

	if lc.config == nil {
		lc.lastErr = bridge.ErrMissingAddress
		return outcomeFailure
	}

	h, err := l.config.Sessions.Connect(ctx, lc.config)
	if err != nil {
		lc.lastErr = err
		l.config.Logger.Log(log.NewError(log.StageSession, "connect", err))
		return outcomeFailure
	}
	lc.handle = h
	lc.lastErr = nil
	return outcomeSuccess
}

func (l *Lifecycle) discover(ctx context.Context, d Discoverer, lc *lifecycleContext) outcome {
	res, err := d.Discover(ctx)
	if err != nil {
		lc.lastErr = err
		l.config.Logger.Log(log.NewError(log.StageDiscovery, "discover", err))
		return outcomeFailure
	}
	lc.discoveredIP = res.IPAddress
	lc.discoveredID = res.ID
	lc.lastErr = nil
	l.config.Logger.Log(log.NewOutcome(log.StageDiscovery, res.ID, "bridge found at "+res.IPAddress))
	if lc.overrideUsername != "" {
		return outcomeCredentialKnown
	}
	return outcomeCredentialNeeded
}

func (l *Lifecycle) link(ctx context.Context, lc *lifecycleContext) outcome {
	ip := lc.discoveredIP
	if ip == "" {
		ip = lc.overrideAddress
	}
	cfg, err := l.config.Linker.Link(ctx, ip, lc.discoveredID, lc.overrideUsername)
	if err != nil {
		lc.lastErr = err
		l.config.Logger.Log(log.NewError(log.StageLinking, "link", err))
		return outcomeFailure
	}
	lc.config = cfg
	lc.lastErr = nil
	l.config.Logger.Log(log.NewOutcome(log.StageLinking, cfg.ID, "linked"))
	return outcomeSuccess
}

func (l *Lifecycle) persist(lc *lifecycleContext) outcome {
	if err := l.config.Store.Save(lc.config); err != nil {
		// The configuration stays usable in memory; the session is
		// still attempted and the slot is rewritten on the next link.
		l.config.Logger.Log(log.NewError(log.StageStorage, "persist configuration", err))
	}
	return outcomeSuccess
}

func (l *Lifecycle) unlink(lc *lifecycleContext) outcome {
	if lc.config != nil {
		l.config.Sessions.Invalidate(lc.config.ID)
	}
	lc.handle = nil

	if err := l.config.Store.Clear(); err != nil {
		l.config.Logger.Log(log.NewError(log.StageStorage, "clear configuration", err))
	}

	// Discovered and linked state is reset; preference overrides
	// survive.
	lc.config = nil
	lc.discoveredIP = ""
	lc.discoveredID = ""
	lc.lastErr = nil

	if lc.overrideAddress != "" {
		return outcomeOverrideKnown
	}
	return outcomeNotConfigured
}

// publish records the new state and notifies observers.
func (l *Lifecycle) publish(state State, lc *lifecycleContext, reason string) {
	snap := Snapshot{State: state, Err: lc.lastErr}
	if lc.config != nil {
		snap.BridgeID = lc.config.ID
		snap.BridgeAddress = lc.config.IPAddress
	} else {
		snap.BridgeID = lc.discoveredID
		snap.BridgeAddress = lc.discoveredIP
		if snap.BridgeAddress == "" {
			snap.BridgeAddress = lc.overrideAddress
		}
	}
	if state == StateConnected {
		snap.Handle = lc.handle
	}

	l.mu.Lock()
	old := l.snap.State
	l.snap = snap
	observers := append([]func(Snapshot){}, l.observers...)
	l.mu.Unlock()

	l.config.Logger.Log(log.NewStateChange(old.String(), state.String(), reason))
	for _, fn := range observers {
		fn(snap)
	}
}
