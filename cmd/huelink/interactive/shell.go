// Package interactive provides the interactive command shell for
// huelink.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/huelink/huelink-go/pkg/lifecycle"
	"github.com/huelink/huelink-go/pkg/log"
)

// Shell handles interactive mode for huelink.
type Shell struct {
	lc      *lifecycle.Lifecycle
	logPath string
	rl      *readline.Instance

	watching atomic.Bool
}

// New creates a new interactive shell over a running lifecycle.
// logPath optionally names the CBOR event capture file for the events
// command.
func New(lc *lifecycle.Lifecycle, logPath string) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "huelink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &Shell{
		lc:      lc,
		logPath: logPath,
		rl:      rl,
	}

	lc.OnChange(func(snap lifecycle.Snapshot) {
		if !s.watching.Load() {
			return
		}
		if snap.Err != nil {
			fmt.Fprintf(rl.Stdout(), "[WATCH] %s (%v)\n", snap.State, snap.Err)
			return
		}
		fmt.Fprintf(rl.Stdout(), "[WATCH] %s\n", snap.State)
	})

	return s, nil
}

// Stdout returns a writer that coordinates with the readline input.
// Use this for log output to avoid interfering with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "status", "s":
			s.cmdStatus()

		case "retry", "link", "unlink":
			s.cmdDispatch(cmd)

		case "watch", "w":
			s.cmdWatch()

		case "events", "ev":
			s.cmdEvents()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
Huelink Commands:
  status  - Show the current lifecycle state
  retry   - Retry the failed stage
  link    - Confirm the bridge's link button has been pressed
  unlink  - Forget the bridge and its credential
  watch   - Toggle live state change output
  events  - Print captured lifecycle events from the log file
  help    - Show this help
  quit    - Exit`)
}

// cmdStatus prints the current snapshot. Credentials never appear in
// any of these fields.
func (s *Shell) cmdStatus() {
	snap := s.lc.Snapshot()

	fmt.Fprintf(s.rl.Stdout(), "State:   %s\n", snap.State)
	if snap.BridgeID != "" {
		fmt.Fprintf(s.rl.Stdout(), "Bridge:  %s\n", snap.BridgeID)
	}
	if snap.BridgeAddress != "" {
		fmt.Fprintf(s.rl.Stdout(), "Address: %s\n", snap.BridgeAddress)
	}
	if snap.Handle != nil {
		fmt.Fprintf(s.rl.Stdout(), "Session: %s\n", snap.Handle.ID())
	}
	if snap.Err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error:   %v\n", snap.Err)
	}

	switch snap.State {
	case lifecycle.StateAwaitingLinkConfirmation:
		fmt.Fprintln(s.rl.Stdout(), "Press the bridge's link button, then type 'link'.")
	case lifecycle.StateFailedToConnect, lifecycle.StateFailedToLink, lifecycle.StateNoBridgeFound:
		fmt.Fprintln(s.rl.Stdout(), "Type 'retry' to try again.")
	}
}

func (s *Shell) cmdDispatch(event string) {
	if err := s.lc.Dispatch(event); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Dispatch failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Dispatched %s\n", event)
}

func (s *Shell) cmdWatch() {
	if s.watching.Load() {
		s.watching.Store(false)
		fmt.Fprintln(s.rl.Stdout(), "Watch off")
		return
	}
	s.watching.Store(true)
	fmt.Fprintln(s.rl.Stdout(), "Watch on")
}

// cmdEvents replays the CBOR capture file.
func (s *Shell) cmdEvents() {
	if s.logPath == "" {
		fmt.Fprintln(s.rl.Stdout(), "No log file configured (set log_file in preferences)")
		return
	}

	r, err := log.NewReader(s.logPath)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Cannot open log file: %v\n", err)
		return
	}
	defer r.Close()

	count := 0
	for {
		ev, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(s.rl.Stdout(), "Read error: %v\n", err)
			}
			break
		}
		count++
		s.printEvent(ev)
	}
	fmt.Fprintf(s.rl.Stdout(), "%d event(s)\n", count)
}

func (s *Shell) printEvent(ev log.Event) {
	ts := ev.Timestamp.Format("15:04:05.000")
	switch {
	case ev.StateChange != nil:
		fmt.Fprintf(s.rl.Stdout(), "  %s %-9s %s -> %s (%s)\n",
			ts, ev.Stage, ev.StateChange.OldState, ev.StateChange.NewState, ev.StateChange.Reason)
	case ev.Error != nil:
		fmt.Fprintf(s.rl.Stdout(), "  %s %-9s ERROR %s: %s\n",
			ts, ev.Stage, ev.Error.Context, ev.Error.Message)
	default:
		fmt.Fprintf(s.rl.Stdout(), "  %s %-9s %s\n", ts, ev.Stage, ev.Detail)
	}
}
