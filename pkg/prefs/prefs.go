// Package prefs loads user preferences for the bridge lifecycle.
//
// Preferences are optional: a missing file yields defaults. A present
// bridge address override must be a valid IPv4 literal; anything else is
// a fatal configuration error, not a retryable one, because every later
// stage would act on the bad address.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/huelink/huelink-go/pkg/bridge"
)

// Preference errors.
var (
	ErrInvalidAddressOverride = errors.New("bridge address override is not a valid IPv4 literal")
	ErrUnreadable             = errors.New("preferences file unreadable")
)

// Preferences holds user-supplied overrides and paths.
type Preferences struct {
	// BridgeAddress optionally pins the bridge to a fixed IPv4 address,
	// skipping discovery.
	BridgeAddress string `yaml:"bridge_address,omitempty"`

	// BridgeUsername optionally supplies an existing credential so that
	// linking skips the pairing exchange.
	BridgeUsername string `yaml:"bridge_username,omitempty"`

	// StateDir is where the bridge configuration slot lives.
	// Defaults to ~/.huelink.
	StateDir string `yaml:"state_dir,omitempty"`

	// LogFile optionally enables event capture to a CBOR log file.
	LogFile string `yaml:"log_file,omitempty"`
}

// HasAddressOverride reports whether a bridge address override is set.
func (p *Preferences) HasAddressOverride() bool {
	return p != nil && p.BridgeAddress != ""
}

// Load reads preferences from path. A missing file is not an error and
// yields defaults. A malformed file or a malformed address override is
// fatal.
func Load(path string) (*Preferences, error) {
	p := &Preferences{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults.
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	default:
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	p.applyDefaults()
	return p, nil
}

func (p *Preferences) validate() error {
	if p.BridgeAddress != "" && !bridge.IsIPv4(p.BridgeAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidAddressOverride, p.BridgeAddress)
	}
	return nil
}

func (p *Preferences) applyDefaults() {
	if p.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		p.StateDir = filepath.Join(home, ".huelink")
	}
}

// DefaultPath returns the default preferences file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".huelink", "preferences.yaml")
}
