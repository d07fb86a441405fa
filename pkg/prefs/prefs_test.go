package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrefs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preferences.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, p.HasAddressOverride())
	assert.Empty(t, p.BridgeUsername)
	assert.NotEmpty(t, p.StateDir)
}

func TestLoadOverrides(t *testing.T) {
	path := writePrefs(t, `
bridge_address: 192.168.1.42
bridge_username: abc123
state_dir: /var/lib/huelink
log_file: /tmp/huelink.cborlog
`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.True(t, p.HasAddressOverride())
	assert.Equal(t, "192.168.1.42", p.BridgeAddress)
	assert.Equal(t, "abc123", p.BridgeUsername)
	assert.Equal(t, "/var/lib/huelink", p.StateDir)
	assert.Equal(t, "/tmp/huelink.cborlog", p.LogFile)
}

func TestLoadMalformedAddressIsFatal(t *testing.T) {
	tests := []string{
		"bridge_address: not-an-ip\n",
		"bridge_address: fe80::1\n",
		"bridge_address: 300.1.1.1\n",
	}
	for _, content := range tests {
		_, err := Load(writePrefs(t, content))
		assert.ErrorIs(t, err, ErrInvalidAddressOverride, content)
	}
}

func TestLoadMalformedYAMLIsFatal(t *testing.T) {
	_, err := Load(writePrefs(t, "bridge_address: [unterminated"))
	assert.ErrorIs(t, err, ErrUnreadable)
}
