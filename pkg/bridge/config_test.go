package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := Config{
		IPAddress: "10.0.0.5",
		ID:        "001788FFFE23AB12",
		Username:  "abc123",
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing address", mutate: func(c *Config) { c.IPAddress = "" }, wantErr: ErrMissingAddress},
		{name: "bad id", mutate: func(c *Config) { c.ID = "nope" }, wantErr: ErrInvalidBridgeID},
		{name: "missing username", mutate: func(c *Config) { c.Username = "" }, wantErr: ErrMissingUsername},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStringRedactsCredentials(t *testing.T) {
	cfg := &Config{
		IPAddress: "10.0.0.5",
		ID:        "001788FFFE23AB12",
		Username:  "super-secret-username",
		ClientKey: "super-secret-key",
	}

	out := cfg.String()
	assert.NotContains(t, out, "super-secret-username")
	assert.NotContains(t, out, "super-secret-key")
	assert.Contains(t, out, "001788FFFE23AB12")

	var nilCfg *Config
	assert.Equal(t, "<nil>", nilCfg.String())
}

func TestPinned(t *testing.T) {
	var nilCfg *Config
	assert.False(t, nilCfg.Pinned())
	assert.False(t, (&Config{}).Pinned())
	assert.True(t, (&Config{PinnedCertificatePEM: "pem"}).Pinned())
}

func TestIsIPv4(t *testing.T) {
	assert.True(t, IsIPv4("192.168.1.10"))
	assert.True(t, IsIPv4("10.0.0.5"))
	assert.False(t, IsIPv4(""))
	assert.False(t, IsIPv4("not-an-ip"))
	assert.False(t, IsIPv4("fe80::1"))
	assert.False(t, IsIPv4("300.1.1.1"))
}
