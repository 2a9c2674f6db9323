package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_Defaults(t *testing.T) {
	for _, name := range []string{
		"MINISC_TIMEOUT_NETWORK", "MINISC_TIMEOUT_JOIN_TOKEN",
		"MINISC_SHELL_READY_ATTEMPTS", "MINISC_RETRY_MAX_ATTEMPTS",
	} {
		t.Setenv(name, "")
	}

	timeouts := LoadTimeouts()
	assert.Equal(t, 5*time.Minute, timeouts.NetworkAvailable)
	assert.Equal(t, 30*time.Minute, timeouts.JoinToken)
	assert.Equal(t, 12, timeouts.ShellReadyAttempts)
	assert.Equal(t, 10*time.Second, timeouts.ShellReadyInterval)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}

func TestLoadTimeouts_Overrides(t *testing.T) {
	t.Setenv("MINISC_TIMEOUT_JOIN_TOKEN", "2m")
	t.Setenv("MINISC_SHELL_READY_ATTEMPTS", "3")
	t.Setenv("MINISC_TIMEOUT_NETWORK", "not-a-duration")
	t.Setenv("MINISC_RETRY_MAX_ATTEMPTS", "x")

	timeouts := LoadTimeouts()
	assert.Equal(t, 2*time.Minute, timeouts.JoinToken)
	assert.Equal(t, 3, timeouts.ShellReadyAttempts)
	assert.Equal(t, 5*time.Minute, timeouts.NetworkAvailable)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
}
