package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable wait bounds.
// These values can be customized via environment variables.
type Timeouts struct {
	NetworkAvailable   time.Duration // Waiting for a new network to become available
	InstanceRunning    time.Duration // Waiting for launched instances to run
	InstanceTerminated time.Duration // Waiting for terminated instances to disappear
	JoinToken          time.Duration // Waiting for the operator to supply a join token
	Delete             time.Duration // Each teardown delete, including dependency retries
	PollInterval       time.Duration // Interval between state polls
	ShellReadyAttempts int           // Polls of the head node before giving up on helm
	ShellReadyInterval time.Duration // Interval between head node polls
	RetryMaxAttempts   int           // Maximum number of retry attempts
	RetryInitialDelay  time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - MINISC_TIMEOUT_NETWORK (default: 5m)
//   - MINISC_TIMEOUT_INSTANCE_RUNNING (default: 10m)
//   - MINISC_TIMEOUT_INSTANCE_TERMINATED (default: 10m)
//   - MINISC_TIMEOUT_JOIN_TOKEN (default: 30m)
//   - MINISC_TIMEOUT_DELETE (default: 5m)
//   - MINISC_POLL_INTERVAL (default: 5s)
//   - MINISC_SHELL_READY_ATTEMPTS (default: 12)
//   - MINISC_SHELL_READY_INTERVAL (default: 10s)
//   - MINISC_RETRY_MAX_ATTEMPTS (default: 5)
//   - MINISC_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		NetworkAvailable:   parseDuration("MINISC_TIMEOUT_NETWORK", 5*time.Minute),
		InstanceRunning:    parseDuration("MINISC_TIMEOUT_INSTANCE_RUNNING", 10*time.Minute),
		InstanceTerminated: parseDuration("MINISC_TIMEOUT_INSTANCE_TERMINATED", 10*time.Minute),
		JoinToken:          parseDuration("MINISC_TIMEOUT_JOIN_TOKEN", 30*time.Minute),
		Delete:             parseDuration("MINISC_TIMEOUT_DELETE", 5*time.Minute),
		PollInterval:       parseDuration("MINISC_POLL_INTERVAL", 5*time.Second),
		ShellReadyAttempts: parseInt("MINISC_SHELL_READY_ATTEMPTS", 12),
		ShellReadyInterval: parseDuration("MINISC_SHELL_READY_INTERVAL", 10*time.Second),
		RetryMaxAttempts:   parseInt("MINISC_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay:  parseDuration("MINISC_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// FastTimeouts returns bounds suitable for in-memory providers in tests.
func FastTimeouts() *Timeouts {
	return &Timeouts{
		NetworkAvailable:   time.Second,
		InstanceRunning:    time.Second,
		InstanceTerminated: time.Second,
		JoinToken:          time.Second,
		Delete:             time.Second,
		PollInterval:       time.Millisecond,
		ShellReadyAttempts: 3,
		ShellReadyInterval: time.Millisecond,
		RetryMaxAttempts:   2,
		RetryInitialDelay:  time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
