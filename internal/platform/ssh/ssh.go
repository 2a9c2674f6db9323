package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/minisc/minisc/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 30
	defaultRetryDelay  = 5 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used; cluster nodes are new
	// hosts with keys nobody has seen yet.
	HostKeyCallback ssh.HostKeyCallback
}

// Result is the outcome of one remote command.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// OK reports whether the command exited with status zero.
func (r Result) OK() bool {
	return r.ExitStatus == 0
}

// Session is an open connection to one host.
type Session struct {
	host   string
	client *ssh.Client
}

// withDefaults validates cfg and returns a copy with defaults applied.
func withDefaults(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	c := *cfg
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.HostKeyCallback == nil {
		c.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // Nodes are freshly created
	}
	return &c, nil
}

// Connect opens a session to cfg.Host, retrying the dial with exponential
// backoff until it succeeds, retries run out or ctx is done.
func Connect(ctx context.Context, cfg *Config) (*Session, error) {
	c, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(c.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: c.HostKeyCallback,
		Timeout:         c.DialTimeout,
	}

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	var client *ssh.Client
	err = retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, clientConfig)
		return dialErr
	},
		retry.WithMaxRetries(c.MaxRetries),
		retry.WithInitialDelay(c.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s: %w", addr, err)
	}

	return &Session{host: c.Host, client: client}, nil
}

// Run executes command and waits for it to finish. A non-zero exit status
// is reported in the Result, not as an error. Cancelling ctx kills the
// remote command.
func (s *Session) Run(ctx context.Context, command string) (Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return Result{}, fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return Result{}, fmt.Errorf("failed to start command on %s: %w", s.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return Result{}, fmt.Errorf("command on %s cancelled: %w", s.host, ctx.Err())
	case err = <-done:
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitStatus = exitErr.ExitStatus()
		return result, nil
	}
	return result, fmt.Errorf("command failed on %s: %w", s.host, err)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.client.Close()
}
