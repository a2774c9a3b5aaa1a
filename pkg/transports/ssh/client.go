package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Client runs commands and transfers files over a single SSH connection.
// The connection is opened on first use and re-established when it dies.
// Concurrent sessions share the connection.
type Client struct {
	config Config
	logger zerolog.Logger

	mu          sync.Mutex
	conn        *ssh.Client
	sftp        *sftp.Client
	connectedAt time.Time
	stopKeep    chan struct{}
}

// Result is the outcome of a remote command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// NewClient creates a client for config. Unset fields take their defaults.
func NewClient(config Config, logger zerolog.Logger) (*Client, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ssh config: %w", err)
	}

	return &Client{
		config: config,
		logger: logger.With().Str("component", "ssh").Str("host", config.Address()).Logger(),
	}, nil
}

// Connect establishes the connection unless a live one exists.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.client(ctx)
	return err
}

// client returns the live connection, dialing if needed.
func (c *Client) client(ctx context.Context) (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		if _, _, err := c.conn.SendRequest("keepalive@openssh.com", true, nil); err == nil {
			return c.conn, nil
		}
		c.logger.Warn().Msg("Existing connection is dead, reconnecting")
		c.closeLocked()
	}

	clientConfig, err := c.config.ClientConfig()
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}

	address := c.config.Address()
	c.logger.Debug().Msg("Establishing SSH connection")

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err, IsTemporary: true}
	}

	// the handshake has no context of its own
	_ = netConn.SetDeadline(time.Now().Add(c.config.ConnectionTimeout))
	stop := context.AfterFunc(ctx, func() { _ = netConn.Close() })
	ncc, chans, reqs, err := ssh.NewClientConn(netConn, address, clientConfig)
	if !stop() {
		if err == nil {
			_ = ncc.Close()
		}
		return nil, &TransportError{Op: "connect", Err: ctx.Err(), IsTemporary: true}
	}
	if err != nil {
		_ = netConn.Close()
		return nil, handshakeError(err)
	}
	_ = netConn.SetDeadline(time.Time{})

	c.conn = ssh.NewClient(ncc, chans, reqs)
	c.connectedAt = time.Now()

	if c.config.KeepAliveInterval > 0 {
		c.stopKeep = make(chan struct{})
		go c.keepAlive(c.conn, c.stopKeep)
	}

	c.logger.Info().Msg("SSH connection established")
	return c.conn, nil
}

// Run executes cmd in a new session with stdin attached. The error reports
// transport failures only; the command's exit status is in the Result.
func (c *Client) Run(ctx context.Context, cmd string, stdin io.Reader) (*Result, error) {
	conn, err := c.client(ctx)
	if err != nil {
		return nil, err
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, &TransportError{
			Op:          "exec",
			Err:         fmt.Errorf("failed to create session: %w", err),
			IsTemporary: true,
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdin = stdin
	session.Stdout = &stdout
	session.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return nil, &TransportError{Op: "exec", Err: ctx.Err()}
	case runErr = <-done:
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	c.logger.Debug().
		Str("command", cmd).
		Int("stdout_len", len(res.Stdout)).
		Int("stderr_len", len(res.Stderr)).
		Dur("duration", res.Duration).
		Err(runErr).
		Msg("Command completed")

	if runErr == nil {
		return res, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, nil
	}
	return nil, &TransportError{Op: "exec", Err: runErr, IsTemporary: true}
}

// Close closes the connection. The client reconnects on next use.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	c.logger.Debug().Dur("connected", time.Since(c.connectedAt)).Msg("Closing SSH connection")

	if err := c.closeLocked(); err != nil && !errors.Is(err, net.ErrClosed) {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *Client) closeLocked() error {
	if c.stopKeep != nil {
		close(c.stopKeep)
		c.stopKeep = nil
	}
	if c.sftp != nil {
		_ = c.sftp.Close()
		c.sftp = nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// keepAlive pings conn until stop is closed or the connection fails.
func (c *Client) keepAlive(conn *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(c.config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				c.logger.Warn().Err(err).Msg("Keep-alive failed")
				return
			}
		}
	}
}
