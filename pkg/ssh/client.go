package ssh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const dialTimeout = 30 * time.Second

// Client manages one SSH connection
type Client struct {
	config    *SSHConfig
	client    *ssh.Client
	logger    *slog.Logger
	mu        sync.Mutex
	connected bool
}

// NewClient creates a new SSH client
func NewClient(config *SSHConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		logger: logger.With("host", config.ConnectionID()),
	}
}

// defaultKnownHosts returns ~/.ssh/known_hosts
func defaultKnownHosts() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".ssh", "known_hosts"), nil
}

// hostKeyCallback verifies host keys against known_hosts. Unknown hosts are
// appended when TrustUnknownHosts is set; a changed key is always rejected.
func (c *Client) hostKeyCallback() (ssh.HostKeyCallback, error) {
	path := c.config.KnownHostsPath
	if path == "" {
		var err error
		if path, err = defaultKnownHosts(); err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
	}

	// Create .ssh directory and known_hosts if they don't exist
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, err
	}
	f.Close()

	verify, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("invalid known_hosts %s: %w", path, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := verify(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err == nil || !errors.As(err, &keyErr) || len(keyErr.Want) > 0 || !c.config.TrustUnknownHosts {
			return err
		}
		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		if err := appendLine(path, line); err != nil {
			return fmt.Errorf("failed to record host key: %w", err)
		}
		c.logger.Info("added host key to known_hosts", "path", path, "type", key.Type())
		return nil
	}, nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *Client) authMethods() ([]ssh.AuthMethod, error) {
	if err := c.config.LoadPrivateKey(); err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	var authMethods []ssh.AuthMethod
	if len(c.config.KeyContent) > 0 {
		signer, err := ssh.ParsePrivateKey(c.config.KeyContent)
		if err != nil {
			// Try with KeyPassword if available
			if c.config.KeyPassword != "" {
				signer, err = ssh.ParsePrivateKeyWithPassphrase(c.config.KeyContent, []byte(c.config.KeyPassword))
			}
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}
	if len(authMethods) == 0 {
		return nil, errors.New("no password or private key configured")
	}
	return authMethods, nil
}

// Connect establishes the SSH connection
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	auth, err := c.authMethods()
	if err != nil {
		return err
	}
	callback, err := c.hostKeyCallback()
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            auth,
		HostKeyCallback: callback,
		Timeout:         dialTimeout,
	}

	addr := c.config.Address()
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to handshake: %w", err)
	}

	c.client = ssh.NewClient(sshConn, chans, reqs)
	c.connected = true
	c.logger.Info("connected")
	go c.waitForExit(c.client)
	return nil
}

// waitForExit marks the client disconnected once the connection drops
func (c *Client) waitForExit(client *ssh.Client) {
	err := client.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == client {
		c.connected = false
		c.logger.Warn("connection closed", "err", err)
	}
}

// Close closes the SSH connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// IsConnected returns true if connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// GetRawClient returns the underlying SSH client for SFTP usage
func (c *Client) GetRawClient() *ssh.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// GetConfig returns the SSH configuration
func (c *Client) GetConfig() *SSHConfig {
	return c.config
}
