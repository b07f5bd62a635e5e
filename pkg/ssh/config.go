// Package ssh dials the SSH connection that carries the SFTP side of a session.
package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// SSHConfig represents SSH connection configuration
type SSHConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	PrivateKey  string // Path to private key file or PEM content
	KeyContent  []byte // Parsed private key content
	KeyPassword string // Password for decrypting encrypted private keys (not stored)

	KnownHostsPath    string // defaults to ~/.ssh/known_hosts
	TrustUnknownHosts bool   // record keys of hosts seen for the first time
}

// Validate checks if the SSH configuration is valid
func (c *SSHConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port number")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// LoadPrivateKey loads the private key from file if PrivateKey is a file path
func (c *SSHConfig) LoadPrivateKey() error {
	if c.PrivateKey == "" {
		return nil
	}

	// PEM content is used as is
	if strings.HasPrefix(c.PrivateKey, "-----") {
		c.KeyContent = []byte(c.PrivateKey)
		return nil
	}

	content, err := os.ReadFile(expandHome(c.PrivateKey))
	if err != nil {
		return err
	}
	c.KeyContent = content
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// Address returns host:port
func (c *SSHConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConnectionID returns a unique identifier for this connection
func (c *SSHConfig) ConnectionID() string {
	return fmt.Sprintf("%s@%s:%d", c.Username, c.Host, c.Port)
}
