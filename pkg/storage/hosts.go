package storage

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Protocols a saved host can use for the remote pane
const (
	ProtocolSFTP = "sftp"
	ProtocolS3   = "s3"
)

// ErrHostNotFound is returned by lookups of unknown hosts
var ErrHostNotFound = errors.New("host not found")

// Host represents a saved remote side
type Host struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"` // sftp or s3

	// sftp
	Address    string `json:"address,omitempty"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"` // file path

	// s3
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`

	// Password for sftp, secret access key for s3. Kept in Secret only when
	// no master password is set.
	Secret          string `json:"secret,omitempty"`
	SecretEncrypted []byte `json:"secretEncrypted,omitempty"`
	SecretSalt      []byte `json:"secretSalt,omitempty"`

	// Private key content, only when encrypted
	PrivateKeyEncrypted []byte `json:"privateKeyEncrypted,omitempty"`
	KeyEncryptionSalt   []byte `json:"keyEncryptionSalt,omitempty"`

	StartDir  string `json:"startDir,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Validate checks the fields the protocol needs
func (h *Host) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return errors.New("name is required")
	}
	switch h.Protocol {
	case ProtocolSFTP:
		if h.Address == "" || h.Username == "" {
			return errors.New("address and username are required")
		}
		if h.Port < 0 || h.Port > 65535 {
			return errors.New("invalid port number")
		}
	case ProtocolS3:
		if h.Bucket == "" || h.AccessKey == "" {
			return errors.New("bucket and access key are required")
		}
	default:
		return fmt.Errorf("unknown protocol %q", h.Protocol)
	}
	return nil
}

// Seal moves the plaintext secret and key content into their encrypted fields
func (h *Host) Seal(keyContent []byte, masterPassword string) error {
	if h.Secret != "" {
		enc, salt, err := EncryptSecret([]byte(h.Secret), masterPassword)
		if err != nil {
			return fmt.Errorf("failed to encrypt secret: %w", err)
		}
		h.SecretEncrypted, h.SecretSalt, h.Secret = enc, salt, ""
	}
	if len(keyContent) > 0 {
		enc, salt, err := EncryptSecret(keyContent, masterPassword)
		if err != nil {
			return fmt.Errorf("failed to encrypt private key: %w", err)
		}
		h.PrivateKeyEncrypted, h.KeyEncryptionSalt = enc, salt
	}
	return nil
}

// Sealed reports whether Unseal needs the master password
func (h *Host) Sealed() bool {
	return len(h.SecretEncrypted) > 0 || len(h.PrivateKeyEncrypted) > 0
}

// Unseal returns the secret and the private key content
func (h *Host) Unseal(masterPassword string) (secret string, keyContent []byte, err error) {
	secret = h.Secret
	if len(h.SecretEncrypted) > 0 {
		plain, err := DecryptSecret(h.SecretEncrypted, h.SecretSalt, masterPassword)
		if err != nil {
			return "", nil, err
		}
		secret = string(plain)
	}
	if len(h.PrivateKeyEncrypted) > 0 {
		keyContent, err = DecryptSecret(h.PrivateKeyEncrypted, h.KeyEncryptionSalt, masterPassword)
		if err != nil {
			return "", nil, err
		}
	}
	return secret, keyContent, nil
}

// NewHostID returns a random identifier
func NewHostID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Store manages saved hosts
type Store struct {
	hosts    map[string]*Host
	filePath string
	mu       sync.RWMutex
}

// NewStore creates a new host store. A corrupted hosts.json is backed up
// and replaced by an empty one.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &Store{
		hosts:    make(map[string]*Host),
		filePath: filepath.Join(dataDir, "hosts.json"),
	}

	if err := store.load(); err != nil {
		var corrupt *corruptError
		switch {
		case os.IsNotExist(err):
		case errors.As(err, &corrupt):
			slog.Warn("hosts file was corrupted and has been reset", "backup", corrupt.backup, "err", corrupt.err)
		default:
			return nil, err
		}
	}

	return store, nil
}

type corruptError struct {
	backup string
	err    error
}

func (e *corruptError) Error() string {
	return fmt.Sprintf("corrupted hosts file backed up to %s: %v", e.backup, e.err)
}

// load reads hosts from disk
func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return s.save()
	}

	var hosts []*Host
	if err := json.Unmarshal(data, &hosts); err != nil {
		backupPath := s.filePath + ".corrupted"
		if backupErr := os.WriteFile(backupPath, data, 0600); backupErr != nil {
			return fmt.Errorf("failed to parse hosts file: %w", err)
		}
		s.hosts = make(map[string]*Host)
		if saveErr := s.save(); saveErr != nil {
			return fmt.Errorf("failed to reset hosts file: %w", saveErr)
		}
		return &corruptError{backup: backupPath, err: err}
	}

	for _, h := range hosts {
		s.hosts[h.ID] = h
	}
	return nil
}

// save writes hosts to disk, sorted by name
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal hosts: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0600)
}

func (s *Store) sorted() []*Host {
	hosts := make([]*Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		return strings.ToLower(hosts[i].Name) < strings.ToLower(hosts[j].Name)
	})
	return hosts
}

// Add adds a new host. Names are unique, case-insensitively.
func (s *Store) Add(host *Host) error {
	if err := host.Validate(); err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.hosts {
		if strings.EqualFold(h.Name, host.Name) && h.ID != host.ID {
			return fmt.Errorf("host %q already exists", host.Name)
		}
	}
	if host.ID == "" {
		host.ID = NewHostID()
	}
	now := time.Now().Unix()
	if host.CreatedAt == 0 {
		host.CreatedAt = now
	}
	host.UpdatedAt = now
	s.hosts[host.ID] = host
	return s.save()
}

// Get retrieves a host by ID
func (s *Store) Get(id string) (*Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	host, exists := s.hosts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHostNotFound, id)
	}
	return host, nil
}

// FindByName looks a host up by name, case-insensitively
func (s *Store) FindByName(name string) (*Host, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.hosts {
		if strings.EqualFold(h.Name, name) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrHostNotFound, name)
}

// List returns all hosts sorted by name
func (s *Store) List() []*Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted()
}

// Update updates a host
func (s *Store) Update(host *Host) error {
	if err := host.Validate(); err != nil {
		return fmt.Errorf("invalid host: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hosts[host.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrHostNotFound, host.ID)
	}
	host.UpdatedAt = time.Now().Unix()
	s.hosts[host.ID] = host
	return s.save()
}

// Delete removes a host
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hosts[id]; !exists {
		return fmt.Errorf("%w: %s", ErrHostNotFound, id)
	}
	delete(s.hosts, id)
	return s.save()
}
