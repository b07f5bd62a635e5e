package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Settings represents application settings
type Settings struct {
	DefaultPort        int    `json:"defaultPort"`
	DefaultUsername    string `json:"defaultUsername"`
	ShowHidden         bool   `json:"showHidden"`
	SortColumn         string `json:"sortColumn"`    // name, modified, kind, size
	SortDirection      string `json:"sortDirection"` // asc, desc
	ProgressIntervalMs int    `json:"progressIntervalMs"`
	MetricsAddr        string `json:"metricsAddr,omitempty"` // empty disables /metrics
	TrustUnknownHosts  bool   `json:"trustUnknownHosts"`
	MasterPasswordHash string `json:"masterPasswordHash,omitempty"` // Bcrypt hash of master password
}

// ProgressInterval is the minimum time between two progress updates
func (s Settings) ProgressInterval() time.Duration {
	if s.ProgressIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.ProgressIntervalMs) * time.Millisecond
}

// SettingsStore manages application settings
type SettingsStore struct {
	settings Settings
	filePath string
	mu       sync.RWMutex
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(dataDir string) (*SettingsStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &SettingsStore{
		settings: getDefaultSettings(),
		filePath: filepath.Join(dataDir, "settings.json"),
	}

	if err := store.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		if err := store.save(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// getDefaultSettings returns default settings
func getDefaultSettings() Settings {
	return Settings{
		DefaultPort:        22,
		DefaultUsername:    "root",
		ShowHidden:         false,
		SortColumn:         "name",
		SortDirection:      "asc",
		ProgressIntervalMs: 100,
	}
}

// load reads settings from disk
func (s *SettingsStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.settings)
}

// save writes settings to disk
func (s *SettingsStore) save() error {
	data, err := json.MarshalIndent(s.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns current settings
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces all settings
func (s *SettingsStore) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = settings
	return s.save()
}

func (s *SettingsStore) SetShowHidden(show bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.ShowHidden = show
	return s.save()
}

// SetSort stores the sort order new panes start with
func (s *SettingsStore) SetSort(column, direction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.SortColumn = column
	s.settings.SortDirection = direction
	return s.save()
}

func (s *SettingsStore) SetMetricsAddr(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings.MetricsAddr = addr
	return s.save()
}

// Reset resets settings to defaults, keeping the master password
func (s *SettingsStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := s.settings.MasterPasswordHash
	s.settings = getDefaultSettings()
	s.settings.MasterPasswordHash = hash
	return s.save()
}

// HasMasterPassword reports whether secrets are encrypted at rest
func (s *SettingsStore) HasMasterPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MasterPasswordHash != ""
}

// VerifyMasterPassword checks if the provided password matches the stored hash
func (s *SettingsStore) VerifyMasterPassword(password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings.MasterPasswordHash == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(s.settings.MasterPasswordHash), []byte(password))
	return err == nil
}

// SetMasterPassword sets the master encryption password (hashes it)
func (s *SettingsStore) SetMasterPassword(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if password == "" {
		s.settings.MasterPasswordHash = ""
		return s.save()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.settings.MasterPasswordHash = string(hash)
	return s.save()
}

// GetDataDir returns the directory where settings are stored
func (s *SettingsStore) GetDataDir() string {
	return filepath.Dir(s.filePath)
}
