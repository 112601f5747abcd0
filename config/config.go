package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "peerdrop"
	// DefaultRelayURL is the websocket relay used when no override exists.
	DefaultRelayURL = "wss://relay.peerdrop.local/ws"
	// DefaultChunkSize is the file slice size in bytes.
	DefaultChunkSize = 64 * 1024
	// DefaultHighWaterMark pauses sending above this outbound buffer depth.
	DefaultHighWaterMark = 4 * 1024 * 1024
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// defaultSTUNServers are used for candidate gathering when none are
// configured.
var defaultSTUNServers = []string{"stun:stun.l.google.com:19302"}

// DeviceConfig contains persistent local settings for one device.
type DeviceConfig struct {
	DeviceID      string   `json:"device_id"`
	DeviceName    string   `json:"device_name"`
	RelayURL      string   `json:"relay_url"`
	STUNServers   []string `json:"stun_servers"`
	DownloadDir   string   `json:"download_dir"`
	ChunkSize     int      `json:"chunk_size"`
	HighWaterMark uint64   `json:"high_water_mark"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If PEERDROP_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("PEERDROP_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *DeviceConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate loads config.json from the resolved data directory,
// creating it with generated defaults on first run.
func LoadOrCreate() (*DeviceConfig, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create data directory %q: %w", dataDir, err)
	}

	path := ConfigPath(dataDir)
	cfg, err := Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	cfg = &DeviceConfig{
		DeviceID:   uuid.NewString(),
		DeviceName: defaultDeviceName(),
	}
	applyDefaults(cfg, dataDir)

	if err := Save(path, cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func applyDefaults(cfg *DeviceConfig, dataDir string) {
	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
	}
	if cfg.RelayURL == "" {
		cfg.RelayURL = DefaultRelayURL
	}
	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = append([]string(nil), defaultSTUNServers...)
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(dataDir, "downloads")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.HighWaterMark == 0 {
		cfg.HighWaterMark = DefaultHighWaterMark
	}
}

func defaultDeviceName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "peerdrop-device"
	}
	return hostname
}
