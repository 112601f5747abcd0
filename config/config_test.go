package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreateCreatesAndReloadsConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("PEERDROP_DATA_DIR", tempDir)

	firstCfg, firstPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("first LoadOrCreate failed: %v", err)
	}
	if firstCfg.DeviceID == "" {
		t.Fatalf("expected non-empty device ID")
	}
	if firstCfg.RelayURL != DefaultRelayURL {
		t.Fatalf("expected default relay URL %q, got %q", DefaultRelayURL, firstCfg.RelayURL)
	}
	if firstCfg.ChunkSize != DefaultChunkSize {
		t.Fatalf("expected default chunk size %d, got %d", DefaultChunkSize, firstCfg.ChunkSize)
	}
	if firstCfg.HighWaterMark != DefaultHighWaterMark {
		t.Fatalf("expected default high-water mark %d, got %d", DefaultHighWaterMark, firstCfg.HighWaterMark)
	}
	if len(firstCfg.STUNServers) == 0 {
		t.Fatalf("expected default STUN servers")
	}

	expectedConfigPath := filepath.Join(tempDir, "config.json")
	if firstPath != expectedConfigPath {
		t.Fatalf("expected config path %q, got %q", expectedConfigPath, firstPath)
	}

	secondCfg, secondPath, err := LoadOrCreate()
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}

	if secondPath != firstPath {
		t.Fatalf("expected config path to be stable, got %q then %q", firstPath, secondPath)
	}
	if secondCfg.DeviceID != firstCfg.DeviceID {
		t.Fatalf("expected stable device ID, got %q then %q", firstCfg.DeviceID, secondCfg.DeviceID)
	}
}

func TestLoadFillsMissingFieldsWithDefaults(t *testing.T) {
	tempDir := t.TempDir()
	cfgPath := filepath.Join(tempDir, "config.json")

	partial := &DeviceConfig{
		DeviceID:   "existing-device",
		DeviceName: "Laptop",
		RelayURL:   "wss://relay.example.net/ws",
	}
	if err := Save(cfgPath, partial); err != nil {
		t.Fatalf("Save partial config failed: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RelayURL != "wss://relay.example.net/ws" {
		t.Fatalf("configured relay URL overridden: %q", cfg.RelayURL)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Fatalf("chunk size not defaulted: %d", cfg.ChunkSize)
	}
	if cfg.DownloadDir != filepath.Join(tempDir, "downloads") {
		t.Fatalf("download dir not defaulted: %q", cfg.DownloadDir)
	}
}
