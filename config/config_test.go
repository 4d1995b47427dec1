package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	yamlContent := `
allocator:
  data_dir: "/tmp/test_data"
  initial_slab_size_bytes: 8388608 # 8 MiB
query:
  max_predicate_depth: 8 # Override default of 64
`
	reader := strings.NewReader(yamlContent)
	cfg, err := Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Check overridden values
	assert.Equal(t, "/tmp/test_data", cfg.Allocator.DataDir)
	assert.Equal(t, int64(8388608), cfg.Allocator.InitialSlabSizeBytes)
	assert.Equal(t, 8, cfg.Query.MaxPredicateDepth)

	// Check a default value that was not overridden
	assert.Equal(t, 2.0, cfg.Allocator.SlabGrowthFactor) // Default
}

func TestLoad_PartialConfig(t *testing.T) {
	yamlContent := `
query:
  approximate_aggregates: true
`
	reader := strings.NewReader(yamlContent)
	cfg, err := Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Check overridden value
	assert.True(t, cfg.Query.ApproximateAggregates)
	// Check default values are still there
	assert.Equal(t, "./data", cfg.Allocator.DataDir)
	assert.Equal(t, int64(1<<20), cfg.Allocator.InitialSlabSizeBytes) // Check another default
}

func TestLoad_EmptyReader(t *testing.T) {
	// Test with nil reader
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, int64(1<<28), cfg.Allocator.MaxSlabSizeBytes) // Check a default value

	// Test with empty string reader
	reader := strings.NewReader("")
	cfg, err = Load(reader)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, int64(1<<28), cfg.Allocator.MaxSlabSizeBytes) // Check a default value
}

func TestLoad_InvalidYAML(t *testing.T) {
	yamlContent := `
allocator:
  data_dir: "/tmp/test_data"
  this: is: invalid: yaml
`
	reader := strings.NewReader(yamlContent)
	_, err := Load(reader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal config yaml")
}

// TestLoadConfig_FileIntegration is a small integration test to ensure
// LoadConfig works correctly with the filesystem.
func TestLoadConfig_FileIntegration(t *testing.T) {
	t.Run("FileExists", func(t *testing.T) {
		yamlContent := `
allocator:
  disable_sync_to_disk: true
`
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "config.yaml")
		err := os.WriteFile(configPath, []byte(yamlContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.True(t, cfg.Allocator.DisableSyncToDisk)
	})

	t.Run("FileDoesNotExist", func(t *testing.T) {
		tempDir := t.TempDir()
		configPath := filepath.Join(tempDir, "non_existent_config.yaml")

		cfg, err := LoadConfig(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)
		// Should return default value
		assert.Equal(t, int64(1<<20), cfg.Allocator.InitialSlabSizeBytes)
	})
}

func TestAllocatorConfigToAllocConfig(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
allocator:
  disable_sync_to_disk: true
  initial_slab_size_bytes: 4096
  slab_growth_factor: 1.5
  max_slab_size_bytes: 65536
`))
	require.NoError(t, err)

	ac := cfg.Allocator.ToAllocConfig()
	assert.True(t, ac.DisableSyncToDisk)
	assert.Equal(t, 4096, ac.InitialSlabSize)
	assert.Equal(t, 1.5, ac.SlabGrowthFactor)
	assert.Equal(t, 65536, ac.MaxSlabSize)
}

func TestParseDuration(t *testing.T) {
	// Use a logger that discards output for this test
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultDuration := 10 * time.Second

	testCases := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{"ValidSeconds", "5s", 5 * time.Second},
		{"ValidMilliseconds", "500ms", 500 * time.Millisecond},
		{"ValidMinutes", "2m", 2 * time.Minute},
		{"EmptyString", "", defaultDuration},
		{"ZeroString", "0", defaultDuration},
		{"InvalidString", "5x", defaultDuration},
		{"JustNumber", "10", defaultDuration},
		{"NilLogger", "5x", defaultDuration}, // Should not panic with nil logger
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var testLogger *slog.Logger
			if tc.name != "NilLogger" {
				testLogger = logger
			}
			result := ParseDuration(tc.input, defaultDuration, testLogger)
			assert.Equal(t, tc.expected, result)
		})
	}
}
