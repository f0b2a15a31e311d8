package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultConfigPath = "~/.config/hairshop/config.json"

	defaultAlignTimeout    = 60 * time.Second
	defaultTransferTimeout = 300 * time.Second
	defaultAlignmentSeed   = 42
	defaultMaxFileSize     = 10 * 1024 * 1024
	defaultMinDimension    = 256
	defaultStageBound      = 1024
)

// Config holds user-editable settings for the transfer pipeline.
type Config struct {
	Toolchain   Toolchain   `json:"toolchain"`
	Workspace   Workspace   `json:"workspace"`
	Validation  Validation  `json:"validation"`
	Enhancement Enhancement `json:"enhancement"`
	Defaults    Defaults    `json:"defaults"`
	Logging     Logging     `json:"logging"`
	Server      Server      `json:"server"`
}

// Toolchain locates and parameterizes the external transfer programs.
type Toolchain struct {
	Root            string `json:"root"`            // checkout of the model repository
	RepoURL         string `json:"repo_url"`        // cloned into Root when scripts are missing
	Python          string `json:"python"`          // interpreter used to run the scripts
	AlignScript     string `json:"align_script"`    // relative to Root
	TransferScript  string `json:"transfer_script"` // relative to Root
	AlignmentSeed   int    `json:"alignment_seed"`  // fixed seed passed to the alignment tool
	AlignTimeoutSec int    `json:"align_timeout_sec"`
	TimeoutSec      int    `json:"transfer_timeout_sec"`
	AutoClone       bool   `json:"auto_clone"`
}

// AlignTimeout returns the alignment stage budget.
func (t Toolchain) AlignTimeout() time.Duration {
	if t.AlignTimeoutSec <= 0 {
		return defaultAlignTimeout
	}
	return time.Duration(t.AlignTimeoutSec) * time.Second
}

// TransferTimeout returns the compositing stage budget.
func (t Toolchain) TransferTimeout() time.Duration {
	if t.TimeoutSec <= 0 {
		return defaultTransferTimeout
	}
	return time.Duration(t.TimeoutSec) * time.Second
}

// Workspace configures run-scoped scratch directories.
type Workspace struct {
	Root     string `json:"root"`      // parent of per-run subtrees
	KeepRuns bool   `json:"keep_runs"` // skip cleanup after each run, for debugging
}

// Validation bounds accepted input images.
type Validation struct {
	MinWidth          int      `json:"min_width"`
	MinHeight         int      `json:"min_height"`
	MaxFileSizeBytes  int64    `json:"max_file_size_bytes"`
	AllowedExtensions []string `json:"allowed_extensions"`
	StageBound        int      `json:"stage_bound"` // staged images are downscaled to fit
}

// Enhancement holds the factors applied when a request asks for enhancement.
// A factor of 1.0 is a no-op and is skipped entirely.
type Enhancement struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Sharpness  float64 `json:"sharpness"`
	Color      float64 `json:"color"`
}

// Defaults supplies request parameters when the caller leaves them unset.
type Defaults struct {
	Style      string `json:"style"`
	Smoothness int    `json:"smoothness"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `json:"addr"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("HAIRSHOP_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Toolchain: Toolchain{
			Root:            "./Barbershop",
			RepoURL:         "https://github.com/ZPdesu/Barbershop.git",
			Python:          "python3",
			AlignScript:     "align_face.py",
			TransferScript:  "main.py",
			AlignmentSeed:   defaultAlignmentSeed,
			AlignTimeoutSec: int(defaultAlignTimeout / time.Second),
			TimeoutSec:      int(defaultTransferTimeout / time.Second),
			AutoClone:       true,
		},
		Workspace: Workspace{
			Root: filepath.Join(os.TempDir(), "hairshop"),
		},
		Validation: Validation{
			MinWidth:          defaultMinDimension,
			MinHeight:         defaultMinDimension,
			MaxFileSizeBytes:  defaultMaxFileSize,
			AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
			StageBound:        defaultStageBound,
		},
		Enhancement: Enhancement{
			Brightness: 1.05,
			Contrast:   1.05,
			Sharpness:  1.1,
			Color:      1.0,
		},
		Defaults: Defaults{
			Style:      "realistic",
			Smoothness: 5,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
