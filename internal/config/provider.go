// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions selects where configuration is read from. The zero value
	// reads config.cue from ConfigDir, falling back to defaults.
	LoadOptions struct {
		// ConfigFilePath names the file to read; it must exist.
		ConfigFilePath string
		// ConfigDirPath replaces ConfigDir as the directory searched.
		ConfigDirPath string
	}

	// Loaded pairs a configuration with its source file. Path is empty
	// when only defaults and environment overrides applied.
	Loaded struct {
		Config *Config
		Path   string
	}

	// Provider is the seam commands load configuration through.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	cueProvider struct{}
)

// NewProvider returns the Provider backed by CUE files, viper defaults and
// SHKERNEL_* environment variables.
func NewProvider() Provider {
	return cueProvider{}
}

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, Path: path}, nil
}
