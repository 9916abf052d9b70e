// Package config loads the storage core's tunables from a TOML document,
// following the corpus convention of keeping pool sizing and tree fanout
// out of compiled-in constants.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

const (
	DefaultPageSize        = 4096
	DefaultPoolSize        = 64
	DefaultLeafMaxSize     = 64
	DefaultInternalMaxSize = 64
)

// StorageConfig holds the knobs that size the buffer pool and the B+tree.
type StorageConfig struct {
	PageSize        int `toml:"page_size"`
	PoolSize        int `toml:"pool_size"`
	LeafMaxSize     int `toml:"leaf_max_size"`
	InternalMaxSize int `toml:"internal_max_size"`
}

// Default returns a StorageConfig with the package's default tunables.
func Default() StorageConfig {
	return StorageConfig{
		PageSize:        DefaultPageSize,
		PoolSize:        DefaultPoolSize,
		LeafMaxSize:     DefaultLeafMaxSize,
		InternalMaxSize: DefaultInternalMaxSize,
	}
}

// Load reads a StorageConfig from a TOML file at path, filling any field
// left at zero with the package default.
func Load(path string) (StorageConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config file")
	}

	if cfg.PageSize == 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.LeafMaxSize == 0 {
		cfg.LeafMaxSize = DefaultLeafMaxSize
	}
	if cfg.InternalMaxSize == 0 {
		cfg.InternalMaxSize = DefaultInternalMaxSize
	}

	return cfg, nil
}
