package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danderson/rom"
	"github.com/danderson/rom/codec"
)

// fileConfig is the layout of a romctl TOML configuration file.
type fileConfig struct {
	Modules  []string `toml:"modules"`
	Format   string   `toml:"format"`
	MaxDepth int      `toml:"max_depth"`
}

// config is the effective configuration of a romctl invocation.
type config struct {
	// Modules are module descriptor files loaded before any module
	// named on the command line.
	Modules []string
	// Format is the wire encoding of input files. If empty, it is
	// inferred from each file's extension.
	Format string
	// MaxDepth is the nesting limit of the flattening engine.
	MaxDepth int
}

func defaultConfig() config {
	return config{MaxDepth: rom.DefaultMaxDepth}
}

// loadConfig reads the TOML configuration at path, overlaid on the
// defaults. Relative module paths are resolved against the directory
// of the configuration file.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("loading config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("loading config %s: unknown keys %v", path, undecoded)
	}

	if meta.IsDefined("modules") {
		dir := filepath.Dir(path)
		for _, m := range raw.Modules {
			m = strings.TrimSpace(m)
			if !filepath.IsAbs(m) {
				m = filepath.Join(dir, m)
			}
			cfg.Modules = append(cfg.Modules, m)
		}
	}
	if meta.IsDefined("format") {
		cfg.Format = strings.TrimSpace(raw.Format)
		if _, err := codec.ParseFormat(cfg.Format); err != nil {
			return config{}, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if meta.IsDefined("max_depth") {
		if raw.MaxDepth <= 0 {
			return config{}, fmt.Errorf("loading config %s: max_depth must be positive, got %d", path, raw.MaxDepth)
		}
		cfg.MaxDepth = raw.MaxDepth
	}
	return cfg, nil
}
