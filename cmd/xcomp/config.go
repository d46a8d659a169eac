package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

// config holds the optional xcomp.toml settings that seed command-line
// defaults. The --fmt flag overrides Format; -I paths are searched after
// the Include paths.
type config struct {
	Include []string `toml:"include"`
	Format  string   `toml:"format"`
}

// loadConfig reads path if it exists, returning a zero-value config
// (empty format, no include paths) if it doesn't -- the config file is
// always optional.
func loadConfig(path string) (config, error) {
	var cfg config
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
