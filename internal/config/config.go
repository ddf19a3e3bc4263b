// Package config loads host settings from a timewarp.toml file. Services
// never read the file themselves; the host hands them a Configuration.
package config

import (
	"errors"
	"io/fs"

	"github.com/BurntSushi/toml"
)

type Configuration struct {
	Log     Log     `toml:"log"`
	Library Library `toml:"library"`
	Repl    Repl    `toml:"repl"`
	Canvas  Canvas  `toml:"canvas"`
}

type Log struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Library selects the program store. Driver names follow database/sql:
// sqlite3, mysql, or postgres.
type Library struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type Repl struct {
	History string `toml:"history"`
}

// Canvas sizes the SVG export. Logical turtle coordinates are unbounded;
// the renderer centers the origin in a Width x Height viewport.
type Canvas struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Background string `toml:"background"`
}

// Default is the configuration used when no file overrides it.
func Default() Configuration {
	return Configuration{
		Log:     Log{Level: "info"},
		Library: Library{Driver: "sqlite3", DSN: "timewarp.db"},
		Repl:    Repl{History: ".timewarp_history"},
		Canvas:  Canvas{Width: 800, Height: 600, Background: "#000000"},
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (Configuration, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	return cfg, nil
}
