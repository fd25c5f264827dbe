// Package config carries the tunables both cores otherwise hardcode as
// constants, loaded from an explicit configuration record rather than a
// process-wide singleton (spec §9 design note: "Global CLI
// configuration").
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Engine holds the values §3/§4 of the specification otherwise fix as
// literals: memory size, the cycle ceiling, and the CDB's depth. Zero
// values mean "use the spec default" — see Defaults.
type Engine struct {
	MemoryWords int `toml:"memory_words"`
	CycleLimit  int `toml:"cycle_limit"`
	CDBDepth    int `toml:"cdb_depth"`
}

// Defaults returns the spec's literal constants: 8192-word memory
// (32 KiB), a 10000-cycle ceiling, and an 8-entry CDB.
func Defaults() Engine {
	return Engine{
		MemoryWords: 8192,
		CycleLimit:  10000,
		CDBDepth:    8,
	}
}

// Load reads a TOML configuration file and overlays it on Defaults;
// fields absent from the file keep their default value. A missing file
// is an error like any other read failure; callers with an optional
// config file should check that it exists before calling Load, or skip
// Load and use Defaults directly.
func Load(path string) (Engine, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: read %s", path)
	}

	var overlay Engine
	if _, err := toml.Decode(string(data), &overlay); err != nil {
		return cfg, errors.Wrapf(err, "config: parse %s", path)
	}

	if overlay.MemoryWords != 0 {
		cfg.MemoryWords = overlay.MemoryWords
	}
	if overlay.CycleLimit != 0 {
		cfg.CycleLimit = overlay.CycleLimit
	}
	if overlay.CDBDepth != 0 {
		cfg.CDBDepth = overlay.CDBDepth
	}

	return cfg, nil
}
