package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Reads a descriptor from a TOML file.
//
// Omitted fields are inherited from [Default]. Unknown keys are rejected so
// that a typo cannot silently fall back to a default path. A relative source
// tree is resolved against the directory containing the file. The result is
// validated.
func Load(file string) (*Descriptor, error) {
	d := &Descriptor{}
	meta, err := toml.DecodeFile(file, d)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s: unknown keys %s", ErrLoad, file, strings.Join(keys, ", "))
	}

	d.inherit(Default())

	if !filepath.IsAbs(d.Source) {
		d.Source = filepath.Join(filepath.Dir(file), d.Source)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("descriptor loaded", "file", file, "name", d.Name)
	return d, nil
}

// Returns the descriptor at file, or the built-in default rooted at dir when
// file is empty.
func Resolve(file, dir string) (*Descriptor, error) {
	if file != "" {
		return Load(file)
	}

	d := Default()
	d.Source = dir
	return d, d.Validate()
}
