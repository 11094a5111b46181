package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "kiln"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode applied to the artifact inside the runtime image.
	ExecutableMode os.FileMode = 0755

	// File name of the pipeline descriptor looked up in the working directory.
	DescriptorFile = "kiln.toml"
)

// Directory holding per-build work areas for the host backend.
//
//	Linux:   $XDG_CACHE_HOME/kiln/work
//	macOS:   ~/Library/Caches/kiln/work
func Work() string {
	return filepath.Join(xdg.CacheHome, appName, "work")
}

// Default directory for assembled runtime images, one subdirectory per
// pipeline name.
//
//	Linux:   $XDG_DATA_HOME/kiln/images/<name>
//	macOS:   ~/Library/Application Support/kiln/images/<name>
func Images(name string) string {
	return filepath.Join(xdg.DataHome, appName, "images", name)
}

// User-wide descriptor consulted when the working directory has none.
//
//	Linux:   $XDG_CONFIG_HOME/kiln/kiln.toml
//	macOS:   ~/Library/Application Support/kiln/kiln.toml
func UserDescriptor() string {
	return filepath.Join(xdg.ConfigHome, appName, DescriptorFile)
}

// Returns the descriptor path to use when none was given explicitly.
//
// A kiln.toml in dir wins over the user-wide descriptor. Returns "" when
// neither exists, meaning the built-in default pipeline applies.
func Descriptor(dir string) string {
	for _, p := range []string{filepath.Join(dir, DescriptorFile), UserDescriptor()} {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}
