package easy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// moduleSuffix is the platform shared-library suffix appended to bare
// module names.
const moduleSuffix = ".so"

// ResolveModule turns a module name or path into an absolute path to an
// existing native library.
//
// An identifier containing a path separator is taken as a filesystem path
// and resolved to its absolute form without any search. Otherwise the
// shared-library suffix is appended and the candidate directories are
// scanned in order; the first directory containing a regular file by that
// name wins.
func ResolveModule(module string, dirs []string) (string, error) {
	if strings.ContainsRune(module, os.PathSeparator) {
		abs, err := filepath.Abs(module)
		if err != nil {
			return "", errors.WithStack(err)
		}
		if _, err := os.Stat(abs); err != nil {
			return "", errors.WithMessagef(ErrModuleNotFound, "%s", abs)
		}
		return abs, nil
	}

	name := module
	if !strings.HasSuffix(name, moduleSuffix) {
		name += moduleSuffix
	}

	found := false
	for _, dir := range dirs {
		fi, err := os.Stat(dir)
		if err != nil || !fi.IsDir() {
			continue
		}
		found = true

		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && fi.Mode().IsRegular() {
			return candidate, nil
		}
	}

	if !found {
		return "", errors.WithMessagef(ErrNoSearchPaths, "dirs: %s", strings.Join(dirs, ", "))
	}
	return "", errors.WithMessagef(ErrModuleNotFound, "%s not found in: %s", name, strings.Join(dirs, ", "))
}
