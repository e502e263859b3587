package utils

import "path/filepath"

// ResolvePath resolves p against baseDir unless it is empty or absolute.
// Relative paths in a project config are relative to the config file.
func ResolvePath(p, baseDir string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
