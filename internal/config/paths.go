package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths anchors relative file locations. A relative path that exists under
// the working directory is used as is; otherwise it is taken relative to the
// directory holding the executable, so a deployed binary finds web/ next to
// itself.
type Paths struct {
	WorkingDir    string
	ExecutableDir string
}

// GetPaths returns the working and executable directories.
func GetPaths() (*Paths, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return &Paths{WorkingDir: wd, ExecutableDir: filepath.Dir(exe)}, nil
}

// Resolve returns an absolute form of path.
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	local := filepath.Join(p.WorkingDir, path)
	if FileExists(local) {
		return local
	}

	beside := filepath.Join(p.ExecutableDir, path)
	if FileExists(beside) {
		return beside
	}

	// Neither exists yet (a log file, say): keep it under the working directory.
	return local
}

// FileExists checks if a file or directory exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
