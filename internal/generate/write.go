package generate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// WriteError means generation succeeded but the result could not be
// stored. Generation is not repeated.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// resultMode applies to files WriteResult creates.
const resultMode os.FileMode = 0o644

// targetMode keeps the permissions of an existing target.
func targetMode(fs afero.Fs, path string) os.FileMode {
	info, err := fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return resultMode
	}
	return info.Mode().Perm()
}

// WriteResult replaces the contents of path with text. The text lands in
// a temporary sibling first and is renamed over the target, so readers
// see either the old file or the new one.
func WriteResult(fs afero.Fs, path, text string) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmpFile, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmpFile.Name()
	defer func() {
		_ = fs.Remove(tmpName)
	}()

	if _, err := tmpFile.WriteString(text); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Chmod(tmpName, targetMode(fs, path)); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
