package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrFileExists is returned when the scaffold target is already present.
var ErrFileExists = errors.New("file already exists")

var extensionLanguages = []struct {
	ext      string
	language string
}{
	{".py", "python"},
	{".java", "java"},
	{".js", "javascript"},
	{".go", "go"},
}

// DetectLanguage maps a file name to a language by extension.
func DetectLanguage(fileName string) (string, bool) {
	for _, entry := range extensionLanguages {
		if strings.HasSuffix(fileName, entry.ext) {
			return entry.language, true
		}
	}
	return "", false
}

// Create writes a new file at path holding the template for language.
// Parent directories are created; an existing file is never overwritten.
func Create(fs afero.Fs, path, language string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("file path is required")
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parent dir: %w", err)
		}
	}

	file, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(Template(language, filepath.Base(path))); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Template returns the boilerplate for language. Unknown languages get a
// single comment line.
func Template(language, fileName string) string {
	switch strings.ToLower(language) {
	case "python":
		return "#!/usr/bin/env python3\n\n" +
			"def main():\n" +
			"    pass\n\n" +
			"if __name__ == \"__main__\":\n" +
			"    main()\n"
	case "java":
		className := strings.TrimSuffix(fileName, ".java")
		return "public class " + className + " {\n" +
			"    public static void main(String[] args) {\n" +
			"        // TODO: implement\n" +
			"    }\n" +
			"}\n"
	case "javascript", "js":
		return "#!/usr/bin/env node\n\n" +
			"// TODO: implement\n"
	case "go":
		return "package main\n\n" +
			"func main() {\n" +
			"}\n"
	default:
		return "// Unknown language: " + language + "\n"
	}
}
