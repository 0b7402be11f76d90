package layout

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed defaults/layout.html defaults/layout.css
var defaults embed.FS

// DefaultHTML returns the built-in template
func DefaultHTML() string {
	data, _ := defaults.ReadFile("defaults/layout.html")
	return string(data)
}

// DefaultCSS returns the built-in stylesheet
func DefaultCSS() string {
	data, _ := defaults.ReadFile("defaults/layout.css")
	return string(data)
}

// WriteDefaults writes the built-in layout into dir under the given file
// names. Existing files are kept; the returned slice lists what was written.
func WriteDefaults(dir, htmlFile, cssFile string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create layout directory: %w", err)
	}

	var written []string
	files := []struct{ name, content string }{
		{htmlFile, DefaultHTML()},
		{cssFile, DefaultCSS()},
	}
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return written, fmt.Errorf("failed to create %s: %w", path, err)
		}
		_, werr := f.WriteString(file.content)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, werr)
		}
		written = append(written, path)
	}
	return written, nil
}
