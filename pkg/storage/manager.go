package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultImageExt is used when a source URL carries no usable extension
const DefaultImageExt = ".jpg"

var imageExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)

// Manager owns the working image directory. The directory is created on
// the first save and removed entirely by Cleanup.
type Manager struct {
	dir string
}

// NewManager creates a manager for dir without touching the filesystem
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the working directory path
func (m *Manager) Dir() string {
	return m.dir
}

// ImagePath returns the path a file named name would have inside the directory
func (m *Manager) ImagePath(name string) string {
	return filepath.Join(m.dir, name)
}

// ImageFilename derives the working-directory file name for a post image:
// the post id plus the extension of the URL path, or DefaultImageExt.
func ImageFilename(id, rawURL string) string {
	ext := DefaultImageExt
	if u, err := url.Parse(rawURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); imageExt.MatchString(e) {
			ext = e
		}
	}
	return id + ext
}

// SaveImage writes r to name inside the working directory through a
// temporary file and a rename, so a failed download never leaves a
// truncated image behind. It returns the final path and the byte count.
func (m *Manager) SaveImage(r io.Reader, name string) (string, int64, error) {
	if name == "" || filepath.Base(name) != name {
		return "", 0, fmt.Errorf("invalid image file name %q", name)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create image directory: %w", err)
	}

	target := m.ImagePath(name)
	out, err := os.CreateTemp(m.dir, "."+name+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	written, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to save image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return target, written, nil
}

// FileExists reports whether p names an existing regular file
func FileExists(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Cleanup removes every file directly inside the working directory and
// then the directory itself. Anything already gone is not an error, so
// calling it repeatedly, or before anything was downloaded, is safe.
func (m *Manager) Cleanup() error {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read image directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(m.ImagePath(entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	if err := os.Remove(m.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove image directory: %w", err))
	}

	return errors.Join(errs...)
}

// WriteFileAtomic writes data to path via a synced temporary file in the
// same directory followed by a rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tempFile, perm); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
