package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension walks dir and returns files whose name ends with ext
// (case-insensitive). An empty ext matches every file.
func FindFilesByExtension(dir string, ext string) ([]string, error) {
	var files []string
	ext = strings.ToLower(ext)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ext) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenSection opens path and returns a reader over [offset, offset+size).
// The returned closer releases the file.
func OpenSection(path string, offset, size int64) (*io.SectionReader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if offset < 0 || size < 0 || offset+size > info.Size() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("range %d+%d exceeds %s (%d bytes)", offset, size, path, info.Size())
	}
	return io.NewSectionReader(f, offset, size), f, nil
}

// ReadSection reads [offset, offset+size) of path into memory.
func ReadSection(path string, offset, size int64) ([]byte, error) {
	sr, closer, err := OpenSection(path, offset, size)
	if err != nil {
		return nil, err
	}
	defer func(c io.Closer) {
		_ = c.Close()
	}(closer)
	buf := make([]byte, size)
	if _, err := io.ReadFull(sr, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at %d from %s: %w", size, offset, path, err)
	}
	return buf, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
