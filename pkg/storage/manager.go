// Package storage writes exported images and archives to disk.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles file save operations for an output directory.
type Manager struct {
	outputDir string
	mu        sync.Mutex
	saved     map[string]bool
}

// NewManager creates a storage manager rooted at outputDir, creating the
// directory if needed.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}, nil
}

// SaveFile writes one file under the output directory. The write goes to
// a temp file first and is renamed into place so a failed save never
// leaves a truncated file behind.
func (m *Manager) SaveFile(name string, r io.Reader) (string, error) {
	filename := filepath.Join(m.outputDir, filepath.Base(name))

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[filepath.Base(name)] = true
	m.mu.Unlock()

	return filename, nil
}

// SavedCount returns the number of files saved through this manager.
func (m *Manager) SavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// OutputDir returns the output directory path.
func (m *Manager) OutputDir() string {
	return m.outputDir
}
