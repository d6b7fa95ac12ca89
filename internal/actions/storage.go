package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/atotto/clipboard"
)

// Saver stores files produced by download actions
type Saver interface {
	Save(ctx context.Context, jobID uint, name string, body []byte) (string, error)
}

// LocalSaver writes files to <BaseDir>/jobs/<id>/
type LocalSaver struct {
	BaseDir string
}

// NewLocalSaver creates a new LocalSaver instance
func NewLocalSaver(baseDir string) *LocalSaver {
	return &LocalSaver{BaseDir: baseDir}
}

// Save writes body to the job directory and returns the file path
func (s *LocalSaver) Save(ctx context.Context, jobID uint, name string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	dir := s.JobPath(jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create job directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}

// JobPath returns the directory for a job's files
func (s *LocalSaver) JobPath(jobID uint) string {
	return filepath.Join(s.BaseDir, "jobs", strconv.FormatUint(uint64(jobID), 10))
}

// Clipboard receives copied section data
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the system clipboard
type SystemClipboard struct{}

// WriteAll implements Clipboard
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// StaticForm is a Form with fixed values, used by one-shot commands
type StaticForm struct {
	URL      string
	Selector string
	cleared  bool
}

// Values implements Form
func (f *StaticForm) Values() (string, string) {
	return f.URL, f.Selector
}

// Reset implements Form
func (f *StaticForm) Reset() {
	f.URL = ""
	f.Selector = ""
	f.cleared = true
}

// Cleared reports whether Reset was called
func (f *StaticForm) Cleared() bool {
	return f.cleared
}
