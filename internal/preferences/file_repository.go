package preferences

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileRepository keeps one JSON file per profile in a directory.
// It backs the command line tool, which has no server-side store.
type FileRepository struct {
	dir string
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository creates a repository rooted at dir.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

func (r *FileRepository) path(profile string) string {
	return filepath.Join(r.dir, filepath.Base(profile)+".json")
}

// Load reads the record for a profile.
func (r *FileRepository) Load(_ context.Context, profile string) ([]byte, error) {
	data, err := os.ReadFile(r.path(profile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("load preferences %s: %w", profile, err)
	}
	return data, nil
}

// Save writes the record through a temporary file so readers never see a
// partial record.
func (r *FileRepository) Save(_ context.Context, profile string, data []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	tmp, err := os.CreateTemp(r.dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	if err := os.Rename(tmp.Name(), r.path(profile)); err != nil {
		return fmt.Errorf("save preferences %s: %w", profile, err)
	}
	return nil
}
