package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const reportExt = ".pdf"

// ReportStore caches rendered work order PDFs as <dir>/<id>.pdf. A file's
// mtime is the updatedAt of the work order snapshot it was rendered from.
type ReportStore interface {
	// Load returns the cached PDF only when it was rendered from the given
	// version of the work order.
	Load(id uuid.UUID, version time.Time) ([]byte, bool, error)
	Save(id uuid.UUID, version time.Time, data []byte) error
	Remove(id uuid.UUID) error
	List() ([]uuid.UUID, error)
	Path(id uuid.UUID) string
}

type fileReportStore struct {
	fs  afero.Fs
	dir string
}

func NewReportStore(fs afero.Fs, dir string) (ReportStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &fileReportStore{fs: fs, dir: dir}, nil
}

func (s *fileReportStore) Path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+reportExt)
}

func (s *fileReportStore) Load(id uuid.UUID, version time.Time) ([]byte, bool, error) {
	path := s.Path(id)
	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !info.ModTime().Equal(version) {
		return nil, false, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save writes to a temp file in the same directory, stamps it with version
// and renames it into place, so readers never see a partial or unstamped PDF.
// A late save of an older snapshot never passes Load for a newer version.
func (s *fileReportStore) Save(id uuid.UUID, version time.Time, data []byte) error {
	tmp, err := afero.TempFile(s.fs, s.dir, id.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := s.fs.Chtimes(tmpName, version, version); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("stamp temp report: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.Path(id)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

func (s *fileReportStore) Remove(id uuid.UUID) error {
	if err := s.fs.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the ids of every cached report. Temp files and foreign
// files are skipped.
func (s *fileReportStore) List() ([]uuid.UUID, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, reportExt) {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(name, reportExt))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
