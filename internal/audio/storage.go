package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

// Storage keeps uploaded recordings as write-once files under one
// directory. Files are never removed by the application.
type Storage struct {
	dir      string
	maxBytes int64
	allowed  map[string]bool
	now      func() time.Time
}

// NewStorage creates the storage directory if needed.
func NewStorage(cfg config.AudioConfig) (*Storage, error) {
	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Storage{
		dir:      cfg.StorageDir,
		maxBytes: cfg.MaxUploadBytes(),
		allowed:  allowed,
		now:      time.Now,
	}, nil
}

// Dir returns the storage directory.
func (s *Storage) Dir() string {
	return s.dir
}

// FileName builds session_<id>_stage_<n>_<yyyymmdd_hhmmss>.<ext>.
func FileName(sessionID uuid.UUID, stage int, ext string, at time.Time) string {
	return fmt.Sprintf("session_%s_stage_%d_%s.%s", sessionID, stage, at.Format("20060102_150405"), ext)
}

// Validate checks the extension and declared size of an upload and returns
// the normalised extension.
func (s *Storage) Validate(filename string, size int64) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || !s.allowed[ext] {
		return "", models.NewValidationError("file", "unsupported audio format %q", ext)
	}
	if size == 0 {
		return "", models.NewValidationError("file", "file is empty")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", tooLarge(s.maxBytes)
	}
	return ext, nil
}

// Save stores r under a new name and returns that name. The size limit is
// enforced on the bytes actually read.
func (s *Storage) Save(sessionID uuid.UUID, stage int, filename string, r io.Reader, size int64) (string, error) {
	ext, err := s.Validate(filename, size)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(FileName(sessionID, stage, ext, s.now()), "."+ext)
	name := base + "." + ext
	var f *os.File
	for i := 1; ; i++ {
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) || i > 100 {
			return "", fmt.Errorf("failed to create audio file: %w", err)
		}
		name = fmt.Sprintf("%s_%d.%s", base, i, ext)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = tooLarge(s.maxBytes)
	}
	if err == nil && written == 0 {
		err = models.NewValidationError("file", "file is empty")
	}
	if err != nil {
		os.Remove(filepath.Join(s.dir, name))
		return "", err
	}
	return name, nil
}

// Path resolves a stored name to its file path.
func (s *Storage) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", models.ErrAudioNotFound
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", models.ErrAudioNotFound
		}
		return "", err
	}
	return path, nil
}

// List returns every stored file name, sorted.
func (s *Storage) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Orphans lists stored files that no session references.
func (s *Storage) Orphans(referenced []string) ([]string, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool, len(referenced))
	for _, r := range referenced {
		used[filepath.Base(r)] = true
	}
	var orphans []string
	for _, name := range names {
		if !used[name] {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}

func tooLarge(limit int64) error {
	return &models.ValidationError{
		Field:    "file",
		Message:  fmt.Sprintf("file exceeds the %d MB upload limit", limit/(1024*1024)),
		TooLarge: true,
	}
}
