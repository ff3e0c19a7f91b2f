// Package snapshot keeps user-requested downloads of edited captures: one
// PNG named after its export time plus a JSON sidecar keyed by uuid.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/pagesnap/internal/types"
)

// FilenamePrefix starts every exported file name.
const FilenamePrefix = "pagesnap"

// TimestampLayout is the time part of an exported file name.
const TimestampLayout = "20060102-150405"

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Meta describes one exported image.
type Meta struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	EditorID  string    `json:"editor_id,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	Mode      string    `json:"mode,omitempty"`
}

// Store manages export files on disk.
type Store struct {
	dir string
	mu  sync.RWMutex
	now func() time.Time
}

// NewStore creates a Store and ensures the directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.NewError(types.CodeExportFailure, "create export dir "+dir, err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// Dir is where exports are written.
func (s *Store) Dir() string { return s.dir }

// Filename builds the export name for t.
func Filename(t time.Time) string {
	return FilenamePrefix + "-" + t.Format(TimestampLayout) + ".png"
}

func (s *Store) validateID(id string) error {
	if !uuidRe.MatchString(id) {
		return types.NewError(types.CodeValidation, fmt.Sprintf("invalid export id: %q", id), nil)
	}
	return nil
}

// Save writes a PNG and its sidecar, filling ID, Filename, Format, SizeBytes
// and CreatedAt.
func (s *Store) Save(meta Meta, png []byte) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	meta.ID = uuid.NewString()
	meta.Format = "png"
	meta.SizeBytes = len(png)
	meta.CreatedAt = now().UTC()
	meta.Filename = s.freeNameLocked(meta.CreatedAt.Local())

	imgPath := filepath.Join(s.dir, meta.Filename)
	jsonPath := filepath.Join(s.dir, meta.ID+".json")

	if err := os.WriteFile(imgPath, png, 0o644); err != nil {
		return Meta{}, types.NewError(types.CodeExportFailure, "write export image", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, types.NewError(types.CodeExportFailure, "marshal export meta", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		_ = os.Remove(imgPath)
		return Meta{}, types.NewError(types.CodeExportFailure, "write export meta", err)
	}
	slog.Info("export saved", "id", meta.ID, "file", imgPath, "bytes", meta.SizeBytes)
	return meta, nil
}

// freeNameLocked returns Filename(t), suffixed -2, -3, ... when a file of
// that name already exists.
func (s *Store) freeNameLocked(t time.Time) string {
	base := Filename(t)
	name := base
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
		name = base[:len(base)-len(".png")] + "-" + strconv.Itoa(i) + ".png"
	}
}

// Get reads export metadata by ID.
func (s *Store) Get(id string) (Meta, error) {
	if err := s.validateID(id); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (Meta, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, types.NewError(types.CodeExportNotFound, "export not found: "+id, nil)
		}
		return Meta{}, types.NewError(types.CodeExportFailure, "read export meta", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, types.NewError(types.CodeExportFailure, "unmarshal export meta", err)
	}
	return meta, nil
}

// List returns all exports, newest first.
func (s *Store) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, types.NewError(types.CodeExportFailure, "list exports", err)
	}
	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta Meta
		if err := json.Unmarshal(data, &meta); err != nil || meta.ID == "" {
			continue
		}
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

// ReadImage returns the PNG bytes of an export with its metadata.
func (s *Store) ReadImage(id string) ([]byte, Meta, error) {
	if err := s.validateID(id); err != nil {
		return nil, Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, err := s.getLocked(id)
	if err != nil {
		return nil, Meta{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, meta.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Meta{}, types.NewError(types.CodeExportNotFound, "export image missing: "+meta.Filename, nil)
		}
		return nil, Meta{}, types.NewError(types.CodeExportFailure, "read export image", err)
	}
	return data, meta, nil
}

// Delete removes the image and its sidecar.
func (s *Store) Delete(id string) error {
	if err := s.validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.getLocked(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, meta.Filename)); err != nil {
		slog.Debug("export image cleanup failed", "id", id, "file", meta.Filename, "error", err)
	}
	if err := os.Remove(filepath.Join(s.dir, id+".json")); err != nil {
		slog.Debug("export meta cleanup failed", "id", id, "error", err)
	}
	return nil
}
