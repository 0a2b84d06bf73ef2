package mapcatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/klauspost/compress/zstd"
)

const cacheFileName = "lobby-autohost/map-catalog.json.zst"

var ErrNoCache = errors.New("map catalog cache does not exist")

// DefaultPath returns the catalog location in the user cache directory, creating parent dirs.
func DefaultPath() (string, error) {
	return xdg.CacheFile(cacheFileName)
}

type cacheFile struct {
	UpdatedAt time.Time `json:"updatedAt"`
	Maps      Catalog   `json:"maps"`
}

// Store persists a catalog as zstd compressed json.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the cached catalog and the time it was last checked against the source,
// which is the later of the recorded write time and the file modification time.
func (s *Store) Load() (Catalog, time.Time, error) {
	compressed, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, ErrNoCache
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read map catalog %s: %w", s.path, err)
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to stat map catalog %s: %w", s.path, err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer decoder.Close()

	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decompress map catalog: %w", err)
	}

	var file cacheFile
	if err = json.Unmarshal(data, &file); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse map catalog: %w", err)
	}

	if file.Maps == nil {
		file.Maps = Catalog{}
	}

	checkedAt := file.UpdatedAt
	if info.ModTime().After(checkedAt) {
		checkedAt = info.ModTime()
	}
	return file.Maps, checkedAt, nil
}

// Save replaces the cache file atomically.
func (s *Store) Save(catalog Catalog, updatedAt time.Time) error {
	data, err := json.Marshal(cacheFile{UpdatedAt: updatedAt.UTC(), Maps: catalog})
	if err != nil {
		return err
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	compressed := encoder.EncodeAll(data, nil)
	_ = encoder.Close()

	if err = os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create map catalog directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("failed to write map catalog: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return err
	}
	return s.Touch(updatedAt)
}

// Touch records a check that found the catalog unchanged without rewriting it.
func (s *Store) Touch(checkedAt time.Time) error {
	if err := os.Chtimes(s.path, checkedAt, checkedAt); err != nil {
		return fmt.Errorf("failed to touch map catalog: %w", err)
	}
	return nil
}
