// Package artifact names and persists finished stickers in a flat output directory.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ekisa-team/stickerforge/internal/xfs"
)

// ContentType is the media type of every stored artifact.
const ContentType = "image/png"

// ErrStorage is returned when an artifact cannot be written.
var ErrStorage = errors.New("artifact storage failed")

// Category selects the file name scheme of an artifact.
type Category string

const (
	CategoryText   Category = "text"
	CategoryVoice  Category = "voice"
	CategoryUpload Category = "upload"
)

// Prefix returns the file name prefix of the category.
func (c Category) Prefix() string {
	switch c {
	case CategoryText:
		return "generated_sticker_"
	case CategoryVoice:
		return "voice_generated_sticker_"
	case CategoryUpload:
		return "uploaded_"
	default:
		return string(c) + "_"
	}
}

// Record describes a stored artifact. Records are never mutated.
type Record struct {
	Path        string   `json:"path"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	ContentType string   `json:"content_type"`
	// Sequence is the per-category number; zero for uploads.
	Sequence int64 `json:"sequence,omitempty"`
}

// Store writes artifacts into a single directory.
type Store struct {
	counters map[Category]*atomic.Int64
	dir      string
	mu       sync.Mutex
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := xfs.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &Store{
		counters: make(map[Category]*atomic.Int64),
		dir:      abs,
	}, nil
}

// Dir returns the absolute output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save encodes img as PNG under the next free name of category. For uploads
// the name is "uploaded_" plus the base of originalName with its extension
// rewritten to ".png", so "cat.jpg" and "cat.png" share one file, and an
// existing file is replaced.
// The file appears atomically: a failed write leaves nothing behind.
func (s *Store) Save(ctx context.Context, img image.Image, category Category, originalName string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	rec := Record{Category: category, ContentType: ContentType}

	if category == CategoryUpload {
		rec.Name = uploadName(originalName)
	} else {
		n, err := s.next(category)
		if err != nil {
			return Record{}, err
		}
		rec.Sequence = n
		rec.Name = category.Prefix() + strconv.FormatInt(n, 10) + ".png"
	}
	rec.Path = filepath.Join(s.dir, rec.Name)

	if err := writePNG(s.dir, rec.Path, img); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrStorage, rec.Name, err)
	}

	slog.Debug("Artifact stored", "name", rec.Name, "category", category)
	return rec, nil
}

// next returns the next sequence number of category. The counter is seeded
// from the highest number already on disk the first time it is used.
func (s *Store) next(category Category) (int64, error) {
	s.mu.Lock()
	counter, ok := s.counters[category]
	if !ok {
		seed, err := s.scan(category.Prefix())
		if err != nil {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: %w", ErrStorage, err)
		}
		counter = new(atomic.Int64)
		counter.Store(seed)
		s.counters[category] = counter
	}
	s.mu.Unlock()

	return counter.Add(1), nil
}

func (s *Store) scan(prefix string) (int64, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, prefix+"*.png"))
	if err != nil {
		return 0, err
	}

	var highest int64
	for _, m := range matches {
		stem := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".png")
		n, err := strconv.ParseInt(stem, 10, 64)
		if err != nil || n < 0 {
			continue
		}
		highest = max(highest, n)
	}
	return highest, nil
}

func uploadName(originalName string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(originalName)))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return CategoryUpload.Prefix() + stem + ".png"
}

func writePNG(dir, path string, img image.Image) error {
	tmp, err := os.CreateTemp(dir, ".artifact-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
