package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/maauso/photoreel/internal/imaging"
)

// ErrInvalidName is returned when a video name has no usable characters.
var ErrInvalidName = errors.New("invalid file name")

// Importer turns picked media into store items. Videos are copied into the
// library directory so the store owns their lifetime.
type Importer struct {
	store  *Store
	dir    string
	logger *slog.Logger

	// mu serializes choosing a free file name and moving the upload there.
	mu sync.Mutex
}

// NewImporter creates an Importer writing videos into dir.
func NewImporter(store *Store, dir string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, dir: dir, logger: logger}
}

// ImportPhoto decodes an image and appends it as a photo item.
func (im *Importer) ImportPhoto(r io.Reader) (Item, error) {
	img, format, err := imaging.Decode(r)
	if err != nil {
		return Item{}, fmt.Errorf("decode photo: %w", err)
	}

	item := NewPhoto(img)
	im.store.Append(item)
	im.logger.Info("photo imported",
		slog.String("item_id", item.ID),
		slog.String("format", format),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
	)
	return item, nil
}

// ImportVideo copies r into the library directory under the sanitized name
// and appends a video item. When the name is taken, a short random suffix is
// added so earlier items keep their own file.
func (im *Importer) ImportVideo(name string, r io.Reader) (Item, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := os.MkdirAll(im.dir, 0750); err != nil {
		return Item{}, fmt.Errorf("create library directory: %w", err)
	}

	tmp, err := os.CreateTemp(im.dir, ".import-*")
	if err != nil {
		return Item{}, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Item{}, fmt.Errorf("write video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Item{}, fmt.Errorf("write video: %w", err)
	}
	dst, err := im.place(tmp.Name(), clean)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return Item{}, err
	}

	item := NewVideo(dst)
	im.store.Append(item)
	im.logger.Info("video imported", slog.String("item_id", item.ID), slog.String("path", dst))
	return item, nil
}

// place moves src into the library under name, or under name with a random
// suffix before the extension when name is taken.
func (im *Importer) place(src, name string) (string, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	dst := filepath.Join(im.dir, name)
	for {
		_, err := os.Stat(dst)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("check library file: %w", err)
		}
		ext := filepath.Ext(name)
		dst = filepath.Join(im.dir, strings.TrimSuffix(name, ext)+"-"+uuid.NewString()[:8]+ext)
	}

	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move video into library: %w", err)
	}
	return dst, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces name to a safe base file name. It returns "" when
// nothing usable remains.
func SanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.TrimLeft(base, ".")
	if strings.Trim(base, "_") == "" {
		return ""
	}
	return base
}
