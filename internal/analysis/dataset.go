package analysis

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eleven-am/civic311/internal/shared"
	"github.com/google/uuid"
)

var (
	ErrTooLarge = errors.New("file too large")
	ErrNotImage = errors.New("not an image")
)

const defaultMaxUpload = 10 << 20

// Dataset is the directory of images that can be analysed by name.
type Dataset struct {
	dir       string
	maxUpload int64
}

func NewDataset(dir string, maxUpload int64) *Dataset {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Dataset{
		dir:       dir,
		maxUpload: maxUpload,
	}
}

func (d *Dataset) Dir() string {
	return d.dir
}

// Path maps a client supplied name to a location inside the dataset
// directory. Traversal outside the directory is folded back into it.
func (d *Dataset) Path(name string) string {
	clean := filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return filepath.Join(d.dir, clean)
}

func (d *Dataset) Read(name string) ([]byte, error) {
	path := d.Path(name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, shared.ErrNotFound
	}
	return os.ReadFile(path)
}

// Save stores an uploaded image and returns the name it was stored under.
// A name that is already taken gets a short random suffix.
func (d *Dataset) Save(name string, r io.Reader) (string, error) {
	base := shared.BaseName(name)
	if base == "" {
		return "", shared.ErrInvalidInput
	}

	data, err := io.ReadAll(io.LimitReader(r, d.maxUpload+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > d.maxUpload {
		return "", ErrTooLarge
	}
	if !IsImage(data) {
		return "", ErrNotImage
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}

	if _, err := os.Stat(filepath.Join(d.dir, base)); err == nil {
		ext := filepath.Ext(base)
		base = strings.TrimSuffix(base, ext) + "-" + uuid.NewString()[:8] + ext
	}

	if err := os.WriteFile(filepath.Join(d.dir, base), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return base, nil
}
