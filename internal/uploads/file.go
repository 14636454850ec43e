package uploads

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

type File struct {
	LocalPath   string
	Filename    string
	ContentType string
	Size        int64
}

// Describe fills the missing filename, content type and size of a local file.
// Values already set are kept.
func Describe(f File) (File, error) {
	const op = "uploads.Describe"

	if f.Filename == "" {
		f.Filename = filepath.Base(f.LocalPath)
	}

	if f.LocalPath == "" {
		return f, nil
	}

	info, err := os.Stat(f.LocalPath)
	if err != nil {
		return f, fmt.Errorf("%s: stat: %w", op, err)
	}
	if !info.Mode().IsRegular() {
		return f, fmt.Errorf("%s: %s: %w", op, f.LocalPath, ErrNotAFile)
	}

	if f.Size == 0 {
		f.Size = info.Size()
	}

	if f.ContentType == "" {
		mt, err := mimetype.DetectFile(f.LocalPath)
		if err != nil {
			return f, fmt.Errorf("%s: detect mimetype: %w", op, err)
		}
		f.ContentType = BaseMime(mt.String())
	}

	return f, nil
}
